package sybil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/types"
)

// Monitor persists Sybil risk verdicts under the §6.4 sybil_alert_ prefix
// and applies the automatic cluster-wide reputation penalty §4.7
// prescribes once confidence crosses AutoPenaltyThreshold.
//
// Grounded on pkg/fraud.Registry's validate-then-apply-then-persist
// shape, narrowed to the Sybil-detection domain: RiskScore/
// DetectSybilNetwork stay pure package functions (spec.md §9's "keep
// opcode/gas-style policy stateless" applies equally here); Monitor is
// the explicit session object holding the side effects.
type Monitor struct {
	kv  kv.Store
	rep *reputation.Registry
}

// NewMonitor constructs a Monitor over store, applying penalties through
// rep. rep may be nil if the caller only wants alert persistence.
func NewMonitor(store kv.Store, rep *reputation.Registry) *Monitor {
	return &Monitor{kv: store, rep: rep}
}

// Evaluate scores candidates against signals, persists a sybil_alert_
// record per member once confidence reaches DAOEscalationThreshold, and
// applies AutoPenaltyPoints to every member once confidence reaches
// AutoPenaltyThreshold.
func (m *Monitor) Evaluate(candidates []types.Address, signals ClusterSignals, now time.Time) (RiskResult, error) {
	result := DetectSybilNetwork(candidates, signals)

	if result.Confidence >= DAOEscalationThreshold {
		if err := m.persistAlert(candidates, result, now); err != nil {
			return result, fmt.Errorf("sybil: persist alert: %w", err)
		}
	}
	if result.ShouldAutoPenalize() && m.rep != nil {
		for _, addr := range candidates {
			if _, err := m.rep.ApplyPenalty(addr, AutoPenaltyPoints); err != nil {
				return result, fmt.Errorf("sybil: apply auto-penalty to %s: %w", addr, err)
			}
		}
	}
	return result, nil
}

func (m *Monitor) persistAlert(candidates []types.Address, result RiskResult, now time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	for _, addr := range candidates {
		if err := m.kv.Set(kv.SybilAlertKey(addr, now.UnixNano()), raw); err != nil {
			return err
		}
	}
	return nil
}

// Alerts returns every persisted alert for addr, oldest first (the key
// encoding sorts chronologically under the shared prefix).
func (m *Monitor) Alerts(addr types.Address) ([]RiskResult, error) {
	keys, err := m.kv.ListKeysWithPrefix(kv.SybilAlertPrefix(addr))
	if err != nil {
		return nil, fmt.Errorf("sybil: list alerts for %s: %w", addr, err)
	}
	out := make([]RiskResult, 0, len(keys))
	for _, k := range keys {
		raw, err := m.kv.Get(k)
		if err != nil {
			return nil, fmt.Errorf("sybil: load alert: %w", err)
		}
		var r RiskResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("sybil: unmarshal alert: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
