// Package reputation implements the Reputation Registry (C2): per-address
// reputation scores and their behavior/web-of-trust/economic/temporal
// sub-scores, stored in the core KV contract.
//
// Grounded on pkg/ledger/store.go's load/mutate/marshal-JSON pattern,
// generalized from system/anchor ledger state to reputation records.
package reputation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

// ErrNotFound names the no-record condition. The Registry does not return
// it: Get yields a zero-valued record for an address it has not seen.
var ErrNotFound = errors.New("reputation: address not found")

// TemporalDecayPerDay is how many points the temporal sub-score loses for
// each full day of inactivity, floored at 0.
const TemporalDecayPerDay = 0.5

// Registry owns every reputation record. Writes are expected to come from
// the fraud-penalty pipeline (pkg/fraud) and periodic behavior updates;
// reads happen from every opcode hook and every HAT validator.
type Registry struct {
	kv kv.Store
}

// New creates a Registry backed by the given KV store.
func New(store kv.Store) *Registry {
	return &Registry{kv: store}
}

// Get loads the reputation record for addr, creating a zeroed one (on
// first activity) when none exists yet — it is not persisted until the
// caller calls Put.
func (r *Registry) Get(addr types.Address) (*types.ReputationScore, error) {
	raw, err := r.kv.Get(kv.ReputationKey(addr))
	if err != nil {
		return nil, fmt.Errorf("reputation: get %s: %w", addr, err)
	}
	if len(raw) == 0 {
		now := time.Now()
		score := &types.ReputationScore{Address: addr, CreatedAt: now, UpdatedAt: now}
		score.Recompute()
		return score, nil
	}
	var score types.ReputationScore
	if err := json.Unmarshal(raw, &score); err != nil {
		return nil, fmt.Errorf("reputation: unmarshal %s: %w", addr, err)
	}
	return &score, nil
}

// Put persists score after recomputing its clamped final value.
func (r *Registry) Put(score *types.ReputationScore) error {
	if score == nil {
		return fmt.Errorf("reputation: nil score")
	}
	score.Recompute()
	score.UpdatedAt = time.Now()
	raw, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("reputation: marshal %s: %w", score.Address, err)
	}
	return r.kv.Set(kv.ReputationKey(score.Address), raw)
}

// Final is a convenience accessor returning just the clamped final score.
func (r *Registry) Final(addr types.Address) (float64, error) {
	score, err := r.Get(addr)
	if err != nil {
		return 0, err
	}
	return score.Final, nil
}

// ApplyPenalty subtracts points from the behavior sub-score (the
// component fraud penalties bite into) and persists the result. Used by
// pkg/fraud after a graded penalty decision.
func (r *Registry) ApplyPenalty(addr types.Address, points int) (*types.ReputationScore, error) {
	score, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	score.Behavior -= float64(points)
	if score.Behavior < 0 {
		score.Behavior = 0
	}
	if err := r.Put(score); err != nil {
		return nil, err
	}
	return score, nil
}

// DecayTemporal applies inactivity decay to the temporal sub-score based
// on elapsed time since the record's last update, then persists it.
func (r *Registry) DecayTemporal(addr types.Address, asOf time.Time) (*types.ReputationScore, error) {
	score, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	days := asOf.Sub(score.UpdatedAt).Hours() / 24
	if days > 0 {
		score.Temporal -= days * TemporalDecayPerDay
		if score.Temporal < 0 {
			score.Temporal = 0
		}
	}
	if err := r.Put(score); err != nil {
		return nil, err
	}
	return score, nil
}
