// Package hatconsensus implements the HAT Consensus Validator (C10):
// deterministic validator selection, broadcast-and-collect validation
// sessions, weighted-vote tallying, and the validator-reputation
// bookkeeping that feeds back into future selections.
//
// Grounded directly on pkg/batch/consensus_coordinator.go's
// ConsensusState/ConsensusEntry/weighted-quorum shape and
// pkg/attestation/service.go's broadcast-then-collect flow, narrowed
// from BLS-aggregated batch attestation to per-transaction HAT voting.
package hatconsensus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

// MinValidators is the target validator-set size per session (§4.5).
const MinValidators = 10

// EligibleMinReputation, EligibleMinStake and EligibleActivityWindow are
// the §4.5 candidate-pool filters.
const (
	EligibleMinReputation  = 70.0
	EligibleMinStake       = 1
	EligibleActivityWindow = 41 * time.Hour
)

// ValidatorRegistry owns per-validator ValidatorStats, the KV-persisted
// half of C10/C12's shared state. Grounded on pkg/reputation.Registry's
// load/mutate/marshal-JSON shape, applied to the validator-accuracy
// domain instead of the reputation-score domain.
type ValidatorRegistry struct {
	kv kv.Store
}

// NewValidatorRegistry constructs a ValidatorRegistry over store.
func NewValidatorRegistry(store kv.Store) *ValidatorRegistry {
	return &ValidatorRegistry{kv: store}
}

// Get loads a validator's stats, creating a zeroed record (at the
// eligibility floor) when none exists yet.
func (v *ValidatorRegistry) Get(addr types.Address) (*types.ValidatorStats, error) {
	raw, err := v.kv.Get(kv.ValidatorStatsKey(addr))
	if err != nil {
		return nil, fmt.Errorf("hatconsensus: get validator stats %s: %w", addr, err)
	}
	if len(raw) == 0 {
		return &types.ValidatorStats{Address: addr, ValidatorReputation: EligibleMinReputation, LastActivityTime: time.Now()}, nil
	}
	var stats types.ValidatorStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("hatconsensus: unmarshal validator stats %s: %w", addr, err)
	}
	return &stats, nil
}

// Put persists stats.
func (v *ValidatorRegistry) Put(stats *types.ValidatorStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("hatconsensus: marshal validator stats %s: %w", stats.Address, err)
	}
	return v.kv.Set(kv.ValidatorStatsKey(stats.Address), raw)
}

// IsEligible reports whether addr meets the §4.5 candidate-pool filter:
// validator_reputation >= 70, stake >= 1, activity within ~41h of now.
func (v *ValidatorRegistry) IsEligible(addr types.Address, stake uint64, now time.Time) (bool, error) {
	stats, err := v.Get(addr)
	if err != nil {
		return false, err
	}
	if stats.ValidatorReputation < EligibleMinReputation {
		return false, nil
	}
	if stake < EligibleMinStake {
		return false, nil
	}
	if !stats.LastActivityTime.IsZero() && now.Sub(stats.LastActivityTime) > EligibleActivityWindow {
		return false, nil
	}
	return true, nil
}

// RecordAccurate applies the §4.6 post-session update for a validator
// that voted with consensus.
func (v *ValidatorRegistry) RecordAccurate(addr types.Address, now time.Time) error {
	stats, err := v.Get(addr)
	if err != nil {
		return err
	}
	stats.Total++
	stats.Accurate++
	stats.LastActivityTime = now
	if stats.AccuracyRate() >= 0.95 {
		stats.ValidatorReputation = min100(stats.ValidatorReputation + 1)
	}
	return v.Put(stats)
}

// RecordInaccurate applies the §4.6 post-session update for a validator
// whose vote diverged from consensus.
func (v *ValidatorRegistry) RecordInaccurate(addr types.Address, now time.Time) error {
	stats, err := v.Get(addr)
	if err != nil {
		return err
	}
	stats.Total++
	stats.Inaccurate++
	stats.LastActivityTime = now
	if stats.AccuracyRate() < 0.70 {
		stats.ValidatorReputation = max0(stats.ValidatorReputation - 2)
	}
	return v.Put(stats)
}

// RecordAbstention applies the §4.6 post-session update for a selected
// validator that never responded.
func (v *ValidatorRegistry) RecordAbstention(addr types.Address, now time.Time) error {
	stats, err := v.Get(addr)
	if err != nil {
		return err
	}
	stats.Abstentions++
	stats.ValidatorReputation = max0(stats.ValidatorReputation - 1)
	return v.Put(stats)
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
