// Package fraud implements Fraud Record & Reputation Penalty (C12):
// pre-write validation of a claimed fraud (score-difference threshold,
// Sybil-cluster filter, temporal/height bounds), graded reputation
// penalties, and bond slashing.
//
// Grounded on pkg/database/repository_consensus.go's validate-then-write
// repository shape, applied to the fraud-record domain instead of
// consensus-entry persistence; the grading table is inline in spec.md
// §4.6.
package fraud

import (
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/types"
)

// Origin names where a fraud claim is permitted to originate from.
// spec.md §4.6: "Only fraud claims arising from a DAO resolution or a
// reached-REJECT consensus may be written (never from ad-hoc user
// input)."
type Origin string

const (
	OriginDAOResolution   Origin = "dao_resolution"
	OriginRejectConsensus Origin = "reject_consensus"
)

// Score-difference threshold and timestamp/height bounds, §4.6.
const (
	MinScoreDifference  = 5
	MaxFutureSkew        = 5 * time.Minute
	MaxPastAge           = 24 * time.Hour
	MaxHeightLag         = 144
)

// Sybil-cluster filter thresholds, §4.6.
const (
	SybilClusterMinMembers     = 10
	SybilClusterMinRecentFraud = 5
	SybilFraudLookbackBlocks   = 1000
)

// Candidate is the pre-write shape a fraud claim is checked against.
type Candidate struct {
	Origin        Origin
	TxHash        types.Hash
	Fraudster     types.Address
	Claimed       float64
	Actual        float64
	Timestamp     time.Time
	BlockHeight   uint64
	CurrentHeight uint64
}

// ClusterContext supplies the Sybil self-accusation filter's inputs:
// the fraudster's cluster size and how many recent fraud records that
// cluster has accumulated.
type ClusterContext struct {
	ClusterSize      int
	RecentFraudCount int
}

// Validate applies every §4.6 pre-write rule, in order, returning the
// first violated rule as an error. Fraud claims that fail validation are
// dropped silently by the caller (logged only, per spec.md §7) — they
// never reach the store.
func Validate(c Candidate, now time.Time, cluster ClusterContext) error {
	if c.Origin != OriginDAOResolution && c.Origin != OriginRejectConsensus {
		return fmt.Errorf("fraud: claim must originate from a DAO resolution or reached-REJECT consensus")
	}
	diff := c.Claimed - c.Actual
	if diff < 0 {
		diff = -diff
	}
	if diff < MinScoreDifference {
		return fmt.Errorf("fraud: score difference %.2f below measurement-variance threshold", diff)
	}
	if c.Claimed < 0 || c.Claimed > 100 || c.Actual < 0 || c.Actual > 100 {
		return fmt.Errorf("fraud: claimed/actual score out of [0,100] range")
	}
	if c.Timestamp.After(now.Add(MaxFutureSkew)) {
		return fmt.Errorf("fraud: timestamp too far in the future")
	}
	if c.Timestamp.Before(now.Add(-MaxPastAge)) {
		return fmt.Errorf("fraud: timestamp too far in the past")
	}
	if c.BlockHeight > c.CurrentHeight {
		return fmt.Errorf("fraud: block height ahead of current height")
	}
	if c.CurrentHeight-c.BlockHeight > MaxHeightLag {
		return fmt.Errorf("fraud: block height too far behind current height")
	}
	if cluster.ClusterSize > SybilClusterMinMembers && cluster.RecentFraudCount > SybilClusterMinRecentFraud {
		return fmt.Errorf("fraud: fraudster's cluster shows Sybil self-accusation pattern, pending DAO review")
	}
	return nil
}

// ScoreDifference returns |claimed - actual| rounded to the nearest
// integer, the unit the grading table operates on.
func ScoreDifference(claimed, actual float64) int {
	diff := claimed - actual
	if diff < 0 {
		diff = -diff
	}
	return int(diff + 0.5)
}

// Grade implements the §4.6 penalty table: reputation penalty points and
// the stake-slash divisor (0 means no slash) for a score difference.
func Grade(delta int) (reputationPenalty int, slashDivisor uint64) {
	switch {
	case delta <= 10:
		return 5, 0
	case delta <= 30:
		return 15, 20
	default:
		return 30, 10
	}
}

// Registry persists fraud records and applies their graded penalties.
type Registry struct {
	kv  kv.Store
	rep *reputation.Registry
}

// New constructs a Registry over store, applying penalties through rep.
func New(store kv.Store, rep *reputation.Registry) *Registry {
	return &Registry{kv: store, rep: rep}
}

// Record validates c, and on success writes the graded FraudRecord and
// applies the reputation penalty, returning the record and the bond
// amount (in stake units) that governance should slash.
func (r *Registry) Record(c Candidate, stake uint64, now time.Time, cluster ClusterContext) (*types.FraudRecord, uint64, error) {
	if err := Validate(c, now, cluster); err != nil {
		return nil, 0, err
	}

	delta := ScoreDifference(c.Claimed, c.Actual)
	penalty, divisor := Grade(delta)
	var slashed uint64
	if divisor > 0 {
		slashed = stake / divisor
	}

	record := &types.FraudRecord{
		TxHash:            c.TxHash,
		Fraudster:         c.Fraudster,
		ClaimedScore:      c.Claimed,
		ActualScore:       c.Actual,
		ScoreDifference:   delta,
		Timestamp:         now,
		BlockHeight:       c.BlockHeight,
		ReputationPenalty: penalty,
		BondSlashed:       slashed,
	}

	if r.rep != nil {
		if _, err := r.rep.ApplyPenalty(c.Fraudster, penalty); err != nil {
			return nil, 0, fmt.Errorf("fraud: apply reputation penalty: %w", err)
		}
	}

	if err := r.persist(record); err != nil {
		return nil, 0, err
	}
	return record, slashed, nil
}

func (r *Registry) persist(record *types.FraudRecord) error {
	raw, err := marshalRecord(record)
	if err != nil {
		return err
	}
	return r.kv.Set(kv.FraudKey(record.TxHash), raw)
}

// Get loads a previously written fraud record for txHash, if any.
func (r *Registry) Get(txHash types.Hash) (*types.FraudRecord, error) {
	raw, err := r.kv.Get(kv.FraudKey(txHash))
	if err != nil {
		return nil, fmt.Errorf("fraud: get %s: %w", txHash, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return unmarshalRecord(raw)
}
