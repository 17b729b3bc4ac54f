package fraud

import (
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/types"
)

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		delta           int
		wantPenalty     int
		wantSlashDivisor uint64
	}{
		{10, 5, 0},
		{11, 15, 20},
		{30, 15, 20},
		{31, 30, 10},
	}
	for _, c := range cases {
		penalty, divisor := Grade(c.delta)
		if penalty != c.wantPenalty || divisor != c.wantSlashDivisor {
			t.Errorf("Grade(%d) = (%d, %d), want (%d, %d)", c.delta, penalty, divisor, c.wantPenalty, c.wantSlashDivisor)
		}
	}
}

func TestScoreDifferenceBelowThresholdRejected(t *testing.T) {
	now := time.Now()
	c := Candidate{
		Origin: OriginRejectConsensus, Claimed: 90, Actual: 86,
		Timestamp: now, BlockHeight: 100, CurrentHeight: 100,
	}
	if err := Validate(c, now, ClusterContext{}); err == nil {
		t.Fatal("expected delta=4 to be rejected as measurement variance")
	}
	c.Actual = 85 // delta = 5, exactly at threshold
	if err := Validate(c, now, ClusterContext{}); err != nil {
		t.Fatalf("expected delta=5 to pass, got %v", err)
	}
}

func TestValidateRejectsAdHocOrigin(t *testing.T) {
	now := time.Now()
	c := Candidate{Origin: "user_input", Claimed: 90, Actual: 50, Timestamp: now, BlockHeight: 1, CurrentHeight: 1}
	if err := Validate(c, now, ClusterContext{}); err == nil {
		t.Fatal("expected ad-hoc origin to be rejected")
	}
}

func TestValidateRejectsSybilSelfAccusation(t *testing.T) {
	now := time.Now()
	c := Candidate{Origin: OriginRejectConsensus, Claimed: 90, Actual: 50, Timestamp: now, BlockHeight: 1, CurrentHeight: 1}
	cluster := ClusterContext{ClusterSize: 15, RecentFraudCount: 6}
	if err := Validate(c, now, cluster); err == nil {
		t.Fatal("expected Sybil self-accusation cluster to be rejected")
	}
}

func TestRecordAppliesPenaltyAndPersists(t *testing.T) {
	store := kv.NewMemStore()
	reg := reputation.New(store)
	registry := New(store, reg)

	fraudster := types.BytesToAddress([]byte{0x42})
	score, _ := reg.Get(fraudster)
	score.Behavior = 80
	_ = reg.Put(score)

	now := time.Now()
	record, slashed, err := registry.Record(Candidate{
		Origin: OriginRejectConsensus, TxHash: types.BytesToHash([]byte("tx")),
		Fraudster: fraudster, Claimed: 90, Actual: 60, Timestamp: now,
		BlockHeight: 100, CurrentHeight: 100,
	}, 1000, now, ClusterContext{})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if record.ReputationPenalty != 15 || slashed != 50 {
		t.Fatalf("expected penalty=15 slashed=50 for delta=30, got %+v slashed=%d", record, slashed)
	}

	updated, err := reg.Get(fraudster)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Behavior != 65 {
		t.Fatalf("expected behavior 80-15=65, got %v", updated.Behavior)
	}

	loaded, err := registry.Get(record.TxHash)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if loaded == nil || loaded.ScoreDifference != 30 {
		t.Fatalf("expected persisted record with score_difference=30, got %+v", loaded)
	}
}
