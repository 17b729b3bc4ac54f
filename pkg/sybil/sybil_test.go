package sybil

import (
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestRiskScoreLargeHomogeneousClusterIsSybil(t *testing.T) {
	signals := ClusterSignals{
		ClusterSize:       25,
		ClusterAge:        12 * time.Hour,
		MemberTxCounts:    []float64{10, 10, 10, 11, 10},
		MemberReputations: []float64{80, 80, 81, 80, 80},
		RecentFraudCount:  5,
	}
	result := DetectSybilNetwork([]types.Address{addr(1), addr(2)}, signals)
	if !result.IsSybil {
		t.Fatalf("expected large homogeneous cluster with fraud history to be flagged Sybil, risk=%v", result.Confidence)
	}
	if !result.ShouldAutoPenalize() {
		t.Fatalf("expected risk >= 0.9 to trigger auto-penalty, got %v", result.Confidence)
	}
}

func TestRiskScoreSmallDiverseClusterIsNotSybil(t *testing.T) {
	signals := ClusterSignals{
		ClusterSize:       2,
		ClusterAge:        60 * 24 * time.Hour,
		MemberTxCounts:    []float64{5, 80},
		MemberReputations: []float64{20, 90},
		RecentFraudCount:  0,
	}
	result := DetectSybilNetwork([]types.Address{addr(1)}, signals)
	if result.IsSybil {
		t.Fatalf("expected small diverse cluster to not be flagged Sybil, risk=%v", result.Confidence)
	}
}

func TestValidateSetDiversityRejectsConcentration(t *testing.T) {
	d := New()
	validators := []types.Address{addr(1), addr(2), addr(3), addr(4)}
	for _, v := range validators {
		d.UpdateNetworkInfo(v, "10.0.0.1", nil)
	}
	if d.ValidateSetDiversity(validators) {
		t.Fatalf("expected diversity check to fail when all validators share an IP prefix")
	}
}

func TestValidateSetDiversityAcceptsDiverseSet(t *testing.T) {
	d := New()
	ips := []string{"10.0.0.1", "20.0.0.1", "30.0.0.1", "40.0.0.1"}
	validators := []types.Address{addr(1), addr(2), addr(3), addr(4)}
	for i, v := range validators {
		d.UpdateNetworkInfo(v, ips[i], nil)
	}
	if !d.ValidateSetDiversity(validators) {
		t.Fatalf("expected diverse set to pass")
	}
}

func TestCoordinatedAttackClusterConcentration(t *testing.T) {
	cluster := addr(1)
	responses := []ResponseSignal{
		{Validator: addr(10), WalletCluster: cluster, Vote: types.VoteAccept, Timestamp: time.Now()},
		{Validator: addr(11), WalletCluster: cluster, Vote: types.VoteAccept, Timestamp: time.Now().Add(time.Minute)},
		{Validator: addr(12), WalletCluster: cluster, Vote: types.VoteAccept, Timestamp: time.Now().Add(2 * time.Minute)},
	}
	detected, reason := CoordinatedAttackDetected(responses)
	if !detected {
		t.Fatalf("expected cluster concentration to trigger detection")
	}
	if reason == "" {
		t.Fatalf("expected a reason string")
	}
}

func TestCoordinatedAttackTimestampWindow(t *testing.T) {
	now := time.Now()
	responses := []ResponseSignal{
		{Validator: addr(1), WalletCluster: addr(100), Vote: types.VoteAccept, FinalScore: 80, BehaviorScore: 70, ValidatorReputation: 50, Timestamp: now},
		{Validator: addr(2), WalletCluster: addr(101), Vote: types.VoteReject, FinalScore: 40, BehaviorScore: 30, ValidatorReputation: 95, Timestamp: now.Add(100 * time.Millisecond)},
		{Validator: addr(3), WalletCluster: addr(102), Vote: types.VoteAbstain, FinalScore: 60, BehaviorScore: 50, ValidatorReputation: 70, Timestamp: now.Add(200 * time.Millisecond)},
	}
	detected, _ := CoordinatedAttackDetected(responses)
	if !detected {
		t.Fatalf("expected timestamps within one second to trigger detection")
	}
}

func TestCoordinatedAttackNotTriggeredByDiverseSession(t *testing.T) {
	responses := []ResponseSignal{
		{Validator: addr(1), WalletCluster: addr(100), Vote: types.VoteAccept, FinalScore: 80, BehaviorScore: 80, ValidatorReputation: 70, Timestamp: time.Now()},
		{Validator: addr(2), WalletCluster: addr(101), Vote: types.VoteReject, FinalScore: 40, BehaviorScore: 30, ValidatorReputation: 95, Timestamp: time.Now().Add(10 * time.Second)},
		{Validator: addr(3), WalletCluster: addr(102), Vote: types.VoteAbstain, FinalScore: 60, BehaviorScore: 50, ValidatorReputation: 50, Timestamp: time.Now().Add(20 * time.Second)},
	}
	detected, reason := CoordinatedAttackDetected(responses)
	if detected {
		t.Fatalf("did not expect detection for diverse session, reason=%q", reason)
	}
}
