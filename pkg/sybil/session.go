package sybil

import (
	"time"

	"github.com/certen/trustvm/pkg/types"
)

// ResponseSignal is the slice of a validation response the coordinated-
// attack checks need; kept separate from types.ValidationResponse so
// this package doesn't need to import the consensus response shape
// wholesale.
type ResponseSignal struct {
	Validator           types.Address
	WalletCluster       types.Address // cluster root, for grouping
	Vote                types.Vote
	FinalScore          float64
	BehaviorScore       float64
	ValidatorReputation float64
	Timestamp           time.Time
}

// CoordinatedAttackDetected evaluates the four §4.7 session-level
// signals; any one triggers DAO escalation.
func CoordinatedAttackDetected(responses []ResponseSignal) (bool, string) {
	if clusterConcentration(responses) {
		return true, "three or more responding validators share a wallet cluster"
	}
	if identicalTripleShare(responses) >= 0.5 {
		return true, "half or more of responses share an identical (vote, score, behavior) triple"
	}
	reps := make([]float64, len(responses))
	for i, r := range responses {
		reps[i] = r.ValidatorReputation
	}
	if coefficientOfVariation(reps) < 0.1 && len(responses) > 1 {
		return true, "validator reputation coefficient of variation below 0.1"
	}
	if withinOneSecondWindow(responses) {
		return true, "all responses timestamped within a one-second window"
	}
	return false, ""
}

func clusterConcentration(responses []ResponseSignal) bool {
	counts := make(map[types.Address]int)
	for _, r := range responses {
		counts[r.WalletCluster]++
	}
	for cluster, c := range counts {
		if cluster != (types.Address{}) && c >= 3 {
			return true
		}
	}
	return false
}

type triple struct {
	vote     types.Vote
	final    float64
	behavior float64
}

func identicalTripleShare(responses []ResponseSignal) float64 {
	if len(responses) == 0 {
		return 0
	}
	counts := make(map[triple]int)
	for _, r := range responses {
		counts[triple{r.Vote, r.FinalScore, r.BehaviorScore}]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(len(responses))
}

func withinOneSecondWindow(responses []ResponseSignal) bool {
	if len(responses) < 2 {
		return false
	}
	min, max := responses[0].Timestamp, responses[0].Timestamp
	for _, r := range responses[1:] {
		if r.Timestamp.Before(min) {
			min = r.Timestamp
		}
		if r.Timestamp.After(max) {
			max = r.Timestamp
		}
	}
	return max.Sub(min) <= time.Second
}
