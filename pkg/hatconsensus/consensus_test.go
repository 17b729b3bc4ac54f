package hatconsensus

import (
	"testing"

	"github.com/certen/trustvm/pkg/types"
)

func resp(validator byte, wot bool, vote types.Vote, confidence float64) types.ValidationResponse {
	return types.ValidationResponse{
		Validator:        types.BytesToAddress([]byte{validator}),
		Vote:             vote,
		Confidence:       confidence,
		HasWoTConnection: wot,
	}
}

func TestDetermineConsensusApprovedAtExactThreshold(t *testing.T) {
	// weighted_accept / total == 0.70 exactly -> approved.
	responses := []types.ValidationResponse{
		resp(1, true, types.VoteAccept, 1.0),
		resp(2, true, types.VoteAccept, 1.0),
		resp(3, true, types.VoteAccept, 1.0),
		resp(4, true, types.VoteAccept, 1.0),
		resp(5, true, types.VoteAccept, 1.0),
		resp(6, true, types.VoteAccept, 1.0),
		resp(7, true, types.VoteAccept, 1.0),
		resp(8, true, types.VoteReject, 1.0),
		resp(9, true, types.VoteReject, 1.0),
		resp(10, true, types.VoteReject, 1.0),
	}
	result := DetermineConsensus(types.Hash{}, responses)
	if !result.Reached || !result.Approved {
		t.Fatalf("expected approved consensus at exact 0.70 ratio, got %+v", result)
	}
}

func TestDetermineConsensusBelowThresholdEscalates(t *testing.T) {
	responses := []types.ValidationResponse{
		resp(1, true, types.VoteAccept, 0.69),
		resp(2, true, types.VoteReject, 0.31),
		resp(3, true, types.VoteAccept, 0.0),
	}
	result := DetermineConsensus(types.Hash{}, responses)
	if result.Reached {
		t.Fatalf("expected DAO escalation below 0.70, got %+v", result)
	}
	if !result.NeedsDAO {
		t.Fatal("expected NeedsDAO true")
	}
}

func TestDetermineConsensusLowWoTCoverageEscalates(t *testing.T) {
	responses := make([]types.ValidationResponse, 0, 10)
	for i := byte(0); i < 10; i++ {
		connected := i < 2 // 20% < 30% coverage
		responses = append(responses, resp(i, connected, types.VoteReject, 1.0))
	}
	result := DetermineConsensus(types.Hash{}, responses)
	if result.Reached {
		t.Fatal("expected no consensus with WoT coverage below 30%")
	}
	if !result.NeedsDAO {
		t.Fatal("expected NeedsDAO true on low WoT coverage")
	}
}

func TestDetermineConsensusRejectedScenarioS3(t *testing.T) {
	// 4 with WoT, 6 without, all REJECT with confidence ~0.6.
	responses := make([]types.ValidationResponse, 0, 10)
	for i := byte(0); i < 4; i++ {
		responses = append(responses, resp(i, true, types.VoteReject, 0.6))
	}
	for i := byte(4); i < 10; i++ {
		responses = append(responses, resp(i, false, types.VoteReject, 0.6))
	}
	result := DetermineConsensus(types.Hash{}, responses)
	if !result.Reached || result.Approved {
		t.Fatalf("expected reached+rejected consensus, got %+v", result)
	}
}
