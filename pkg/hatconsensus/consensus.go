package hatconsensus

import "github.com/certen/trustvm/pkg/types"

// ConsensusThreshold is the weighted-vote majority required to decide a
// session automatically (§4.5, §8: exactly 0.70 approves).
const ConsensusThreshold = 0.70

// MinWoTCoverage is the minimum fraction of responses that must carry
// HasWoTConnection for an automated tally to run at all.
const MinWoTCoverage = 0.30

// responseWeight implements §4.5's weight(response) formula.
func responseWeight(r types.ValidationResponse) float64 {
	base := 0.5
	if r.HasWoTConnection {
		base = 1.0
	}
	return base * r.Confidence
}

// DetermineConsensus tallies a completed (or timed-out) validation
// session's responses into a ConsensusResult.
func DetermineConsensus(txHash types.Hash, responses []types.ValidationResponse) types.ConsensusResult {
	result := types.ConsensusResult{TxHash: txHash, Responses: responses}
	if len(responses) == 0 {
		result.NeedsDAO = true
		return result
	}

	var withWoT int
	for _, r := range responses {
		w := responseWeight(r)
		switch r.Vote {
		case types.VoteAccept:
			result.RawAccept++
			result.WeightedAccept += w
		case types.VoteReject:
			result.RawReject++
			result.WeightedReject += w
		default:
			result.RawAbstain++
			result.WeightedAbstain += w
		}
		if r.HasWoTConnection {
			withWoT++
		}
	}

	coverage := float64(withWoT) / float64(len(responses))
	if coverage < MinWoTCoverage {
		result.NeedsDAO = true
		return result
	}

	total := result.WeightedAccept + result.WeightedReject + result.WeightedAbstain
	if total == 0 {
		result.NeedsDAO = true
		return result
	}

	acceptRatio := result.WeightedAccept / total
	rejectRatio := result.WeightedReject / total

	switch {
	case acceptRatio >= ConsensusThreshold:
		result.Reached = true
		result.Approved = true
	case rejectRatio >= ConsensusThreshold:
		result.Reached = true
		result.Approved = false
	default:
		result.NeedsDAO = true
	}
	return result
}
