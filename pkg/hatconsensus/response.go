package hatconsensus

import (
	"time"

	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/trustgraph"
	"github.com/certen/trustvm/pkg/types"
)

// Tolerances, §4.5 step 7 — component values are normalized [0,1].
const (
	ToleranceBehavior = 0.03
	ToleranceEconomic = 0.03
	ToleranceTemporal = 0.03
	ToleranceWoT      = 0.05
)

// Redistribution weights applied when a validator finds no WoT
// connection to the sender (the 0.30 WoT weight redistributed
// proportionally over behavior/economic/temporal, §4.5 step 6).
const (
	NoWoTWeightBehavior = 0.57
	NoWoTWeightEconomic = 0.29
	NoWoTWeightTemporal = 0.14
)

func norm(v float64) float64 { return v / 100 }

// ResponderDeps is what a selected validator needs to recompute a
// claimed score independently: the reputation registry (C2) and trust
// graph oracle (C3).
type ResponderDeps struct {
	Reputation *reputation.Registry
	Trust      *trustgraph.Graph
}

// ComputeResponse implements the §4.5 validator response procedure
// (steps 2-9; nonce/rate-limit checks and broadcast are the caller's
// responsibility). validatorRep is the responder's own
// validator_reputation, used to scale confidence.
func ComputeResponse(deps ResponderDeps, req types.ValidationRequest, validator types.Address, signer *signing.KeyPair, validatorRep float64) (types.ValidationResponse, error) {
	rep, err := deps.Reputation.Get(req.Sender)
	if err != nil {
		return types.ValidationResponse{}, err
	}

	connected := deps.Trust.HasConnection(req.Sender, validator)
	paths := deps.Trust.AllPaths(req.Sender, validator)

	var final float64
	status := types.ComponentStatus{}
	behaviorOK := withinTolerance(norm(rep.Behavior), req.ClaimedScore.Behavior, ToleranceBehavior)
	economicOK := withinTolerance(norm(rep.Economic), req.ClaimedScore.Economic, ToleranceEconomic)
	temporalOK := withinTolerance(norm(rep.Temporal), req.ClaimedScore.Temporal, ToleranceTemporal)
	status.Behavior = behaviorOK
	status.Economic = economicOK
	status.Temporal = temporalOK

	var avgPathWeight float64
	if connected {
		rep.Recompute()
		final = rep.Final
		status.WoT = withinTolerance(norm(rep.WoT), req.ClaimedScore.WoT, ToleranceWoT)
		avgPathWeight = averagePathWeight(paths)
	} else {
		final = NoWoTWeightBehavior*rep.Behavior + NoWoTWeightEconomic*rep.Economic + NoWoTWeightTemporal*rep.Temporal
		status.WoT = false
	}

	vote := types.VoteReject
	if connected {
		if behaviorOK && economicOK && temporalOK && status.WoT {
			vote = types.VoteAccept
		}
	} else {
		if behaviorOK && economicOK && temporalOK {
			vote = types.VoteAccept
		}
	}

	confidence := 0.5
	if connected {
		confidence = 0.5 + 0.5*avgPathWeight
	}
	confidence *= validatorRep / 100

	now := time.Now()
	resp := types.ValidationResponse{
		TxHash:           req.TxHash,
		Validator:        validator,
		CalculatedScore:  final,
		Vote:             vote,
		Confidence:       confidence,
		HasWoTConnection: connected,
		TrustPathsUsed:   len(paths),
		ChallengeNonce:   req.ChallengeNonce,
		Timestamp:        now,
		ComponentStatus:  status,
	}
	if signer != nil {
		resp.ValidatorPubKey = append([]byte(nil), signer.Public...)
		msg := signing.ResponseMessage{
			TxHash:          resp.TxHash,
			Validator:       resp.Validator,
			CalculatedScore: resp.CalculatedScore,
			Vote:            resp.Vote,
			ChallengeNonce:  resp.ChallengeNonce,
			TimestampUnix:   now.Unix(),
		}
		resp.Signature = signer.Sign(msg)
	}
	return resp, nil
}

func withinTolerance(actual, claimed, tolerance float64) bool {
	d := actual - claimed
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// averagePathWeight normalizes aggregate path weights (each in roughly
// [-100*MaxPathDepth, 100*MaxPathDepth]) into a [0,1] confidence booster.
func averagePathWeight(paths []types.TrustPath) float64 {
	if len(paths) == 0 {
		return 0
	}
	var sum float64
	for _, p := range paths {
		w := p.AggregateWeight / 100
		if w > 1 {
			w = 1
		}
		if w < 0 {
			w = 0
		}
		sum += w
	}
	return sum / float64(len(paths))
}
