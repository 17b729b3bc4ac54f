// Package dao implements Dispute / DAO Arbitration (C11): packaging HAT
// consensus evidence into a persistent dispute case when automated
// consensus can't decide, and applying a governance resolution back onto
// transaction state and (on a disapproved claim) into a fraud record.
//
// Grounded on pkg/proof/governance_adapter.go's request-in/proof-out
// adapter shape, narrowed from CLI/in-process proof generation to the
// broadcast-package-then-apply-resolution flow spec.md §4.6 describes.
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/fraud"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/types"
)

// Registry owns dispute cases: packaging evidence, persisting under both
// the D-prefixed and dispute_-prefixed keys spec.md §6.4 names, and
// applying governance resolutions.
type Registry struct {
	kv      kv.Store
	network p2p.Network
	fraud   *fraud.Registry
}

// New constructs a Registry.
func New(store kv.Store, network p2p.Network, fraudRegistry *fraud.Registry) *Registry {
	return &Registry{kv: store, network: network, fraud: fraudRegistry}
}

// Package builds a DisputeCase from a HAT session's full response set and
// persists + broadcasts it, transitioning the transaction to DISPUTED.
func (r *Registry) Package(ctx context.Context, txHash types.Hash, sender types.Address, claimed types.ClaimedScoreRecord, responses []types.ValidationResponse, reason string) (*types.DisputeCase, error) {
	evidence, err := json.Marshal(responses)
	if err != nil {
		return nil, fmt.Errorf("dao: marshal evidence: %w", err)
	}
	dispute := &types.DisputeCase{
		DisputeID:    txHash,
		Sender:       sender,
		ClaimedScore: claimed,
		Responses:    responses,
		Evidence:     string(evidence),
		Reason:       reason,
	}
	if err := r.persist(dispute); err != nil {
		return nil, err
	}
	if err := r.setTxState(txHash, types.TxDisputed); err != nil {
		return nil, err
	}
	if r.network != nil {
		env, err := p2p.NewEnvelope(p2p.MsgDAODispute, dispute)
		if err != nil {
			return nil, err
		}
		_ = r.network.ForEachPeer(ctx, func(ctx context.Context, peer p2p.Peer) error {
			return r.network.PushToPeer(ctx, peer.ID, env)
		})
	}
	return dispute, nil
}

// Resolve applies a governance verdict to a previously packaged dispute:
// on approved=true the transaction is validated; on approved=false the
// sender's claim is confirmed fraudulent and a fraud record is written
// via C12, using the average validator-calculated score as the "actual"
// score and the stake the caller supplies for slashing.
func (r *Registry) Resolve(disputeID types.Hash, approved bool, resolutionTimestamp time.Time, currentHeight uint64, stake uint64, cluster fraud.ClusterContext) (*types.DisputeCase, *types.FraudRecord, error) {
	dispute, err := r.Get(disputeID)
	if err != nil {
		return nil, nil, err
	}
	if dispute == nil {
		return nil, nil, fmt.Errorf("dao: no dispute case for %s", disputeID)
	}
	dispute.Resolved = true
	dispute.Approved = approved
	dispute.ResolutionTimestamp = resolutionTimestamp
	if err := r.persist(dispute); err != nil {
		return nil, nil, err
	}

	var record *types.FraudRecord
	if approved {
		if err := r.setTxState(disputeID, types.TxValidated); err != nil {
			return nil, nil, err
		}
	} else {
		if err := r.setTxState(disputeID, types.TxRejected); err != nil {
			return nil, nil, err
		}
		actual := averageCalculatedScore(dispute.Responses)
		candidate := fraud.Candidate{
			Origin:        fraud.OriginDAOResolution,
			TxHash:        disputeID,
			Fraudster:     dispute.Sender,
			Claimed:       dispute.ClaimedScore.FinalScore,
			Actual:        actual,
			Timestamp:     resolutionTimestamp,
			BlockHeight:   currentHeight,
			CurrentHeight: currentHeight,
		}
		if r.fraud != nil {
			rec, _, err := r.fraud.Record(candidate, stake, resolutionTimestamp, cluster)
			if err != nil {
				return dispute, nil, fmt.Errorf("dao: record fraud: %w", err)
			}
			record = rec
		}
	}

	if r.network != nil {
		env, err := p2p.NewEnvelope(p2p.MsgDAOResolution, struct {
			DisputeID           types.Hash `json:"dispute_id"`
			Approved            bool       `json:"approved"`
			ResolutionTimestamp time.Time  `json:"resolution_timestamp"`
		}{disputeID, approved, resolutionTimestamp})
		if err == nil {
			_ = r.network.ForEachPeer(context.Background(), func(ctx context.Context, peer p2p.Peer) error {
				return r.network.PushToPeer(ctx, peer.ID, env)
			})
		}
	}
	return dispute, record, nil
}

// Dispatch applies an inbound DAO_DISPUTE or DAO_RESOLUTION notice
// received over the network: a peer that isn't the case's originator
// still persists the dispute (so governance tooling querying any node
// observes the same case) or updates the transaction's lifecycle state
// on resolution, without re-broadcasting or re-deriving a fraud record
// (that only happens once, on the node that calls Resolve directly).
func (r *Registry) Dispatch(env p2p.Envelope) error {
	switch env.Type {
	case p2p.MsgDAODispute:
		var dispute types.DisputeCase
		if err := json.Unmarshal(env.Payload, &dispute); err != nil {
			return fmt.Errorf("dao: dispatch: unmarshal dispute: %w", err)
		}
		if err := r.persist(&dispute); err != nil {
			return err
		}
		return r.setTxState(dispute.DisputeID, types.TxDisputed)
	case p2p.MsgDAOResolution:
		var notice struct {
			DisputeID           types.Hash `json:"dispute_id"`
			Approved            bool       `json:"approved"`
			ResolutionTimestamp time.Time  `json:"resolution_timestamp"`
		}
		if err := json.Unmarshal(env.Payload, &notice); err != nil {
			return fmt.Errorf("dao: dispatch: unmarshal resolution: %w", err)
		}
		dispute, err := r.Get(notice.DisputeID)
		if err != nil {
			return err
		}
		if dispute == nil {
			return nil
		}
		dispute.Resolved = true
		dispute.Approved = notice.Approved
		dispute.ResolutionTimestamp = notice.ResolutionTimestamp
		if err := r.persist(dispute); err != nil {
			return err
		}
		if notice.Approved {
			return r.setTxState(notice.DisputeID, types.TxValidated)
		}
		return r.setTxState(notice.DisputeID, types.TxRejected)
	default:
		return nil
	}
}

// Get loads a dispute case by id, or nil if none exists.
func (r *Registry) Get(disputeID types.Hash) (*types.DisputeCase, error) {
	raw, err := r.kv.Get(kv.DisputeKey(disputeID))
	if err != nil {
		return nil, fmt.Errorf("dao: get %s: %w", disputeID, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var dispute types.DisputeCase
	if err := json.Unmarshal(raw, &dispute); err != nil {
		return nil, fmt.Errorf("dao: unmarshal %s: %w", disputeID, err)
	}
	return &dispute, nil
}

func (r *Registry) persist(dispute *types.DisputeCase) error {
	raw, err := json.Marshal(dispute)
	if err != nil {
		return fmt.Errorf("dao: marshal dispute %s: %w", dispute.DisputeID, err)
	}
	if err := r.kv.Set(kv.DisputeKey(dispute.DisputeID), raw); err != nil {
		return err
	}
	return r.kv.Set(kv.DisputeLookupKey(dispute.DisputeID), raw)
}

func (r *Registry) setTxState(txHash types.Hash, state types.TxState) error {
	return r.kv.Set(kv.TxStateKey(txHash), []byte(state))
}

func averageCalculatedScore(responses []types.ValidationResponse) float64 {
	if len(responses) == 0 {
		return 0
	}
	var sum float64
	for _, r := range responses {
		sum += r.CalculatedScore
	}
	return sum / float64(len(responses))
}
