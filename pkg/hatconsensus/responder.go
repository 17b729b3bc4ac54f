package hatconsensus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/types"
)

// Responder is the production counterpart to what session_test.go inlines
// as a net.Join handler: it watches for VALIDATION_CHALLENGE broadcasts,
// computes this node's own response when selected, and returns it to the
// network — unaddressed, the same way the challenge itself arrived
// (spec.md §9's broadcast rationale applies symmetrically to responses:
// every peer, not just the initiator, can observe and audit the vote).
type Responder struct {
	deps         ResponderDeps
	self         types.Address
	signer       *signing.KeyPair
	validatorRep func() float64
	network      p2p.Network
}

// NewResponder constructs a Responder for self, signing with signer.
// validatorRep supplies this node's own current validator_reputation at
// call time (a func rather than a fixed value, since it mutates across
// sessions as RecordAccurate/RecordInaccurate run).
func NewResponder(deps ResponderDeps, self types.Address, signer *signing.KeyPair, validatorRep func() float64, network p2p.Network) *Responder {
	return &Responder{deps: deps, self: self, signer: signer, validatorRep: validatorRep, network: network}
}

// Dispatch handles one inbound peer envelope. VALIDATION_CHALLENGE
// triggers self-scoring and a broadcast response; every other message
// type is a caller's job and is returned unhandled so it can route
// elsewhere (Coordinator.Dispatch, dao.Registry.Dispatch).
func (r *Responder) Dispatch(ctx context.Context, env p2p.Envelope) error {
	if env.Type != p2p.MsgValidationChallenge {
		return nil
	}
	var req types.ValidationRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return fmt.Errorf("hatconsensus: responder: unmarshal challenge: %w", err)
	}
	if req.Sender == r.self {
		// A node never validates its own claimed score.
		return nil
	}

	rep := 100.0
	if r.validatorRep != nil {
		rep = r.validatorRep()
	}
	resp, err := ComputeResponse(r.deps, req, r.self, r.signer, rep)
	if err != nil {
		return fmt.Errorf("hatconsensus: responder: compute response: %w", err)
	}

	respEnv, err := p2p.NewEnvelope(p2p.MsgValidationResponse, resp)
	if err != nil {
		return fmt.Errorf("hatconsensus: responder: build response envelope: %w", err)
	}
	return r.network.ForEachPeer(ctx, func(ctx context.Context, peer p2p.Peer) error {
		return r.network.PushToPeer(ctx, peer.ID, respEnv)
	})
}

// Dispatch handles one inbound VALIDATION_RESPONSE, routing it into the
// matching session's ProcessResponse. Unrelated message types are a
// no-op: the caller is expected to also try Responder.Dispatch and
// dao.Registry.Dispatch for the remaining §6.2 message types.
func (c *Coordinator) Dispatch(ctx context.Context, env p2p.Envelope) error {
	if env.Type == p2p.MsgValidatorAnnounce {
		return c.dispatchAnnounce(env)
	}
	if env.Type != p2p.MsgValidationResponse {
		return nil
	}
	var resp types.ValidationResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return fmt.Errorf("hatconsensus: dispatch: unmarshal response: %w", err)
	}
	c.mu.Lock()
	_, hasSession := c.sessions[resp.TxHash]
	c.mu.Unlock()
	if !hasSession {
		// This node isn't the initiator for resp.TxHash — broadcast
		// responses are expected to arrive at every peer, most of which
		// have no session to apply them to.
		return nil
	}
	_, err := c.ProcessResponse(resp)
	return err
}
