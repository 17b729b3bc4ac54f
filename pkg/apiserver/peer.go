package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/certen/trustvm/pkg/p2p"
)

// handlePeerMessage is the inbound counterpart to p2p.HTTPNetwork's
// PushToPeer, which POSTs every envelope to a peer's "/p2p/message"
// endpoint. Each §6.2 message type routes to whichever collaborator owns
// it; a message type none of them claims is accepted and dropped rather
// than rejected, so a newer peer's message vocabulary never breaks an
// older node (the same forward-compatibility stance §6.1 states for the
// on-chain envelope).
func (s *Server) handlePeerMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var env p2p.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSONError(w, "invalid envelope", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch env.Type {
	case p2p.MsgValidationChallenge:
		if s.Responder != nil {
			if err := s.Responder.Dispatch(ctx, env); err != nil {
				s.logger.Printf("p2p: responder dispatch: %v", err)
			}
		}
	case p2p.MsgValidationResponse, p2p.MsgValidatorAnnounce:
		if s.HAT != nil {
			if err := s.HAT.Dispatch(ctx, env); err != nil {
				s.logger.Printf("p2p: hat dispatch: %v", err)
			}
		}
	case p2p.MsgDAODispute, p2p.MsgDAOResolution:
		if s.DAO != nil {
			if err := s.DAO.Dispatch(env); err != nil {
				s.logger.Printf("p2p: dao dispatch: %v", err)
			}
		}
	}
	writeJSONResult(w, map[string]string{"status": "accepted"})
}
