// Copyright 2025 Certen Protocol
//
// Package apiserver exposes the §6.3 JSON-RPC surface over HTTP: the
// stable block/gas/call/receipt group, the trace group, and the
// cross-chain trust group. Regtest-only methods (snapshot/revert/mine/
// set_next_block_timestamp/increase_time) live in regtest.go behind the
// regtest build tag so they never ship in a production binary.
//
// Grounded on pkg/server's net/http.ServeMux + per-handler-struct
// convention (attestation_handlers.go, batch_handlers.go), narrowed from
// many REST routes to one JSON-RPC endpoint, matching the method-dispatch
// shape spec.md §6.3 describes.
package apiserver

import (
	"log"
	"net/http"

	"github.com/certen/trustvm/pkg/auditstore"
	"github.com/certen/trustvm/pkg/crosschain"
	"github.com/certen/trustvm/pkg/dao"
	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/hatconsensus"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/state"
	"github.com/certen/trustvm/pkg/vmcoordinator"
)

// FixedGasPrice is the §6.3 gas_price RPC's fixed response: 0.2 gwei in
// wei. The dynamic congestion-aware price gas.Policy.Price computes is
// used internally for discounting, not exposed over this RPC.
const FixedGasPrice = 200_000_000

// Server wires the execution and consensus layers to the RPC surface.
type Server struct {
	World       *state.State
	Coordinator *vmcoordinator.Coordinator
	GasPolicy   *gas.Policy
	Reputation  *reputation.Registry
	HAT         *hatconsensus.Coordinator
	CrossChain  *crosschain.Hub
	Receipts    *auditstore.ReceiptRepository
	DAO         *dao.Registry
	Responder   *hatconsensus.Responder

	logger *log.Logger
	// regtest holds a *chainctx.Regtest when built with the regtest tag;
	// kept as an opaque field so server.go itself stays build-tag free.
	regtest any
}

// New constructs a Server. Receipts and CrossChain may be nil; the
// corresponding RPC methods then report "not available".
func New(world *state.State, coordinator *vmcoordinator.Coordinator, gasPolicy *gas.Policy, rep *reputation.Registry, hat *hatconsensus.Coordinator, crossChain *crosschain.Hub, receipts *auditstore.ReceiptRepository) *Server {
	return &Server{
		World: world, Coordinator: coordinator, GasPolicy: gasPolicy, Reputation: rep,
		HAT: hat, CrossChain: crossChain, Receipts: receipts,
		logger: log.New(log.Writer(), "[apiserver] ", log.LstdFlags),
	}
}

// SetPeerDispatch wires the collaborators that handle an inbound
// /p2p/message delivery: daoRegistry for DAO_DISPUTE/DAO_RESOLUTION,
// responder for VALIDATION_CHALLENGE. Both may be nil; the handler skips
// whichever is unset rather than erroring, so a node can run with HAT
// consensus but without acting as a responder, or vice versa.
func (s *Server) SetPeerDispatch(daoRegistry *dao.Registry, responder *hatconsensus.Responder) {
	s.DAO = daoRegistry
	s.Responder = responder
}

// Routes registers every handler onto mux, mirroring main.go's
// mux.HandleFunc wiring style.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/p2p/message", s.handlePeerMessage)
	s.registerRegtestRoutes(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSONResult(w, map[string]any{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encodeJSON(w, map[string]string{"error": msg})
}

func writeJSONResult(w http.ResponseWriter, result any) {
	encodeJSON(w, map[string]any{"result": result})
}
