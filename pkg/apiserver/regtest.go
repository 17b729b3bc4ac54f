//go:build regtest

package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/certen/trustvm/pkg/chainctx"
	"github.com/certen/trustvm/pkg/state"
)

func (s *Server) regtestState() *chainctx.Regtest {
	if s.regtest == nil {
		s.regtest = chainctx.NewRegtest(time.Now().Unix())
	}
	return s.regtest.(*chainctx.Regtest)
}

var regtestMethods = map[string]methodFunc{
	"snapshot":                  (*Server).rpcSnapshot,
	"revert":                    (*Server).rpcRevert,
	"mine":                      (*Server).rpcMine,
	"set_next_block_timestamp":  (*Server).rpcSetNextBlockTimestamp,
	"increase_time":             (*Server).rpcIncreaseTime,
}

func (s *Server) registerRegtestRoutes(mux *http.ServeMux) {}

func (s *Server) rpcSnapshot(params json.RawMessage) (any, error) {
	return s.regtestState().Snapshot(), nil
}

type snapshotIDParams struct {
	SnapshotID int `json:"snapshot_id"`
}

func (s *Server) rpcRevert(params json.RawMessage) (any, error) {
	var p snapshotIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.regtestState().Revert(p.SnapshotID), nil
}

type mineParams struct {
	N int `json:"n"`
}

func (s *Server) rpcMine(params json.RawMessage) (any, error) {
	var p mineParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	if p.N <= 0 {
		p.N = 1
	}
	rt := s.regtestState()
	rt.Mine(p.N)
	s.World.SetBlock(state.BlockInfo{Number: rt.Height(), Hash: rt.TipHash(), Timestamp: uint64(rt.TipTime())})
	return rt.Height(), nil
}

type timestampParams struct {
	Timestamp int64 `json:"timestamp"`
}

func (s *Server) rpcSetNextBlockTimestamp(params json.RawMessage) (any, error) {
	var p timestampParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	s.regtestState().SetNextBlockTimestamp(p.Timestamp)
	return true, nil
}

type secondsParams struct {
	Seconds int64 `json:"seconds"`
}

func (s *Server) rpcIncreaseTime(params json.RawMessage) (any, error) {
	var p secondsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	s.regtestState().IncreaseTime(p.Seconds)
	return true, nil
}
