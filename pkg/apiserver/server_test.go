package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/certen/trustvm/pkg/bytecode"
	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/state"
	"github.com/certen/trustvm/pkg/types"
	"github.com/certen/trustvm/pkg/vmcoordinator"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := kv.NewMemStore()
	rep := reputation.New(store)
	world := state.New(store, state.BlockInfo{Number: 1, Timestamp: 1000})
	engine := evmengine.New(evmengine.DefaultConfig(), nil)
	coord := vmcoordinator.New(bytecode.New(), gas.New(), rep, engine, nil)
	return New(world, coord, gas.New(), rep, nil, nil, nil)
}

func doRPC(t *testing.T, s *Server, method string, params any) map[string]any {
	t.Helper()
	mux := http.NewServeMux()
	s.Routes(mux)
	body, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %s: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRPCBlockNumberAndGasPrice(t *testing.T) {
	s := newTestServer(t)

	resp := doRPC(t, s, "block_number", nil)
	if resp["result"].(float64) != 1 {
		t.Fatalf("expected block number 1, got %v", resp["result"])
	}

	resp = doRPC(t, s, "gas_price", nil)
	if resp["result"].(float64) != float64(FixedGasPrice) {
		t.Fatalf("expected fixed gas price, got %v", resp["result"])
	}
}

func TestRPCGetBalanceAndTransactionCount(t *testing.T) {
	s := newTestServer(t)
	addr := types.BytesToAddress([]byte{0x42})

	resp := doRPC(t, s, "get_balance", map[string]any{"address": addr.Hex()})
	if resp["result"] != "0" {
		t.Fatalf("expected zero balance, got %v", resp["result"])
	}

	resp = doRPC(t, s, "get_transaction_count", map[string]any{"address": addr.Hex()})
	if resp["result"].(float64) != 0 {
		t.Fatalf("expected zero nonce, got %v", resp["result"])
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := doRPC(t, s, "not_a_real_method", nil)
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error response, got %v", resp)
	}
}

func TestRPCCrossChainUnconfigured(t *testing.T) {
	s := newTestServer(t)
	resp := doRPC(t, s, "get_supported_chains", nil)
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error when cross-chain hub is nil, got %v", resp)
	}
}
