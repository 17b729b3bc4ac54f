package state

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

func TestBalanceNonceCodeStorageRoundTrip(t *testing.T) {
	s := New(kv.NewMemStore(), BlockInfo{Number: 1, Timestamp: 100})
	addr := types.BytesToAddress([]byte{1})

	if got := s.GetBalance(addr); got.Sign() != 0 {
		t.Fatalf("expected zero initial balance, got %s", got)
	}
	if err := s.SetBalance(addr, uint256.NewInt(500)); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if got := s.GetBalance(addr); got.Uint64() != 500 {
		t.Fatalf("expected balance 500, got %s", got)
	}

	if n := s.GetNonce(addr); n != 0 {
		t.Fatalf("expected nonce 0, got %d", n)
	}
	used, err := s.IncrementNonce(addr)
	if err != nil {
		t.Fatalf("IncrementNonce: %v", err)
	}
	if used != 0 {
		t.Fatalf("expected pre-increment nonce 0, got %d", used)
	}
	if n := s.GetNonce(addr); n != 1 {
		t.Fatalf("expected nonce 1 after increment, got %d", n)
	}

	code := []byte{0x60, 0x00}
	if err := s.SetCode(addr, code); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if got := s.GetCode(addr); string(got) != string(code) {
		t.Fatalf("expected code round-trip, got %x", got)
	}

	slot := types.BytesToHash([]byte("slot"))
	value := types.BytesToHash([]byte("value"))
	s.SetStorage(addr, slot, value)
	if got := s.GetStorage(addr, slot); got != value {
		t.Fatalf("expected storage round-trip, got %x want %x", got, value)
	}
}

func TestCallReentersInstalledHandler(t *testing.T) {
	s := New(kv.NewMemStore(), BlockInfo{})
	called := false
	s.SetReentrant(func(kind string, caller, to types.Address, value *uint256.Int, input []byte, gas uint64) (evmengine.CallResult, error) {
		called = true
		return evmengine.CallResult{Success: true, GasLeft: gas}, nil
	})
	res, err := s.Call("CALL", types.Address{}, types.Address{}, uint256.NewInt(0), nil, 1000)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !called || !res.Success {
		t.Fatal("expected reentrant handler to be invoked")
	}
}

func TestSelfDestructTransfersBalance(t *testing.T) {
	s := New(kv.NewMemStore(), BlockInfo{})
	addr := types.BytesToAddress([]byte{1})
	beneficiary := types.BytesToAddress([]byte{2})
	_ = s.SetBalance(addr, uint256.NewInt(100))
	_ = s.SetCode(addr, []byte{0x01})

	s.SelfDestruct(addr, beneficiary)

	if got := s.GetBalance(addr); got.Sign() != 0 {
		t.Fatalf("expected destructed account balance 0, got %s", got)
	}
	if got := s.GetBalance(beneficiary); got.Uint64() != 100 {
		t.Fatalf("expected beneficiary balance 100, got %s", got)
	}
	if code := s.GetCode(addr); code != nil {
		t.Fatalf("expected code cleared, got %x", code)
	}
}
