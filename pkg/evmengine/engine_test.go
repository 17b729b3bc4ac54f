package evmengine

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/types"
)

type fakeHost struct {
	storage map[types.Address]map[types.Hash]types.Hash
}

func newFakeHost() *fakeHost {
	return &fakeHost{storage: make(map[types.Address]map[types.Hash]types.Hash)}
}

func (h *fakeHost) GetBalance(types.Address) *uint256.Int { return uint256.NewInt(0) }
func (h *fakeHost) GetStorage(addr types.Address, key types.Hash) types.Hash {
	if m, ok := h.storage[addr]; ok {
		return m[key]
	}
	return types.Hash{}
}
func (h *fakeHost) SetStorage(addr types.Address, key, value types.Hash) {
	if h.storage[addr] == nil {
		h.storage[addr] = make(map[types.Hash]types.Hash)
	}
	h.storage[addr][key] = value
}
func (h *fakeHost) GetCode(types.Address) []byte   { return nil }
func (h *fakeHost) BlockNumber() uint64            { return 1 }
func (h *fakeHost) BlockHash(uint64) types.Hash     { return types.Hash{} }
func (h *fakeHost) BlockTimestamp() uint64          { return 0 }
func (h *fakeHost) Origin() types.Address          { return types.Address{} }
func (h *fakeHost) GasPrice() *uint256.Int         { return uint256.NewInt(1) }
func (h *fakeHost) AddLog(types.Log)               {}
func (h *fakeHost) SelfDestruct(types.Address, types.Address) {}
func (h *fakeHost) Call(string, types.Address, types.Address, *uint256.Int, []byte, uint64) (CallResult, error) {
	return CallResult{}, nil
}

func TestEngineCallAddReturnsStop(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	host := newFakeHost()

	// PUSH1 2, PUSH1 3, ADD, STOP
	code := []byte{opPUSH1, 2, opPUSH1, 3, opADD, opSTOP}

	res, err := eng.Call(host, types.Address{}, code, nil, 100_000, types.Address{}, uint256.NewInt(0), 0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
}

func TestEngineSloadSstoreRoundtrip(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	host := newFakeHost()

	// PUSH1 1 (value), PUSH1 0 (key), SSTORE, STOP
	code := []byte{opPUSH1, 1, opPUSH1, 0, opSSTORE, opSTOP}
	contract := types.Address{1}

	res, err := eng.Call(host, contract, code, nil, 100_000, types.Address{}, uint256.NewInt(0), 0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	stored := host.GetStorage(contract, types.Hash{})
	if stored[31] != 1 {
		t.Fatalf("expected stored value 1, got %v", stored)
	}
}

func TestEngineRejectsUndersizedGas(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	host := newFakeHost()
	_, err := eng.Call(host, types.Address{}, []byte{opSTOP}, nil, 100, types.Address{}, uint256.NewInt(0), 0)
	if err == nil {
		t.Fatalf("expected error for gas limit below minimum")
	}
}

func TestEngineUndefinedInstructionFails(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	host := newFakeHost()
	res, err := eng.Call(host, types.Address{}, []byte{0xFE}, nil, 100_000, types.Address{}, uint256.NewInt(0), 0)
	if err == nil {
		t.Fatalf("expected error for undefined instruction")
	}
	if res.Status != StatusFailure {
		t.Fatalf("expected failure status, got %s", res.Status)
	}
}
