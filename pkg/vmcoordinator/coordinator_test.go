package vmcoordinator

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/bytecode"
	"github.com/certen/trustvm/pkg/envelope"
	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/types"
)

type nopHost struct{ storage map[types.Hash]types.Hash }

func newNopHost() *nopHost { return &nopHost{storage: make(map[types.Hash]types.Hash)} }

func (h *nopHost) GetBalance(types.Address) *uint256.Int { return uint256.NewInt(0) }
func (h *nopHost) GetStorage(_ types.Address, key types.Hash) types.Hash {
	return h.storage[key]
}
func (h *nopHost) SetStorage(_ types.Address, key, value types.Hash) { h.storage[key] = value }
func (h *nopHost) GetCode(types.Address) []byte                     { return nil }
func (h *nopHost) BlockNumber() uint64                              { return 1 }
func (h *nopHost) BlockHash(uint64) types.Hash                      { return types.Hash{} }
func (h *nopHost) BlockTimestamp() uint64                           { return 0 }
func (h *nopHost) Origin() types.Address                            { return types.Address{} }
func (h *nopHost) GasPrice() *uint256.Int                           { return uint256.NewInt(1) }
func (h *nopHost) AddLog(types.Log)                                 {}
func (h *nopHost) SelfDestruct(types.Address, types.Address)        {}
func (h *nopHost) Call(string, types.Address, types.Address, *uint256.Int, []byte, uint64) (evmengine.CallResult, error) {
	return evmengine.CallResult{}, nil
}

func newTestCoordinator() *Coordinator {
	det := bytecode.New()
	gasPolicy := gas.New()
	rep := reputation.New(kv.NewMemStore())
	eng := evmengine.New(evmengine.DefaultConfig(), nil)
	return New(det, gasPolicy, rep, eng, nil)
}

func TestExecuteRejectsOversizedBytecode(t *testing.T) {
	c := newTestCoordinator()
	host := newNopHost()
	huge := make([]byte, types.MaxBytecodeSize+1)
	res, err := c.Execute(host, huge, 100_000, types.Address{}, types.Address{}, uint256.NewInt(0), nil, BlockContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Err == nil || res.Err.Kind != types.KindRejected {
		t.Fatalf("expected REJECTED for oversized bytecode, got %+v", res.Err)
	}
}

func TestExecuteEVMBytecodeSucceeds(t *testing.T) {
	c := newTestCoordinator()
	host := newNopHost()
	caller := types.Address{7}
	// bump caller reputation above deployment/execution gates
	score, _ := c.reputation.Get(caller)
	score.Behavior, score.WoT, score.Economic, score.Temporal = 90, 90, 90, 90
	if err := c.reputation.Put(score); err != nil {
		t.Fatalf("Put: %v", err)
	}

	code := []byte{0x60, 1, 0x60, 2, 0x01, 0x00} // PUSH1 1, PUSH1 2, ADD, STOP
	res, err := c.Execute(host, code, 100_000, types.Address{1}, caller, uint256.NewInt(0), nil, BlockContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %+v", res.Err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ExecutedFormat != types.FormatEVM {
		t.Fatalf("expected EVM format, got %s", res.ExecutedFormat)
	}
}

func TestDeployBuildsEVMEnvelope(t *testing.T) {
	c := newTestCoordinator()
	host := newNopHost()
	deployer := types.Address{7}
	score, _ := c.reputation.Get(deployer)
	score.Behavior, score.WoT, score.Economic, score.Temporal = 90, 90, 90, 90
	if err := c.reputation.Put(score); err != nil {
		t.Fatalf("Put: %v", err)
	}

	code := []byte{0x60, 1, 0x60, 2, 0x01, 0x00} // PUSH1 1, PUSH1 2, ADD, STOP
	_, res, err := c.Deploy(host, code, nil, 100_000, deployer, 0, uint256.NewInt(0), BlockContext{})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %+v", res.Err)
	}
	if len(res.Envelope) == 0 {
		t.Fatalf("expected a non-empty on-chain envelope")
	}
	if !bytes.Equal(res.Envelope[:4], envelope.Magic[:]) {
		t.Fatalf("envelope missing magic prefix: %x", res.Envelope[:4])
	}
	var decoded envelope.EVMDeployBody
	op, err := envelope.Decode(res.Envelope, &decoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if op != envelope.OpEVMDeploy {
		t.Fatalf("expected OpEVMDeploy, got 0x%02x", byte(op))
	}
	if decoded.Deployer != [20]byte(deployer) {
		t.Fatalf("unexpected deployer in decoded body: %x", decoded.Deployer)
	}
}

func TestDeriveCreateAddressDeterministic(t *testing.T) {
	deployer := types.Address{1}
	a1 := DeriveCreateAddress(deployer, 0)
	a2 := DeriveCreateAddress(deployer, 0)
	a3 := DeriveCreateAddress(deployer, 1)
	if a1 != a2 {
		t.Fatalf("expected deterministic CREATE address")
	}
	if a1 == a3 {
		t.Fatalf("expected different nonce to produce different address")
	}
}

func TestDeriveCreate2AddressDeterministic(t *testing.T) {
	deployer := types.Address{1}
	salt := types.Hash{2}
	code := []byte{0x60, 0x00}
	a1 := DeriveCreate2Address(deployer, salt, code)
	a2 := DeriveCreate2Address(deployer, salt, code)
	if a1 != a2 {
		t.Fatalf("expected deterministic CREATE2 address")
	}
}
