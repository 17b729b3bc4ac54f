// Package evmengine implements the EVM-Semantics Engine Wrapper (C6): it
// constructs a call message, supplies the host interface to a pluggable
// interpreter, and post-processes results into the shape the Enhanced VM
// Coordinator expects.
//
// The interpreter itself is an external collaborator per the spec's
// framing of "the underlying EVM interpreter" — this package defines the
// Host/Interpreter contract and ships one reference Interpreter
// implementation, grounded on clydemeng-bsc/core/vm/dispatcher_goevm.go's
// Executor abstraction generalized from a build-tag stub into a runtime
// interface.
package evmengine

import (
	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/types"
)

// Host is the set of chain-state operations the core exposes to an
// embedded interpreter. The interpreter dispatches sub-calls back
// through Call, which re-enters the Enhanced VM Coordinator.
type Host interface {
	GetBalance(addr types.Address) *uint256.Int
	GetStorage(addr types.Address, key types.Hash) types.Hash
	SetStorage(addr types.Address, key, value types.Hash)
	GetCode(addr types.Address) []byte
	BlockNumber() uint64
	BlockHash(number uint64) types.Hash
	BlockTimestamp() uint64
	Origin() types.Address
	GasPrice() *uint256.Int
	AddLog(log types.Log)
	SelfDestruct(addr, beneficiary types.Address)
	// Call re-enters the coordinator for a nested CALL/DELEGATECALL/
	// STATICCALL/CREATE/CREATE2. kind is the call-family opcode name.
	Call(kind string, caller, to types.Address, value *uint256.Int, input []byte, gas uint64) (CallResult, error)
}

// CallResult is what a nested Call returns to the interpreter.
type CallResult struct {
	Success    bool
	ReturnData []byte
	GasLeft    uint64
}

// Message is a single call or deployment message.
type Message struct {
	Caller     types.Address
	To         types.Address
	Value      *uint256.Int
	Input      []byte
	GasLimit   uint64
	IsCreate   bool
	// Reputation is the caller's reputation at message construction
	// time, carried so the interpreter can apply the Sustainable Gas
	// Policy's (C5) reputation discount curve to each instruction it
	// meters.
	Reputation float64
}

// Status is the terminal outcome of an interpreter run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusRevert  Status = "revert"
	StatusFailure Status = "failure"
)

// Result is what the interpreter returns; Release, when non-nil,
// must be called once the caller is done with Output (the reference
// interpreter never retains pooled buffers, so its Release is nil).
type Result struct {
	Status  Status
	GasLeft uint64
	Output  []byte
	Logs    []types.Log
	Release func()
}

// Interpreter executes EVM-semantics bytecode against a Host.
type Interpreter interface {
	Execute(host Host, revision string, msg Message, bytecode []byte) (Result, error)
}
