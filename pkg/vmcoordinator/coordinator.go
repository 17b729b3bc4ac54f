// Package vmcoordinator implements the Enhanced VM Coordinator (C8): it
// routes a transaction to the EVM-semantics engine or a native engine
// based on the bytecode format detector, manages the nested call-frame
// stack, derives contract addresses, and applies exception recovery.
//
// Grounded on pkg/execution/executor.go's thin adapter/wiring shape:
// the Coordinator holds interfaces to its collaborators (detector, gas
// policy, opcode policy, reputation registry, native engine, EVM engine)
// rather than concrete types, mirroring executor.go's dependency
// injection over consensus.BFTValidator.
package vmcoordinator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/bytecode"
	"github.com/certen/trustvm/pkg/envelope"
	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/opcodepolicy"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/types"
)

// NativeEngine is the interface the in-house bytecode interpreter must
// satisfy; the Coordinator does not know or care how it works.
type NativeEngine interface {
	Execute(host evmengine.Host, msg evmengine.Message, bytecode []byte) (evmengine.Result, error)
}

// BlockContext is the "current block" accessor the coordinator consumes
// as an external collaborator (spec §4.8).
type BlockContext struct {
	Height uint64
	Hash   types.Hash
	Time   uint64
}

// Coordinator owns the per-transaction execution frame stack and routes
// work to the native engine or the EVM-semantics wrapper.
type Coordinator struct {
	detector   *bytecode.Detector
	gasPolicy  *gas.Policy
	reputation *reputation.Registry
	evm        *evmengine.Engine
	native     NativeEngine

	frames []types.ExecutionFrame
}

// New constructs a Coordinator over its collaborators.
func New(detector *bytecode.Detector, gasPolicy *gas.Policy, rep *reputation.Registry, evm *evmengine.Engine, native NativeEngine) *Coordinator {
	return &Coordinator{detector: detector, gasPolicy: gasPolicy, reputation: rep, evm: evm, native: native}
}

// ExecutionResult is what Execute/Deploy/Call return to the caller.
type ExecutionResult struct {
	Success               bool
	GasUsed               uint64
	ReturnData            []byte
	Logs                  []types.Log
	Err                   *types.ExecError
	ExecutedFormat        types.BytecodeFormat
	CallerRepBefore       float64
	CallerRepAfter        float64
	TrustGatePassed       bool
	ReputationGasDiscount uint64
	// UsedFreeGas reports whether the Sustainable Gas Policy's (C5)
	// free-gas allowance covered any part of this execution's bill.
	UsedFreeGas          bool
	GasPrice             uint64
	CrossFormatCallsMade int
	TotalCrossCalls      int
	// Envelope is the §6.1 on-chain soft-fork payload recording this
	// execution. Execute leaves it nil; Deploy and Call set it after a
	// successful run, and leave it nil when building the envelope fails.
	Envelope []byte
}

func rejected(reason string) ExecutionResult {
	return ExecutionResult{Err: types.NewExecError(types.KindRejected, "%s", reason)}
}

// congestionToNetworkLoad maps the congestion multiplier (clamped
// [0.5, 2.0]) onto the [0, 100] network-load scale gas.Policy.Price
// expects.
func congestionToNetworkLoad(mult float64) float64 {
	load := (mult - 0.5) / 1.5 * 100
	if load < 0 {
		return 0
	}
	if load > 100 {
		return 100
	}
	return load
}

// Execute runs bytecode for contract on behalf of caller, with value and
// input, honoring the pre-conditions and routing rules of §4.4.
func (c *Coordinator) Execute(host evmengine.Host, bytecodeBytes []byte, gasLimit uint64, contract, caller types.Address, value *uint256.Int, input []byte, block BlockContext) (ExecutionResult, error) {
	return c.execute(host, bytecodeBytes, gasLimit, contract, caller, value, input, block, gas.CallRegular)
}

// execute is Execute's implementation, parameterized by the call-family
// kind so Deploy can apply CREATE's discount tier instead of CALL's.
func (c *Coordinator) execute(host evmengine.Host, bytecodeBytes []byte, gasLimit uint64, contract, caller types.Address, value *uint256.Int, input []byte, block BlockContext, kind gas.CallKind) (ExecutionResult, error) {
	if uint64(len(bytecodeBytes)) > types.MaxBytecodeSize {
		return rejected("bytecode exceeds maximum size"), nil
	}
	if gasLimit < types.MinGasLimit {
		return ExecutionResult{Err: types.NewExecError(types.KindOutOfGas, "gas limit %d below minimum %d", gasLimit, types.MinGasLimit)}, nil
	}
	if len(c.frames) >= types.MaxCallDepth {
		return ExecutionResult{Err: types.NewExecError(types.KindCallDepthExceeded, "max call depth %d exceeded", types.MaxCallDepth)}, nil
	}

	repBefore, err := c.reputation.Final(caller)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("vmcoordinator: load reputation: %w", err)
	}

	gate := opcodepolicy.TrustGate("contract_execution", repBefore)
	if !gate.Allowed {
		return rejected(gate.Reason), nil
	}
	if !opcodepolicy.ReputationBasedLimits(repBefore, gasLimit, uint64(len(bytecodeBytes))) {
		return rejected("gas/memory limits exceed reputation tier"), nil
	}

	format := c.detector.Detect(bytecodeBytes).Format

	frame := types.ExecutionFrame{Contract: contract, Caller: caller, Format: format, GasRemaining: gasLimit, CallDepth: len(c.frames)}
	c.frames = append(c.frames, frame)
	defer func() { c.frames = c.frames[:len(c.frames)-1] }()

	var res evmengine.Result
	switch format {
	case types.FormatNative:
		res, err = c.runNative(host, evmengine.Message{Caller: caller, To: contract, Value: value, Input: input, GasLimit: gasLimit, Reputation: repBefore}, bytecodeBytes)
	case types.FormatEVM:
		res, err = c.evm.Call(host, contract, bytecodeBytes, input, gasLimit, caller, value, repBefore)
	case types.FormatHybrid:
		res, err = c.runNative(host, evmengine.Message{Caller: caller, To: contract, Value: value, Input: input, GasLimit: gasLimit, Reputation: repBefore}, bytecodeBytes)
		if err != nil {
			res, err = c.evm.Call(host, contract, bytecodeBytes, input, gasLimit, caller, value, repBefore)
		}
	default:
		return ExecutionResult{Err: types.NewExecError(types.KindInvalidInstruction, "unrecognized bytecode format")}, nil
	}
	if err != nil {
		return ExecutionResult{Err: types.NewExecError(types.KindFailure, "%s", err.Error())}, nil
	}

	// Sustainable Gas Policy (C5): the interpreter already metered each
	// opcode through the reputation discount curve; apply the call-kind
	// discount tier and the free-gas allowance on top before billing.
	meteredGas := gasLimit - res.GasLeft
	billedGas := uint64(float64(meteredGas) * gas.CallDiscount(kind, repBefore))
	callDiscount := meteredGas - billedGas

	var freeDiscount uint64
	usedFreeGas := false
	if allowance := gas.FreeAllowance(repBefore); allowance > 0 {
		usedFreeGas = true
		if billedGas <= allowance {
			freeDiscount = billedGas
			billedGas = 0
		} else {
			freeDiscount = allowance
			billedGas -= allowance
		}
	}

	networkLoad := congestionToNetworkLoad(c.gasPolicy.CurrentPriceMultiplier())
	gasPrice := c.gasPolicy.Price(caller, repBefore, networkLoad)

	repAfter, _ := c.reputation.Final(caller)

	return ExecutionResult{
		Success:               res.Status == evmengine.StatusSuccess,
		GasUsed:               billedGas,
		ReturnData:            res.Output,
		Logs:                  res.Logs,
		ExecutedFormat:        format,
		CallerRepBefore:       repBefore,
		CallerRepAfter:        repAfter,
		TrustGatePassed:       true,
		ReputationGasDiscount: callDiscount + freeDiscount,
		UsedFreeGas:           usedFreeGas,
		GasPrice:              gasPrice,
	}, nil
}

func (c *Coordinator) runNative(host evmengine.Host, msg evmengine.Message, bc []byte) (evmengine.Result, error) {
	if c.native == nil {
		return evmengine.Result{}, fmt.Errorf("vmcoordinator: no native engine configured")
	}
	return c.native.Execute(host, msg, bc)
}

// Deploy constructs a deployment message and derives the contract
// address via CREATE (hash of deployer+nonce).
func (c *Coordinator) Deploy(host evmengine.Host, bytecodeBytes, constructorData []byte, gasLimit uint64, deployer types.Address, nonce uint64, value *uint256.Int, block BlockContext) (types.Address, ExecutionResult, error) {
	addr := DeriveCreateAddress(deployer, nonce)
	result, err := c.execute(host, bytecodeBytes, gasLimit, addr, deployer, value, constructorData, block, gas.CallCreate)
	if err == nil && result.Err == nil {
		result.Envelope = buildDeployEnvelope(result.ExecutedFormat, deployer, bytecodeBytes, gasLimit, nonce)
	}
	return addr, result, err
}

// Call dispatches a message call against an already-deployed contract;
// the caller supplies the contract's stored bytecode.
func (c *Coordinator) Call(host evmengine.Host, contract types.Address, storedBytecode, callData []byte, gasLimit uint64, caller types.Address, value *uint256.Int, block BlockContext) (ExecutionResult, error) {
	result, err := c.Execute(host, storedBytecode, gasLimit, contract, caller, value, callData, block)
	if err == nil && result.Err == nil {
		result.Envelope = buildCallEnvelope(result.ExecutedFormat, caller, contract, callData, gasLimit, value)
	}
	return result, err
}

// buildDeployEnvelope encodes the §6.1 on-chain record for a deployment:
// op 0x01 for a native/hybrid contract, 0x08 when it ran through the
// EVM-semantics engine. Encoding failure (only possible if the body
// somehow exceeds the 75-byte ceiling, which fixed-width bodies never
// do) degrades to a nil envelope rather than failing the execution that
// already succeeded.
func buildDeployEnvelope(format types.BytecodeFormat, deployer types.Address, bytecodeBytes []byte, gasLimit, nonce uint64) []byte {
	codeHash := crypto.Keccak256(bytecodeBytes)
	if format == types.FormatEVM {
		body := envelope.EVMDeployBody{Deployer: [20]byte(deployer), GasLimit: gasLimit}
		copy(body.CodeHash[:], codeHash)
		raw, err := envelope.Build(envelope.OpEVMDeploy, body)
		if err != nil {
			return nil
		}
		return raw
	}
	body := envelope.DeployBody{Deployer: [20]byte(deployer), GasLimit: gasLimit, Nonce: nonce}
	copy(body.CodeHash[:], codeHash)
	raw, err := envelope.Build(envelope.OpDeploy, body)
	if err != nil {
		return nil
	}
	return raw
}

// buildCallEnvelope encodes the §6.1 on-chain record for a call: op 0x02
// for native/hybrid, 0x09 for EVM.
func buildCallEnvelope(format types.BytecodeFormat, caller, contract types.Address, input []byte, gasLimit uint64, value *uint256.Int) []byte {
	inputHash := crypto.Keccak256(input)
	var v uint64
	if value != nil {
		v = value.Uint64()
	}
	if format == types.FormatEVM {
		body := envelope.EVMCallBody{Caller: [20]byte(caller), Contract: [20]byte(contract), Value: v, GasLimit: gasLimit}
		copy(body.InputHash[:], inputHash)
		raw, err := envelope.Build(envelope.OpEVMCall, body)
		if err != nil {
			return nil
		}
		return raw
	}
	body := envelope.CallBody{Caller: [20]byte(caller), Contract: [20]byte(contract), Value: v, GasLimit: gasLimit}
	copy(body.InputHash[:], inputHash)
	raw, err := envelope.Build(envelope.OpCall, body)
	if err != nil {
		return nil
	}
	return raw
}

// DeriveCreateAddress matches the chain's historical CREATE derivation:
// the low 20 bytes of Keccak256(rlp([deployer, nonce])).
func DeriveCreateAddress(deployer types.Address, nonce uint64) types.Address {
	data, err := rlp.EncodeToBytes([]interface{}{deployer.Bytes(), nonce})
	if err != nil {
		panic(fmt.Sprintf("vmcoordinator: rlp encode create address inputs: %v", err))
	}
	return types.BytesToAddress(crypto.Keccak256(data)[12:])
}

// DeriveCreate2Address matches CREATE2's deterministic derivation:
// Keccak256(0xff ‖ deployer ‖ salt ‖ Keccak256(bytecode))[12:].
func DeriveCreate2Address(deployer types.Address, salt types.Hash, bytecodeBytes []byte) types.Address {
	codeHash := crypto.Keccak256(bytecodeBytes)
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, deployer.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, codeHash...)
	return types.BytesToAddress(crypto.Keccak256(buf)[12:])
}
