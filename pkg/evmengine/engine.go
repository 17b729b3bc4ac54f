package evmengine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/types"
)

// =============================================================================
// ENGINE WRAPPER CONFIGURATION
// =============================================================================

// Config holds wrapper-level defaults, mirroring the strategy-config
// pattern the chain strategies use for per-backend tunables.
type Config struct {
	Revision string
	GasLimit uint64
}

// DefaultConfig returns sane wrapper defaults.
func DefaultConfig() Config {
	return Config{Revision: "trustvm-1", GasLimit: 3_000_000}
}

// Engine wraps a pluggable Interpreter, constructing call messages and
// post-processing raw interpreter results into the core's Receipt/Log
// shape. Grounded on pkg/chain/strategy/evm_strategy.go's
// config-holding-strategy-wrapper shape, generalized from chain-specific
// anchor submission to interpreter dispatch.
type Engine struct {
	cfg         Config
	interpreter Interpreter
}

// New constructs an Engine around the given interpreter. Passing nil
// falls back to the shipped ReferenceInterpreter.
func New(cfg Config, interpreter Interpreter) *Engine {
	if interpreter == nil {
		interpreter = NewReferenceInterpreter()
	}
	return &Engine{cfg: cfg, interpreter: interpreter}
}

// Deploy constructs a creation message and executes bytecode against it.
// reputation is the deployer's reputation, carried into the message so
// the interpreter's gas metering can apply C5's discount curve.
func (e *Engine) Deploy(host Host, bytecode, constructorData []byte, gasLimit uint64, deployer types.Address, value *uint256.Int, reputation float64) (Result, error) {
	msg := Message{
		Caller:     deployer,
		Value:      value,
		Input:      constructorData,
		GasLimit:   gasLimit,
		IsCreate:   true,
		Reputation: reputation,
	}
	return e.run(host, msg, bytecode)
}

// Call constructs a message call and executes bytecode against it.
// reputation is the caller's reputation, carried into the message so
// the interpreter's gas metering can apply C5's discount curve.
func (e *Engine) Call(host Host, contract types.Address, bytecode, callData []byte, gasLimit uint64, caller types.Address, value *uint256.Int, reputation float64) (Result, error) {
	msg := Message{
		Caller:     caller,
		To:         contract,
		Value:      value,
		Input:      callData,
		GasLimit:   gasLimit,
		Reputation: reputation,
	}
	return e.run(host, msg, bytecode)
}

func (e *Engine) run(host Host, msg Message, bytecode []byte) (Result, error) {
	if msg.GasLimit < types.MinGasLimit {
		return Result{Status: StatusFailure}, fmt.Errorf("evmengine: gas limit %d below minimum %d", msg.GasLimit, types.MinGasLimit)
	}
	if uint64(len(bytecode)) > types.MaxBytecodeSize {
		return Result{Status: StatusFailure}, fmt.Errorf("evmengine: bytecode size %d exceeds maximum", len(bytecode))
	}
	res, err := e.interpreter.Execute(host, e.cfg.Revision, msg, bytecode)
	if res.Release != nil {
		defer res.Release()
	}
	return res, err
}
