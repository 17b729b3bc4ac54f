package evmengine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/types"
)

// Reference opcode set. Not a complete EVM — enough of the common
// subset (arithmetic, storage, control flow, halts) to execute real
// bytecode end to end and to give the opcode policy (C7) something
// concrete to gate.
const (
	opSTOP      = 0x00
	opADD       = 0x01
	opMUL       = 0x02
	opSUB       = 0x03
	opDIV       = 0x04
	opCALLVALUE = 0x34
	opCALLER    = 0x33
	opPOP       = 0x50
	opSLOAD     = 0x54
	opSSTORE    = 0x55
	opJUMP      = 0x56
	opJUMPI     = 0x57
	opJUMPDEST  = 0x5B
	opPUSH1     = 0x60
	opPUSH32    = 0x7F
	opRETURN    = 0xF3
	opREVERT    = 0xFD
)

const maxStackDepth = 1024

// baseOpcodeCost is the pre-discount gas cost of every opcode this
// reference interpreter implements; gas.OpcodeCost applies the
// reputation discount curve (C5) on top before it is charged.
var baseOpcodeCost = map[byte]uint64{
	opSTOP:      0,
	opADD:       3,
	opMUL:       5,
	opSUB:       3,
	opDIV:       5,
	opCALLVALUE: 2,
	opCALLER:    2,
	opPOP:       2,
	opJUMP:      8,
	opJUMPI:     10,
	opJUMPDEST:  1,
	opRETURN:    0,
	opREVERT:    0,
}

// ReferenceInterpreter is the interpreter shipped with the engine. Host
// implementations supplied by production deployments may swap in a
// different Interpreter entirely; the Coordinator only depends on the
// Interpreter contract.
type ReferenceInterpreter struct{}

// NewReferenceInterpreter constructs the built-in interpreter.
func NewReferenceInterpreter() *ReferenceInterpreter {
	return &ReferenceInterpreter{}
}

// Execute runs bytecode against host starting from msg. Every opcode is
// metered through the Sustainable Gas Policy's (C5) reputation discount
// curve before it is allowed to take effect; call-type and operand-level
// gating from the Trust-Aware Opcode Policy (C7) is applied one layer up,
// by the Enhanced VM Coordinator around calls into this loop.
func (it *ReferenceInterpreter) Execute(host Host, revision string, msg Message, bytecode []byte) (Result, error) {
	stack := make([]*uint256.Int, 0, 16)
	push := func(v *uint256.Int) error {
		if len(stack) >= maxStackDepth {
			return fmt.Errorf("evmengine: stack overflow")
		}
		stack = append(stack, v)
		return nil
	}
	pop := func() (*uint256.Int, error) {
		if len(stack) == 0 {
			return nil, fmt.Errorf("evmengine: stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	pc := 0
	gasLeft := msg.GasLimit
	var logs []types.Log
	trustCtx := gas.TrustContext{Reputation: msg.Reputation}

	for pc < len(bytecode) {
		op := bytecode[pc]

		// Meter before effect: the Sustainable Gas Policy (C5) prices
		// every opcode's base cost through the reputation discount
		// curve before this instruction is allowed to execute.
		var opCost uint64
		switch {
		case op == opSLOAD:
			opCost = gas.StorageCost(false, trustCtx)
		case op == opSSTORE:
			opCost = gas.StorageCost(true, trustCtx)
		case op >= opPUSH1 && op <= opPUSH32:
			opCost = gas.OpcodeCost(3, trustCtx)
		default:
			if base, ok := baseOpcodeCost[op]; ok {
				opCost = gas.OpcodeCost(base, trustCtx)
			}
		}
		if opCost > gasLeft {
			return Result{Status: StatusFailure}, fmt.Errorf("evmengine: out of gas at pc=%d (opcode 0x%02x)", pc, op)
		}
		gasLeft -= opCost

		switch {
		case op == opSTOP:
			return Result{Status: StatusSuccess, GasLeft: gasLeft, Logs: logs}, nil

		case op == opADD, op == opMUL, op == opSUB, op == opDIV:
			b, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			a, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			res := new(uint256.Int)
			switch op {
			case opADD:
				res.Add(a, b)
			case opMUL:
				res.Mul(a, b)
			case opSUB:
				res.Sub(a, b)
			case opDIV:
				if b.IsZero() {
					res.Clear() // EVM convention: division by zero is zero
				} else {
					res.Div(a, b)
				}
			}
			if err := push(res); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc++

		case op == opCALLVALUE:
			v := new(uint256.Int)
			if msg.Value != nil {
				v.Set(msg.Value)
			}
			if err := push(v); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc++

		case op == opCALLER:
			v := new(uint256.Int).SetBytes(msg.Caller.Bytes())
			if err := push(v); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc++

		case op == opPOP:
			if _, err := pop(); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc++

		case op == opSLOAD:
			keyWord, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			key := types.Hash(keyWord.Bytes32())
			val := host.GetStorage(msg.To, key)
			if err := push(new(uint256.Int).SetBytes(val.Bytes())); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc++

		case op == opSSTORE:
			keyWord, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			valWord, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			key := types.Hash(keyWord.Bytes32())
			val := types.Hash(valWord.Bytes32())
			host.SetStorage(msg.To, key, val)
			pc++

		case op == opJUMPDEST:
			pc++

		case op == opJUMP:
			dest, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			target := int(dest.Uint64())
			if target < 0 || target >= len(bytecode) || bytecode[target] != opJUMPDEST {
				return Result{Status: StatusFailure}, fmt.Errorf("evmengine: bad jump destination %d", target)
			}
			pc = target

		case op == opJUMPI:
			dest, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			cond, err := pop()
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			if !cond.IsZero() {
				target := int(dest.Uint64())
				if target < 0 || target >= len(bytecode) || bytecode[target] != opJUMPDEST {
					return Result{Status: StatusFailure}, fmt.Errorf("evmengine: bad jump destination %d", target)
				}
				pc = target
			} else {
				pc++
			}

		case op >= opPUSH1 && op <= opPUSH32:
			n := int(op-opPUSH1) + 1
			if pc+1+n > len(bytecode) {
				return Result{Status: StatusFailure}, fmt.Errorf("evmengine: truncated push operand")
			}
			v := new(uint256.Int).SetBytes(bytecode[pc+1 : pc+1+n])
			if err := push(v); err != nil {
				return Result{Status: StatusFailure}, err
			}
			pc += 1 + n

		case op == opRETURN:
			out, err := readMemoryRegion(pop)
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			return Result{Status: StatusSuccess, GasLeft: gasLeft, Output: out, Logs: logs}, nil

		case op == opREVERT:
			out, err := readMemoryRegion(pop)
			if err != nil {
				return Result{Status: StatusFailure}, err
			}
			return Result{Status: StatusRevert, GasLeft: gasLeft, Output: out}, nil

		default:
			return Result{Status: StatusFailure}, fmt.Errorf("evmengine: undefined instruction 0x%02x at pc=%d", op, pc)
		}
	}
	return Result{Status: StatusSuccess, GasLeft: gasLeft, Logs: logs}, nil
}

// readMemoryRegion is a placeholder memory model: RETURN/REVERT pop
// (offset, size) but this reference interpreter has no byte-addressable
// memory, so it ignores offset and returns nil when size is zero and
// otherwise a zero-filled slice of size bytes. A production interpreter backs this with real
// memory; the Coordinator only depends on Output being present or absent.
func readMemoryRegion(pop func() (*uint256.Int, error)) ([]byte, error) {
	size, err := pop()
	if err != nil {
		return nil, err
	}
	if _, err := pop(); err != nil { // offset, unused by this model
		return nil, err
	}
	if size.IsZero() {
		return nil, nil
	}
	return make([]byte, size.Uint64()), nil
}
