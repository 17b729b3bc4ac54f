package opcodepolicy

import "github.com/holiman/uint256"

// ArithOp names the trust-weighted arithmetic opcodes.
type ArithOp string

const (
	ArithAdd ArithOp = "ADD"
	ArithMul ArithOp = "MUL"
	ArithDiv ArithOp = "DIV"
)

// operandBound returns the bit width operands must fit within for a
// given reputation tier: unrestricted (256 bits) at >=80, half-range at
// >=60, low 64 bits at >=40, low 32 bits below.
func operandBound(reputation float64) uint {
	switch {
	case reputation >= 80:
		return 256
	case reputation >= 60:
		return 128
	case reputation >= 40:
		return 64
	default:
		return 32
	}
}

// fitsBound reports whether v fits within the given bit width.
func fitsBound(v *uint256.Int, bits uint) bool {
	if bits >= 256 {
		return true
	}
	var max uint256.Int
	max.Lsh(uint256.NewInt(1), bits)
	return v.Lt(&max)
}

// CheckOperands reports whether a and b fit within the operand bound
// reputation grants, and whether op is permitted at all for this
// reputation (division in particular has no separate gate beyond the
// operand-size rule).
func CheckOperands(op ArithOp, reputation float64, a, b *uint256.Int) bool {
	bound := operandBound(reputation)
	return fitsBound(a, bound) && fitsBound(b, bound)
}

// Add performs trust-weighted addition (wraps exactly like EVM ADD;
// range enforcement happens via CheckOperands before this is called).
func Add(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Add(a, b)
}

// Mul performs trust-weighted multiplication. At the medium-reputation
// tier (40 <= reputation < 60), overflow is defined to return zero
// rather than wrapping, matching the policy's explicit carve-out.
func Mul(reputation float64, a, b *uint256.Int) *uint256.Int {
	res, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow && reputation >= 40 && reputation < 60 {
		return new(uint256.Int)
	}
	return res
}

// Div performs trust-weighted division; division by zero returns zero
// per EVM convention regardless of reputation.
func Div(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(a, b)
}
