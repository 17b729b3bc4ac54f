// Package types holds the shared data model for the trust-gated VM and
// HAT consensus core: reputation records, trust edges, validation
// sessions, execution frames and the unified execution error type.
package types

import "fmt"

// Kind enumerates the execution-error taxonomy every opcode hook and the
// VM coordinator surface instead of panicking.
type Kind string

const (
	KindOutOfGas             Kind = "OUT_OF_GAS"
	KindInvalidInstruction   Kind = "INVALID_INSTRUCTION"
	KindUndefinedInstruction Kind = "UNDEFINED_INSTRUCTION"
	KindStackOverflow        Kind = "STACK_OVERFLOW"
	KindStackUnderflow       Kind = "STACK_UNDERFLOW"
	KindBadJumpDestination   Kind = "BAD_JUMP_DESTINATION"
	KindInvalidMemoryAccess  Kind = "INVALID_MEMORY_ACCESS"
	KindCallDepthExceeded    Kind = "CALL_DEPTH_EXCEEDED"
	KindStaticModeViolation  Kind = "STATIC_MODE_VIOLATION"
	KindPrecompileFailure    Kind = "PRECOMPILE_FAILURE"
	KindInsufficientBalance  Kind = "INSUFFICIENT_BALANCE"
	KindRevert               Kind = "REVERT"
	KindFailure              Kind = "FAILURE"
	KindInternalError        Kind = "INTERNAL_ERROR"
	KindRejected             Kind = "REJECTED"
)

// ExecError is the single error variant carried by every opcode-level and
// coordinator-level failure. RefundGas is filled in by the C7
// exception-recovery rules (percentage of used/remaining gas to return),
// never by the opcode itself.
type ExecError struct {
	Kind      Kind
	Message   string
	RefundGas uint64
}

func (e *ExecError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewExecError builds an ExecError with no refund attached.
func NewExecError(kind Kind, format string, args ...any) *ExecError {
	return &ExecError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithRefund returns a copy of the error carrying the given gas refund.
func (e *ExecError) WithRefund(refund uint64) *ExecError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.RefundGas = refund
	return &cp
}
