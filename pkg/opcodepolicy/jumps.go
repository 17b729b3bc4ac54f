// Package opcodepolicy implements the Trust-Aware Opcode Policy (C7): the
// pre-execution hooks that answer, for every instruction, "may this
// proceed, and at what cost?" The decision functions take all context as
// parameters and keep no package-level state, matching the teacher's
// chain-strategy interfaces. TrustAwareRandom reads system randomness,
// and RegionSet, WeightedStack and SortedArray are stateful helpers.
package opcodepolicy

// JumpAllowed reports whether a JUMP/JUMPI to destination is permitted
// for a caller with the given reputation, against bytecodeLen.
func JumpAllowed(reputation float64, destination, bytecodeLen uint64) bool {
	if destination >= bytecodeLen {
		return false
	}
	switch {
	case reputation >= 80:
		return true
	case reputation >= 40:
		return destination < bytecodeLen/2
	default:
		return destination < bytecodeLen/4
	}
}

// LoopIterationCap returns the reputation-indexed ceiling on loop
// iterations a single call may perform.
func LoopIterationCap(reputation float64) uint64 {
	switch {
	case reputation >= 90:
		return 1_000_000_000
	case reputation >= 80:
		return 100_000_000
	case reputation >= 70:
		return 10_000_000
	case reputation >= 60:
		return 1_000_000
	case reputation >= 50:
		return 100_000
	case reputation >= 40:
		return 10_000
	case reputation >= 30:
		return 1_000
	default:
		return 100
	}
}

// ControlFlowOpcode names the opcodes §4.3's control-flow gate covers.
type ControlFlowOpcode string

const (
	FlowCreate       ControlFlowOpcode = "CREATE"
	FlowCreate2      ControlFlowOpcode = "CREATE2"
	FlowSelfDestruct ControlFlowOpcode = "SELFDESTRUCT"
	FlowJump         ControlFlowOpcode = "JUMP"
)

// ControlFlowAllowed gates CREATE/CREATE2/SELFDESTRUCT/JUMP by reputation.
func ControlFlowAllowed(op ControlFlowOpcode, reputation float64) bool {
	switch op {
	case FlowCreate, FlowCreate2:
		return reputation >= 70
	case FlowSelfDestruct:
		return reputation >= 90
	case FlowJump:
		return reputation >= 30
	default:
		return true
	}
}

// TrustGateResult is what a gate check returns to the coordinator so it
// can attach the reason to an ExecError when rejecting.
type TrustGateResult struct {
	Allowed bool
	Reason  string
}

// TrustGate evaluates the named operation gate, returning a structured
// result instead of a bare bool so callers can surface why a call was
// rejected.
func TrustGate(operation string, reputation float64) TrustGateResult {
	var minReputation float64
	switch operation {
	case "deployment":
		minReputation = 50
	case "high_value_transfer":
		minReputation = 70
	case "cross_chain":
		minReputation = 80
	default:
		minReputation = 0
	}
	if reputation < minReputation {
		return TrustGateResult{Allowed: false, Reason: "reputation below required minimum for " + operation}
	}
	return TrustGateResult{Allowed: true}
}

// ReputationLimits are the gas/memory ceilings §4.4 assigns by tier.
type ReputationLimits struct {
	MaxGas    uint64
	MaxMemory uint64 // bytes; 0 means "no specific cap beyond gas"
}

// LimitsFor returns the gas/memory ceiling for reputation.
func LimitsFor(reputation float64) ReputationLimits {
	switch {
	case reputation >= 80:
		return ReputationLimits{MaxGas: 10_000_000, MaxMemory: 100 * 1024 * 1024}
	case reputation >= 60:
		return ReputationLimits{MaxGas: 5_000_000, MaxMemory: 50 * 1024 * 1024}
	case reputation >= 40:
		return ReputationLimits{MaxGas: 1_000_000, MaxMemory: 10 * 1024 * 1024}
	default:
		return ReputationLimits{MaxGas: 100_000}
	}
}

// ReputationBasedLimits reports whether gasLimit and bytecodeLen clear
// the tier the caller's reputation qualifies for.
func ReputationBasedLimits(reputation float64, gasLimit, bytecodeLen uint64) bool {
	limits := LimitsFor(reputation)
	if gasLimit > limits.MaxGas {
		return false
	}
	if limits.MaxMemory > 0 && bytecodeLen > limits.MaxMemory {
		return false
	}
	return true
}
