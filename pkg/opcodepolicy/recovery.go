package opcodepolicy

import "github.com/certen/trustvm/pkg/types"

// RecoveryOutcome is the refund decision for an exception during
// execution.
type RecoveryOutcome struct {
	RefundGas        uint64
	ConsumeRemaining bool
}

// Recover applies the reputation-biased exception recovery rules from
// §4.3 given the kind of exception, the reputation of the caller, gas
// used so far, and gas remaining.
func Recover(kind types.Kind, reputation float64, gasUsed, gasRemaining uint64) RecoveryOutcome {
	switch kind {
	case types.KindOutOfGas:
		switch {
		case reputation >= 80:
			return RecoveryOutcome{RefundGas: gasUsed / 10}
		case reputation >= 60:
			return RecoveryOutcome{RefundGas: gasUsed / 20}
		}
		return RecoveryOutcome{}

	case types.KindRevert:
		switch {
		case reputation >= 70:
			return RecoveryOutcome{RefundGas: gasRemaining * 90 / 100}
		case reputation >= 50:
			return RecoveryOutcome{RefundGas: gasRemaining * 75 / 100}
		}
		return RecoveryOutcome{}

	case types.KindInvalidInstruction, types.KindFailure:
		if reputation >= 80 {
			return RecoveryOutcome{RefundGas: gasRemaining / 4}
		}
		return RecoveryOutcome{}

	case types.KindStackOverflow, types.KindStackUnderflow:
		if reputation < 40 {
			return RecoveryOutcome{ConsumeRemaining: true}
		}
		return RecoveryOutcome{}

	default:
		return RecoveryOutcome{}
	}
}
