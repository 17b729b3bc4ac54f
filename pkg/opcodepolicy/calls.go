package opcodepolicy

import "github.com/holiman/uint256"

// CallAllowed gates CALL/DELEGATECALL/STATICCALL/CREATE/CREATE2 by
// reputation; CALL additionally tightens when it carries value.
func CallAllowed(kind string, reputation float64, value *uint256.Int) bool {
	switch kind {
	case "CALL":
		if value != nil && !value.IsZero() {
			return reputation >= 60
		}
		return reputation >= 40
	case "DELEGATECALL":
		return reputation >= 80
	case "STATICCALL":
		return reputation >= 20
	case "CREATE", "CREATE2":
		return reputation >= 70
	default:
		return true
	}
}
