package kv

import (
	"encoding/binary"

	"github.com/certen/trustvm/pkg/types"
)

// Key-prefix layout (spec.md §6.4). Single-byte prefix + canonical
// encoding of the identifier, mirroring pkg/ledger/store.go's
// systemBlockKey/anchorTargetKey convention.
const (
	prefixTxState        = 'V'
	prefixDispute         = 'D'
	prefixFraud           = 'F'
	prefixValidatorStats   = 'S'
	prefixSession          = 'E'
	prefixPenalty          = 'P'
)

const (
	namespaceReputation    = "reputation_"
	namespaceValidatorReg  = "validator_stats_"
	namespaceValidatorPeer = "validator_peer_"
	namespaceDispute       = "dispute_"
	namespaceSybilAlert    = "sybil_alert_"
)

func TxStateKey(txHash types.Hash) []byte {
	return append([]byte{prefixTxState}, txHash.Bytes()...)
}

func DisputeKey(disputeID types.Hash) []byte {
	return append([]byte{prefixDispute}, disputeID.Bytes()...)
}

func FraudKey(txHash types.Hash) []byte {
	return append([]byte{prefixFraud}, txHash.Bytes()...)
}

func ValidatorStatsKey(addr types.Address) []byte {
	return append([]byte{prefixValidatorStats}, addr.Bytes()...)
}

func SessionKey(txHash types.Hash) []byte {
	return append([]byte{prefixSession}, txHash.Bytes()...)
}

func PenaltyKey(addr types.Address) []byte {
	return append([]byte{prefixPenalty}, addr.Bytes()...)
}

func ReputationKey(addr types.Address) []byte {
	return append([]byte(namespaceReputation), addr.Bytes()...)
}

func ValidatorRegistrationKey(addr types.Address) []byte {
	return append([]byte(namespaceValidatorReg), addr.Bytes()...)
}

func ValidatorPeerKey(addr types.Address) []byte {
	return append([]byte(namespaceValidatorPeer), addr.Bytes()...)
}

func DisputeLookupKey(disputeID types.Hash) []byte {
	return append([]byte(namespaceDispute), disputeID.Bytes()...)
}

// SybilAlertKey encodes address + "_" + big-endian unix-nano timestamp so
// alerts for one address sort chronologically under a shared prefix.
func SybilAlertKey(addr types.Address, unixNano int64) []byte {
	key := append([]byte(namespaceSybilAlert), addr.Bytes()...)
	key = append(key, '_')
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(unixNano))
	return append(key, ts...)
}

func SybilAlertPrefix(addr types.Address) []byte {
	return append(append([]byte(namespaceSybilAlert), addr.Bytes()...), '_')
}
