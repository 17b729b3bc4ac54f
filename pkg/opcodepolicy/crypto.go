// Crypto-opcode gating, trust-enhanced hashing, reputation-scaled key
// derivation and randomness mixing. Grounded on go-ethereum's own
// precompile set for which hash each mnemonic maps to, with
// golang.org/x/crypto supplying the two hash families go-ethereum does
// not ship (RIPEMD160, BLAKE2b).
package opcodepolicy

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // precompile parity requires this exact legacy hash

	"github.com/certen/trustvm/pkg/types"
)

// CryptoOpcode names the cryptographic opcodes §4.3 gates.
type CryptoOpcode string

const (
	CryptoSHA3       CryptoOpcode = "SHA3"
	CryptoSHA256     CryptoOpcode = "SHA256"
	CryptoRIPEMD160  CryptoOpcode = "RIPEMD160"
	CryptoIdentity   CryptoOpcode = "IDENTITY"
	CryptoBlake2F    CryptoOpcode = "BLAKE2F"
	CryptoECRecover  CryptoOpcode = "ECRECOVER"
	CryptoModExp     CryptoOpcode = "MODEXP"
	CryptoECAdd      CryptoOpcode = "ECADD"
	CryptoECMul      CryptoOpcode = "ECMUL"
	CryptoECPairing  CryptoOpcode = "ECPAIRING"
)

// CryptoGate is the outcome of evaluating a cryptographic opcode: it may
// be unconditionally allowed, allowed-but-flagged for extra scrutiny, or
// rejected outright.
type CryptoGate struct {
	Allowed bool
	Flagged bool
}

// CheckCryptoOpcode gates a cryptographic opcode by reputation.
func CheckCryptoOpcode(op CryptoOpcode, reputation float64) CryptoGate {
	switch op {
	case CryptoSHA3, CryptoSHA256, CryptoRIPEMD160, CryptoIdentity, CryptoBlake2F:
		return CryptoGate{Allowed: true}
	case CryptoECRecover:
		return CryptoGate{Allowed: true, Flagged: reputation < 40}
	case CryptoModExp:
		return CryptoGate{Allowed: true, Flagged: reputation < 50}
	case CryptoECAdd, CryptoECMul, CryptoECPairing:
		return CryptoGate{Allowed: reputation >= 60}
	default:
		return CryptoGate{Allowed: false}
	}
}

// RIPEMD160 hashes data with the legacy RIPEMD-160 digest, needed for
// precompile parity with the EVM's 0x03 address.
func RIPEMD160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

// SHA256 hashes data with SHA-256, needed for precompile parity with the
// EVM's 0x02 address.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Blake2F applies the BLAKE2b compression function's underlying hash,
// standing in for the EVM's BLAKE2F precompile (0x09).
func Blake2F(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// TrustEnhancedHash computes hash(reputation_bytes || caller || timestamp
// || data) deterministically: identical inputs always produce identical
// output.
func TrustEnhancedHash(reputation float64, caller types.Address, timestamp int64, data []byte) types.Hash {
	var buf []byte
	repBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(repBytes, uint64(reputation*1000))
	buf = append(buf, repBytes...)
	buf = append(buf, caller.Bytes()...)
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(timestamp))
	buf = append(buf, tsBytes...)
	buf = append(buf, data...)
	return types.BytesToHash(crypto.Keccak256(buf))
}

// DeriveKey derives a reputation-scaled key from seed: key length grows
// with reputation (32/24/16/12 bytes) and iteration rounds scale as
// 1 + reputation/20.
func DeriveKey(reputation float64, seed []byte) []byte {
	length := 12
	switch {
	case reputation >= 80:
		length = 32
	case reputation >= 60:
		length = 24
	case reputation >= 40:
		length = 16
	}
	rounds := 1 + int(reputation/20)

	digest := seed
	for i := 0; i < rounds; i++ {
		sum := crypto.Keccak256(digest, []byte(fmt.Sprintf("round-%d", i)))
		digest = sum
	}
	if len(digest) >= length {
		return digest[:length]
	}
	out := make([]byte, length)
	copy(out, digest)
	return out
}
