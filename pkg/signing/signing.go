// Package signing implements the domain-separated Ed25519 signature over
// a HAT validation response, plus address derivation from the embedded
// public key (spec.md §3, testable property: "the embedded public key's
// derived address equals validator_address").
//
// Grounded on pkg/attestation/strategy/ed25519_strategy.go's
// Sign/Verify/domain-message shape. These helpers use Ed25519 directly;
// the pluggable Strategy in strategy.go offers Ed25519 and BLS.
package signing

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/trustvm/pkg/types"
)

// ResponseDomain is the domain-separation tag mixed into every signed
// validation-response message, preventing cross-protocol signature reuse.
const ResponseDomain = "TRUSTVM_HAT_VOTE_V1"

// ResponseMessage is the exact tuple the spec requires the signature to
// cover: (tx_hash, validator, final_calculated_score, vote,
// challenge_nonce, timestamp).
type ResponseMessage struct {
	TxHash          types.Hash
	Validator       types.Address
	CalculatedScore float64
	Vote            types.Vote
	ChallengeNonce  types.Hash
	TimestampUnix   int64
}

// encode builds the canonical domain-separated byte string signed and
// verified for a response message.
func encode(m ResponseMessage) []byte {
	buf := make([]byte, 0, len(ResponseDomain)+32+20+8+8+32+8)
	buf = append(buf, ResponseDomain...)
	buf = append(buf, m.TxHash.Bytes()...)
	buf = append(buf, m.Validator.Bytes()...)
	scoreBits := make([]byte, 8)
	binary.BigEndian.PutUint64(scoreBits, uint64(int64(m.CalculatedScore*1e6)))
	buf = append(buf, scoreBits...)
	buf = append(buf, m.Vote...)
	buf = append(buf, m.ChallengeNonce.Bytes()...)
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(m.TimestampUnix))
	buf = append(buf, ts...)
	return buf
}

// KeyPair is a validator's Ed25519 signing identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateKeyPair derives a fresh Ed25519 key pair from a seed (32
// bytes). Callers wanting process randomness should pass crypto/rand
// output as seed.
func GenerateKeyPair(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing: seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Sign produces the signature bytes over the response message.
func (k *KeyPair) Sign(m ResponseMessage) []byte {
	return ed25519.Sign(k.private, encode(m))
}

// SignRaw signs an arbitrary already domain-separated message, for
// signature schemes outside the HAT vote (e.g. VALIDATOR_ANNOUNCE's
// signature over its own address hash).
func (k *KeyPair) SignRaw(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Verify reports whether sig is a valid signature by pubKey over m.
func Verify(pubKey []byte, m ResponseMessage, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, encode(m), sig)
}

// DeriveAddress derives the validator address bound to a public key: the
// low 20 bytes of its Keccak256 digest, the same convention the pack
// uses for account addresses everywhere else (go-ethereum's crypto.Keccak256).
func DeriveAddress(pubKey []byte) types.Address {
	digest := crypto.Keccak256(pubKey)
	return types.BytesToAddress(digest[12:])
}

// VerifyResponse checks both the signature and that the embedded public
// key's derived address matches the claimed validator address.
func VerifyResponse(resp types.ValidationResponse) bool {
	if DeriveAddress(resp.ValidatorPubKey) != resp.Validator {
		return false
	}
	m := ResponseMessage{
		TxHash:          resp.TxHash,
		Validator:       resp.Validator,
		CalculatedScore: resp.CalculatedScore,
		Vote:            resp.Vote,
		ChallengeNonce:  resp.ChallengeNonce,
		TimestampUnix:   resp.Timestamp.Unix(),
	}
	return Verify(resp.ValidatorPubKey, m, resp.Signature)
}
