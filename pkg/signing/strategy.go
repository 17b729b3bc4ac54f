package signing

import (
	"fmt"

	blscore "github.com/certen/trustvm/pkg/crypto/bls"
)

// Strategy is a pluggable validation-response signing scheme. Ed25519 is
// the default (matches the §3 validator_pubkey/signature field widths);
// BLS12-381 is available for deployments that want to aggregate many
// validators' responses into a single signature before broadcast.
//
// Grounded on pkg/attestation/strategy's pluggable signer selection,
// narrowed to the two concrete schemes the pack carries real crypto for.
type Strategy interface {
	// Name identifies the scheme, used as a tag alongside stored signatures.
	Name() string
	Sign(m ResponseMessage) []byte
	Verify(pubKey []byte, m ResponseMessage, sig []byte) bool
}

// Ed25519Strategy wraps the package-level Ed25519 functions.
type Ed25519Strategy struct {
	keys *KeyPair
}

// NewEd25519Strategy builds a Strategy backed by an existing key pair.
func NewEd25519Strategy(keys *KeyPair) *Ed25519Strategy {
	return &Ed25519Strategy{keys: keys}
}

func (s *Ed25519Strategy) Name() string { return "ed25519" }

func (s *Ed25519Strategy) Sign(m ResponseMessage) []byte {
	return s.keys.Sign(m)
}

func (s *Ed25519Strategy) Verify(pubKey []byte, m ResponseMessage, sig []byte) bool {
	return Verify(pubKey, m, sig)
}

// BLSStrategy signs response messages with a BLS12-381 private key,
// enabling downstream aggregation of many validators' responses into one
// signature via pkg/crypto/bls.AggregateSignatures.
type BLSStrategy struct {
	key *blscore.PrivateKey
}

// NewBLSStrategy builds a Strategy from a BLS private key.
func NewBLSStrategy(key *blscore.PrivateKey) (*BLSStrategy, error) {
	if err := blscore.Initialize(); err != nil {
		return nil, fmt.Errorf("signing: bls init: %w", err)
	}
	return &BLSStrategy{key: key}, nil
}

func (s *BLSStrategy) Name() string { return "bls12-381" }

func (s *BLSStrategy) Sign(m ResponseMessage) []byte {
	return s.key.SignWithDomain(encode(m), blscore.DomainAttestation).Bytes()
}

func (s *BLSStrategy) Verify(pubKey []byte, m ResponseMessage, sig []byte) bool {
	pk, err := blscore.PublicKeyFromBytes(pubKey)
	if err != nil {
		return false
	}
	signature, err := blscore.SignatureFromBytes(sig)
	if err != nil {
		return false
	}
	return pk.VerifyWithDomain(signature, encode(m), blscore.DomainAttestation)
}

// AggregateBLS combines per-validator BLS signatures over the same
// message into a single signature, letting a HAT session broadcast one
// aggregate instead of N individual signatures.
func AggregateBLS(sigs [][]byte) ([]byte, error) {
	parsed := make([]*blscore.Signature, 0, len(sigs))
	for _, raw := range sigs {
		sig, err := blscore.SignatureFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("signing: parse bls signature: %w", err)
		}
		parsed = append(parsed, sig)
	}
	agg, err := blscore.AggregateSignatures(parsed)
	if err != nil {
		return nil, fmt.Errorf("signing: aggregate: %w", err)
	}
	return agg.Bytes(), nil
}
