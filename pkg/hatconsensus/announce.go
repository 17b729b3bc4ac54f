package hatconsensus

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/types"
)

// AnnounceDomain domain-separates a VALIDATOR_ANNOUNCE signature from the
// HAT vote signature (signing.ResponseDomain) and any other signed
// message this protocol defines.
const AnnounceDomain = "TRUSTVM_VALIDATOR_ANNOUNCE_V1"

// ValidatorAnnounce is the §6.2 VALIDATOR_ANNOUNCE payload: it binds a
// validator address to a peer identity by signing over the address's own
// hash with the key that derives it.
type ValidatorAnnounce struct {
	ValidatorAddress    types.Address `json:"validator_address"`
	PublicKey           []byte        `json:"public_key"`
	SignatureOverHash   []byte        `json:"signature_over_address_hash"`
}

// SignAnnounce builds a ValidatorAnnounce for self, signed by signer.
func SignAnnounce(self types.Address, signer *signing.KeyPair) ValidatorAnnounce {
	msg := append([]byte(AnnounceDomain), self.Bytes()...)
	return ValidatorAnnounce{
		ValidatorAddress:  self,
		PublicKey:         append([]byte(nil), signer.Public...),
		SignatureOverHash: signer.SignRaw(msg),
	}
}

// VerifyAnnounce checks that a's signature is valid for the embedded
// public key, and that the public key derives the claimed address.
func VerifyAnnounce(a ValidatorAnnounce) bool {
	if len(a.PublicKey) != ed25519.PublicKeySize || len(a.SignatureOverHash) != ed25519.SignatureSize {
		return false
	}
	if signing.DeriveAddress(a.PublicKey) != a.ValidatorAddress {
		return false
	}
	msg := append([]byte(AnnounceDomain), a.ValidatorAddress.Bytes()...)
	return ed25519.Verify(a.PublicKey, msg, a.SignatureOverHash)
}

// ValidatorRegistration is the persisted record a verified
// VALIDATOR_ANNOUNCE produces, stored under kv.ValidatorRegistrationKey
// (distinct from the live ValidatorStats kept under kv.ValidatorStatsKey:
// this is the identity binding, not the accuracy/reputation bookkeeping).
type ValidatorRegistration struct {
	Address      types.Address `json:"address"`
	PublicKey    []byte        `json:"public_key"`
	RegisteredAt time.Time     `json:"registered_at"`
}

// RegisterAnnounce persists a's identity binding and a peer-map entry for
// it (spec.md §5: "validator-peer map: registered on peer
// VALIDATOR_ANNOUNCE"). Returns an error only for an invalid signature or
// a store failure; re-announcing an already-known validator just
// refreshes the timestamp.
func RegisterAnnounce(store kv.Store, a ValidatorAnnounce) error {
	if !VerifyAnnounce(a) {
		return fmt.Errorf("hatconsensus: invalid VALIDATOR_ANNOUNCE signature for %s", a.ValidatorAddress)
	}
	reg := ValidatorRegistration{Address: a.ValidatorAddress, PublicKey: a.PublicKey, RegisteredAt: time.Now()}
	raw, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	if err := store.Set(kv.ValidatorRegistrationKey(a.ValidatorAddress), raw); err != nil {
		return err
	}
	return store.Set(kv.ValidatorPeerKey(a.ValidatorAddress), raw)
}

// GetRegistration loads a previously persisted registration, or nil if
// the validator never announced.
func GetRegistration(store kv.Store, addr types.Address) (*ValidatorRegistration, error) {
	raw, err := store.Get(kv.ValidatorRegistrationKey(addr))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var reg ValidatorRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("hatconsensus: unmarshal registration for %s: %w", addr, err)
	}
	return &reg, nil
}

// Dispatch's VALIDATOR_ANNOUNCE branch lives here rather than in
// responder.go's Coordinator.Dispatch, keeping the identity-binding
// concern's persistence logic next to its type definitions.
func (c *Coordinator) dispatchAnnounce(env p2p.Envelope) error {
	var a ValidatorAnnounce
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return fmt.Errorf("hatconsensus: dispatch: unmarshal announce: %w", err)
	}
	return RegisterAnnounce(c.store, a)
}
