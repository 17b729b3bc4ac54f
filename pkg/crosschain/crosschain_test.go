package crosschain

import (
	"testing"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/types"
)

func newTestHub(t *testing.T) (*Hub, *signing.KeyPair) {
	t.Helper()
	store := kv.NewMemStore()
	rep := reputation.New(store)
	seed := make([]byte, 32)
	seed[0] = 9
	kp, err := signing.GenerateKeyPair(seed)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	strategy := signing.NewEd25519Strategy(kp)
	chains := []ChainInfo{{ChainID: 1, Name: "ethereum", RPCURL: "https://example.invalid"}}
	return New(rep, strategy, 99, chains), kp
}

func TestGetSupportedChains(t *testing.T) {
	hub, _ := newTestHub(t)
	chains := hub.GetSupportedChains()
	if len(chains) != 1 || chains[0].ChainID != 1 {
		t.Fatalf("expected one configured chain, got %+v", chains)
	}
}

func TestGenerateAndVerifyTrustProof(t *testing.T) {
	hub, kp := newTestHub(t)
	addr := types.BytesToAddress([]byte{0x55})

	proof, err := hub.GenerateTrustProof(addr, kp.Public)
	if err != nil {
		t.Fatalf("GenerateTrustProof: %v", err)
	}
	if !hub.VerifyTrustProof(proof) {
		t.Fatal("expected freshly generated proof to verify")
	}

	tampered := *proof
	tampered.ReputationSnapshot += 1
	if hub.VerifyTrustProof(&tampered) {
		t.Fatal("expected tampered proof to fail verification")
	}

	stats := hub.GetCrossChainStats()
	if stats.ProofsGenerated != 1 || stats.ProofsVerified != 1 || stats.VerifyFailures != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendTrustAttestationCountsSends(t *testing.T) {
	hub, kp := newTestHub(t)
	proof, err := hub.GenerateTrustProof(types.BytesToAddress([]byte{0x1}), kp.Public)
	if err != nil {
		t.Fatalf("GenerateTrustProof: %v", err)
	}
	hub.SendTrustAttestation(proof)
	hub.SendTrustAttestation(proof)
	if stats := hub.GetCrossChainStats(); stats.AttestationsSent != 2 {
		t.Fatalf("expected 2 attestations sent, got %d", stats.AttestationsSent)
	}
}
