package signing

import (
	"bytes"
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

func fixedSeed(b byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(fixedSeed(7))
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := ResponseMessage{
		TxHash:          types.BytesToHash([]byte("tx")),
		Validator:       DeriveAddress(kp.Public),
		CalculatedScore: 71.5,
		Vote:            types.VoteAccept,
		ChallengeNonce:  types.BytesToHash([]byte("nonce")),
		TimestampUnix:   time.Now().Unix(),
	}
	sig := kp.Sign(msg)
	if !Verify(kp.Public, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	msg.CalculatedScore = 99
	if Verify(kp.Public, msg, sig) {
		t.Fatal("expected signature over mutated message to fail")
	}
}

func TestVerifyResponseRejectsMismatchedAddress(t *testing.T) {
	kp, _ := GenerateKeyPair(fixedSeed(3))
	resp := types.ValidationResponse{
		TxHash:          types.BytesToHash([]byte("tx")),
		Validator:       types.BytesToAddress([]byte{0xAA}),
		CalculatedScore: 50,
		Vote:            types.VoteAccept,
		ChallengeNonce:  types.BytesToHash([]byte("n")),
		ValidatorPubKey: kp.Public,
		Timestamp:       time.Now(),
	}
	msg := ResponseMessage{
		TxHash:          resp.TxHash,
		Validator:       resp.Validator,
		CalculatedScore: resp.CalculatedScore,
		Vote:            resp.Vote,
		ChallengeNonce:  resp.ChallengeNonce,
		TimestampUnix:   resp.Timestamp.Unix(),
	}
	resp.Signature = kp.Sign(msg)
	if VerifyResponse(resp) {
		t.Fatal("expected mismatched derived address to fail verification")
	}

	resp.Validator = DeriveAddress(kp.Public)
	msg.Validator = resp.Validator
	resp.Signature = kp.Sign(msg)
	if !VerifyResponse(resp) {
		t.Fatal("expected matching address+signature to verify")
	}
	if bytes.Equal(resp.Signature, make([]byte, len(resp.Signature))) {
		t.Fatal("signature should not be all-zero")
	}
}
