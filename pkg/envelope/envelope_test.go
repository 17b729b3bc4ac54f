package envelope

import (
	"bytes"
	"reflect"
	"testing"
)

func addr(b byte) (a [20]byte) {
	a[19] = b
	return
}

func hash(b byte) (h [32]byte) {
	h[31] = b
	return
}

// TestRoundTrip checks the §8 round-trip law — parse(build(op, body)) ==
// (op, body) — for every op type with a representative body.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		op   OpType
		body any
		out  any
	}{
		{OpDeploy, DeployBody{Deployer: addr(1), CodeHash: hash(2), GasLimit: 21000, Nonce: 1}, &DeployBody{}},
		{OpCall, CallBody{Caller: addr(1), Contract: addr(2), Value: 10, GasLimit: 21000, InputHash: hash(3)}, &CallBody{}},
		{OpSimpleVote, SimpleVoteBody{Validator: addr(1), TxHash: hash(4), CalculatedScore: 7800, Vote: 0, ChallengeNonce: hash(5)}, &SimpleVoteBody{}},
		{OpTrustEdge, TrustEdgeBody{From: addr(1), To: addr(2), Weight: -50, Bond: 1000}, &TrustEdgeBody{}},
		{OpBondedVote, BondedVoteBody{SimpleVoteBody: SimpleVoteBody{Validator: addr(1), TxHash: hash(4), CalculatedScore: 9000, Vote: 1, ChallengeNonce: hash(6)}, Bond: 500}, &BondedVoteBody{}},
		{OpDispute, DisputeBody{DisputeID: hash(7), Sender: addr(3)}, &DisputeBody{}},
		{OpDAOVote, DAOVoteBody{Voter: addr(4), DisputeID: hash(7), Approve: 1}, &DAOVoteBody{}},
		{OpEVMDeploy, EVMDeployBody{Deployer: addr(1), CodeHash: hash(8), GasLimit: 3000000, Value: 0}, &EVMDeployBody{}},
		{OpEVMCall, EVMCallBody{Caller: addr(1), Contract: addr(2), Value: 0, GasLimit: 100000, InputHash: hash(9)}, &EVMCallBody{}},
	}

	for _, c := range cases {
		raw, err := Build(c.op, c.body)
		if err != nil {
			t.Fatalf("Build(0x%02x): %v", c.op, err)
		}
		gotOp, err := Decode(raw, c.out)
		if err != nil {
			t.Fatalf("Decode(0x%02x): %v", c.op, err)
		}
		if gotOp != c.op {
			t.Errorf("op round-trip mismatch: got 0x%02x, want 0x%02x", gotOp, c.op)
		}
		got := reflect.Indirect(reflect.ValueOf(c.out)).Interface()
		if !reflect.DeepEqual(got, c.body) {
			t.Errorf("body round-trip mismatch for op 0x%02x: got %+v, want %+v", c.op, got, c.body)
		}
	}
}

func TestBuildRejectsInvalidOp(t *testing.T) {
	if _, err := Build(OpType(0x00), DeployBody{}); err == nil {
		t.Fatal("expected error for op 0x00")
	}
	if _, err := Build(OpType(0x0a), DeployBody{}); err == nil {
		t.Fatal("expected error for op 0x0a")
	}
}

func TestBuildRejectsOversizeBody(t *testing.T) {
	type oversized struct {
		Data [100]byte
	}
	if _, err := Build(OpDeploy, oversized{}); err == nil {
		t.Fatal("expected oversize body to be rejected")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw, err := Build(OpDeploy, DeployBody{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	corrupt := bytes.Clone(raw)
	corrupt[0] = 'X'
	if _, _, err := Parse(corrupt); err == nil {
		t.Fatal("expected bad magic to be rejected")
	}
}

func TestParseRejectsTooShort(t *testing.T) {
	if _, _, err := Parse([]byte{'C', 'V', 'M'}); err == nil {
		t.Fatal("expected too-short envelope to be rejected")
	}
}

func TestParseRejectsInvalidOp(t *testing.T) {
	raw := append(append([]byte{}, Magic[:]...), 0xff)
	if _, _, err := Parse(raw); err == nil {
		t.Fatal("expected invalid op byte to be rejected")
	}
}
