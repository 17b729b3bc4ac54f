package opcodepolicy

import (
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/types"
)

func TestJumpAllowedTiers(t *testing.T) {
	if !JumpAllowed(85, 9000, 10000) {
		t.Fatalf("expected full-range jump allowed at reputation 85")
	}
	if JumpAllowed(50, 9000, 10000) {
		t.Fatalf("expected jump past half range rejected at reputation 50")
	}
	if !JumpAllowed(50, 4000, 10000) {
		t.Fatalf("expected jump within half range allowed at reputation 50")
	}
	if JumpAllowed(10, 3000, 10000) {
		t.Fatalf("expected jump past quarter range rejected below 40")
	}
	if JumpAllowed(99, 10000, 10000) {
		t.Fatalf("expected destination >= bytecodeLen always rejected")
	}
}

func TestLoopIterationCapMonotonic(t *testing.T) {
	prev := uint64(0)
	for _, rep := range []float64{10, 35, 45, 55, 65, 75, 85, 95} {
		cap := LoopIterationCap(rep)
		if cap <= prev {
			t.Fatalf("expected cap to increase with reputation: rep=%v cap=%d prev=%d", rep, cap, prev)
		}
		prev = cap
	}
}

func TestCallAllowedValueGate(t *testing.T) {
	v := uint256.NewInt(1)
	if CallAllowed("CALL", 50, v) {
		t.Fatalf("expected CALL with value to require reputation >= 60")
	}
	if !CallAllowed("CALL", 60, v) {
		t.Fatalf("expected CALL with value allowed at reputation 60")
	}
	if !CallAllowed("CALL", 45, uint256.NewInt(0)) {
		t.Fatalf("expected zero-value CALL allowed at reputation 45")
	}
}

func TestArithmeticDivisionByZero(t *testing.T) {
	res := Div(uint256.NewInt(5), uint256.NewInt(0))
	if !res.IsZero() {
		t.Fatalf("expected division by zero to return zero")
	}
}

func TestMulOverflowMediumTierZeroes(t *testing.T) {
	max := new(uint256.Int).Not(uint256.NewInt(0))
	res := Mul(50, max, uint256.NewInt(2))
	if !res.IsZero() {
		t.Fatalf("expected overflow at medium reputation tier to return zero")
	}
}

func TestRegionSetProtectedAccess(t *testing.T) {
	rs := NewRegionSet()
	creator := types.Address{1}
	other := types.Address{2}
	id, err := rs.CreateRegion(75, types.TrustTaggedRegion{
		Offset: 0, Size: 100, MinReputation: 50, Creator: creator, IsProtected: true,
	})
	if err != nil || id == 0 {
		t.Fatalf("CreateRegion: id=%d err=%v", id, err)
	}
	if !rs.CheckAccess(creator, 10, 10, 10, true) {
		t.Fatalf("expected creator to always have write access to own protected region")
	}
	if rs.CheckAccess(other, 55, 10, 10, true) {
		t.Fatalf("expected non-creator write to require min_reputation+10=60")
	}
	if !rs.CheckAccess(other, 60, 10, 10, true) {
		t.Fatalf("expected non-creator write allowed at min_reputation+10")
	}
}

func TestWeightedStackGatesPop(t *testing.T) {
	s := NewWeightedStack()
	s.Push([]byte("secret"), 70)
	if _, err := s.Pop(50); err == nil {
		t.Fatalf("expected pop to fail below entry weight")
	}
	if v, err := s.Pop(70); err != nil || string(v) != "secret" {
		t.Fatalf("expected pop to succeed at entry weight: v=%s err=%v", v, err)
	}
}

func TestSortedArrayLazySortDescending(t *testing.T) {
	a := NewSortedArray(0)
	a.Insert([]byte("low"), 1)
	a.Insert([]byte("high"), 99)
	a.Insert([]byte("mid"), 50)

	v, err := a.Read(0, 0)
	if err != nil || string(v) != "high" {
		t.Fatalf("expected first entry after sort to be highest-weight: v=%s err=%v", v, err)
	}
}

func TestSortedArrayAccessGate(t *testing.T) {
	a := NewSortedArray(50)
	a.Insert([]byte("x"), 1)
	if _, err := a.Read(10, 0); err == nil {
		t.Fatalf("expected access below min_access_reputation to fail")
	}
}

func TestRecoveryOutOfGasTiers(t *testing.T) {
	o := Recover(types.KindOutOfGas, 85, 1000, 0)
	if o.RefundGas != 100 {
		t.Fatalf("expected 10%% refund at reputation 85, got %d", o.RefundGas)
	}
	o = Recover(types.KindOutOfGas, 30, 1000, 0)
	if o.RefundGas != 0 {
		t.Fatalf("expected no refund below 60")
	}
}

func TestRecoveryStackOverflowConsumesBelow40(t *testing.T) {
	o := Recover(types.KindStackOverflow, 20, 0, 5000)
	if !o.ConsumeRemaining {
		t.Fatalf("expected remaining gas consumed for stack overflow below 40")
	}
}

func TestTrustEnhancedHashDeterministic(t *testing.T) {
	caller := types.Address{9}
	ts := time.Now().Unix()
	h1 := TrustEnhancedHash(80, caller, ts, []byte("payload"))
	h2 := TrustEnhancedHash(80, caller, ts, []byte("payload"))
	if h1 != h2 {
		t.Fatalf("expected identical inputs to produce identical hash")
	}
}

func TestDeriveKeyLengthScalesWithReputation(t *testing.T) {
	if len(DeriveKey(90, []byte("seed"))) != 32 {
		t.Fatalf("expected 32-byte key at reputation 90")
	}
	if len(DeriveKey(10, []byte("seed"))) != 12 {
		t.Fatalf("expected 12-byte key below 40")
	}
}

func TestVerifySignatureShapeRejectsAllZeroBelow40(t *testing.T) {
	zeroSig := make([]byte, 65)
	if VerifySignatureShape(30, zeroSig, 0) {
		t.Fatalf("expected all-zero signature rejected below reputation 40")
	}
}

func TestCheckCryptoOpcodeECPairingGate(t *testing.T) {
	if CheckCryptoOpcode(CryptoECPairing, 50).Allowed {
		t.Fatalf("expected ECPAIRING rejected below reputation 60")
	}
	if !CheckCryptoOpcode(CryptoECPairing, 60).Allowed {
		t.Fatalf("expected ECPAIRING allowed at reputation 60")
	}
}
