package gas

import (
	"testing"

	"github.com/certen/trustvm/pkg/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestOpcodeCostDiscountBounds(t *testing.T) {
	full := OpcodeCost(1000, TrustContext{Reputation: 0})
	half := OpcodeCost(1000, TrustContext{Reputation: 100})
	if full != 1000 {
		t.Fatalf("expected no discount at reputation 0, got %d", full)
	}
	if half != 500 {
		t.Fatalf("expected 50%% discount at reputation 100, got %d", half)
	}
}

func TestOpcodeCostNeverBelowFloor(t *testing.T) {
	cost := OpcodeCost(1000, TrustContext{Reputation: 100})
	if cost < 100 {
		t.Fatalf("cost %d fell below 10%% floor", cost)
	}
}

func TestFreeAllowanceEligibility(t *testing.T) {
	if FreeAllowance(79) != 0 {
		t.Fatalf("expected no allowance below 80")
	}
	if FreeAllowance(80) != 1_000_000 {
		t.Fatalf("expected 1,000,000 at reputation 80, got %d", FreeAllowance(80))
	}
	if FreeAllowance(100) != 5_000_000 {
		t.Fatalf("expected 5,000,000 at reputation 100, got %d", FreeAllowance(100))
	}
}

func TestThresholdCheck(t *testing.T) {
	if ThresholdCheck(40, OpHighFrequency) {
		t.Fatalf("expected reputation 40 to fail HIGH_FREQUENCY threshold (50)")
	}
	if !ThresholdCheck(60, OpHighFrequency) {
		t.Fatalf("expected reputation 60 to pass HIGH_FREQUENCY threshold")
	}
}

func TestCallDiscountTiers(t *testing.T) {
	if d := CallDiscount(CallRegular, 85); d != 0.50 {
		t.Fatalf("expected CALL discount 0.50 at rep 85, got %v", d)
	}
	if d := CallDiscount(CallRegular, 65); d != 0.75 {
		t.Fatalf("expected CALL discount 0.75 at rep 65, got %v", d)
	}
	if d := CallDiscount(CallDelegate, 50); d != 1.50 {
		t.Fatalf("expected DELEGATECALL surcharge 1.50 below 60, got %v", d)
	}
}

func TestCongestionMultiplierClamped(t *testing.T) {
	p := New()
	for h := uint64(0); h < 150; h++ {
		p.RecordBlockGas(h, 60_000_000) // 4x target, should clamp at 2.0
	}
	if m := p.CurrentPriceMultiplier(); m != 2.0 {
		t.Fatalf("expected multiplier clamped to 2.0, got %v", m)
	}
}

func TestPriceGuaranteeOverridesComputedPrice(t *testing.T) {
	p := New()
	a := addr(1)
	p.SetGuarantee(a, PriceGuarantee{Price: 42, ExpirationBlk: 1000, MinReputation: 50})

	price := p.Price(a, 60, 0)
	if price != 42 {
		t.Fatalf("expected guaranteed price 42, got %d", price)
	}

	p.PruneGuarantees(1000)
	pruned := p.Price(a, 60, 0)
	if pruned == 42 {
		t.Fatalf("expected guarantee to be pruned after expiration")
	}
}

func TestCommunityPoolDrawRequiresReputation(t *testing.T) {
	p := New()
	p.CreatePool("pool1", 1000)
	if err := p.DrawFromPool("pool1", 20, 100); err == nil {
		t.Fatalf("expected draw to fail below reputation 30")
	}
	if err := p.DrawFromPool("pool1", 30, 100); err != nil {
		t.Fatalf("DrawFromPool: %v", err)
	}
	bal, ok := p.PoolBalance("pool1")
	if !ok || bal != 900 {
		t.Fatalf("expected remaining balance 900, got %d ok=%v", bal, ok)
	}
}

func TestDrawFromPoolInsufficientBalance(t *testing.T) {
	p := New()
	p.CreatePool("pool1", 50)
	if err := p.DrawFromPool("pool1", 50, 100); err == nil {
		t.Fatalf("expected insufficient-balance error")
	}
}
