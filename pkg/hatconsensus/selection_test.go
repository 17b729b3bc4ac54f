package hatconsensus

import (
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

func pool(n int) []types.Address {
	out := make([]types.Address, n)
	for i := range out {
		var a types.Address
		a[19] = byte(i + 1)
		a[18] = byte(i / 256)
		out[i] = a
	}
	return out
}

func TestSelectValidatorsDeterministic(t *testing.T) {
	txHash := types.BytesToHash([]byte("some-tx"))
	p := pool(40)

	a := SelectValidators(txHash, 100, p, nil)
	b := SelectValidators(txHash, 100, p, nil)

	if len(a) != MinValidators || len(b) != MinValidators {
		t.Fatalf("expected %d validators, got %d and %d", MinValidators, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("selection not deterministic at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSelectValidatorsDiffersAcrossBlockHeight(t *testing.T) {
	txHash := types.BytesToHash([]byte("some-tx"))
	p := pool(40)
	a := SelectValidators(txHash, 100, p, nil)
	b := SelectValidators(txHash, 101, p, nil)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected a different block height to change the selected set")
	}
}

func TestSelectValidatorsSmallPoolReturnsAll(t *testing.T) {
	txHash := types.BytesToHash([]byte("tx"))
	p := pool(5)
	sel := SelectValidators(txHash, 1, p, nil)
	if len(sel) != 5 {
		t.Fatalf("expected all 5 eligible validators selected, got %d", len(sel))
	}
}

func TestDeterministicNonceStable(t *testing.T) {
	txHash := types.BytesToHash([]byte("tx"))
	now := time.Now()
	n1 := DeterministicNonce(txHash, 10, now)
	n2 := DeterministicNonce(txHash, 10, now)
	if n1 != n2 {
		t.Fatal("expected identical nonce for identical inputs")
	}
	n3 := DeterministicNonce(txHash, 11, now)
	if n1 == n3 {
		t.Fatal("expected nonce to change with block height")
	}
}
