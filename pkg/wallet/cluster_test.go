package wallet

import (
	"testing"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestClusterOfUnlinkedIsSingleton(t *testing.T) {
	c, err := New(kv.NewMemStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cl := c.ClusterOf(addr(1))
	if cl.Size() != 1 || cl.Confidence != 1.0 {
		t.Fatalf("expected confident singleton cluster, got %+v", cl)
	}
}

func TestLinkMergesClusters(t *testing.T) {
	c, err := New(kv.NewMemStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b, d := addr(1), addr(2), addr(3)
	if err := c.Link(a, b, 100); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := c.Link(b, d, 100); err != nil {
		t.Fatalf("Link: %v", err)
	}

	cl := c.ClusterOf(a)
	if cl.Size() != 3 {
		t.Fatalf("expected 3-member cluster, got %d", cl.Size())
	}
	if _, ok := cl.Members[d]; !ok {
		t.Fatalf("expected d to be transitively merged into cluster")
	}
}

func TestConfidenceDegradesWithSize(t *testing.T) {
	c, err := New(kv.NewMemStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root := addr(0)
	prevConfidence := 1.0
	for i := byte(1); i <= 20; i++ {
		if err := c.Link(root, addr(i), 0); err != nil {
			t.Fatalf("Link: %v", err)
		}
	}
	cl := c.ClusterOf(root)
	if cl.Confidence >= prevConfidence {
		t.Fatalf("expected confidence to degrade below 1.0 for large cluster, got %v", cl.Confidence)
	}
	if cl.Confidence < 0 || cl.Confidence > 1 {
		t.Fatalf("confidence out of [0,1]: %v", cl.Confidence)
	}
}

func TestHighVolumeBoostsConfidence(t *testing.T) {
	low, err := New(kv.NewMemStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	high, err := New(kv.NewMemStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b := addr(1), addr(2)
	if err := low.Link(a, b, 0); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := high.Link(a, b, 1_000_000); err != nil {
		t.Fatalf("Link: %v", err)
	}

	lowConf := low.ClusterOf(a).Confidence
	highConf := high.ClusterOf(a).Confidence
	if highConf <= lowConf {
		t.Fatalf("expected high volume to boost confidence: low=%v high=%v", lowConf, highConf)
	}
}
