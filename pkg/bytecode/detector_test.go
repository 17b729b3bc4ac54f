package bytecode

import (
	"testing"

	"github.com/certen/trustvm/pkg/types"
)

func TestDetectNativeMagic(t *testing.T) {
	d := New()
	code := append([]byte{0x4E, 0x56, 0x4D, 0x31}, 0x01, 0x02, 0x03)
	r := d.Detect(code)
	if r.Format != types.FormatNative {
		t.Fatalf("expected NATIVE, got %s", r.Format)
	}
}

func TestDetectUnknownShort(t *testing.T) {
	d := New()
	r := d.Detect([]byte{0x01})
	if r.Format != types.FormatUnknown {
		t.Fatalf("expected UNKNOWN for short input, got %s", r.Format)
	}
}

func TestDetectEVMOpcode(t *testing.T) {
	d := New()
	code := make([]byte, 40)
	code[0] = opSHA3
	r := d.Detect(code)
	if r.Format != types.FormatEVM {
		t.Fatalf("expected EVM, got %s", r.Format)
	}
}

func TestDetectHybrid(t *testing.T) {
	d := New()
	code := append([]byte{0x4E, 0x56, 0x4D, 0x31}, make([]byte, 40)...)
	code[10] = opCall
	r := d.Detect(code)
	if r.Format != types.FormatHybrid {
		t.Fatalf("expected HYBRID, got %s", r.Format)
	}
}

func TestDetectCachesResult(t *testing.T) {
	d := New()
	code := []byte{0x4E, 0x56, 0x4D, 0x31, 0x00}
	first := d.Detect(code)
	second := d.Detect(code)
	if first.Format != second.Format || first.Confidence != second.Confidence {
		t.Fatalf("expected cached result to match: %+v vs %+v", first, second)
	}
}
