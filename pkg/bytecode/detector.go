// Package bytecode implements the Bytecode Format Detector (C1):
// classifying raw contract bytecode as native, EVM, hybrid, or unknown,
// with a hash-keyed result cache.
//
// Grounded on pkg/merkle/tree.go's sync.RWMutex-guarded in-memory cache
// plus content-hash keying idiom, applied here to classification results
// instead of Merkle leaves.
package bytecode

import (
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/trustvm/pkg/types"
)

// nativeMagic is the leading byte sequence the native VM's compiler
// emits; any bytecode beginning with it is unambiguously NATIVE.
var nativeMagic = []byte{0x4E, 0x56, 0x4D, 0x31} // "NVM1"

// minBytecodeLen is the minimum length below which detection returns
// UNKNOWN with low confidence rather than guessing.
const minBytecodeLen = 4

// These opcode constants are byte values that only appear in valid EVM bytecode
// in the positions the detector scans (PUSH32, KECCAK256/SHA3, CALL).
const (
	opPush32 = 0x7F
	opSHA3   = 0x20
	opCall   = 0xF1
)

// Result is a cached classification outcome.
type Result struct {
	Format     types.BytecodeFormat
	Confidence float64
}

// Detector classifies bytecode and caches results by content hash.
type Detector struct {
	mu    sync.RWMutex
	cache map[types.Hash]Result
}

// New constructs an empty Detector.
func New() *Detector {
	return &Detector{cache: make(map[types.Hash]Result)}
}

// Detect classifies code, consulting (and populating) the cache keyed by
// Keccak256(code).
func (d *Detector) Detect(code []byte) Result {
	key := types.BytesToHash(crypto.Keccak256(code))
	if r, ok := d.CacheLookup(key); ok {
		return r
	}
	r := classify(code)
	d.CacheStore(key, r)
	return r
}

// CacheLookup returns a previously-stored classification for hash, if any.
func (d *Detector) CacheLookup(hash types.Hash) (Result, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.cache[hash]
	return r, ok
}

// CacheStore records a classification for hash.
func (d *Detector) CacheStore(hash types.Hash, r Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[hash] = r
}

// classify applies the ordered decision rules from §4.1: native magic
// prefix, then EVM-only opcode presence, then hybrid, then unknown.
func classify(code []byte) Result {
	if len(code) < minBytecodeLen {
		return Result{Format: types.FormatUnknown, Confidence: 0.1}
	}

	isNative := hasNativeMagic(code)
	isEVM := hasEVMOpcodes(code)

	switch {
	case isNative && isEVM:
		return Result{Format: types.FormatHybrid, Confidence: 0.9}
	case isNative:
		return Result{Format: types.FormatNative, Confidence: 0.99}
	case isEVM:
		return Result{Format: types.FormatEVM, Confidence: 0.95}
	default:
		return Result{Format: types.FormatUnknown, Confidence: 0.2}
	}
}

func hasNativeMagic(code []byte) bool {
	if len(code) < len(nativeMagic) {
		return false
	}
	for i, b := range nativeMagic {
		if code[i] != b {
			return false
		}
	}
	return true
}

// hasEVMOpcodes scans for PUSH32/SHA3/CALL appearing in a structurally
// plausible position: a PUSH32 must be followed by at least 32 operand
// bytes still inside the buffer, which rules out the opcode value simply
// showing up as PUSH-immediate data in some other encoding.
func hasEVMOpcodes(code []byte) bool {
	seenPush32, seenSHA3, seenCall := false, false, false
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case opPush32:
			if i+32 < len(code) {
				seenPush32 = true
				i += 32
			}
		case opSHA3:
			seenSHA3 = true
		case opCall:
			seenCall = true
		}
	}
	return seenPush32 || seenSHA3 || seenCall
}
