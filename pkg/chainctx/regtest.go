//go:build regtest

// Mock-time and block-mining hooks are compiled only into regtest builds
// (spec.md §9 open question: these are not part of the consensus
// contract and must not ship in production).
package chainctx

import (
	"sync"

	"github.com/certen/trustvm/pkg/types"
)

// Regtest is a mutable Context a test harness can mine blocks on and
// time-travel, backing the RPC surface's snapshot/revert/mine group
// (spec.md §6.3).
type Regtest struct {
	mu        sync.Mutex
	height    uint64
	tipHash   types.Hash
	tipTime   int64
	snapshots map[int]regtestSnapshot
	nextID    int
}

type regtestSnapshot struct {
	height  uint64
	tipHash types.Hash
	tipTime int64
}

// NewRegtest constructs a Regtest context starting at height 0.
func NewRegtest(startTime int64) *Regtest {
	return &Regtest{tipTime: startTime, snapshots: make(map[int]regtestSnapshot)}
}

func (r *Regtest) Height() uint64 { r.mu.Lock(); defer r.mu.Unlock(); return r.height }
func (r *Regtest) TipHash() types.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tipHash
}
func (r *Regtest) TipTime() int64 { r.mu.Lock(); defer r.mu.Unlock(); return r.tipTime }

// Mine advances the chain by n blocks, each one second apart.
func (r *Regtest) Mine(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.height++
		r.tipTime++
		r.tipHash[0]++
	}
}

// SetNextBlockTimestamp pins the timestamp the next mined block will carry.
func (r *Regtest) SetNextBlockTimestamp(ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tipTime = ts - 1
}

// IncreaseTime advances the next block's timestamp by seconds without mining.
func (r *Regtest) IncreaseTime(seconds int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tipTime += seconds
}

// Snapshot saves the current chain state and returns its id.
func (r *Regtest) Snapshot() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.snapshots[id] = regtestSnapshot{r.height, r.tipHash, r.tipTime}
	return id
}

// Revert restores chain state saved under id, if present.
func (r *Regtest) Revert(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[id]
	if !ok {
		return false
	}
	r.height, r.tipHash, r.tipTime = snap.height, snap.tipHash, snap.tipTime
	return true
}
