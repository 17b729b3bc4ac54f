// Package chainctx defines the "current block context" collaborator the
// core consumes (spec.md §1, §4.8): current height, tip hash, tip time,
// and — in regtest builds only — the mining/time-travel helpers the RPC
// surface's snapshot/revert/mine group needs.
//
// Grounded on pkg/anchor/event_watcher.go's notion of chain head
// tracking, narrowed to the read-only accessor the execution and
// consensus layers need rather than the full event-subscription
// machinery (that belongs to the block/chain layer, out of scope per
// spec.md §1).
package chainctx

import "github.com/certen/trustvm/pkg/types"

// Context is the block/chain layer's read-only accessor. The Enhanced VM
// Coordinator and HAT Consensus Validator consume it by interface; no
// package holds a process-global chain handle (spec.md §9).
type Context interface {
	Height() uint64
	TipHash() types.Hash
	TipTime() int64
}

// Static is a fixed Context snapshot, the shape the block layer hands
// the core for one block's processing pass.
type Static struct {
	HeightVal  uint64
	TipHashVal types.Hash
	TipTimeVal int64
}

func (s Static) Height() uint64      { return s.HeightVal }
func (s Static) TipHash() types.Hash { return s.TipHashVal }
func (s Static) TipTime() int64      { return s.TipTimeVal }
