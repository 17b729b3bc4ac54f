// Package gas implements the Sustainable Gas Policy (C5): per-opcode base
// costs, a reputation discount curve, a free-gas allowance, a congestion
// multiplier, per-address price guarantees, and community gas pools.
//
// Grounded on pkg/strategy/registry.go's sync.RWMutex-guarded registry
// shape, generalized from strategy lookup tables to gas-economics state.
package gas

import (
	"fmt"
	"sync"

	"github.com/certen/trustvm/pkg/types"
)

// =============================================================================
// OPERATION TYPES & THRESHOLDS
// =============================================================================

// OpType classifies an operation for threshold and discount purposes.
type OpType string

const (
	OpStandard         OpType = "STANDARD"
	OpHighFrequency    OpType = "HIGH_FREQUENCY"
	OpStorageIntensive OpType = "STORAGE_INTENSIVE"
	OpComputeIntensive OpType = "COMPUTE_INTENSIVE"
	OpCrossChain       OpType = "CROSS_CHAIN"
)

// opTypeThreshold is the minimum reputation an operation type requires.
var opTypeThreshold = map[OpType]float64{
	OpStandard:         0,
	OpHighFrequency:    50,
	OpStorageIntensive: 40,
	OpComputeIntensive: 30,
	OpCrossChain:       60,
}

// CallKind names the call-family opcodes subject to discount tiers.
type CallKind string

const (
	CallRegular  CallKind = "CALL"
	CallDelegate CallKind = "DELEGATECALL"
	CallStatic   CallKind = "STATICCALL"
	CallCreate   CallKind = "CREATE"
	CallCreate2  CallKind = "CREATE2"
)

// TrustContext carries the reputation a caller brings to a gas
// computation.
type TrustContext struct {
	Reputation float64
}

// MinGasPerMessage is the floor every message must carry (spec §4.2).
const MinGasPerMessage = 21_000

// congestionWindow is how many trailing blocks feed the congestion
// multiplier.
const congestionWindow = 100

// targetGasPerBlock is the reference load the congestion multiplier
// compares the trailing average against.
const targetGasPerBlock = 15_000_000

// PriceGuarantee overrides the computed gas price for an address until
// expiration.
type PriceGuarantee struct {
	Price         uint64
	ExpirationBlk uint64
	MinReputation float64
}

// Policy holds all mutable gas-economics state: the congestion window,
// price guarantees, and community gas pools.
type Policy struct {
	mu sync.RWMutex

	blockGas    []uint64 // ring buffer, most recent congestionWindow blocks
	blockHeight []uint64

	guarantees map[types.Address]PriceGuarantee
	pools      map[string]*gasPool
}

type gasPool struct {
	balance uint64
}

// New constructs an empty Policy.
func New() *Policy {
	return &Policy{
		guarantees: make(map[types.Address]PriceGuarantee),
		pools:      make(map[string]*gasPool),
	}
}

// =============================================================================
// REPUTATION DISCOUNT CURVE
// =============================================================================

// reputationMultiplier linearly interpolates from 1.0 at reputation 0 to
// 0.5 at reputation 100, clamped to [0.5, 1.0].
func reputationMultiplier(reputation float64) float64 {
	m := 1.0 - reputation/200.0
	if m < 0.5 {
		return 0.5
	}
	if m > 1.0 {
		return 1.0
	}
	return m
}

// OpcodeCost applies the reputation discount curve to an opcode's base
// cost, floored at 10% of base (the free-gas allowance is applied
// separately by the caller).
func OpcodeCost(baseCost uint64, ctx TrustContext) uint64 {
	discounted := float64(baseCost) * reputationMultiplier(ctx.Reputation)
	floor := float64(baseCost) * 0.10
	if discounted < floor {
		discounted = floor
	}
	return uint64(discounted)
}

// StorageCost applies the same discount curve to a storage read/write,
// with writes costed at double the base read rate (EVM convention).
func StorageCost(isWrite bool, ctx TrustContext) uint64 {
	const baseRead = 200
	base := uint64(baseRead)
	if isWrite {
		base *= 2
	}
	return OpcodeCost(base, ctx)
}

// CallDiscount returns the multiplier §4.2 assigns to a call-family
// opcode's gas cost at the given reputation.
func CallDiscount(kind CallKind, reputation float64) float64 {
	switch kind {
	case CallRegular:
		if reputation >= 80 {
			return 0.50
		}
		if reputation >= 60 {
			return 0.75
		}
		return 1.0
	case CallDelegate:
		if reputation < 60 {
			return 1.50
		}
		return 1.0
	case CallCreate, CallCreate2:
		if reputation >= 80 {
			return 0.70
		}
		if reputation < 50 {
			return 1.25
		}
		return 1.0
	case CallStatic:
		if reputation >= 60 {
			return 0.60
		}
		return 0.80
	default:
		return 1.0
	}
}

// =============================================================================
// FREE-GAS ALLOWANCE
// =============================================================================

// FreeAllowance returns the free-gas allowance for reputation ≥ 80,
// scaling linearly from 1,000,000 at 80 to 5,000,000 at 100. Returns 0
// below the eligibility threshold.
func FreeAllowance(reputation float64) uint64 {
	if reputation < 80 {
		return 0
	}
	if reputation > 100 {
		reputation = 100
	}
	return uint64(1_000_000 + (reputation-80)*(4_000_000/20.0))
}

// ThresholdCheck reports whether reputation clears the minimum the given
// operation type requires.
func ThresholdCheck(reputation float64, op OpType) bool {
	min, ok := opTypeThreshold[op]
	if !ok {
		return true
	}
	return reputation >= min
}

// =============================================================================
// CONGESTION & PRICE
// =============================================================================

// RecordBlockGas folds a block's total gas usage into the sliding
// congestion window, evicting the oldest entry once the window is full.
func (p *Policy) RecordBlockGas(height, gasUsed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.blockHeight = append(p.blockHeight, height)
	p.blockGas = append(p.blockGas, gasUsed)
	if len(p.blockGas) > congestionWindow {
		p.blockGas = p.blockGas[1:]
		p.blockHeight = p.blockHeight[1:]
	}
}

// CurrentPriceMultiplier is 0.5 + 0.5*(avg/target), clamped to [0.5, 2.0].
func (p *Policy) CurrentPriceMultiplier() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentPriceMultiplierLocked()
}

func (p *Policy) currentPriceMultiplierLocked() float64 {
	if len(p.blockGas) == 0 {
		return 1.0
	}
	var total uint64
	for _, g := range p.blockGas {
		total += g
	}
	avg := float64(total) / float64(len(p.blockGas))
	m := 0.5 + 0.5*(avg/targetGasPerBlock)
	if m < 0.5 {
		return 0.5
	}
	if m > 2.0 {
		return 2.0
	}
	return m
}

// Price computes the gas price for a reputation/network-load pair,
// applying any live guarantee instead when one exists for the caller.
func (p *Policy) Price(addr types.Address, reputation float64, networkLoad float64) uint64 {
	p.mu.RLock()
	guarantee, ok := p.guarantees[addr]
	mult := p.currentPriceMultiplierLocked()
	p.mu.RUnlock()

	if ok && reputation >= guarantee.MinReputation {
		return guarantee.Price
	}

	base := 1_000.0 * reputationMultiplier(reputation)
	loadFactor := 1.0 + networkLoad/100.0
	return uint64(base * mult * loadFactor)
}

// ShouldPrioritize reports whether a trust context and current network
// load favor prioritizing this transaction (high reputation gets
// priority exactly when the network is under load).
func ShouldPrioritize(ctx TrustContext, networkLoad float64) bool {
	return ctx.Reputation >= 70 && networkLoad >= 50
}

// SetGuarantee registers or replaces a price guarantee for addr until
// expirationBlk.
func (p *Policy) SetGuarantee(addr types.Address, g PriceGuarantee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guarantees[addr] = g
}

// PruneGuarantees drops every guarantee that expired at or before
// currentHeight.
func (p *Policy) PruneGuarantees(currentHeight uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, g := range p.guarantees {
		if g.ExpirationBlk <= currentHeight {
			delete(p.guarantees, addr)
		}
	}
}

// =============================================================================
// COMMUNITY GAS POOLS
// =============================================================================

// CreatePool registers a community gas pool with an initial balance.
func (p *Policy) CreatePool(poolID string, balance uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools[poolID] = &gasPool{balance: balance}
}

// DrawFromPool debits amount from poolID, requiring the caller's
// reputation be at least 30 and the pool hold sufficient balance.
func (p *Policy) DrawFromPool(poolID string, reputation float64, amount uint64) error {
	if reputation < 30 {
		return fmt.Errorf("gas: pool draw requires reputation >= 30, got %.1f", reputation)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[poolID]
	if !ok {
		return fmt.Errorf("gas: unknown pool %q", poolID)
	}
	if pool.balance < amount {
		return fmt.Errorf("gas: pool %q has insufficient balance", poolID)
	}
	pool.balance -= amount
	return nil
}

// PoolBalance returns the current balance of poolID.
func (p *Policy) PoolBalance(poolID string) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.pools[poolID]
	if !ok {
		return 0, false
	}
	return pool.balance, true
}
