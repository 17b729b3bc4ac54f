package hatconsensus

import (
	"sync"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

// RateLimitWindow and RateLimitMax implement the §3/§5 per-validator
// message cap: at most 100 messages in a fixed 60s window, which restarts
// with the first message after the previous window has run out.
const (
	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 100
)

// RateLimiter tracks per-validator message windows in memory — shared,
// mutex-guarded state, not persisted (spec.md §5).
type RateLimiter struct {
	mu    sync.Mutex
	state map[types.Address]*types.RateLimitState
}

// NewRateLimiter constructs an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{state: make(map[types.Address]*types.RateLimitState)}
}

// Allow records one message from validator at now and reports whether it
// falls within the rate limit.
func (r *RateLimiter) Allow(validator types.Address, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.state[validator]
	if !ok || now.Sub(s.WindowStart) >= RateLimitWindow {
		s = &types.RateLimitState{WindowStart: now}
		r.state[validator] = s
	}
	s.MessageCount++
	s.LastMessageTime = now
	return s.MessageCount <= RateLimitMax
}
