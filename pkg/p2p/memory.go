package p2p

import (
	"context"
	"sync"

	"github.com/certen/trustvm/pkg/types"
)

// MemoryNetwork is an in-process Network double: ForEachPeer dispatches
// directly to each registered handler instead of crossing HTTP, the way
// pkg/kv's in-memory store stands in for the real KV backend in tests.
type MemoryNetwork struct {
	mu       sync.RWMutex
	peers    map[types.Address]Peer
	handlers map[types.Address]func(Envelope)
}

// NewMemoryNetwork constructs an empty MemoryNetwork.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		peers:    make(map[types.Address]Peer),
		handlers: make(map[types.Address]func(Envelope)),
	}
}

// Join registers a peer and the handler that receives broadcast/pushed
// envelopes addressed to it.
func (m *MemoryNetwork) Join(p Peer, handler func(Envelope)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Active = true
	m.peers[p.ID] = p
	m.handlers[p.ID] = handler
}

func (m *MemoryNetwork) ForEachPeer(ctx context.Context, send func(ctx context.Context, peer Peer) error) error {
	m.mu.RLock()
	peers := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.Active {
			peers = append(peers, p)
		}
	}
	m.mu.RUnlock()
	for _, p := range peers {
		if err := send(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryNetwork) PushToPeer(ctx context.Context, id types.Address, env Envelope) error {
	m.mu.RLock()
	handler, ok := m.handlers[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	handler(env)
	return nil
}

// DeliverToAll invokes every registered handler with env directly —
// the test-side equivalent of an HTTP broadcast fan-out.
func (m *MemoryNetwork) DeliverToAll(env Envelope) {
	m.mu.RLock()
	handlers := make([]func(Envelope), 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}
