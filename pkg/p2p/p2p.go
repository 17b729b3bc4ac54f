// Package p2p defines the broadcast-to-all-peers primitive the HAT
// consensus validator consumes (spec.md §4.8, §6.2) and an HTTP-based
// implementation of it.
//
// spec.md §9 is explicit that the broadcast path, not addressed
// delivery, is correct for HAT challenges: every connected peer receives
// the challenge and self-selects, which defeats targeted censorship and
// eclipse-style selective delivery. Grounded on
// pkg/batch/peer_manager.go's HTTPPeerManager peer-registry shape, with
// SendAttestationRequest's addressed-delivery method replaced by a
// fan-out broadcast plus a narrow PushToPeer for the few message types
// that are inherently addressed (DAO_RESOLUTION back to a disputant).
package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

// MessageType enumerates the peer message kinds spec.md §6.2 names.
type MessageType string

const (
	MsgValidationChallenge MessageType = "VALIDATION_CHALLENGE"
	MsgValidationResponse  MessageType = "VALIDATION_RESPONSE"
	MsgDAODispute          MessageType = "DAO_DISPUTE"
	MsgDAOResolution       MessageType = "DAO_RESOLUTION"
	MsgValidatorAnnounce   MessageType = "VALIDATOR_ANNOUNCE"
)

// Envelope wraps a typed payload for wire transport.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an Envelope of the given type.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("p2p: marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// Peer is one registered validator endpoint.
type Peer struct {
	ID       types.Address
	Endpoint string
	PubKey   []byte
	Active   bool
	LastSeen time.Time
}

// Network is the collaborator contract the core consumes: a
// broadcast-to-all-peers primitive and an addressed push. Components
// hold this by interface; no package keeps a process-global network
// handle (spec.md §9).
type Network interface {
	ForEachPeer(ctx context.Context, send func(ctx context.Context, peer Peer) error) error
	PushToPeer(ctx context.Context, id types.Address, env Envelope) error
}

// HTTPNetwork is an HTTP fan-out implementation of Network, grounded on
// HTTPPeerManager's peer bookkeeping.
type HTTPNetwork struct {
	mu     sync.RWMutex
	peers  map[types.Address]*Peer
	client *http.Client
	logger *log.Logger
}

// NewHTTPNetwork constructs an HTTPNetwork with the given request timeout.
func NewHTTPNetwork(timeout time.Duration, logger *log.Logger) *HTTPNetwork {
	if logger == nil {
		logger = log.New(log.Writer(), "[p2p] ", log.LstdFlags)
	}
	return &HTTPNetwork{
		peers:  make(map[types.Address]*Peer),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// RegisterPeer upserts a peer on VALIDATOR_ANNOUNCE.
func (n *HTTPNetwork) RegisterPeer(p Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p.Active = true
	p.LastSeen = time.Now()
	n.peers[p.ID] = &p
}

// UnregisterPeer marks a peer inactive on disconnect; the entry persists
// (spec.md §5: "peer-map entries become inactive on disconnect but
// persist on disk for reload").
func (n *HTTPNetwork) UnregisterPeer(id types.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.peers[id]; ok {
		p.Active = false
	}
}

// Peers returns a snapshot of every registered peer.
func (n *HTTPNetwork) Peers() []Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, *p)
	}
	return out
}

// ForEachPeer invokes send concurrently for every active peer, logging
// individual delivery errors rather than returning them.
func (n *HTTPNetwork) ForEachPeer(ctx context.Context, send func(ctx context.Context, peer Peer) error) error {
	peers := n.Peers()
	var wg sync.WaitGroup
	for _, p := range peers {
		if !p.Active {
			continue
		}
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()
			if err := send(ctx, p); err != nil {
				n.logger.Printf("broadcast to %s failed: %v", p.ID, err)
			}
		}(p)
	}
	wg.Wait()
	return nil
}

// PushToPeer delivers env to a single peer's endpoint over HTTP.
func (n *HTTPNetwork) PushToPeer(ctx context.Context, id types.Address, env Envelope) error {
	n.mu.RLock()
	peer, ok := n.peers[id]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("p2p: unknown peer %s", id)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("p2p: marshal envelope: %w", err)
	}
	url := peer.Endpoint + "/p2p/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("p2p: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("p2p: deliver to %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("p2p: peer %s returned status %d", id, resp.StatusCode)
	}
	return nil
}

// Broadcast is a convenience wrapper building the envelope once and
// fanning it out over ForEachPeer via a caller-supplied low-level sender
// (e.g. HTTP POST, or direct dispatch in tests).
func Broadcast(ctx context.Context, n Network, t MessageType, payload any, send func(ctx context.Context, peer Peer, env Envelope) error) error {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	return n.ForEachPeer(ctx, func(ctx context.Context, peer Peer) error {
		return send(ctx, peer, env)
	})
}
