// Copyright 2025 Certen Protocol
//
// Package crosschain implements the §6.3 cross-chain trust RPC group:
// reading a remote EVM chain's state for trust context, and issuing
// signed trust proofs so a reputation snapshot on this chain can be
// verified elsewhere without replaying the whole registry.
//
// Grounded on pkg/ethereum/client.go's ethclient wrapper and
// pkg/chain/strategy/evm_strategy.go's per-chain dispatch, narrowed to
// the read-only trust-attestation surface this spec needs.
package crosschain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/types"
)

// ChainInfo describes one remote chain this node can read trust context
// from.
type ChainInfo struct {
	ChainID uint64
	Name    string
	RPCURL  string
}

// TrustProof is a signed, portable attestation of an address's
// reputation snapshot, suitable for verification on a remote chain.
type TrustProof struct {
	Address           types.Address `json:"address"`
	ReputationSnapshot float64      `json:"reputation_snapshot"`
	SourceChainID     uint64        `json:"source_chain_id"`
	BlockNumber       uint64        `json:"block_number"`
	IssuedAt          time.Time     `json:"issued_at"`
	Signature         []byte        `json:"signature"`
	SignerPubKey      []byte        `json:"signer_pub_key"`
	Scheme            string        `json:"scheme"`
}

// Stats is the get_cross_chain_stats response payload.
type Stats struct {
	ProofsGenerated int64            `json:"proofs_generated"`
	ProofsVerified  int64            `json:"proofs_verified"`
	VerifyFailures  int64            `json:"verify_failures"`
	AttestationsSent int64           `json:"attestations_sent"`
	SupportedChains  []ChainInfo     `json:"supported_chains"`
}

// Hub serves the cross-chain trust RPC group for a configured set of
// remote chains.
type Hub struct {
	reputation *reputation.Registry
	strategy   signing.Strategy
	localChain uint64

	mu      sync.Mutex
	chains  map[uint64]ChainInfo
	clients map[uint64]*ethclient.Client

	proofsGenerated  int64
	proofsVerified   int64
	verifyFailures   int64
	attestationsSent int64
}

// New builds a Hub. chains lists the remote chains reachable for
// get_cross_chain_trust lookups; connections are lazy (dialed on first
// use) so a misconfigured RPC URL for a chain nobody queries never
// blocks startup.
func New(rep *reputation.Registry, strategy signing.Strategy, localChainID uint64, chains []ChainInfo) *Hub {
	byID := make(map[uint64]ChainInfo, len(chains))
	for _, c := range chains {
		byID[c.ChainID] = c
	}
	return &Hub{
		reputation: rep,
		strategy:   strategy,
		localChain: localChainID,
		chains:     byID,
		clients:    make(map[uint64]*ethclient.Client),
	}
}

// GetSupportedChains implements get_supported_chains.
func (h *Hub) GetSupportedChains() []ChainInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ChainInfo, 0, len(h.chains))
	for _, c := range h.chains {
		out = append(out, c)
	}
	return out
}

// GetCrossChainTrust implements get_cross_chain_trust: the local
// reputation snapshot for addr, annotated with the remote chain's
// current block height so a caller can judge staleness.
func (h *Hub) GetCrossChainTrust(ctx context.Context, chainID uint64, addr types.Address) (*TrustProof, error) {
	score, err := h.reputation.Get(addr)
	if err != nil {
		return nil, fmt.Errorf("crosschain: reputation lookup: %w", err)
	}

	blockNumber, err := h.remoteBlockNumber(ctx, chainID)
	if err != nil {
		return nil, err
	}

	return &TrustProof{
		Address: addr, ReputationSnapshot: score.Final, SourceChainID: h.localChain,
		BlockNumber: blockNumber, IssuedAt: time.Now(),
	}, nil
}

// GenerateTrustProof implements generate_trust_proof: signs a portable
// attestation of addr's current reputation.
func (h *Hub) GenerateTrustProof(addr types.Address, pubKey []byte) (*TrustProof, error) {
	score, err := h.reputation.Get(addr)
	if err != nil {
		return nil, fmt.Errorf("crosschain: reputation lookup: %w", err)
	}

	proof := &TrustProof{
		Address: addr, ReputationSnapshot: score.Final, SourceChainID: h.localChain,
		IssuedAt: time.Now(), SignerPubKey: pubKey, Scheme: h.strategy.Name(),
	}
	msg := proofMessage(proof)
	proof.Signature = h.strategy.Sign(msg)

	h.mu.Lock()
	h.proofsGenerated++
	h.mu.Unlock()
	return proof, nil
}

// VerifyTrustProof implements verify_trust_proof.
func (h *Hub) VerifyTrustProof(proof *TrustProof) bool {
	ok := h.strategy.Verify(proof.SignerPubKey, proofMessage(proof), proof.Signature)
	h.mu.Lock()
	if ok {
		h.proofsVerified++
	} else {
		h.verifyFailures++
	}
	h.mu.Unlock()
	return ok
}

// SendTrustAttestation implements send_trust_attestation: a fire-and-count
// hook for pushing a trust proof onto a remote chain or peer; the actual
// transport is left to the caller (p2p broadcast, or a remote contract
// call via ethclient), this just tracks that one was sent.
func (h *Hub) SendTrustAttestation(proof *TrustProof) {
	h.mu.Lock()
	h.attestationsSent++
	h.mu.Unlock()
}

// GetCrossChainStats implements get_cross_chain_stats.
func (h *Hub) GetCrossChainStats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	chains := make([]ChainInfo, 0, len(h.chains))
	for _, c := range h.chains {
		chains = append(chains, c)
	}
	return Stats{
		ProofsGenerated: h.proofsGenerated, ProofsVerified: h.proofsVerified,
		VerifyFailures: h.verifyFailures, AttestationsSent: h.attestationsSent,
		SupportedChains: chains,
	}
}

func (h *Hub) remoteBlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	client, err := h.clientFor(ctx, chainID)
	if err != nil {
		return 0, err
	}
	n, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("crosschain: block number for chain %d: %w", chainID, err)
	}
	return n, nil
}

func (h *Hub) clientFor(ctx context.Context, chainID uint64) (*ethclient.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[chainID]; ok {
		return c, nil
	}
	info, ok := h.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("crosschain: chain %d is not configured", chainID)
	}
	client, err := ethclient.DialContext(ctx, info.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("crosschain: dial chain %d: %w", chainID, err)
	}
	h.clients[chainID] = client
	return client, nil
}

func proofMessage(proof *TrustProof) signing.ResponseMessage {
	chainIDBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(chainIDBytes, proof.SourceChainID)
	return signing.ResponseMessage{
		TxHash:          types.BytesToHash(chainIDBytes),
		Validator:       proof.Address,
		CalculatedScore: proof.ReputationSnapshot,
		Vote:            types.VoteAccept,
		ChallengeNonce:  types.BytesToHash([]byte(proof.IssuedAt.String())),
		TimestampUnix:   proof.IssuedAt.Unix(),
	}
}
