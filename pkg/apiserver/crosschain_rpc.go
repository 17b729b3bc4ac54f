package apiserver

import (
	"encoding/json"
	"fmt"

	"github.com/certen/trustvm/pkg/crosschain"
	"github.com/certen/trustvm/pkg/types"
)

func (s *Server) requireCrossChain() error {
	if s.CrossChain == nil {
		return fmt.Errorf("apiserver: cross-chain hub not configured")
	}
	return nil
}

type crossChainTrustParams struct {
	ChainID uint64        `json:"chain_id"`
	Address types.Address `json:"address"`
}

func (s *Server) rpcGetCrossChainTrust(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	var p crossChainTrustParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.CrossChain.GetCrossChainTrust(noopCtx(), p.ChainID, p.Address)
}

func (s *Server) rpcGetSupportedChains(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	return s.CrossChain.GetSupportedChains(), nil
}

type generateTrustProofParams struct {
	Address types.Address `json:"address"`
	PubKey  []byte        `json:"pub_key"`
}

func (s *Server) rpcGenerateTrustProof(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	var p generateTrustProofParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.CrossChain.GenerateTrustProof(p.Address, p.PubKey)
}

func (s *Server) rpcVerifyTrustProof(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	var proof crosschain.TrustProof
	if err := json.Unmarshal(params, &proof); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.CrossChain.VerifyTrustProof(&proof), nil
}

func (s *Server) rpcGetCrossChainStats(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	return s.CrossChain.GetCrossChainStats(), nil
}

func (s *Server) rpcSendTrustAttestation(params json.RawMessage) (any, error) {
	if err := s.requireCrossChain(); err != nil {
		return nil, err
	}
	var proof crosschain.TrustProof
	if err := json.Unmarshal(params, &proof); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	s.CrossChain.SendTrustAttestation(&proof)
	return true, nil
}
