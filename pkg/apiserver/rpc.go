package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/types"
	"github.com/certen/trustvm/pkg/vmcoordinator"
)

// noopCtx is the background context used for the handful of auditstore
// calls the RPC layer makes; requests carry no deadlines of their own.
func noopCtx() context.Context { return context.Background() }

// rpcRequest is the JSON-RPC-shaped envelope every /rpc call carries.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type methodFunc func(s *Server, params json.RawMessage) (any, error)

var methods = map[string]methodFunc{
	"block_number":             (*Server).rpcBlockNumber,
	"gas_price":                (*Server).rpcGasPrice,
	"call":                     (*Server).rpcCall,
	"estimate_gas":             (*Server).rpcEstimateGas,
	"get_code":                 (*Server).rpcGetCode,
	"get_storage_at":           (*Server).rpcGetStorageAt,
	"send_transaction":         (*Server).rpcSendTransaction,
	"get_transaction_receipt":  (*Server).rpcGetTransactionReceipt,
	"get_balance":              (*Server).rpcGetBalance,
	"get_transaction_count":    (*Server).rpcGetTransactionCount,
	"trace_transaction":        (*Server).rpcTraceTransaction,
	"trace_call":               (*Server).rpcTraceCall,
	"get_cross_chain_trust":    (*Server).rpcGetCrossChainTrust,
	"get_supported_chains":     (*Server).rpcGetSupportedChains,
	"generate_trust_proof":     (*Server).rpcGenerateTrustProof,
	"verify_trust_proof":       (*Server).rpcVerifyTrustProof,
	"get_cross_chain_stats":    (*Server).rpcGetCrossChainStats,
	"send_trust_attestation":   (*Server).rpcSendTrustAttestation,
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	fn, ok := methods[req.Method]
	if !ok {
		if fn2, ok2 := regtestMethods[req.Method]; ok2 {
			fn = fn2
		} else {
			writeJSONError(w, fmt.Sprintf("unknown method %q", req.Method), http.StatusNotFound)
			return
		}
	}
	result, err := fn(s, req.Params)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSONResult(w, result)
}

func encodeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) rpcBlockNumber(params json.RawMessage) (any, error) {
	return s.World.BlockNumber(), nil
}

func (s *Server) rpcGasPrice(params json.RawMessage) (any, error) {
	return FixedGasPrice, nil
}

type addressParams struct {
	Address types.Address `json:"address"`
}

func (s *Server) rpcGetBalance(params json.RawMessage) (any, error) {
	var p addressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.World.GetBalance(p.Address).String(), nil
}

func (s *Server) rpcGetTransactionCount(params json.RawMessage) (any, error) {
	var p addressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.World.GetNonce(p.Address), nil
}

func (s *Server) rpcGetCode(params json.RawMessage) (any, error) {
	var p addressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.World.GetCode(p.Address), nil
}

type storageParams struct {
	Address types.Address `json:"address"`
	Slot    types.Hash    `json:"slot"`
}

func (s *Server) rpcGetStorageAt(params json.RawMessage) (any, error) {
	var p storageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	return s.World.GetStorage(p.Address, p.Slot), nil
}

// callParams is the shared request shape for call/estimate_gas/trace_call
// and send_transaction: an already-deployed contract invocation, or a
// deployment when To is the zero address.
type callParams struct {
	From     types.Address `json:"from"`
	To       types.Address `json:"to"`
	Value    uint64        `json:"value"`
	Gas      uint64        `json:"gas"`
	Data     []byte        `json:"data"`
}

func (s *Server) runCall(p callParams) (vmcoordinator.ExecutionResult, error) {
	gasLimit := p.Gas
	if gasLimit == 0 {
		gasLimit = types.MinGasLimit
	}
	value := new(uint256.Int).SetUint64(p.Value)
	block := vmcoordinator.BlockContext{Height: s.World.BlockNumber(), Time: s.World.BlockTimestamp()}

	var isZero types.Address
	if p.To == isZero {
		code, res, err := s.deployAndReturn(p, gasLimit, value, block)
		_ = code
		return res, err
	}

	code := s.World.GetCode(p.To)
	return s.Coordinator.Call(s.World, p.To, code, p.Data, gasLimit, p.From, value, block)
}

func (s *Server) deployAndReturn(p callParams, gasLimit uint64, value *uint256.Int, block vmcoordinator.BlockContext) (types.Address, vmcoordinator.ExecutionResult, error) {
	nonce := s.World.GetNonce(p.From)
	addr, res, err := s.Coordinator.Deploy(s.World, p.Data, nil, gasLimit, p.From, nonce, value, block)
	if err == nil && res.Success {
		_ = s.World.SetCode(addr, p.Data)
	}
	return addr, res, err
}

func (s *Server) rpcCall(params json.RawMessage) (any, error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	res, err := s.runCall(p)
	if err != nil {
		return nil, err
	}
	return res.ReturnData, nil
}

func (s *Server) rpcEstimateGas(params json.RawMessage) (any, error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	res, err := s.runCall(p)
	if err != nil {
		return nil, err
	}
	return res.GasUsed, nil
}

type traceResult struct {
	Success               bool            `json:"success"`
	GasUsed               uint64          `json:"gas_used"`
	ReturnData            []byte          `json:"return_data"`
	Logs                  []types.Log     `json:"logs"`
	ExecutedFormat        types.BytecodeFormat `json:"executed_format"`
	CallerReputationBefore float64        `json:"caller_reputation_before"`
	CallerReputationAfter  float64        `json:"caller_reputation_after"`
	Error                 string          `json:"error,omitempty"`
}

func (s *Server) rpcTraceCall(params json.RawMessage) (any, error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	res, err := s.runCall(p)
	if err != nil {
		return nil, err
	}
	return resultToTrace(res), nil
}

func resultToTrace(res vmcoordinator.ExecutionResult) traceResult {
	t := traceResult{
		Success: res.Success, GasUsed: res.GasUsed, ReturnData: res.ReturnData, Logs: res.Logs,
		ExecutedFormat: res.ExecutedFormat, CallerReputationBefore: res.CallerRepBefore,
		CallerReputationAfter: res.CallerRepAfter,
	}
	if res.Err != nil {
		t.Error = res.Err.Error()
	}
	return t
}

type txHashParams struct {
	TxHash types.Hash `json:"tx_hash"`
}

func (s *Server) rpcGetTransactionReceipt(params json.RawMessage) (any, error) {
	var p txHashParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	if s.Receipts == nil {
		return nil, fmt.Errorf("apiserver: receipt store not available")
	}
	rec, err := s.Receipts.ByTxHash(noopCtx(), p.TxHash.Hex())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Server) rpcTraceTransaction(params json.RawMessage) (any, error) {
	var p txHashParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}
	if s.Receipts == nil {
		return nil, fmt.Errorf("apiserver: receipt store not available")
	}
	rec, err := s.Receipts.ByTxHash(noopCtx(), p.TxHash.Hex())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("apiserver: no receipt for %s", p.TxHash)
	}
	return traceResult{
		Success: rec.Status == "ok", GasUsed: rec.GasUsed, Logs: rec.Logs,
	}, nil
}

type sendTransactionParams struct {
	callParams
	Nonce *uint64 `json:"nonce,omitempty"`
}

type sendTransactionResult struct {
	TxHash          types.Hash    `json:"tx_hash"`
	ContractAddress *types.Address `json:"contract_address,omitempty"`
}

func (s *Server) rpcSendTransaction(params json.RawMessage) (any, error) {
	var p sendTransactionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("apiserver: invalid params: %w", err)
	}

	nonce, err := s.World.IncrementNonce(p.From)
	if err != nil {
		return nil, err
	}
	txHash := transactionHash(p.From, p.To, p.Data, nonce)

	var isZero types.Address
	var contractAddr *types.Address
	var res vmcoordinator.ExecutionResult
	if p.To == isZero {
		var addr types.Address
		addr, res, err = s.deployAndReturn(p.callParams, orDefault(p.Gas, types.MinGasLimit), new(uint256.Int).SetUint64(p.Value), vmcoordinator.BlockContext{Height: s.World.BlockNumber(), Time: s.World.BlockTimestamp()})
		contractAddr = &addr
	} else {
		code := s.World.GetCode(p.To)
		res, err = s.Coordinator.Call(s.World, p.To, code, p.Data, orDefault(p.Gas, types.MinGasLimit), p.From, new(uint256.Int).SetUint64(p.Value), vmcoordinator.BlockContext{Height: s.World.BlockNumber(), Time: s.World.BlockTimestamp()})
	}
	if err != nil {
		return nil, err
	}

	status := "ok"
	if !res.Success {
		status = "fail"
	}
	receipt := &types.Receipt{
		TxHash: txHash, BlockNumber: s.World.BlockNumber(), From: p.From, To: p.To,
		ContractAddress: contractAddr, GasUsed: res.GasUsed, CumulativeGasUsed: res.GasUsed,
		Status: status, Logs: res.Logs, SenderReputation: res.CallerRepAfter,
		ReputationDiscount: res.ReputationGasDiscount, UsedFreeGas: res.UsedFreeGas,
	}
	if s.Receipts != nil {
		if err := s.Receipts.Insert(noopCtx(), receipt); err != nil {
			s.logger.Printf("send_transaction: record receipt: %v", err)
		}
	}

	return sendTransactionResult{TxHash: txHash, ContractAddress: contractAddr}, nil
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func transactionHash(from, to types.Address, data []byte, nonce uint64) types.Hash {
	buf := make([]byte, 0, 20+20+len(data)+8)
	buf = append(buf, from.Bytes()...)
	buf = append(buf, to.Bytes()...)
	buf = append(buf, data...)
	nb := make([]byte, 8)
	for i := 0; i < 8; i++ {
		nb[i] = byte(nonce >> (8 * (7 - i)))
	}
	buf = append(buf, nb...)
	return types.BytesToHash(crypto.Keccak256(buf))
}
