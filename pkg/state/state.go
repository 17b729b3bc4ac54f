// Package state is the KV-backed world state the VM coordinator executes
// against: account balances, nonces, deployed bytecode, and per-contract
// storage slots. It implements evmengine.Host so the apiserver's
// call/estimate_gas/get_code/get_storage_at/get_balance/
// get_transaction_count RPCs and the execution layer share one ledger.
//
// Grounded on pkg/ledger/store.go's colon-delimited KV key layout,
// carried over verbatim (state:balance:, state:nonce:, state:code:,
// state:storage::) rather than the single-byte prefixes §6.4 reserves
// for HAT/dispute/fraud records.
package state

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

var (
	keyBalancePrefix = []byte("state:balance:")
	keyNoncePrefix   = []byte("state:nonce:")
	keyCodePrefix    = []byte("state:code:")
	keyStoragePrefix = []byte("state:storage:")
	keyStorageInfix  = []byte(":")
)

func balanceKey(addr types.Address) []byte {
	return append(append([]byte{}, keyBalancePrefix...), addr.Bytes()...)
}

func nonceKey(addr types.Address) []byte {
	return append(append([]byte{}, keyNoncePrefix...), addr.Bytes()...)
}

func codeKey(addr types.Address) []byte {
	return append(append([]byte{}, keyCodePrefix...), addr.Bytes()...)
}

func storageKey(addr types.Address, slot types.Hash) []byte {
	key := append(append([]byte{}, keyStoragePrefix...), addr.Bytes()...)
	key = append(key, keyStorageInfix...)
	return append(key, slot.Bytes()...)
}

// BlockInfo is the current-block context a State exposes through the
// Host interface; the caller (the node's block production loop, or a
// regtest harness) advances it between transactions.
type BlockInfo struct {
	Number    uint64
	Hash      types.Hash
	Timestamp uint64
}

// State is the canonical KV-backed account store. It is safe for
// concurrent use only to the extent kv.Store is; callers serialize
// writes through the same discipline pkg/ledger's store documents
// (single-writer, called from the commit path).
type State struct {
	kv       kv.Store
	block    BlockInfo
	origin   types.Address
	price    *uint256.Int
	logs     []types.Log
	reenter  func(kind string, caller, to types.Address, value *uint256.Int, input []byte, gas uint64) (evmengine.CallResult, error)
}

// New constructs a State over store, with the given block context.
func New(store kv.Store, block BlockInfo) *State {
	return &State{kv: store, block: block, price: uint256.NewInt(0)}
}

// SetReentrant installs the callback used to service nested CALL-family
// opcodes (evmengine.Host.Call): it re-enters the VM coordinator so a
// contract calling another contract runs through the same trust-gate and
// gas-policy checks as a top-level transaction.
func (s *State) SetReentrant(fn func(kind string, caller, to types.Address, value *uint256.Int, input []byte, gas uint64) (evmengine.CallResult, error)) {
	s.reenter = fn
}

// Call implements evmengine.Host by re-entering the installed callback.
func (s *State) Call(kind string, caller, to types.Address, value *uint256.Int, input []byte, gas uint64) (evmengine.CallResult, error) {
	if s.reenter == nil {
		return evmengine.CallResult{}, fmt.Errorf("state: no reentrant call handler installed")
	}
	return s.reenter(kind, caller, to, value, input, gas)
}

// SetOrigin sets the transaction origin address exposed via Origin().
func (s *State) SetOrigin(addr types.Address) { s.origin = addr }

// SetGasPrice sets the gas price exposed via GasPrice().
func (s *State) SetGasPrice(price *uint256.Int) { s.price = price }

// SetBlock replaces the current block context (used by regtest mining).
func (s *State) SetBlock(block BlockInfo) { s.block = block }

// GetBalance implements evmengine.Host.
func (s *State) GetBalance(addr types.Address) *uint256.Int {
	raw, err := s.kv.Get(balanceKey(addr))
	if err != nil || len(raw) == 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(raw)
}

// SetBalance persists addr's balance.
func (s *State) SetBalance(addr types.Address, balance *uint256.Int) error {
	return s.kv.Set(balanceKey(addr), balance.Bytes())
}

// GetNonce returns addr's transaction nonce.
func (s *State) GetNonce(addr types.Address) uint64 {
	raw, err := s.kv.Get(nonceKey(addr))
	if err != nil || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// SetNonce persists addr's transaction nonce.
func (s *State) SetNonce(addr types.Address, nonce uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, nonce)
	return s.kv.Set(nonceKey(addr), buf)
}

// IncrementNonce bumps addr's nonce by one and returns the pre-increment
// value (the nonce the caller should have used for this transaction).
func (s *State) IncrementNonce(addr types.Address) (uint64, error) {
	current := s.GetNonce(addr)
	if err := s.SetNonce(addr, current+1); err != nil {
		return 0, err
	}
	return current, nil
}

// GetCode implements evmengine.Host.
func (s *State) GetCode(addr types.Address) []byte {
	raw, err := s.kv.Get(codeKey(addr))
	if err != nil {
		return nil
	}
	return raw
}

// SetCode deploys bytecode at addr.
func (s *State) SetCode(addr types.Address, code []byte) error {
	return s.kv.Set(codeKey(addr), code)
}

// GetStorage implements evmengine.Host.
func (s *State) GetStorage(addr types.Address, key types.Hash) types.Hash {
	raw, err := s.kv.Get(storageKey(addr, key))
	if err != nil || len(raw) == 0 {
		return types.Hash{}
	}
	return types.BytesToHash(raw)
}

// SetStorage implements evmengine.Host.
func (s *State) SetStorage(addr types.Address, key, value types.Hash) {
	_ = s.kv.Set(storageKey(addr, key), value.Bytes())
}

// BlockNumber implements evmengine.Host.
func (s *State) BlockNumber() uint64 { return s.block.Number }

// BlockHash implements evmengine.Host. Only the current block's hash is
// retrievable; historical lookups return the zero hash.
func (s *State) BlockHash(number uint64) types.Hash {
	if number == s.block.Number {
		return s.block.Hash
	}
	return types.Hash{}
}

// BlockTimestamp implements evmengine.Host.
func (s *State) BlockTimestamp() uint64 { return s.block.Timestamp }

// Origin implements evmengine.Host.
func (s *State) Origin() types.Address { return s.origin }

// GasPrice implements evmengine.Host.
func (s *State) GasPrice() *uint256.Int { return s.price }

// AddLog implements evmengine.Host, buffering logs for the current call.
func (s *State) AddLog(log types.Log) {
	s.logs = append(s.logs, log)
}

// DrainLogs returns and clears the logs accumulated since the last drain.
func (s *State) DrainLogs() []types.Log {
	logs := s.logs
	s.logs = nil
	return logs
}

// SelfDestruct implements evmengine.Host: transfers the account's
// balance to beneficiary and clears its code.
func (s *State) SelfDestruct(addr, beneficiary types.Address) {
	balance := s.GetBalance(addr)
	existing := s.GetBalance(beneficiary)
	_ = s.SetBalance(beneficiary, new(uint256.Int).Add(existing, balance))
	_ = s.SetBalance(addr, uint256.NewInt(0))
	_ = s.kv.Delete(codeKey(addr))
}
