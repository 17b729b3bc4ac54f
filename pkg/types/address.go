package types

import "github.com/ethereum/go-ethereum/common"

// Address is the 20-byte account identifier used throughout the core.
// The pack standardizes on go-ethereum's common.Address rather than a
// bespoke type, so we do too.
type Address = common.Address

// Hash is a 32-byte digest — transaction hashes, dispute IDs, bond
// commitments.
type Hash = common.Hash

// BytesToAddress and BytesToHash are re-exported for callers that only
// import pkg/types and should not need to reach into go-ethereum/common
// directly.
var (
	BytesToAddress = common.BytesToAddress
	BytesToHash    = common.BytesToHash
	HexToAddress   = common.HexToAddress
	HexToHash      = common.HexToHash
)
