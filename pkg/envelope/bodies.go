package envelope

// Body structs for every §6.1 op type, sized to fit within the 75-byte
// ceiling: addresses as 20 bytes, amounts as fixed-width integers,
// hashes as 32 bytes — the ceiling rules out anything as large as full
// bytecode or a full dispute record, so deploy/call/dispute envelopes
// carry a reference (e.g. a content hash already stored via the KV
// contract) rather than the payload itself.

// DeployBody is the §6.1 op 0x01 body: deploy a contract whose bytecode
// was already staged in the KV store under CodeHash.
type DeployBody struct {
	Deployer  [20]byte
	CodeHash  [32]byte
	GasLimit  uint64
	Nonce     uint64
}

// CallBody is op 0x02: invoke an already-deployed contract.
type CallBody struct {
	Caller    [20]byte
	Contract  [20]byte
	Value     uint64
	GasLimit  uint64
	InputHash [32]byte
}

// SimpleVoteBody is op 0x03: an unbonded HAT validation vote.
type SimpleVoteBody struct {
	Validator      [20]byte
	TxHash         [32]byte
	CalculatedScore uint16 // fixed-point, scaled by 100
	Vote           byte   // 0 accept, 1 reject, 2 abstain
	ChallengeNonce [32]byte
}

// TrustEdgeBody is op 0x04: a trust-graph edge declaration.
type TrustEdgeBody struct {
	From   [20]byte
	To     [20]byte
	Weight int16
	Bond   uint64
}

// BondedVoteBody is op 0x05: a HAT vote with a staked bond behind it.
type BondedVoteBody struct {
	SimpleVoteBody
	Bond uint64
}

// DisputeBody is op 0x06: a reference to a dispute case staged in the KV
// store (the full evidence set never fits the 75-byte ceiling).
type DisputeBody struct {
	DisputeID [32]byte
	Sender    [20]byte
}

// DAOVoteBody is op 0x07: a governance member's vote on a dispute.
type DAOVoteBody struct {
	Voter     [20]byte
	DisputeID [32]byte
	Approve   byte
}

// EVMDeployBody is op 0x08: deploy via the EVM-semantics engine.
type EVMDeployBody struct {
	Deployer [20]byte
	CodeHash [32]byte
	GasLimit uint64
	Value    uint64
}

// EVMCallBody is op 0x09: call via the EVM-semantics engine.
type EVMCallBody struct {
	Caller    [20]byte
	Contract  [20]byte
	Value     uint64
	GasLimit  uint64
	InputHash [32]byte
}
