// Package envelope implements the §6.1 on-chain soft-fork-compatible
// envelope: magic bytes, one-byte operation type, then an
// operation-specific RLP body carried inside an unspendable output.
//
// The pack's EVM-adjacent examples (go-ethereum, clydemeng-bsc) encode
// on-chain payloads with RLP rather than a bespoke TLV scheme, so the
// envelope body follows that convention (recorded in SPEC_FULL.md §6)
// even though the teacher's own Accumulate-specific payloads
// use a different wire format.
package envelope

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// Magic is the 4-byte soft-fork marker every envelope carries.
var Magic = [4]byte{'C', 'V', 'M', '1'}

// OpType enumerates the §6.1 operation types.
type OpType byte

const (
	OpDeploy     OpType = 0x01
	OpCall       OpType = 0x02
	OpSimpleVote OpType = 0x03
	OpTrustEdge  OpType = 0x04
	OpBondedVote OpType = 0x05
	OpDispute    OpType = 0x06
	OpDAOVote    OpType = 0x07
	OpEVMDeploy  OpType = 0x08
	OpEVMCall    OpType = 0x09
)

func (o OpType) Valid() bool {
	return o >= OpDeploy && o <= OpEVMCall
}

// MaxBodySize is the §6.1 payload ceiling: the standard on-chain output
// ceiling minus the 5-byte envelope header (magic + op type).
const MaxBodySize = 75

// Build serializes body via RLP and prefixes it with the magic bytes and
// op type, rejecting oversize payloads.
func Build(op OpType, body any) ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("envelope: invalid op type 0x%02x", byte(op))
	}
	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode body: %w", err)
	}
	if len(encoded) > MaxBodySize {
		return nil, fmt.Errorf("envelope: body of %d bytes exceeds %d-byte ceiling", len(encoded), MaxBodySize)
	}
	out := make([]byte, 0, 4+1+len(encoded))
	out = append(out, Magic[:]...)
	out = append(out, byte(op))
	out = append(out, encoded...)
	return out, nil
}

// Parse splits raw into its op type and RLP-encoded body, validating the
// magic prefix and size ceiling. The caller RLP-decodes body into the
// struct appropriate for op.
func Parse(raw []byte) (OpType, []byte, error) {
	if len(raw) < 5 {
		return 0, nil, fmt.Errorf("envelope: too short")
	}
	if !bytes.Equal(raw[:4], Magic[:]) {
		return 0, nil, fmt.Errorf("envelope: bad magic")
	}
	op := OpType(raw[4])
	if !op.Valid() {
		return 0, nil, fmt.Errorf("envelope: invalid op type 0x%02x", raw[4])
	}
	body := raw[5:]
	if len(body) > MaxBodySize {
		return 0, nil, fmt.Errorf("envelope: body of %d bytes exceeds %d-byte ceiling", len(body), MaxBodySize)
	}
	return op, body, nil
}

// Decode parses raw and RLP-decodes its body into out.
func Decode(raw []byte, out any) (OpType, error) {
	op, body, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	if err := rlp.DecodeBytes(body, out); err != nil {
		return 0, fmt.Errorf("envelope: decode body: %w", err)
	}
	return op, nil
}
