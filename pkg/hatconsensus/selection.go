package hatconsensus

import (
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/trustvm/pkg/sybil"
	"github.com/certen/trustvm/pkg/types"
)

// selectionSeed derives the deterministic PRNG seed for one session:
// hash(tx_hash || block_height || "VALIDATOR_SELECTION"), per §4.5. Two
// nodes observing the same (tx_hash, block_height) and eligible pool
// select the same validator set.
func selectionSeed(txHash types.Hash, blockHeight uint64) int64 {
	buf := make([]byte, 0, 32+8+len("VALIDATOR_SELECTION"))
	buf = append(buf, txHash.Bytes()...)
	h := make([]byte, 8)
	binary.BigEndian.PutUint64(h, blockHeight)
	buf = append(buf, h...)
	buf = append(buf, "VALIDATOR_SELECTION"...)
	digest := crypto.Keccak256(buf)
	return int64(binary.BigEndian.Uint64(digest[:8]))
}

// DeterministicNonce derives the challenge nonce bound into every
// response for one session: hash(tx_hash, block_height, start_time).
func DeterministicNonce(txHash types.Hash, blockHeight uint64, startTime time.Time) types.Hash {
	buf := make([]byte, 0, 32+8+8)
	buf = append(buf, txHash.Bytes()...)
	h := make([]byte, 8)
	binary.BigEndian.PutUint64(h, blockHeight)
	buf = append(buf, h...)
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(startTime.Unix()))
	buf = append(buf, ts...)
	return crypto.Keccak256Hash(buf)
}

// fisherYates deterministically shuffles addrs in place using the given
// seeded source.
func fisherYates(addrs []types.Address, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := len(addrs) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		addrs[i], addrs[j] = addrs[j], addrs[i]
	}
}

// DiversityFilter narrows a validator set for Sybil/Eclipse diversity,
// pulling replacements from the remaining shuffled pool when removals
// leave the set short. Satisfied by *sybil.Detector.
type DiversityFilter interface {
	ValidateSetDiversity(validators []types.Address) bool
}

// SelectValidators implements §4.5 selection: deterministic shuffle of
// the eligible pool, take MinValidators, then apply diversity filtering,
// topping back up from the remaining pool if removals leave it short.
func SelectValidators(txHash types.Hash, blockHeight uint64, eligiblePool []types.Address, diversity DiversityFilter) []types.Address {
	pool := make([]types.Address, len(eligiblePool))
	copy(pool, eligiblePool)
	fisherYates(pool, selectionSeed(txHash, blockHeight))

	if len(pool) <= MinValidators {
		return pool
	}

	selected := append([]types.Address{}, pool[:MinValidators]...)
	rest := pool[MinValidators:]

	for attempt := 0; attempt < len(rest) && diversity != nil && !diversity.ValidateSetDiversity(selected); attempt++ {
		selected = dropConcentrated(selected, diversity)
		for len(selected) < MinValidators && len(rest) > 0 {
			selected = append(selected, rest[0])
			rest = rest[1:]
		}
	}
	return selected
}

// dropConcentrated removes validators one at a time until
// ValidateSetDiversity passes or one remains, mirroring §4.7's "drop the
// concentrated members" remediation.
func dropConcentrated(selected []types.Address, diversity DiversityFilter) []types.Address {
	for len(selected) > 1 && !diversity.ValidateSetDiversity(selected) {
		selected = selected[:len(selected)-1]
	}
	return selected
}

var _ DiversityFilter = (*sybil.Detector)(nil)
