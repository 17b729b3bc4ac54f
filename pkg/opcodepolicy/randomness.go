package opcodepolicy

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/trustvm/pkg/types"
)

// RandomnessSource supplies the entropy inputs trust-aware randomness
// mixes; BlockHash is only consulted at reputation >= 60.
type RandomnessSource struct {
	CallerAddress types.Address
	Timestamp     int64
	BlockHash     types.Hash
}

// TrustAwareRandom derives a 32-byte random value whose entropy sources
// and mix rounds scale with reputation: always system random + caller
// address + timestamp; at >=60 add the current block hash; at >=80 add a
// second system random draw. Mix rounds = 1 + reputation/25.
func TrustAwareRandom(reputation float64, src RandomnessSource) (types.Hash, error) {
	entropy, err := randomBytes(32)
	if err != nil {
		return types.Hash{}, err
	}

	buf := append([]byte{}, entropy...)
	buf = append(buf, src.CallerAddress.Bytes()...)
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(src.Timestamp))
	buf = append(buf, tsBytes...)

	if reputation >= 60 {
		buf = append(buf, src.BlockHash.Bytes()...)
	}
	if reputation >= 80 {
		second, err := randomBytes(32)
		if err != nil {
			return types.Hash{}, err
		}
		buf = append(buf, second...)
	}

	rounds := 1 + int(reputation/25)
	digest := buf
	for i := 0; i < rounds; i++ {
		digest = crypto.Keccak256(digest)
	}
	return types.BytesToHash(digest), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
