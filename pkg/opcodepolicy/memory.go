package opcodepolicy

import (
	"fmt"
	"sync"

	"github.com/certen/trustvm/pkg/types"
)

// MaxProtectedRegions is the implementation-bound cap on protected
// memory regions per contract.
const MaxProtectedRegions = 256

// MemoryAccessAllowed gates plain reads/writes to contract memory by
// reputation alone (before any trust-tagged region overlay applies).
func MemoryAccessAllowed(isWrite bool, reputation float64) bool {
	if isWrite {
		return reputation >= 40
	}
	return reputation >= 20
}

// RegionSet tracks the trust-tagged memory regions declared for one
// contract, in insertion order, as the spec's data model requires.
type RegionSet struct {
	mu        sync.RWMutex
	regions   []types.TrustTaggedRegion
	nextID    uint64
	protected int
}

// NewRegionSet constructs an empty region set.
func NewRegionSet() *RegionSet {
	return &RegionSet{}
}

// CreateRegion declares a new trust-tagged region; creator must have
// reputation >= 70, and protected-region creation is capped at
// MaxProtectedRegions.
func (rs *RegionSet) CreateRegion(creatorReputation float64, region types.TrustTaggedRegion) (uint64, error) {
	if creatorReputation < 70 {
		return 0, fmt.Errorf("opcodepolicy: region creation requires reputation >= 70")
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if region.IsProtected && rs.protected >= MaxProtectedRegions {
		return 0, fmt.Errorf("opcodepolicy: protected region limit (%d) reached", MaxProtectedRegions)
	}
	rs.nextID++
	region.RegionID = rs.nextID
	rs.regions = append(rs.regions, region)
	if region.IsProtected {
		rs.protected++
	}
	return region.RegionID, nil
}

// CheckAccess scans regions in insertion order for overlap with
// [offset, offset+size) and enforces the strictest matching rule: a
// protected region requires the caller be its creator OR meet
// min_reputation (writes require +10 above that).
func (rs *RegionSet) CheckAccess(caller types.Address, reputation float64, offset, size uint64, isWrite bool) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	for _, r := range rs.regions {
		if !r.Overlaps(offset, size) {
			continue
		}
		required := r.MinReputation
		if isWrite {
			required += 10
		}
		if r.IsProtected {
			if caller == r.Creator {
				continue
			}
			if reputation < required {
				return false
			}
			continue
		}
		if reputation < required {
			return false
		}
	}
	return true
}
