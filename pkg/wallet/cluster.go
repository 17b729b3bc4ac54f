// Package wallet implements the Wallet Clusterer (C4): a heuristic that
// groups addresses believed to be controlled by one entity and reports a
// confidence score that degrades with cluster size and is boosted by
// shared transaction volume.
//
// Grounded on pkg/ledger/store.go's KV-backed registry pattern; the
// union-find merge strategy follows the same "accumulate evidence, merge
// incrementally" shape pkg/batch/collector.go uses to fold per-block
// observations into running aggregates.
package wallet

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

var clusterKeyPrefix = []byte("walletcluster_")

// Clusterer groups addresses into WalletClusters using heuristic link
// evidence (shared co-spend activity, shared funding source, observed
// address reuse) supplied by the caller via Link.
type Clusterer struct {
	mu      sync.RWMutex
	kv      kv.Store
	parent  map[types.Address]types.Address
	volume  map[types.Address]uint64
	members map[types.Address]map[types.Address]struct{}
}

// New constructs a Clusterer and restores any persisted clusters.
func New(store kv.Store) (*Clusterer, error) {
	c := &Clusterer{
		kv:      store,
		parent:  make(map[types.Address]types.Address),
		volume:  make(map[types.Address]uint64),
		members: make(map[types.Address]map[types.Address]struct{}),
	}
	keys, err := store.ListKeysWithPrefix(clusterKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("wallet: list clusters: %w", err)
	}
	for _, k := range keys {
		raw, err := store.Get(k)
		if err != nil {
			return nil, fmt.Errorf("wallet: load cluster: %w", err)
		}
		var persisted types.WalletCluster
		if err := json.Unmarshal(raw, &persisted); err != nil {
			return nil, fmt.Errorf("wallet: unmarshal cluster: %w", err)
		}
		if len(persisted.MemberList) == 0 {
			continue
		}
		root := persisted.MemberList[0]
		for _, m := range persisted.MemberList {
			c.find(m)
			c.union(root, m)
		}
	}
	return c, nil
}

func (c *Clusterer) find(a types.Address) types.Address {
	if _, ok := c.parent[a]; !ok {
		c.parent[a] = a
		c.members[a] = map[types.Address]struct{}{a: {}}
	}
	root := a
	for c.parent[root] != root {
		root = c.parent[root]
	}
	for c.parent[a] != root {
		c.parent[a], a = root, c.parent[a]
	}
	return root
}

func (c *Clusterer) union(a, b types.Address) {
	ra, rb := c.find(a), c.find(b)
	if ra == rb {
		return
	}
	if len(c.members[ra]) < len(c.members[rb]) {
		ra, rb = rb, ra
	}
	for m := range c.members[rb] {
		c.members[ra][m] = struct{}{}
	}
	delete(c.members, rb)
	c.parent[rb] = ra
}

// Link records heuristic evidence that a and b are controlled by the
// same entity and merges their clusters. txVolume is added to the
// cluster's shared transaction-volume counter, which boosts confidence.
func (c *Clusterer) Link(a, b types.Address, txVolume uint64) error {
	c.mu.Lock()
	c.find(a)
	c.find(b)
	c.union(a, b)
	root := c.find(a)
	c.volume[root] += txVolume
	c.mu.Unlock()
	return c.persist(root)
}

// ClusterOf returns the cluster containing addr, or a singleton cluster
// of confidence 1.0 if addr has never been linked to anything.
func (c *Clusterer) ClusterOf(addr types.Address) *types.WalletCluster {
	c.mu.RLock()
	defer c.mu.RUnlock()

	root, ok := c.parent[addr]
	if !ok {
		return &types.WalletCluster{
			Members:    map[types.Address]struct{}{addr: {}},
			MemberList: []types.Address{addr},
			Confidence: 1.0,
		}
	}
	for c.parent[root] != root {
		root = c.parent[root]
	}
	return c.snapshot(root)
}

func (c *Clusterer) snapshot(root types.Address) *types.WalletCluster {
	members := c.members[root]
	list := make([]types.Address, 0, len(members))
	for m := range members {
		list = append(list, m)
	}
	return &types.WalletCluster{
		Members:    members,
		MemberList: list,
		Confidence: confidence(len(list), c.volume[root]),
	}
}

// confidence degrades logarithmically with cluster size (a 2-member
// cluster is fairly confident; a 50-member cluster much less so) and is
// boosted — but never pushed above 1.0 — by high shared transaction
// volume, which is itself strong clustering evidence.
func confidence(size int, volume uint64) float64 {
	if size <= 1 {
		return 1.0
	}
	base := 1.0 / (1.0 + math.Log2(float64(size)))
	boost := math.Min(0.25, float64(volume)/1e6*0.25)
	v := base + boost
	if v > 1.0 {
		v = 1.0
	}
	return v
}

func (c *Clusterer) persist(root types.Address) error {
	c.mu.RLock()
	snap := c.snapshot(root)
	c.mu.RUnlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("wallet: marshal cluster: %w", err)
	}
	key := append(append([]byte{}, clusterKeyPrefix...), root.Bytes()...)
	return c.kv.Set(key, raw)
}
