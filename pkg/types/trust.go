package types

import "time"

// TrustEdge is a directed, weighted, bondable edge in the web-of-trust
// graph. Weight is in [-100, 100]; the bond is slashable by governance.
type TrustEdge struct {
	From      Address   `json:"from"`
	To        Address   `json:"to"`
	Weight    int        `json:"weight"`
	Bond      uint64    `json:"bond_amount"`
	Timestamp time.Time `json:"timestamp"`
}

// TrustPath is an ordered sequence of edges connecting two addresses.
type TrustPath struct {
	Edges          []TrustEdge `json:"edges"`
	AggregateWeight float64    `json:"aggregate_weight"`
}

// WalletCluster is a set of addresses heuristically controlled by one
// entity, with a confidence score that degrades as the cluster grows and
// is boosted by high shared transaction volume.
type WalletCluster struct {
	Members    map[Address]struct{} `json:"-"`
	MemberList []Address            `json:"members"`
	Confidence float64              `json:"confidence"`
}

// Size returns the number of distinct members in the cluster.
func (c *WalletCluster) Size() int {
	if c == nil {
		return 0
	}
	return len(c.MemberList)
}
