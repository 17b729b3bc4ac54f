// Package trustgraph implements the Trust Graph Oracle (C3): directed,
// weighted, bondable trust edges between addresses and the shortest
// weighted-path query the opcode policy and HAT validators use to decide
// whether a sender has any web-of-trust backing at all.
//
// Grounded on pkg/ledger/store.go's KV-backed load/mutate pattern, with
// the edge adjacency held in memory and mirrored to the KV store the way
// pkg/merkle/tree.go keeps its tree in memory and persists leaves.
package trustgraph

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/types"
)

// MaxPathDepth bounds how many hops a trust-path search will traverse,
// keeping worst-case query cost predictable on adversarial graphs.
const MaxPathDepth = 6

var edgePrefix = []byte("trustedge_")

func edgeKey(from, to types.Address) []byte {
	k := append(append([]byte{}, edgePrefix...), from.Bytes()...)
	return append(k, to.Bytes()...)
}

// Graph is the in-memory adjacency view of the web of trust, backed by a
// KV store for durability across restarts.
type Graph struct {
	mu    sync.RWMutex
	kv    kv.Store
	edges map[types.Address]map[types.Address]types.TrustEdge
}

// New constructs a Graph and replays any persisted edges from store.
func New(store kv.Store) (*Graph, error) {
	g := &Graph{
		kv:    store,
		edges: make(map[types.Address]map[types.Address]types.TrustEdge),
	}
	keys, err := store.ListKeysWithPrefix(edgePrefix)
	if err != nil {
		return nil, fmt.Errorf("trustgraph: list edges: %w", err)
	}
	for _, k := range keys {
		raw, err := store.Get(k)
		if err != nil {
			return nil, fmt.Errorf("trustgraph: load edge: %w", err)
		}
		var e types.TrustEdge
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("trustgraph: unmarshal edge: %w", err)
		}
		g.insert(e)
	}
	return g, nil
}

func (g *Graph) insert(e types.TrustEdge) {
	if g.edges[e.From] == nil {
		g.edges[e.From] = make(map[types.Address]types.TrustEdge)
	}
	g.edges[e.From][e.To] = e
}

// AddEdge records (or replaces) the directed trust edge from->to and
// persists it.
func (g *Graph) AddEdge(e types.TrustEdge) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("trustgraph: marshal edge: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.kv.Set(edgeKey(e.From, e.To), raw); err != nil {
		return fmt.Errorf("trustgraph: persist edge: %w", err)
	}
	g.insert(e)
	return nil
}

// RemoveEdge deletes any trust edge from->to.
func (g *Graph) RemoveEdge(from, to types.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.kv.Delete(edgeKey(from, to)); err != nil {
		return fmt.Errorf("trustgraph: delete edge: %w", err)
	}
	delete(g.edges[from], to)
	return nil
}

// HasConnection reports whether any directed path exists from "from" to
// "to" within MaxPathDepth hops.
func (g *Graph) HasConnection(from, to types.Address) bool {
	path := g.ShortestPath(from, to)
	return path != nil
}

// ShortestPath finds the path from->to with the highest aggregate edge
// weight (a proxy for strongest trust), exploring at most MaxPathDepth
// hops. Returns nil if no such path exists.
func (g *Graph) ShortestPath(from, to types.Address) *types.TrustPath {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if from == to {
		return &types.TrustPath{}
	}

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathState{node: from, weight: 0})
	best := map[types.Address]float64{from: 0}
	prev := map[types.Address]types.TrustEdge{}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pathState)
		if cur.depth > MaxPathDepth {
			continue
		}
		if cur.node == to {
			return reconstructPath(prev, from, to)
		}
		for _, e := range g.edges[cur.node] {
			nw := cur.weight + float64(e.Weight)
			if existing, ok := best[e.To]; !ok || nw > existing {
				best[e.To] = nw
				prev[e.To] = e
				heap.Push(pq, &pathState{node: e.To, weight: nw, depth: cur.depth + 1})
			}
		}
	}
	return nil
}

// AllPaths counts the number of distinct trust paths from->to (used for
// WoTPathCount) by enumerating simple paths up to MaxPathDepth hops.
func (g *Graph) AllPaths(from, to types.Address) []types.TrustPath {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var results []types.TrustPath
	visited := map[types.Address]bool{from: true}
	var walk func(node types.Address, acc []types.TrustEdge, weight float64, depth int)
	walk = func(node types.Address, acc []types.TrustEdge, weight float64, depth int) {
		if node == to && len(acc) > 0 {
			edges := make([]types.TrustEdge, len(acc))
			copy(edges, acc)
			results = append(results, types.TrustPath{Edges: edges, AggregateWeight: weight})
			return
		}
		if depth >= MaxPathDepth {
			return
		}
		for nbr, e := range g.edges[node] {
			if visited[nbr] {
				continue
			}
			visited[nbr] = true
			walk(nbr, append(acc, e), weight+float64(e.Weight), depth+1)
			visited[nbr] = false
		}
	}
	walk(from, nil, 0, 0)
	return results
}

func reconstructPath(prev map[types.Address]types.TrustEdge, from, to types.Address) *types.TrustPath {
	var edges []types.TrustEdge
	cur := to
	var total float64
	for cur != from {
		e, ok := prev[cur]
		if !ok {
			return nil
		}
		edges = append([]types.TrustEdge{e}, edges...)
		total += float64(e.Weight)
		cur = e.From
	}
	return &types.TrustPath{Edges: edges, AggregateWeight: total}
}

type pathState struct {
	node   types.Address
	weight float64
	depth  int
}

// pathQueue is a max-heap on weight, giving Dijkstra-style exploration of
// the strongest-weighted path first.
type pathQueue []*pathState

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].weight > q[j].weight }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(*pathState)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
