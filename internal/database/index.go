package database

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/visagium/internal/facematch"
)

// Neighbor is one candidate identity returned by EncodingIndex.Search.
type Neighbor struct {
	facematch.Identity
	Distance float64 `json:"distance"`
}

// EncodingIndex is an approximate nearest neighbor index over the store,
// keyed by record position. It backs candidate listings; recognition
// decisions use the exact matcher.
type EncodingIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int]
	records []facematch.Record
	dim     int
}

// NewEncodingIndex creates an empty index.
func NewEncodingIndex() *EncodingIndex {
	return &EncodingIndex{}
}

// Build replaces the index content with records.
func (x *EncodingIndex) Build(records []facematch.Record) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.records = CloneRecords(records)
	x.graph = nil
	x.dim = 0
	if len(records) == 0 {
		return
	}

	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, r := range x.records {
		g.Add(hnsw.MakeNode(i, []float32(r.Encoding)))
	}
	x.graph = g
	x.dim = len(x.records[0].Encoding)
}

// Len returns the number of indexed encodings.
func (x *EncodingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Search returns up to k distinct identities nearest to query, closest first.
// Distances are exact Euclidean distances to the best encoding found.
func (x *EncodingIndex) Search(query facematch.Encoding, k int) []Neighbor {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || k <= 0 || len(query) != x.dim {
		return nil
	}

	nodes := x.graph.Search([]float32(query), k*HNSWSearchMultiplier)
	best := make(map[string]Neighbor)
	for _, n := range nodes {
		if n.Key < 0 || n.Key >= len(x.records) {
			continue
		}
		r := x.records[n.Key]
		d := facematch.EuclideanDistance(query, r.Encoding)
		if cur, ok := best[r.ID]; !ok || d < cur.Distance {
			best[r.ID] = Neighbor{Identity: r.Identity, Distance: d}
		}
	}

	out := make([]Neighbor, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
