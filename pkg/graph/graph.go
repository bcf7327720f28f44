package graph

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Index is an undirected adjacency index over user ids. Each unordered pair
// appears at most once.
type Index struct {
	adjacency map[string]map[string]string // node -> {neighbor -> edge id}
	edges     int
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		adjacency: make(map[string]map[string]string),
	}
}

// AddNode adds a node with no edges
func (g *Index) AddNode(nodeID string) {
	if _, exists := g.adjacency[nodeID]; !exists {
		g.adjacency[nodeID] = make(map[string]string)
	}
}

// HasNode reports whether nodeID is indexed
func (g *Index) HasNode(nodeID string) bool {
	_, ok := g.adjacency[nodeID]
	return ok
}

// AddEdge links a and b. It returns the canonical edge id and whether the
// edge is new. Self edges are refused.
func (g *Index) AddEdge(a, b string) (string, bool) {
	if a == b {
		return "", false
	}
	g.AddNode(a)
	g.AddNode(b)

	if id, exists := g.adjacency[a][b]; exists {
		return id, false
	}

	id := EdgeID(a, b)
	g.adjacency[a][b] = id
	g.adjacency[b][a] = id
	g.edges++
	return id, true
}

// Connected reports whether a and b share an edge, in either direction
func (g *Index) Connected(a, b string) bool {
	neighbors, ok := g.adjacency[a]
	if !ok {
		return false
	}
	_, ok = neighbors[b]
	return ok
}

// Neighbors returns the sorted neighbor ids of a node
func (g *Index) Neighbors(nodeID string) []string {
	neighbors := g.adjacency[nodeID]
	out := make([]string, 0, len(neighbors))
	for n := range neighbors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Degree returns the number of edges touching a node
func (g *Index) Degree(nodeID string) int {
	return len(g.adjacency[nodeID])
}

// NodeCount returns the number of nodes in the index
func (g *Index) NodeCount() int {
	return len(g.adjacency)
}

// EdgeCount returns the number of undirected edges
func (g *Index) EdgeCount() int {
	return g.edges
}

// Canonical orders a pair so that (a, b) and (b, a) map to the same value
func Canonical(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// EdgeID derives a stable id for the unordered pair {a, b}
func EdgeID(a, b string) string {
	lo, hi := Canonical(a, b)
	return fmt.Sprintf("e-%016x", xxhash.Sum64String(lo+"\x00"+hi))
}
