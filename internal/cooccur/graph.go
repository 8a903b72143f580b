// Package cooccur builds the item co-occurrence graph of a rule set and
// clusters it into connected components.
//
// Every antecedent item of a rule is linked to every consequent item of the
// same rule. Edges are undirected and unweighted; adding an edge twice is a
// no-op. Components are tracked with an index-based union-find, so the
// partition does not depend on the order rules are added in.
package cooccur

import (
	"sort"

	"github.com/rewired-gh/rulesweep/internal/models"
)

// Graph is an undirected co-occurrence graph over item identifiers.
type Graph struct {
	index  map[string]int
	nodes  []string
	parent []int
	rank   []int
	edges  map[[2]int]struct{}
}

// Clustering summarizes the connected components of a graph.
type Clustering struct {
	Count   int `json:"num_clusters" yaml:"num_clusters"`
	Largest int `json:"largest_cluster_size" yaml:"largest_cluster_size"`
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[[2]int]struct{}),
	}
}

// FromRules builds the graph of a rule set. An empty rule set yields an empty graph.
func FromRules(rules models.RuleSet) *Graph {
	g := New()
	for _, r := range rules {
		for _, a := range r.Antecedent {
			for _, c := range r.Consequent {
				g.AddEdge(a, c)
			}
		}
	}
	return g
}

// AddEdge links items a and b, adding either as a node if needed.
func (g *Graph) AddEdge(a, b string) {
	u, v := g.node(a), g.node(b)
	if u == v {
		return
	}
	if u > v {
		u, v = v, u
	}
	if _, ok := g.edges[[2]int{u, v}]; ok {
		return
	}
	g.edges[[2]int{u, v}] = struct{}{}
	g.union(u, v)
}

// NumNodes returns the number of items in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of distinct edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Components returns the connected components. Items within a component are
// sorted; components are ordered by size descending, then by first item.
func (g *Graph) Components() [][]string {
	groups := make(map[int][]string)
	for i, item := range g.nodes {
		root := g.find(i)
		groups[root] = append(groups[root], item)
	}

	comps := make([][]string, 0, len(groups))
	for _, items := range groups {
		sort.Strings(items)
		comps = append(comps, items)
	}
	sort.Slice(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})
	return comps
}

// Cluster returns the component count and the size of the largest component,
// both zero for an empty graph.
func (g *Graph) Cluster() Clustering {
	sizes := make(map[int]int)
	for i := range g.nodes {
		sizes[g.find(i)]++
	}
	c := Clustering{Count: len(sizes)}
	for _, n := range sizes {
		if n > c.Largest {
			c.Largest = n
		}
	}
	return c
}

func (g *Graph) node(item string) int {
	if i, ok := g.index[item]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[item] = i
	g.nodes = append(g.nodes, item)
	g.parent = append(g.parent, i)
	g.rank = append(g.rank, 0)
	return i
}

func (g *Graph) find(i int) int {
	for g.parent[i] != i {
		g.parent[i] = g.parent[g.parent[i]]
		i = g.parent[i]
	}
	return i
}

func (g *Graph) union(a, b int) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	switch {
	case g.rank[ra] < g.rank[rb]:
		g.parent[ra] = rb
	case g.rank[ra] > g.rank[rb]:
		g.parent[rb] = ra
	default:
		g.parent[rb] = ra
		g.rank[ra]++
	}
}
