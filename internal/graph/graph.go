// Package graph holds the CSR-style adjacency representation shared,
// read-only, by every simulator and exact solver built over one
// snapshot: adjacency lists are built once per snapshot, with a
// parallel predecessor-CSR alongside the successor one so both
// directions are O(degree) to walk.
package graph

import "sort"

// Graph is the immutable directed dependency graph of one snapshot:
// edges run using -> used. It is built once and shared, read-only,
// across every simulator instance for that snapshot.
type Graph struct {
	// ids is the sorted node-id vector; index i is "node i" everywhere
	// else in this package.
	ids []int64

	index map[int64]int

	// outIndptr/outIndices is the CSR adjacency of out-edges (projects
	// a node uses), each row sorted by target node index.
	outIndptr  []int32
	outIndices []int32

	// predIndptr/predIndices is the CSR adjacency of in-edges
	// (projects that use a node), each row sorted by source node
	// index.
	predIndptr  []int32
	predIndices []int32
}

// Edge is a using -> used pair expressed by node id.
type Edge struct {
	Using int64
	Used  int64
}

// Build constructs a Graph from the given node-id set and edge list.
// Duplicate edges are deduplicated. Node ids in edges but absent from
// nodes are NOT added implicitly: the node set is authoritative and
// independent of which nodes have incident edges. Edges referencing an
// id outside nodes are dropped.
func Build(nodes []int64, edges []Edge) *Graph {
	ids := append([]int64(nil), nodes...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	// de-dup node ids defensively
	ids = dedupSorted(ids)

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	n := len(ids)
	outSets := make([]map[int32]struct{}, n)
	predSets := make([]map[int32]struct{}, n)

	for _, e := range edges {
		ui, ok := index[e.Using]
		if !ok {
			continue
		}
		vi, ok := index[e.Used]
		if !ok {
			continue
		}
		if outSets[ui] == nil {
			outSets[ui] = make(map[int32]struct{})
		}
		outSets[ui][int32(vi)] = struct{}{}
		if predSets[vi] == nil {
			predSets[vi] = make(map[int32]struct{})
		}
		predSets[vi][int32(ui)] = struct{}{}
	}

	outIndptr, outIndices := toCSR(outSets, n)
	predIndptr, predIndices := toCSR(predSets, n)

	return &Graph{
		ids:         ids,
		index:       index,
		outIndptr:   outIndptr,
		outIndices:  outIndices,
		predIndptr:  predIndptr,
		predIndices: predIndices,
	}
}

func toCSR(sets []map[int32]struct{}, n int) ([]int32, []int32) {
	indptr := make([]int32, n+1)
	var indices []int32
	for i := 0; i < n; i++ {
		row := make([]int32, 0, len(sets[i]))
		for j := range sets[i] {
			row = append(row, j)
		}
		sort.Slice(row, func(a, b int) bool { return row[a] < row[b] })
		indices = append(indices, row...)
		indptr[i+1] = int32(len(indices))
	}
	return indptr, indices
}

func dedupSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.ids) }

// NodeIDs returns the sorted node-id vector. Callers must not mutate the
// returned slice.
func (g *Graph) NodeIDs() []int64 { return g.ids }

// IndexOf returns the node index for id, or (-1, false) if absent.
func (g *Graph) IndexOf(id int64) (int, bool) {
	i, ok := g.index[id]
	if !ok {
		return -1, false
	}
	return i, true
}

// IDAt returns the node id at index i.
func (g *Graph) IDAt(i int) int64 { return g.ids[i] }

// OutDegree returns the number of projects node u uses.
func (g *Graph) OutDegree(u int) int {
	return int(g.outIndptr[u+1] - g.outIndptr[u])
}

// InDegree returns the number of projects that use node v.
func (g *Graph) InDegree(v int) int {
	return int(g.predIndptr[v+1] - g.predIndptr[v])
}

// Successors returns the sorted indices of projects node u uses.
func (g *Graph) Successors(u int) []int32 {
	return g.outIndices[g.outIndptr[u]:g.outIndptr[u+1]]
}

// Predecessors returns the sorted indices of projects that use node v.
func (g *Graph) Predecessors(v int) []int32 {
	return g.predIndices[g.predIndptr[v]:g.predIndptr[v+1]]
}

// HasEdge reports whether there is an edge u -> v.
func (g *Graph) HasEdge(u, v int32) bool {
	succ := g.Successors(int(u))
	i := sort.Search(len(succ), func(i int) bool { return succ[i] >= v })
	return i < len(succ) && succ[i] == v
}

// Edges returns every using->used edge as node-id pairs, in ascending
// (using, used) order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for u := 0; u < g.NumNodes(); u++ {
		for _, v := range g.Successors(u) {
			out = append(out, Edge{Using: g.ids[u], Used: g.ids[v]})
		}
	}
	return out
}
