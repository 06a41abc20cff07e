// Package cycles detects dependency cycles within a Graph: fixed-length
// cycles (1 through 4 edges) are enumerated exhaustively and
// deduplicated by canonical rotation, while the any-length case returns
// only the first cycle a depth-first walk finds.
package cycles

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/graph"
)

// Cycle is a sequence of node ids ua -> ub -> ... -> ua. For a
// fixed-length search the sequence is canonically rotated so its
// smallest id comes first and deduplicated against every other cycle
// of that length; for the any-length search it is the raw traversal
// order of the first cycle the walk closes.
type Cycle struct {
	Nodes []int64 `json:"nodes"`
}

// Detect finds every distinct cycle of exactly length edges (1-4), or,
// when length is 0, the first simple cycle of any length a depth-first
// walk encounters.
func Detect(g *graph.Graph, length int) ([]Cycle, error) {
	switch {
	case length < 0:
		return nil, errs.Validation("Detect", "cycle length must be >= 0, got %d", length)
	case length == 0:
		return detectAnyLength(g)
	case length <= 4:
		return detectFixedLength(g, length)
	default:
		return nil, errs.Validation("Detect", "fixed cycle length must be 1-4, got %d", length)
	}
}

// detectFixedLength enumerates cycles of exactly `length` edges by
// chained successor lookups. Each candidate tuple is rotated to start
// at its minimum id and deduplicated so the same cycle found from
// different starting nodes is reported only once.
func detectFixedLength(g *graph.Graph, length int) ([]Cycle, error) {
	seen := make(map[uint64]struct{})
	var out []Cycle

	n := g.NumNodes()
	path := make([]int32, length)

	var walk func(start, cur int32, depth int)
	walk = func(start, cur int32, depth int) {
		if depth == length {
			if cur == start {
				recordCycle(g, path, seen, &out)
			}
			return
		}
		for _, next := range g.Successors(int(cur)) {
			path[depth] = next
			walk(start, next, depth+1)
		}
	}

	for u := 0; u < n; u++ {
		path[0] = int32(u)
		walk(int32(u), int32(u), 0)
	}

	sortCycles(out)
	return out, nil
}

func recordCycle(g *graph.Graph, path []int32, seen map[uint64]struct{}, out *[]Cycle) {
	// A fixed-length "cycle" of length 1 through 4 may revisit a node
	// before closing; reject any walk that isn't simple.
	if !isSimple(path) {
		return
	}
	rotated := canonicalRotationIDs(g, path)
	key := cycleKey(rotated)
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	*out = append(*out, Cycle{Nodes: rotated})
}

func isSimple(path []int32) bool {
	seen := mapset.NewThreadUnsafeSet[int32]()
	for _, v := range path {
		if !seen.Add(v) {
			return false
		}
	}
	return true
}

// canonicalRotation rotates path so its minimum element is first. path
// holds graph indices and so does the result (widened to int64);
// canonicalRotationIDs converts them to node ids via IDAt. Node indices
// follow the sorted id order, so the minimum index is the minimum id.
func canonicalRotation(path []int32) []int64 {
	minIdx := 0
	for i, v := range path {
		if v < path[minIdx] {
			minIdx = i
		}
	}
	out := make([]int64, len(path))
	for i := range path {
		out[i] = int64(path[(minIdx+i)%len(path)])
	}
	return out
}

// cycleKey hashes a rotated node-id sequence into a dedup key. Collisions
// only risk a duplicate cycle slipping through, not a correctness issue
// severe enough to warrant carrying the full byte slice as a map key.
func cycleKey(nodes []int64) uint64 {
	h := xxhash.New()
	b := make([]byte, 8)
	for _, n := range nodes {
		for i := 0; i < 8; i++ {
			b[i] = byte(n >> (8 * i))
		}
		h.Write(b)
	}
	return h.Sum64()
}

func sortCycles(cycles []Cycle) {
	sort.Slice(cycles, func(i, j int) bool {
		a, b := cycles[i].Nodes, cycles[j].Nodes
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

// detectAnyLength returns the first cycle encountered by a DFS with a
// recursion stack, as a node-id sequence in traversal order: the walk
// visits nodes 0..n-1 as roots, and as soon as a successor closes back
// onto a node still on the stack, that stack segment (from the closed-
// on node through the current node) is the answer. Unlike the
// fixed-length case there is no canonical rotation or deduplication:
// only the first cycle found is reported, matching find-first-cycle
// semantics rather than enumerate-every-cycle.
func detectAnyLength(g *graph.Graph) ([]Cycle, error) {
	n := g.NumNodes()
	visited := make([]bool, n)
	onStack := make([]bool, n)
	var stack []int32
	var found []int64

	var walk func(cur int32) bool
	walk = func(cur int32) bool {
		visited[cur] = true
		onStack[cur] = true
		stack = append(stack, cur)

		for _, next := range g.Successors(int(cur)) {
			if onStack[next] {
				start := 0
				for i, v := range stack {
					if v == next {
						start = i
						break
					}
				}
				found = make([]int64, 0, len(stack)-start)
				for _, idx := range stack[start:] {
					found = append(found, g.IDAt(int(idx)))
				}
				return true
			}
			if !visited[next] && walk(next) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[cur] = false
		return false
	}

	for u := int32(0); u < int32(n); u++ {
		if visited[u] {
			continue
		}
		if walk(u) {
			break
		}
	}

	if found == nil {
		return nil, nil
	}
	return []Cycle{{Nodes: found}}, nil
}

func canonicalRotationIDs(g *graph.Graph, indices []int32) []int64 {
	rotated := canonicalRotation(indices)
	for i, idx := range rotated {
		rotated[i] = g.IDAt(int(idx))
	}
	return rotated
}
