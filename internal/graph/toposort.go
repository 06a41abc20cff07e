package graph

// LongestPathLength returns the length (in edges) of the longest path in
// g, computed via Kahn's algorithm over a topological order. ok is false
// if g contains a cycle, in which case the longest path length is
// undefined and callers that require an acyclic graph should fail.
func (g *Graph) LongestPathLength() (length int, ok bool) {
	n := g.NumNodes()
	inDeg := make([]int32, n)
	for u := 0; u < n; u++ {
		for _, v := range g.Successors(u) {
			inDeg[v]++
		}
	}

	queue := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		if inDeg[i] == 0 {
			queue = append(queue, int32(i))
		}
	}

	dist := make([]int, n)
	visited := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		visited++
		for _, v := range g.Successors(int(u)) {
			if dist[u]+1 > dist[v] {
				dist[v] = dist[u] + 1
			}
			inDeg[v]--
			if inDeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if visited != n {
		return 0, false
	}

	maxDist := 0
	for _, d := range dist {
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist, true
}

// IsAcyclic reports whether g has no cycles.
func (g *Graph) IsAcyclic() bool {
	_, ok := g.LongestPathLength()
	return ok
}
