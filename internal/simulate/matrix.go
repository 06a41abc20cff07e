package simulate

// matrixHits computes the same predecessor multiplicities as
// predecessorHits, but via a sparse matrix-vector product: accumulate a
// dense row vector `r` over node indices by summing, for each frontier
// column v, the predecessor CSR column A^T[:, v] (which is exactly the
// adjacency's transpose row for v), then read off nonzero entries in
// ascending index order.
func (s *Simulator) matrixHits(frontier []int32, failed map[int32]struct{}) map[int32]int {
	r := make([]int32, s.g.NumNodes())
	touched := make([]int32, 0, len(frontier))

	for _, v := range frontier {
		for _, u := range s.g.Predecessors(int(v)) {
			if r[u] == 0 {
				touched = append(touched, u)
			}
			r[u]++
		}
	}

	hits := make(map[int32]int, len(touched))
	for _, u := range touched {
		if _, done := failed[u]; done {
			continue
		}
		hits[u] = int(r[u])
	}
	return hits
}

// runMatrix is the sparse-matrix implementation: each round forms
// r = A^T · new_frontier over the predecessor-CSR and samples every
// nonzero row against a fresh uniform draw, in ascending node-index
// order, matching runFrontier's draw order exactly.
func (s *Simulator) runMatrix(srcIdx int32, seed uint64) []int32 {
	return s.runCascade(srcIdx, seed, s.matrixHits)
}
