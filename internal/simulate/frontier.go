package simulate

// predecessorHits returns, for the current frontier, the multiplicity
// with which each predecessor index is reachable from it: hits[u] is
// the number of frontier nodes u directly uses. Only predecessors not
// already in failed are reported, since an already-failed node cannot
// newly fail again.
//
// This walks the predecessor-CSR node by node, an iterative frontier
// traversal round by round.
func (s *Simulator) predecessorHits(frontier []int32, failed map[int32]struct{}) map[int32]int {
	hits := make(map[int32]int)
	for _, v := range frontier {
		for _, u := range s.g.Predecessors(int(v)) {
			if _, done := failed[u]; done {
				continue
			}
			hits[u]++
		}
	}
	return hits
}

// runFrontier is the iterative frontier implementation. Each round it
// visits every predecessor of the current frontier via direct CSR
// lookups and combines, per candidate node, the probability that at
// least one of its edges into the frontier fires this round. It then
// consumes exactly one PRNG draw per candidate, in ascending node index
// order, so that FRONTIER and MATRIX draw identically and produce the
// same failed-set for the same seed.
func (s *Simulator) runFrontier(srcIdx int32, seed uint64) []int32 {
	return s.runCascade(srcIdx, seed, s.predecessorHits)
}
