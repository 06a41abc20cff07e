// Package simulate runs the stochastic cascade-failure simulation over
// a snapshot graph, with FRONTIER and MATRIX implementations sharing
// one draw loop so both produce identical failed-sets for the same
// seed, plus the NETWORK/MATRIX exact-probability solvers.
package simulate

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/types"
)

// Simulator runs cascade simulations over one immutable Graph, sharing
// precomputed structure (node-index maps, per-node propagation
// probabilities) across every run against it regardless of source or
// seed.
type Simulator struct {
	g   *graph.Graph
	cfg types.SimConfig

	// q[u] is the per-edge propagation probability q(u) = p /
	// max(1, deg_out(u))^alpha, precomputed once per Simulator.
	q []float64
}

// New builds a Simulator for g under cfg. cfg should already be
// defaulted (types.SimConfig.WithDefaults).
func New(g *graph.Graph, cfg types.SimConfig) *Simulator {
	n := g.NumNodes()
	q := make([]float64, n)
	for u := 0; u < n; u++ {
		deg := g.OutDegree(u)
		if deg < 1 {
			deg = 1
		}
		q[u] = cfg.PropagationProbability / math.Pow(float64(deg), cfg.NormalizationExponent)
	}
	return &Simulator{g: g, cfg: cfg, q: q}
}

// Run executes one cascade simulation seeded by seed, starting from
// sourceID, and returns the set of failed project ids (including the
// source), sorted ascending.
func (s *Simulator) Run(sourceID int64, seed uint64) ([]int64, error) {
	srcIdx, ok := s.g.IndexOf(sourceID)
	if !ok {
		return nil, errs.NotFound("Run", "source project %d not present in snapshot graph", sourceID)
	}

	var failedIdx []int32
	switch s.cfg.Implementation {
	case types.Frontier:
		failedIdx = s.runFrontier(int32(srcIdx), seed)
	case types.Matrix:
		failedIdx = s.runMatrix(int32(srcIdx), seed)
	default:
		failedIdx = s.runMatrix(int32(srcIdx), seed)
	}

	out := make([]int64, len(failedIdx))
	for i, idx := range failedIdx {
		out[i] = s.g.IDAt(int(idx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// hitsFunc computes, for the current frontier, how many frontier nodes
// each surviving predecessor directly uses (the per-round fan-in),
// keyed by predecessor node index.
type hitsFunc func(frontier []int32, failed map[int32]struct{}) map[int32]int

// runCascade is the shared per-round sampling loop both runFrontier and
// runMatrix drive: combine each candidate's per-edge propagation
// probability q(u) across its k edges into the frontier as
// 1 - (1-q(u))^k (independent-trial probability of at least one
// success), then consume one PRNG draw per candidate in ascending
// node-index order. Driving both implementations through this one loop
// is what makes them produce identical failed-sets for the same seed.
func (s *Simulator) runCascade(srcIdx int32, seed uint64, hits hitsFunc) []int32 {
	rng := rand.New(rand.NewSource(int64(seed))) //nolint:gosec

	failed := map[int32]struct{}{srcIdx: {}}
	frontier := []int32{srcIdx}

	for len(frontier) > 0 {
		candidates := hits(frontier, failed)
		if len(candidates) == 0 {
			break
		}

		idxs := make([]int32, 0, len(candidates))
		for u := range candidates {
			idxs = append(idxs, u)
		}
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

		var next []int32
		for _, u := range idxs {
			prob := 1 - math.Pow(1-s.q[u], float64(candidates[u]))
			if rng.Float64() < prob {
				failed[u] = struct{}{}
				next = append(next, u)
			}
		}
		frontier = next
	}

	out := make([]int32, 0, len(failed))
	for idx := range failed {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
