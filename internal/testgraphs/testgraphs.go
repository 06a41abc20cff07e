// Package testgraphs builds small, hand-verified dependency graphs shared
// across package tests in place of a CSV fixture corpus loaded from disk.
package testgraphs

import "github.com/cascadegraph/cascade/internal/graph"

// Chain builds a 1->2->3->4->5 linear dependency chain (using -> used):
// project 1 uses 2, 2 uses 3, and so on. It is a minimal fixture for
// exercising cascade propagation along a single path, from either end.
func Chain() *graph.Graph {
	return graph.Build([]int64{1, 2, 3, 4, 5}, []graph.Edge{
		{Using: 1, Used: 2},
		{Using: 2, Used: 3},
		{Using: 3, Used: 4},
		{Using: 4, Used: 5},
	})
}

// SmallTestNet builds an eight-node fixture with a mix of a cascading
// component and an unrelated one. Its dependency edges (using -> used)
// are:
//
//	1 -> 2
//	8 -> 1
//	4 -> 3
//	5 -> 3
//	6 -> 5
//	4 -> 7
//
// so that, with p=1, a failure sourced at 3 propagates to its transitive
// dependents {4, 5, 6} (4 and 5 use 3 directly, 6 uses 5), and a failure
// sourced at 7 propagates only to its sole dependent 4. Nodes 1, 2, and
// 8 form an unrelated component exercising in/out-degree measures
// without affecting either cascade.
func SmallTestNet() *graph.Graph {
	return graph.Build([]int64{1, 2, 3, 4, 5, 6, 7, 8}, []graph.Edge{
		{Using: 1, Used: 2},
		{Using: 8, Used: 1},
		{Using: 4, Used: 3},
		{Using: 5, Used: 3},
		{Using: 6, Used: 5},
		{Using: 4, Used: 7},
	})
}
