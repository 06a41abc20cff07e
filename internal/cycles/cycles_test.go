package cycles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/cycles"
	"github.com/cascadegraph/cascade/internal/graph"
)

func TestDetectSelfLoop(t *testing.T) {
	g := graph.Build([]int64{1, 2}, []graph.Edge{{Using: 1, Used: 1}})
	found, err := cycles.Detect(g, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []int64{1}, found[0].Nodes)
}

func TestDetectTwoCycle(t *testing.T) {
	g := graph.Build([]int64{1, 2}, []graph.Edge{{Using: 1, Used: 2}, {Using: 2, Used: 1}})
	found, err := cycles.Detect(g, 2)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []int64{1, 2}, found[0].Nodes)
}

func TestDetectAnyLengthFindsFixedLengthCycle(t *testing.T) {
	g := graph.Build([]int64{1, 2}, []graph.Edge{{Using: 1, Used: 2}, {Using: 2, Used: 1}})
	found, err := cycles.Detect(g, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []int64{1, 2}, found[0].Nodes)
}

func TestDetectNoCycles(t *testing.T) {
	g := graph.Build([]int64{1, 2, 3}, []graph.Edge{{Using: 1, Used: 2}, {Using: 2, Used: 3}})
	found, err := cycles.Detect(g, 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetectRejectsInvalidLength(t *testing.T) {
	g := graph.Build([]int64{1}, nil)
	_, err := cycles.Detect(g, -1)
	assert.Error(t, err)
	_, err = cycles.Detect(g, 5)
	assert.Error(t, err)
}

func TestDetectAnyLengthReturnsTraversalOrder(t *testing.T) {
	// A three-cycle 1->2->3->1: the any-length search reports exactly
	// one cycle, in the order the DFS walked it, not a canonical
	// rotation.
	g := graph.Build([]int64{1, 2, 3}, []graph.Edge{
		{Using: 1, Used: 2},
		{Using: 2, Used: 3},
		{Using: 3, Used: 1},
	})
	found, err := cycles.Detect(g, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []int64{1, 2, 3}, found[0].Nodes)
}

func TestDetectFixedLengthDedupesAcrossRotations(t *testing.T) {
	// A three-cycle 1->2->3->1 reported exactly once, canonically
	// rotated to start at its minimum id, regardless of which node the
	// walk starts from.
	g := graph.Build([]int64{1, 2, 3}, []graph.Edge{
		{Using: 1, Used: 2},
		{Using: 2, Used: 3},
		{Using: 3, Used: 1},
	})
	found, err := cycles.Detect(g, 3)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []int64{1, 2, 3}, found[0].Nodes)
}
