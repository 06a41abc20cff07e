package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/snapshot"
	"github.com/cascadegraph/cascade/internal/store/memstore"
	"github.com/cascadegraph/cascade/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixtureLog() *eventlog.Memory {
	return &eventlog.Memory{
		Projects: []types.Project{
			{ID: 1, Name: "a", CreatedAt: day("2020-01-01")},
			{ID: 2, Name: "b", CreatedAt: day("2020-01-01")},
			{ID: 3, Name: "c", CreatedAt: day("2020-06-01")},
		},
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, Name: "1.0", CreatedAt: day("2020-02-01")},
			{ID: 11, ProjectID: 1, Name: "2.0", CreatedAt: day("2020-07-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 3},
		},
	}
}

// invariant: BuildSnapshot(t, FULL) is idempotent: a second Build for
// the same (t, semantics) returns the same id and does not
// re-materialize.
func TestBuildSnapshotIdempotent(t *testing.T) {
	ctx := context.Background()
	b := snapshot.New(fixtureLog(), memstore.New())

	id1, err := b.Build(ctx, day("2020-08-01"), types.Full, "")
	require.NoError(t, err)
	id2, err := b.Build(ctx, day("2020-08-01"), types.Full, "")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

// invariant: building a snapshot twice for the same (t, semantics)
// produces the same materialized graph (determinism).
func TestBuildSnapshotDeterministic(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	log := fixtureLog()

	id1, err := snapshot.New(log, st).Build(ctx, day("2020-08-01"), types.Full, "")
	require.NoError(t, err)
	g1, err := snapshot.New(log, st).Load(ctx, id1)
	require.NoError(t, err)

	st2 := memstore.New()
	id2, err := snapshot.New(log, st2).Build(ctx, day("2020-08-01"), types.Full, "")
	require.NoError(t, err)
	g2, err := snapshot.New(log, st2).Load(ctx, id2)
	require.NoError(t, err)

	assert.Equal(t, g1.NodeIDs(), g2.NodeIDs())
	assert.Equal(t, g1.Edges(), g2.Edges())
}

// invariant: FULL's edge set is a superset of LATEST's for the same
// instant, since FULL unions every release's dependencies while LATEST
// only takes the most recent one.
func TestFullSupersetsLatest(t *testing.T) {
	ctx := context.Background()
	b := snapshot.New(fixtureLog(), memstore.New())

	fullID, err := b.Build(ctx, day("2020-08-01"), types.Full, "")
	require.NoError(t, err)
	fullGraph, err := b.Load(ctx, fullID)
	require.NoError(t, err)

	latestID, err := b.Build(ctx, day("2020-08-01"), types.Latest, "")
	require.NoError(t, err)
	latestGraph, err := b.Load(ctx, latestID)
	require.NoError(t, err)

	latestEdges := make(map[graphEdge]struct{})
	for _, e := range latestGraph.Edges() {
		latestEdges[graphEdge{e.Using, e.Used}] = struct{}{}
	}
	fullEdges := make(map[graphEdge]struct{})
	for _, e := range fullGraph.Edges() {
		fullEdges[graphEdge{e.Using, e.Used}] = struct{}{}
	}
	for e := range latestEdges {
		_, ok := fullEdges[e]
		assert.True(t, ok, "FULL missing LATEST edge %+v", e)
	}
}

type graphEdge struct{ Using, Used int64 }

// Project 3 and project 1's second release (the one depending on
// project 3) both postdate the snapshot instant, so neither node 3 nor
// the 1->3 edge may appear; only release 1.0's 1->2 edge remains.
func TestSnapshotExcludesFutureReleases(t *testing.T) {
	ctx := context.Background()
	b := snapshot.New(fixtureLog(), memstore.New())

	id, err := b.Build(ctx, day("2020-03-01"), types.Latest, "s1")
	require.NoError(t, err)
	g, err := b.Load(ctx, id)
	require.NoError(t, err)

	assert.Contains(t, g.NodeIDs(), int64(1))
	assert.Contains(t, g.NodeIDs(), int64(2))
	assert.NotContains(t, g.NodeIDs(), int64(3))

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, int64(1), edges[0].Using)
	assert.Equal(t, int64(2), edges[0].Used)
}

func TestBuildRejectsUnknownSemantics(t *testing.T) {
	ctx := context.Background()
	b := snapshot.New(fixtureLog(), memstore.New())
	_, err := b.Build(ctx, day("2020-08-01"), types.Semantics("BOGUS"), "")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	_, err := snapshot.ParseTime("2020-01-02")
	assert.NoError(t, err)
	_, err = snapshot.ParseTime("2020-01-02 03:04:05")
	assert.NoError(t, err)
	_, err = snapshot.ParseTime("")
	assert.Error(t, err)
	_, err = snapshot.ParseTime("not-a-time")
	assert.Error(t, err)
}
