package experiment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/experiment"
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

func buildSmallTestNet(t *testing.T, st *memstore.Store) (*snapshot.Builder, int64) {
	t.Helper()
	log := &eventlog.Memory{
		Projects: []types.Project{
			{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6}, {ID: 7}, {ID: 8},
		},
		Releases: []types.Release{
			{ID: 100, ProjectID: 1}, {ID: 101, ProjectID: 4}, {ID: 102, ProjectID: 5},
			{ID: 103, ProjectID: 6}, {ID: 104, ProjectID: 8},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 100, DepProjectID: 2},
			{ReleaseID: 101, DepProjectID: 3},
			{ReleaseID: 101, DepProjectID: 7},
			{ReleaseID: 102, DepProjectID: 3},
			{ReleaseID: 103, DepProjectID: 5},
			{ReleaseID: 104, DepProjectID: 1},
		},
	}
	builder := snapshot.New(log, st)
	id, err := builder.Build(context.Background(), day("2020-01-01"), types.Full, "smalltestnet")
	require.NoError(t, err)
	return builder, id
}

func TestRunSimulationsIsIdempotentInRecordCount(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	cfg := types.SimConfig{PropagationProbability: 1, Implementation: types.Matrix}
	req := experiment.RunSimulationsRequest{SnapshotID: snapID, NB: 5, Cfg: cfg}
	req.Source = ptr(int64(3))

	require.NoError(t, mgr.RunSimulations(ctx, req))
	recs, err := st.ListSimulationRecords(ctx, snapID, ptr(int64(3)), mustCanon(t, cfg), 0)
	require.NoError(t, err)
	require.Len(t, recs, 5)

	// running again with the same NB must not create additional records
	// Ensures exactly nb records exist per source.
	require.NoError(t, mgr.RunSimulations(ctx, req))
	recs2, err := st.ListSimulationRecords(ctx, snapID, ptr(int64(3)), mustCanon(t, cfg), 0)
	require.NoError(t, err)
	assert.Len(t, recs2, 5)
}

func TestRunSimulationsToppingUpAddsOnlyTheDifference(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	cfg := types.SimConfig{PropagationProbability: 1, Implementation: types.Matrix}
	source := int64(3)

	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, Source: &source, NB: 3, Cfg: cfg}))
	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, Source: &source, NB: 8, Cfg: cfg}))

	recs, err := st.ListSimulationRecords(ctx, snapID, &source, mustCanon(t, cfg), 0)
	require.NoError(t, err)
	assert.Len(t, recs, 8)
	for _, r := range recs {
		assert.True(t, r.Executed)
	}
}

func TestGetResultsCountsAndRaw(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	cfg := types.SimConfig{PropagationProbability: 1, Implementation: types.Matrix}
	source := int64(3)
	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, Source: &source, NB: 6, Cfg: cfg}))

	counts, err := mgr.GetResults(ctx, experiment.GetResultsRequest{SnapshotID: snapID, Source: &source, NB: 6, Cfg: cfg, ResultType: types.ResultCounts})
	require.NoError(t, err)
	// p=1 is deterministic: every one of the 6 runs fails the same set
	// (3's dependents 4 and 5, plus 5's dependent 6).
	for _, id := range []int64{3, 4, 5, 6} {
		assert.InDelta(t, 1.0, counts.CountsSingle[id], 1e-9)
	}

	raw, err := mgr.GetResults(ctx, experiment.GetResultsRequest{SnapshotID: snapID, Source: &source, NB: 6, Cfg: cfg, ResultType: types.ResultRaw})
	require.NoError(t, err)
	require.Len(t, raw.RawSingle, 6)
	for _, run := range raw.RawSingle {
		assert.Equal(t, []int64{3, 4, 5, 6}, run)
	}
}

func TestGetResultsFailsWhenFewerThanNBExecuted(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	cfg := types.SimConfig{PropagationProbability: 0.5, Implementation: types.Matrix}
	source := int64(3)
	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, Source: &source, NB: 2, Cfg: cfg}))

	_, err := mgr.GetResults(ctx, experiment.GetResultsRequest{SnapshotID: snapID, Source: &source, NB: 10, Cfg: cfg, ResultType: types.ResultCounts})
	assert.Error(t, err)
}

func TestGetResultsAggregatedRejectsRaw(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	_, err := mgr.GetResults(ctx, experiment.GetResultsRequest{
		SnapshotID: snapID,
		NB:         1,
		Cfg:        types.DefaultSimConfig(),
		ResultType: types.ResultRaw,
		Aggregated: true,
	})
	assert.Error(t, err)
}

func TestRunSimulationsAllSourcesCoversEveryNode(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	builder, snapID := buildSmallTestNet(t, st)
	mgr := experiment.New(st, builder)

	cfg := types.SimConfig{PropagationProbability: 1, Implementation: types.Matrix}
	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, NB: 2, Cfg: cfg}))

	res, err := mgr.GetResults(ctx, experiment.GetResultsRequest{SnapshotID: snapID, NB: 2, Cfg: cfg, ResultType: types.ResultCounts})
	require.NoError(t, err)
	g, err := builder.Load(ctx, snapID)
	require.NoError(t, err)
	assert.Len(t, res.CountsBySource, g.NumNodes())
}

func ptr(v int64) *int64 { return &v }

func mustCanon(t *testing.T, cfg types.SimConfig) string {
	t.Helper()
	s, err := cfg.WithDefaults().Canonicalize()
	require.NoError(t, err)
	return s
}
