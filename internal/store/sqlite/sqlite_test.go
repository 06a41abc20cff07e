package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/store/sqlite"
	"github.com/cascadegraph/cascade/internal/types"
)

// invariant: (snapshot_time, semantics) uniquely identifies a
// snapshot, checked against the real on-disk backend rather than
// just memstore's in-process reference.
func TestOpenAndSnapshotUniqueness(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cascade.db")

	st, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer st.Close()

	snapTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	id1, created1, err := st.UpsertSnapshot(ctx, snapTime, types.Full, "release-cut")
	require.NoError(t, err)
	assert.True(t, created1)

	id2, created2, err := st.UpsertSnapshot(ctx, snapTime, types.Full, "release-cut")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	id3, _, err := st.UpsertSnapshot(ctx, snapTime, types.Latest, "release-cut-latest")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	edges := []graph.Edge{{Using: 1, Used: 2}, {Using: 2, Used: 3}}
	require.NoError(t, st.InsertSnapshotEdges(ctx, id1, edges))
	require.NoError(t, st.SetSnapshotNodes(ctx, id1, []int64{1, 2, 3}))

	has, err := st.HasSnapshotEdges(ctx, id1)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := st.GetSnapshotEdges(ctx, id1)
	require.NoError(t, err)
	assert.ElementsMatch(t, edges, got)

	byName, err := st.GetSnapshotByName(ctx, "release-cut")
	require.NoError(t, err)
	assert.Equal(t, id1, byName.ID)
}

func TestSimulationRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cascade.db")
	st, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer st.Close()

	snapID, _, err := st.UpsertSnapshot(ctx, time.Now(), types.Full, "")
	require.NoError(t, err)
	require.NoError(t, st.SetSnapshotNodes(ctx, snapID, []int64{1, 2, 3}))

	rec := types.SimulationRecord{SnapshotID: snapID, SimCfgJSON: `{"implementation":"MATRIX"}`, RandomSeed: 7, FailingProject: 1}
	id1, created1, err := st.UpsertSimulationRecord(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created1)

	id2, created2, err := st.UpsertSimulationRecord(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	require.NoError(t, st.MarkExecuted(ctx, id1, []int64{1, 2}))
	got, err := st.GetSimulationRecord(ctx, id1)
	require.NoError(t, err)
	assert.True(t, got.Executed)

	results, err := st.GetSimulationResults(ctx, []int64{id1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, results[id1])
}
