package measures_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/experiment"
	"github.com/cascadegraph/cascade/internal/measures"
	"github.com/cascadegraph/cascade/internal/snapshot"
	"github.com/cascadegraph/cascade/internal/store/memstore"
	"github.com/cascadegraph/cascade/internal/testgraphs"
	"github.com/cascadegraph/cascade/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestInAndOutDegreeValues(t *testing.T) {
	g := testgraphs.SmallTestNet()
	in := measures.InDegreeValues(g)
	out := measures.OutDegreeValues(g)

	assert.Equal(t, float64(2), in[3])  // 4 and 5 both use 3
	assert.Equal(t, float64(1), in[7])  // only 4 uses 7
	assert.Equal(t, float64(2), out[4]) // 4 uses 3 and 7
	assert.Equal(t, float64(0), out[2]) // 2 uses nothing
}

func TestCanonicalConfigFillsMeanCascadeLengthDefaults(t *testing.T) {
	cfg, err := measures.CanonicalConfig(measures.MeanCascadeLength, measures.Config{})
	require.NoError(t, err)
	assert.Contains(t, cfg, `"nb":100`)
	assert.Contains(t, cfg, `"order":1`)

	degCfg, err := measures.CanonicalConfig(measures.InDegree, measures.Config{})
	require.NoError(t, err)
	assert.Contains(t, degCfg, `"order":1`)
	assert.NotContains(t, degCfg, "nb")
}

func TestMeanCascadeLengthRejectsLowNB(t *testing.T) {
	_, err := measures.MeanCascadeLength(context.Background(), nil, 1, types.DefaultSimConfig(), 0)
	assert.Error(t, err)
}

func TestMeanCascadeLengthOverCertainPropagation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	log := &eventlog.Memory{
		Projects: []types.Project{{ID: 1}, {ID: 2}, {ID: 3}},
		Releases: []types.Release{{ID: 10, ProjectID: 1}},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
		},
	}
	builder := snapshot.New(log, st)
	snapID, err := builder.Build(ctx, day("2020-01-01"), types.Full, "")
	require.NoError(t, err)

	mgr := experiment.New(st, builder)
	cfg := types.SimConfig{PropagationProbability: 1, Implementation: types.Matrix}
	require.NoError(t, mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{SnapshotID: snapID, NB: 4, Cfg: cfg}))

	out, err := measures.MeanCascadeLength(ctx, mgr, snapID, cfg, 4)
	require.NoError(t, err)
	// project 1 uses 2: failing 1 fails only {1} (nothing uses 1).
	assert.InDelta(t, 1.0, out[1], 1e-9)
	// project 2 is used by 1: failing 2 deterministically fails {1, 2}.
	assert.InDelta(t, 2.0, out[2], 1e-9)
	// project 3 has no relation to anything: failing it fails only itself.
	assert.InDelta(t, 1.0, out[3], 1e-9)
}

// countingStore wraps a memstore.Store and counts InsertMeasureValues
// calls, so a second Compute call with the same (name, cfg, snapshot)
// can be shown to hit the stored values rather than recomputing.
type countingStore struct {
	*memstore.Store
	inserts int
}

func (c *countingStore) InsertMeasureValues(ctx context.Context, measureID, snapshotID int64, values map[int64]float64) error {
	c.inserts++
	return c.Store.InsertMeasureValues(ctx, measureID, snapshotID, values)
}

func TestComputeReusesStoredMeasureValues(t *testing.T) {
	ctx := context.Background()
	g := testgraphs.SmallTestNet()
	st := &countingStore{Store: memstore.New()}

	log := &eventlog.Memory{Projects: []types.Project{{ID: 1}}}
	builder := snapshot.New(log, st)
	snapID, err := builder.Build(ctx, day("2020-01-01"), types.Full, "")
	require.NoError(t, err)

	cfg := measures.Config{}
	first, err := measures.Compute(ctx, st, nil, g, snapID, measures.InDegree, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, st.inserts)

	second, err := measures.Compute(ctx, st, nil, g, snapID, measures.InDegree, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, st.inserts, "second Compute must reuse stored values, not recompute")
	assert.Equal(t, first, second)
}
