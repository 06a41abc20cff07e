package eventlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestProjectsCreatedBefore(t *testing.T) {
	log := &eventlog.Memory{
		Projects: []types.Project{
			{ID: 1, CreatedAt: day("2020-01-01")},
			{ID: 2, CreatedAt: day("2020-06-01")},
			{ID: 3, CreatedAt: day("2021-01-01")},
		},
	}
	ids, err := log.ProjectsCreatedBefore(context.Background(), day("2020-06-01"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestFullEdgesUnionsAllReleases(t *testing.T) {
	log := &eventlog.Memory{
		Projects: []types.Project{{ID: 1, CreatedAt: day("2020-01-01")}},
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, CreatedAt: day("2020-01-01")},
			{ID: 11, ProjectID: 1, CreatedAt: day("2020-02-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 3},
		},
	}
	edges, err := log.FullEdges(context.Background(), day("2020-03-01"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{Using: 1, Used: 2}, {Using: 1, Used: 3}}, edges)
}

func TestFullEdgesDeduplicates(t *testing.T) {
	log := &eventlog.Memory{
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, CreatedAt: day("2020-01-01")},
			{ID: 11, ProjectID: 1, CreatedAt: day("2020-02-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 2},
		},
	}
	edges, err := log.FullEdges(context.Background(), day("2020-03-01"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{Using: 1, Used: 2}}, edges)
}

func TestLatestEdgesOnlyMostRecentRelease(t *testing.T) {
	log := &eventlog.Memory{
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, CreatedAt: day("2020-01-01")},
			{ID: 11, ProjectID: 1, CreatedAt: day("2020-02-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 3},
		},
	}
	edges, err := log.LatestEdges(context.Background(), day("2020-03-01"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{Using: 1, Used: 3}}, edges)
}

func TestLatestEdgesRespectsSnapshotInstant(t *testing.T) {
	log := &eventlog.Memory{
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, CreatedAt: day("2020-01-01")},
			{ID: 11, ProjectID: 1, CreatedAt: day("2020-05-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 3},
		},
	}
	edges, err := log.LatestEdges(context.Background(), day("2020-02-01"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{Using: 1, Used: 2}}, edges)
}

func TestLatestEdgesTiebreaksByReleaseID(t *testing.T) {
	log := &eventlog.Memory{
		Releases: []types.Release{
			{ID: 10, ProjectID: 1, CreatedAt: day("2020-01-01")},
			{ID: 11, ProjectID: 1, CreatedAt: day("2020-01-01")},
		},
		Dependencies: []types.DependencyEdge{
			{ReleaseID: 10, DepProjectID: 2},
			{ReleaseID: 11, DepProjectID: 3},
		},
	}
	edges, err := log.LatestEdges(context.Background(), day("2020-03-01"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{Using: 1, Used: 3}}, edges)
}
