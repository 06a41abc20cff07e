// Package eventlog defines the narrow read interface the snapshot
// builder consumes against a populated event log, and an in-memory
// reference implementation used by tests and by callers who have
// already loaded a corpus into process memory.
package eventlog

import (
	"context"
	"sort"
	"time"

	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/types"
)

// EventLog is the query surface the snapshot builder needs. Ingestion
// (CSV/upstream-DB loaders) is out of scope; implementations only need
// to serve these reads over whatever store was populated by an
// external loader.
type EventLog interface {
	// ProjectsCreatedBefore returns the ids of every project with
	// created_at <= t. The node set is independent of which nodes
	// have incident edges, so an isolated project still appears.
	ProjectsCreatedBefore(ctx context.Context, t time.Time) ([]int64, error)

	// FullEdges returns the deduplicated using->used edge set under
	// FULL semantics: any release of "using" at or before t that
	// declares a dependency on "used".
	FullEdges(ctx context.Context, t time.Time) ([]graph.Edge, error)

	// LatestEdges returns the deduplicated using->used edge set under
	// LATEST semantics: only the most recent release of "using" at or
	// before t.
	LatestEdges(ctx context.Context, t time.Time) ([]graph.Edge, error)
}

// Memory is an in-memory EventLog built directly from Project, Release,
// and DependencyEdge rows. It is the reference implementation used by
// tests, and the result type of the eventlog/csv loaders.
type Memory struct {
	Projects     []types.Project
	Releases     []types.Release
	Dependencies []types.DependencyEdge
}

var _ EventLog = (*Memory)(nil)

func (m *Memory) ProjectsCreatedBefore(_ context.Context, t time.Time) ([]int64, error) {
	var ids []int64
	for _, p := range m.Projects {
		if !p.CreatedAt.After(t) {
			ids = append(ids, p.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// depsByRelease indexes dependency edges by release id.
func (m *Memory) depsByRelease() map[int64][]int64 {
	idx := make(map[int64][]int64)
	for _, d := range m.Dependencies {
		idx[d.ReleaseID] = append(idx[d.ReleaseID], d.DepProjectID)
	}
	return idx
}

func (m *Memory) FullEdges(_ context.Context, t time.Time) ([]graph.Edge, error) {
	deps := m.depsByRelease()
	seen := make(map[graph.Edge]struct{})
	var out []graph.Edge
	for _, r := range m.Releases {
		if r.CreatedAt.After(t) {
			continue
		}
		for _, used := range deps[r.ID] {
			e := graph.Edge{Using: r.ProjectID, Used: used}
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	sortEdges(out)
	return out, nil
}

func (m *Memory) LatestEdges(_ context.Context, t time.Time) ([]graph.Edge, error) {
	deps := m.depsByRelease()

	// Most recent qualifying release per project: by created_at desc,
	// tiebreak by release id desc.
	latest := make(map[int64]types.Release)
	for _, r := range m.Releases {
		if r.CreatedAt.After(t) {
			continue
		}
		cur, ok := latest[r.ProjectID]
		if !ok || r.CreatedAt.After(cur.CreatedAt) || (r.CreatedAt.Equal(cur.CreatedAt) && r.ID > cur.ID) {
			latest[r.ProjectID] = r
		}
	}

	seen := make(map[graph.Edge]struct{})
	var out []graph.Edge
	for _, r := range latest {
		for _, used := range deps[r.ID] {
			e := graph.Edge{Using: r.ProjectID, Used: used}
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	sortEdges(out)
	return out, nil
}

func sortEdges(edges []graph.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Using != edges[j].Using {
			return edges[i].Using < edges[j].Using
		}
		return edges[i].Used < edges[j].Used
	})
}
