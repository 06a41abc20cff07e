// Package snapshot builds materialized dependency graphs at an instant
// from an event log, reusing an already-materialized snapshot for the
// same (instant, semantics) rather than re-deriving it.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/logging"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/types"
)

// ParseTime accepts the two timestamp layouts used for snapshot
// instants: a bare date, or a date with time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errs.Validation("ParseTime", "empty timestamp")
	}
	if len(s) == len("2006-01-02") {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, errs.Validation("ParseTime", "%q: %v", s, err)
		}
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, errs.Validation("ParseTime", "%q: %v", s, err)
	}
	return t, nil
}

// Builder materializes Snapshots from an EventLog into a Store.
type Builder struct {
	Log   eventlog.EventLog
	Store store.Store
}

func New(log eventlog.EventLog, st store.Store) *Builder {
	return &Builder{Log: log, Store: st}
}

// Build returns the id of the snapshot for (t, semantics), creating and
// materializing it if it does not already exist. The operation is
// idempotent: calling it twice with the same (t, semantics) returns the
// same id without re-querying the event log.
func (b *Builder) Build(ctx context.Context, t time.Time, sem types.Semantics, name string) (int64, error) {
	if sem != types.Full && sem != types.Latest {
		return 0, errs.Validation("Build", "unknown semantics %q", sem)
	}

	id, created, err := b.Store.UpsertSnapshot(ctx, t, sem, name)
	if err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}

	hasEdges, err := b.Store.HasSnapshotEdges(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("check snapshot materialized: %w", err)
	}
	if !created && hasEdges {
		return id, nil
	}

	logging.L().Info("materializing snapshot", "id", id, "time", t, "semantics", sem)

	nodes, err := b.Log.ProjectsCreatedBefore(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("query node set: %w", err)
	}

	var edges []graph.Edge
	switch sem {
	case types.Full:
		edges, err = b.Log.FullEdges(ctx, t)
	case types.Latest:
		edges, err = b.Log.LatestEdges(ctx, t)
	}
	if err != nil {
		return 0, fmt.Errorf("query edges: %w", err)
	}

	// The node set is authoritative even for nodes with no incident
	// edges, so it is recorded independently of edges.
	if err := b.Store.SetSnapshotNodes(ctx, id, nodes); err != nil {
		return 0, fmt.Errorf("store snapshot nodes: %w", err)
	}
	if err := b.Store.InsertSnapshotEdges(ctx, id, edges); err != nil {
		return 0, fmt.Errorf("store snapshot edges: %w", err)
	}

	return id, nil
}

// Load fetches a materialized snapshot's node set and edges and builds
// its in-memory Graph, ready for simulation or exact computation.
func (b *Builder) Load(ctx context.Context, snapshotID int64) (*graph.Graph, error) {
	nodes, err := b.Store.GetSnapshotNodes(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, errs.NotFound("Load", "snapshot %d has no materialized nodes", snapshotID)
	}
	edges, err := b.Store.GetSnapshotEdges(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot edges: %w", err)
	}
	return graph.Build(nodes, edges), nil
}
