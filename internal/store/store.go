// Package store defines the persistence contract the simulator and
// experiment manager consume: snapshot CRUD with idempotent upsert,
// simulation upsert with conflict-do-nothing on the uniqueness key,
// batched result inserts, an executed-flag flip, and measure/exact-
// computation markers with skip-if-already-present value inserts. Two
// backends implement it: store/sqlite (local file) and store/netstore
// (network server); store/memstore is a pure-Go reference
// implementation used by tests and by callers who only need an
// in-process store.
package store

import (
	"context"
	"time"

	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/types"
)

// Store is the narrow persistence interface consumed by the snapshot
// builder, simulator, and experiment manager.
type Store interface {
	// --- Snapshot CRUD ---

	// UpsertSnapshot returns the existing snapshot's id if one with the
	// same (snapshot_time, semantics) exists, otherwise creates it.
	// created reports whether a new row was inserted.
	UpsertSnapshot(ctx context.Context, snapTime time.Time, sem types.Semantics, name string) (id int64, created bool, err error)

	GetSnapshot(ctx context.Context, id int64) (*types.Snapshot, error)
	GetSnapshotByName(ctx context.Context, name string) (*types.Snapshot, error)
	GetSnapshotByKey(ctx context.Context, snapTime time.Time, sem types.Semantics) (*types.Snapshot, error)

	// HasSnapshotEdges reports whether snapshot edges have already been
	// materialized for id, so the builder can short-circuit rebuilding.
	HasSnapshotEdges(ctx context.Context, id int64) (bool, error)

	InsertSnapshotEdges(ctx context.Context, id int64, edges []graph.Edge) error
	GetSnapshotEdges(ctx context.Context, id int64) ([]graph.Edge, error)

	// SetSnapshotNodes records the full node set of a snapshot, which may
	// include projects with no incident edges: node-set membership is
	// independent of which nodes have incident edges.
	SetSnapshotNodes(ctx context.Context, id int64, nodes []int64) error

	// GetSnapshotNodes returns every project with created_at <= the
	// snapshot's instant.
	GetSnapshotNodes(ctx context.Context, id int64) ([]int64, error)

	// DeleteSnapshot removes a snapshot and cascades to its edges and
	// every derived simulation/measure/exact result.
	DeleteSnapshot(ctx context.Context, id int64) error

	// --- Simulation lifecycle ---

	// UpsertSimulationRecord creates a simulation record in executed=false
	// state if one with the same (snapshot, cfg, seed, source) does not
	// already exist; created reports whether it was newly inserted.
	UpsertSimulationRecord(ctx context.Context, rec types.SimulationRecord) (id int64, created bool, err error)

	GetSimulationRecord(ctx context.Context, id int64) (*types.SimulationRecord, error)

	// ListSimulationRecords returns up to limit records for
	// (snapshotID, cfgJSON[, failingProject]), ordered by executed then
	// id, matching the original's list_simulations ordering. A nil
	// failingProject lists across every source.
	ListSimulationRecords(ctx context.Context, snapshotID int64, failingProject *int64, cfgJSON string, limit int) ([]types.SimulationRecord, error)

	// MarkExecuted flips a simulation record to executed=true and
	// batch-inserts its result rows, atomically. Calling it twice on an
	// already-executed record is a no-op.
	MarkExecuted(ctx context.Context, simID int64, failedProjects []int64) error

	GetSimulationResults(ctx context.Context, simIDs []int64) (map[int64][]int64, error)

	// --- Measures ---

	UpsertMeasureType(ctx context.Context, name, cfgJSON string) (id int64, err error)
	HasMeasureValues(ctx context.Context, measureID, snapshotID int64) (bool, error)
	InsertMeasureValues(ctx context.Context, measureID, snapshotID int64, values map[int64]float64) error
	GetMeasureValues(ctx context.Context, measureID, snapshotID int64) (map[int64]float64, error)

	// --- Exact computation ---

	UpsertExactComputation(ctx context.Context, snapshotID int64, cfgJSON string) (id int64, err error)
	HasExactValues(ctx context.Context, exactID int64) (bool, error)
	InsertExactValues(ctx context.Context, exactID, sourceID int64, values map[int64]float64) error
	GetExactValues(ctx context.Context, exactID, sourceID int64) (map[int64]float64, error)

	Close() error
}
