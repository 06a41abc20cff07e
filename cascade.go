// Package cascade provides a minimal public API for driving the cascade
// engine programmatically.
//
// Most callers should use cmd/cascade. This package exports only the
// essential types and constructors needed for Go programs that want to
// build snapshots, run simulations, and read measures without shelling
// out to the CLI.
package cascade

import (
	"context"
	"time"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/experiment"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/snapshot"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/store/memstore"
	"github.com/cascadegraph/cascade/internal/store/netstore"
	"github.com/cascadegraph/cascade/internal/store/sqlite"
	"github.com/cascadegraph/cascade/internal/types"
)

// Core types for working with snapshots, simulations, and measures.
type (
	Semantics         = types.Semantics
	SimConfig         = types.SimConfig
	ExactConfig       = types.ExactConfig
	SimImplementation = types.SimImplementation
	ResultType        = types.ResultType
	Graph             = graph.Graph
	Edge              = graph.Edge
)

// Snapshot semantics constants.
const (
	Full   = types.Full
	Latest = types.Latest
)

// Simulator implementation constants.
const (
	Frontier = types.Frontier
	Matrix   = types.Matrix
)

// Result-shape constants.
const (
	ResultRaw       = types.ResultRaw
	ResultCounts    = types.ResultCounts
	ResultNBFailing = types.ResultNBFailing
)

// Store is the persistence interface consumed by the Snapshot Builder and
// Experiment Manager.
type Store = store.Store

// EventLog is the narrow event-log read interface the Snapshot Builder
// consumes.
type EventLog = eventlog.EventLog

// NewSQLiteStore opens a cascade SQLite database for programmatic access.
func NewSQLiteStore(ctx context.Context, path string) (Store, error) {
	return sqlite.Open(ctx, path)
}

// NewServerStore connects to a cascade network-server (MySQL-compatible)
// database for programmatic access.
func NewServerStore(ctx context.Context, dsn string) (Store, error) {
	return netstore.Open(ctx, dsn)
}

// NewMemoryStore returns a pure-Go in-process store, useful for tests and
// short-lived programs that don't need durability.
func NewMemoryStore() Store {
	return memstore.New()
}

// Engine bundles the Snapshot Builder and Experiment Manager over one
// Store and EventLog, the minimal set an extension needs to build
// snapshots and run simulations.
type Engine struct {
	Store     Store
	Snapshots *snapshot.Builder
	Sim       *experiment.Manager
}

// NewEngine wires st and log into a ready-to-use Engine.
func NewEngine(st Store, log EventLog) *Engine {
	builder := snapshot.New(log, st)
	return &Engine{
		Store:     st,
		Snapshots: builder,
		Sim:       experiment.New(st, builder),
	}
}

// BuildSnapshot materializes (or reuses) the snapshot for (t, sem),
// returning its id.
func (e *Engine) BuildSnapshot(ctx context.Context, t time.Time, sem Semantics, name string) (int64, error) {
	return e.Snapshots.Build(ctx, t, sem, name)
}

// LoadGraph loads a materialized snapshot's Graph.
func (e *Engine) LoadGraph(ctx context.Context, snapshotID int64) (*Graph, error) {
	return e.Snapshots.Load(ctx, snapshotID)
}
