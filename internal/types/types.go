// Package types holds the data model shared across the cascade engine:
// event-log entities, snapshots, simulation records, and configuration
// documents.
package types

import "time"

// Project is a package/project tracked in the event log.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Release is a dated version of a Project.
type Release struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DependencyEdge records that a Release declares a dependency on a
// Project (not on a specific release of it).
type DependencyEdge struct {
	ReleaseID    int64 `json:"release_id"`
	DepProjectID int64 `json:"dep_project_id"`
}

// Semantics selects how a Snapshot's edges are derived from the event
// log's release history.
type Semantics string

const (
	// Full unions the dependencies declared by every release of a
	// project up to the snapshot instant.
	Full Semantics = "FULL"
	// Latest takes only the dependencies declared by the most recent
	// qualifying release of a project.
	Latest Semantics = "LATEST"
)

// Snapshot is a directed dependency graph materialized at an instant.
type Snapshot struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name,omitempty"`
	Semantics    Semantics `json:"semantics"`
	SnapshotTime time.Time `json:"snapshot_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// SnapshotEdge is a materialized directed edge using -> used within a
// Snapshot.
type SnapshotEdge struct {
	SnapshotID   int64 `json:"snapshot_id"`
	UsingProject int64 `json:"using_project"`
	UsedProject  int64 `json:"used_project"`
}

// SimImplementation selects which of the two equivalent cascade
// implementations a simulation uses.
type SimImplementation string

const (
	Frontier SimImplementation = "FRONTIER"
	Matrix   SimImplementation = "MATRIX"
)

// ExactImplementation selects which of the two exact-probability solvers
// to use.
type ExactImplementation string

const (
	Network      ExactImplementation = "NETWORK"
	MatrixExact  ExactImplementation = "MATRIX"
)

// ResultType selects the shape returned by the experiment manager's
// get_results.
type ResultType string

const (
	ResultRaw       ResultType = "RAW"
	ResultCounts    ResultType = "COUNTS"
	ResultNBFailing ResultType = "NB_FAILING"
)

// SimConfig is the recognized, typed configuration of a cascade
// simulation.
type SimConfig struct {
	PropagationProbability float64           `json:"propagation_probability"`
	NormalizationExponent  float64           `json:"normalization_exponent"`
	Implementation         SimImplementation `json:"implementation"`
}

// DefaultSimConfig returns the recognized defaults (p=0.9, alpha=0,
// implementation=MATRIX).
func DefaultSimConfig() SimConfig {
	return SimConfig{
		PropagationProbability: 0.9,
		NormalizationExponent:  0,
		Implementation:         Matrix,
	}
}

// WithDefaults fills zero-valued fields of partial with the recognized
// defaults, so two configs that are equal up to default inference
// canonicalize to the same document.
func (c SimConfig) WithDefaults() SimConfig {
	out := c
	if out.PropagationProbability == 0 {
		out.PropagationProbability = DefaultSimConfig().PropagationProbability
	}
	if out.Implementation == "" {
		out.Implementation = DefaultSimConfig().Implementation
	}
	return out
}

// ExactConfig configures the exact-probability solver.
type ExactConfig struct {
	Implementation ExactImplementation `json:"implementation"`
	Sim            SimConfig           `json:"sim_cfg"`
}

// SimulationRecord is the lifecycle row uniquely keyed by
// (snapshot, canonical sim_cfg, seed, failing_project).
type SimulationRecord struct {
	ID             int64     `json:"id"`
	SnapshotID     int64     `json:"snapshot_id"`
	SimCfgJSON     string    `json:"sim_cfg"`
	RandomSeed     uint64    `json:"random_seed"`
	FailingProject int64     `json:"failing_project"`
	Executed       bool      `json:"executed"`
}

// SimulationResult is one row of a SimulationRecord's failed-set: one
// project that failed in that run.
type SimulationResult struct {
	SimulationID   int64 `json:"simulation_id"`
	FailingProject int64 `json:"failing_project"`
}

// DeletedDependency is an append-only audit record of edges removed from
// the event log by ingestion.
type DeletedDependency struct {
	Using     int64     `json:"using"`
	Used      int64     `json:"used"`
	DeletedAt time.Time `json:"deleted_at"`
	Count     int64     `json:"count"`
}

// MeasureType names a (measure, canonical cfg) pair.
type MeasureType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Cfg  string `json:"cfg"`
}

// MeasureValue is the computed value of a MeasureType for one project in
// one snapshot.
type MeasureValue struct {
	MeasureID  int64   `json:"measure_id"`
	SnapshotID int64   `json:"snapshot_id"`
	ProjectID  int64   `json:"project_id"`
	Value      float64 `json:"value"`
}

// ExactComputation marks that the exact-probability table for
// (snapshot, cfg) has been computed.
type ExactComputation struct {
	ID         int64  `json:"id"`
	SnapshotID int64  `json:"snapshot_id"`
	Cfg        string `json:"cfg"`
}

// ExactValue is one (source, target) entry of an ExactComputation's
// probability table.
type ExactValue struct {
	ExactID     int64   `json:"exact_id"`
	SourceID    int64   `json:"source_id"`
	TargetID    int64   `json:"target_id"`
	Probability float64 `json:"probability"`
}
