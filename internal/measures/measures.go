// Package measures computes per-project structural and simulation-
// derived metrics over a snapshot, persisting each named measure's
// values so a later call with the same snapshot and configuration
// reuses the stored result instead of recomputing it.
package measures

import (
	"context"
	"fmt"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/experiment"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/types"
)

// Name identifies a measure kind.
type Name string

const (
	InDegree          Name = "in_degree"
	OutDegree         Name = "out_degree"
	MeanCascadeLength Name = "mean_cascade_length"
)

// Config is a measure's recognized configuration. Order is pinned at 1:
// this implementation only computes first-order (direct) in/out-degree,
// not transitive-closure degree at higher orders. SimCfg and NB only
// apply to mean_cascade_length.
type Config struct {
	Order int             `json:"order"`
	SimCfg types.SimConfig `json:"sim_cfg,omitempty"`
	NB     int             `json:"nb,omitempty"`
}

// CanonicalConfig returns the JSON-canonical form of cfg, incorporating
// the recognized simulation-cfg defaults when name depends on
// simulations, so two configs equal up to default inference key to the
// same stored measure row.
func CanonicalConfig(name Name, cfg Config) (string, error) {
	complete := cfg
	if complete.Order == 0 {
		complete.Order = 1
	}
	if name == MeanCascadeLength {
		complete.SimCfg = complete.SimCfg.WithDefaults()
		if complete.NB == 0 {
			complete.NB = 100
		}
	}
	return types.CanonicalJSON(complete)
}

// InDegreeValues returns order-1 in-degree (number of projects that use
// each project) for every node in g, keyed by project id.
func InDegreeValues(g *graph.Graph) map[int64]float64 {
	out := make(map[int64]float64, g.NumNodes())
	for i := 0; i < g.NumNodes(); i++ {
		out[g.IDAt(i)] = float64(g.InDegree(i))
	}
	return out
}

// OutDegreeValues returns order-1 out-degree (number of projects each
// project uses) for every node in g, keyed by project id.
func OutDegreeValues(g *graph.Graph) map[int64]float64 {
	out := make(map[int64]float64, g.NumNodes())
	for i := 0; i < g.NumNodes(); i++ {
		out[g.IDAt(i)] = float64(g.OutDegree(i))
	}
	return out
}

// MeanCascadeLength computes, for every project in g, the mean number
// of failing projects across nb simulations sourced at it, using mgr's
// experiment machinery to reuse (or create) the underlying simulation
// records.
func MeanCascadeLength(ctx context.Context, mgr *experiment.Manager, snapshotID int64, cfg types.SimConfig, nb int) (map[int64]float64, error) {
	if nb < 1 {
		return nil, errs.Validation("MeanCascadeLength", "nb must be >= 1, got %d", nb)
	}

	if err := mgr.RunSimulations(ctx, experiment.RunSimulationsRequest{
		SnapshotID: snapshotID,
		NB:         nb,
		Cfg:        cfg,
	}); err != nil {
		return nil, fmt.Errorf("run simulations for mean cascade length: %w", err)
	}

	counts, err := mgr.GetResults(ctx, experiment.GetResultsRequest{
		SnapshotID: snapshotID,
		NB:         nb,
		Cfg:        cfg,
		ResultType: types.ResultNBFailing,
		Aggregated: false,
	})
	if err != nil {
		return nil, fmt.Errorf("compute mean cascade length: %w", err)
	}

	out := make(map[int64]float64, len(counts.BySource))
	for source, perSim := range counts.BySource {
		var sum float64
		for _, n := range perSim {
			sum += n
		}
		out[source] = sum / float64(len(perSim))
	}
	return out, nil
}

// Compute runs or reuses a named measure over snapshotID. The measure's
// canonical configuration is upserted as a measure-type marker; if
// values already exist for that marker and snapshot they are returned
// directly, otherwise the measure is computed and its values are
// persisted before being returned. Recomputation is idempotent: once a
// marker's values exist, Compute never recomputes them, matching
// UpsertMeasureType/HasMeasureValues' existence-short-circuits-
// recomputation contract. g is only consulted for the structural
// (in_degree/out_degree) measures; it may be nil for mean_cascade_length.
func Compute(ctx context.Context, st store.Store, mgr *experiment.Manager, g *graph.Graph, snapshotID int64, name Name, cfg Config) (map[int64]float64, error) {
	cfgJSON, err := CanonicalConfig(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("canonicalize measure config: %w", err)
	}

	measureID, err := st.UpsertMeasureType(ctx, string(name), cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("upsert measure type: %w", err)
	}

	has, err := st.HasMeasureValues(ctx, measureID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("check measure values: %w", err)
	}
	if has {
		return st.GetMeasureValues(ctx, measureID, snapshotID)
	}

	var values map[int64]float64
	switch name {
	case InDegree:
		if g == nil {
			return nil, errs.Validation("Compute", "in_degree requires a loaded graph")
		}
		values = InDegreeValues(g)
	case OutDegree:
		if g == nil {
			return nil, errs.Validation("Compute", "out_degree requires a loaded graph")
		}
		values = OutDegreeValues(g)
	case MeanCascadeLength:
		simCfg := cfg.SimCfg.WithDefaults()
		nb := cfg.NB
		if nb == 0 {
			nb = 100
		}
		values, err = MeanCascadeLength(ctx, mgr, snapshotID, simCfg, nb)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errs.Validation("Compute", "unknown measure %q", name)
	}

	if err := st.InsertMeasureValues(ctx, measureID, snapshotID, values); err != nil {
		return nil, fmt.Errorf("store measure values: %w", err)
	}
	return values, nil
}
