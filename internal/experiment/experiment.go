// Package experiment runs batches of cascade simulations against a
// snapshot and serves them back in whichever of the raw, counts, or
// nb_failing shapes a caller asks for.
package experiment

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/logging"
	"github.com/cascadegraph/cascade/internal/simulate"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/telemetry"
	"github.com/cascadegraph/cascade/internal/types"
)

// Manager runs and serves cascade simulations against snapshots held by
// Store, loading each snapshot's Graph through Loader.
type Manager struct {
	Store  store.Store
	Loader GraphLoader

	// Concurrency bounds how many sources run in parallel when source is
	// absent from a request. All workers share one Simulator, built once
	// per request over the immutable snapshot graph; each run keeps its
	// own PRNG and buffers.
	Concurrency int

	// Metrics is optional; when set, executed simulations are recorded
	// against it.
	Metrics *telemetry.Metrics

	// resultCache holds completed simulations' failed-project-id lists
	// keyed by record id, avoiding a store round trip when the same
	// records are re-shaped into multiple result types: raw, counts, and
	// nb_failing all read from the same underlying rows.
	resultCache *fastcache.Cache
}

// GraphLoader loads a snapshot's materialized Graph. *snapshot.Builder
// satisfies this.
type GraphLoader interface {
	Load(ctx context.Context, snapshotID int64) (*graph.Graph, error)
}

func New(st store.Store, loader GraphLoader) *Manager {
	return &Manager{
		Store:       st,
		Loader:      loader,
		Concurrency: 8,
		resultCache: fastcache.New(32 * 1024 * 1024),
	}
}

func encodeFailedSet(ids []int64) []byte {
	buf := make([]byte, 8*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(id))
	}
	return buf
}

func decodeFailedSet(buf []byte) []int64 {
	ids := make([]int64, len(buf)/8)
	for i := range ids {
		ids[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return ids
}

// getSimulationResults serves completed simulation rows from resultCache
// where possible, falling back to Store for whichever record ids are not
// yet cached.
func (m *Manager) getSimulationResults(ctx context.Context, ids []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(ids))
	var missing []int64
	for _, id := range ids {
		key := []byte(strconv.FormatInt(id, 10))
		if buf, ok := m.resultCache.HasGet(nil, key); ok {
			out[id] = decodeFailedSet(buf)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := m.Store.GetSimulationResults(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, failed := range fetched {
		out[id] = failed
		m.resultCache.Set([]byte(strconv.FormatInt(id, 10)), encodeFailedSet(failed))
	}
	return out, nil
}

func newSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate seed: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// RunSimulationsRequest parameterizes RunSimulations.
type RunSimulationsRequest struct {
	SnapshotID int64
	Source     *int64 // nil means every node in the snapshot
	NB         int
	Cfg        types.SimConfig
}

// RunSimulations ensures exactly NB executed simulation records exist
// for (snapshot, cfg, source) for every requested source: it reuses any
// existing unexecuted records before minting fresh seeds, and commits
// per source.
func (m *Manager) RunSimulations(ctx context.Context, req RunSimulationsRequest) error {
	if req.NB < 1 {
		return errs.Validation("RunSimulations", "nb must be >= 1, got %d", req.NB)
	}

	g, err := m.Loader.Load(ctx, req.SnapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot graph: %w", err)
	}
	cfg := req.Cfg.WithDefaults()
	cfgJSON, err := cfg.Canonicalize()
	if err != nil {
		return fmt.Errorf("canonicalize sim_cfg: %w", err)
	}

	// The Simulator (precomputed per-node propagation probabilities) is
	// built once and shared read-only across every source, amortizing
	// setup cost across the whole batch.
	sim := simulate.New(g, cfg)

	// runID only correlates this batch's log lines; it is never persisted,
	// since simulation records are already keyed by (snapshot, cfg, seed).
	runID := uuid.NewString()

	if req.Source != nil {
		return m.runSource(ctx, sim, req.SnapshotID, *req.Source, cfgJSON, req.NB, runID)
	}

	sources := g.NodeIDs()
	concurrency := m.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	logging.L().Info("running batch simulations", "run_id", runID, "snapshot_id", req.SnapshotID, "sources", len(sources), "nb", req.NB)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, source := range sources {
		source := source
		group.Go(func() error {
			return m.runSource(gctx, sim, req.SnapshotID, source, cfgJSON, req.NB, runID)
		})
	}
	return group.Wait()
}

// runSource materializes and executes NB simulations for one source,
// committing after each execution.
func (m *Manager) runSource(ctx context.Context, sim *simulate.Simulator, snapshotID, source int64, cfgJSON string, nb int, runID string) error {
	existing, err := m.Store.ListSimulationRecords(ctx, snapshotID, &source, cfgJSON, 0)
	if err != nil {
		return fmt.Errorf("list simulation records for source %d: %w", source, err)
	}

	for len(existing) < nb {
		seed, err := newSeed()
		if err != nil {
			return err
		}
		id, created, err := m.Store.UpsertSimulationRecord(ctx, types.SimulationRecord{
			SnapshotID:     snapshotID,
			SimCfgJSON:     cfgJSON,
			RandomSeed:     seed,
			FailingProject: source,
		})
		if err != nil {
			return fmt.Errorf("create simulation record for source %d: %w", source, err)
		}
		rec := types.SimulationRecord{ID: id, SnapshotID: snapshotID, SimCfgJSON: cfgJSON, RandomSeed: seed, FailingProject: source}
		if !created {
			// A concurrent writer raced us to this (snapshot, cfg, seed,
			// source) key; re-fetch so we don't double count.
			existing, err = m.Store.ListSimulationRecords(ctx, snapshotID, &source, cfgJSON, 0)
			if err != nil {
				return err
			}
			continue
		}
		existing = append(existing, rec)
	}

	for i := range existing {
		rec := existing[i]
		if rec.Executed {
			continue
		}
		start := time.Now()
		failed, err := sim.Run(rec.FailingProject, rec.RandomSeed)
		if err != nil {
			return fmt.Errorf("run simulation %d: %w", rec.ID, err)
		}
		if err := m.Store.MarkExecuted(ctx, rec.ID, failed); err != nil {
			return fmt.Errorf("mark simulation %d executed: %w", rec.ID, err)
		}
		if m.Metrics != nil {
			m.Metrics.SimulationsRun.Inc()
			m.Metrics.SimulationDuration.Observe(time.Since(start).Seconds())
			m.Metrics.CascadeSize.Observe(float64(len(failed)))
		}
	}

	logging.L().Debug("simulations executed", "run_id", runID, "snapshot", snapshotID, "source", source, "nb", nb)
	return nil
}

// GetResultsRequest parameterizes GetResults.
type GetResultsRequest struct {
	SnapshotID int64
	Source     *int64
	NB         int
	Cfg        types.SimConfig
	ResultType types.ResultType
	Aggregated bool
}

// Result is the union of the three shapes GetResults can return;
// callers read the field matching their ResultType and
// Source/Aggregated choice.
type Result struct {
	// RAW
	RawSingle   [][]int64
	RawBySource map[int64][][]int64

	// COUNTS: fraction of nb simulations in which a project failed.
	CountsSingle     map[int64]float64
	CountsBySource   map[int64]map[int64]float64
	CountsAggregated map[int64]float64

	// NB_FAILING: number of projects that failed per simulation.
	NBFailingSingle     []int64
	BySource            map[int64][]float64
	NBFailingAggregated map[int64]float64
}

// GetResults reads back the result shape named by req.ResultType,
// reusing existing simulation records and failing with a precondition
// error if fewer than req.NB exist for any requested source.
func (m *Manager) GetResults(ctx context.Context, req GetResultsRequest) (*Result, error) {
	if req.Aggregated && req.ResultType == types.ResultRaw {
		return nil, errs.Validation("GetResults", "aggregated=true is invalid with RAW")
	}

	cfg := req.Cfg.WithDefaults()
	cfgJSON, err := cfg.Canonicalize()
	if err != nil {
		return nil, fmt.Errorf("canonicalize sim_cfg: %w", err)
	}

	if req.Source != nil {
		recs, err := m.completedRecords(ctx, req.SnapshotID, req.Source, cfgJSON, req.NB)
		if err != nil {
			return nil, err
		}
		return m.shapeSingle(ctx, req.ResultType, recs)
	}

	g, err := m.Loader.Load(ctx, req.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot graph: %w", err)
	}

	perSource := make(map[int64][]types.SimulationRecord, g.NumNodes())
	for _, source := range g.NodeIDs() {
		source := source
		recs, err := m.completedRecords(ctx, req.SnapshotID, &source, cfgJSON, req.NB)
		if err != nil {
			return nil, err
		}
		perSource[source] = recs
	}
	return m.shapeAllSources(ctx, req.ResultType, req.Aggregated, perSource)
}

// completedRecords lists the nb simulation records for (snapshot,
// source, cfg) and fails if fewer than nb are executed.
func (m *Manager) completedRecords(ctx context.Context, snapshotID int64, source *int64, cfgJSON string, nb int) ([]types.SimulationRecord, error) {
	recs, err := m.Store.ListSimulationRecords(ctx, snapshotID, source, cfgJSON, 0)
	if err != nil {
		return nil, fmt.Errorf("list simulation records: %w", err)
	}
	executed := make([]types.SimulationRecord, 0, len(recs))
	for _, r := range recs {
		if r.Executed {
			executed = append(executed, r)
		}
	}
	if len(executed) < nb {
		return nil, errs.Precondition("GetResults", "only %d of %d requested simulations are executed for source %v", len(executed), nb, source)
	}
	sort.Slice(executed, func(i, j int) bool { return executed[i].ID < executed[j].ID })
	executed = executed[:nb]
	return executed, nil
}

func (m *Manager) shapeSingle(ctx context.Context, rt types.ResultType, recs []types.SimulationRecord) (*Result, error) {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	results, err := m.getSimulationResults(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load simulation results: %w", err)
	}

	switch rt {
	case types.ResultRaw:
		raw := make([][]int64, len(recs))
		for i, r := range recs {
			raw[i] = results[r.ID]
		}
		return &Result{RawSingle: raw}, nil
	case types.ResultCounts:
		counts := make(map[int64]int)
		for _, r := range recs {
			for _, p := range results[r.ID] {
				counts[p]++
			}
		}
		out := make(map[int64]float64, len(counts))
		for p, c := range counts {
			out[p] = float64(c) / float64(len(recs))
		}
		return &Result{CountsSingle: out}, nil
	case types.ResultNBFailing:
		nbFailing := make([]int64, len(recs))
		for i, r := range recs {
			nbFailing[i] = int64(len(results[r.ID]))
		}
		return &Result{NBFailingSingle: nbFailing}, nil
	default:
		return nil, errs.Validation("GetResults", "unknown result_type %q", rt)
	}
}

func (m *Manager) shapeAllSources(ctx context.Context, rt types.ResultType, aggregated bool, perSource map[int64][]types.SimulationRecord) (*Result, error) {
	switch rt {
	case types.ResultRaw:
		out := make(map[int64][][]int64, len(perSource))
		for source, recs := range perSource {
			single, err := m.shapeSingle(ctx, types.ResultRaw, recs)
			if err != nil {
				return nil, err
			}
			out[source] = single.RawSingle
		}
		return &Result{RawBySource: out}, nil

	case types.ResultCounts:
		bySource := make(map[int64]map[int64]float64, len(perSource))
		for source, recs := range perSource {
			single, err := m.shapeSingle(ctx, types.ResultCounts, recs)
			if err != nil {
				return nil, err
			}
			bySource[source] = single.CountsSingle
		}
		if !aggregated {
			return &Result{CountsBySource: bySource}, nil
		}
		agg := make(map[int64]float64)
		n := float64(len(bySource))
		for _, perTarget := range bySource {
			for target, frac := range perTarget {
				agg[target] += frac / n
			}
		}
		return &Result{CountsAggregated: agg}, nil

	case types.ResultNBFailing:
		bySource := make(map[int64][]float64, len(perSource))
		for source, recs := range perSource {
			single, err := m.shapeSingle(ctx, types.ResultNBFailing, recs)
			if err != nil {
				return nil, err
			}
			floats := make([]float64, len(single.NBFailingSingle))
			for i, v := range single.NBFailingSingle {
				floats[i] = float64(v)
			}
			bySource[source] = floats
		}
		if !aggregated {
			return &Result{BySource: bySource}, nil
		}
		agg := make(map[int64]float64, len(bySource))
		for source, vals := range bySource {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			agg[source] = sum / float64(len(vals))
		}
		return &Result{NBFailingAggregated: agg}, nil

	default:
		return nil, errs.Validation("GetResults", "unknown result_type %q", rt)
	}
}
