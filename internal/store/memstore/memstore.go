// Package memstore is a pure-Go, in-process implementation of
// store.Store. It backs unit tests and any caller that only needs a
// throwaway store (e.g. scratch experiments never meant to be persisted
// to disk), and mirrors the on-disk backends' uniqueness and
// idempotency rules exactly so behavior does not depend on which
// backend is wired in.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/types"
)

type snapshotKey struct {
	t   int64
	sem types.Semantics
}

type simKey struct {
	snapshotID int64
	cfgJSON    string
	seed       int64
	source     int64
}

type measureKey struct {
	measureID  int64
	snapshotID int64
}

type exactValueKey struct {
	exactID  int64
	sourceID int64
}

// Store is an in-memory store.Store. The zero value is not usable; use
// New.
type Store struct {
	mu sync.Mutex

	nextSnapshotID int64
	nextSimID      int64
	nextMeasureID  int64
	nextExactID    int64

	snapshots      map[int64]*types.Snapshot
	snapshotByKey  map[snapshotKey]int64
	snapshotByName map[string]int64
	snapshotEdges  map[int64][]graph.Edge
	snapshotNodes  map[int64][]int64

	sims      map[int64]*types.SimulationRecord
	simByKey  map[simKey]int64
	simResult map[int64][]int64

	measureTypes    map[int64]string
	measureByName   map[string]int64
	measureValues   map[measureKey]map[int64]float64

	exactComputations map[int64]int64 // exactID -> snapshotID
	exactByFullKey    map[string]int64
	exactValues       map[exactValueKey]map[int64]float64
}

func New() *Store {
	return &Store{
		nextSnapshotID: 1,
		nextSimID:      1,
		nextMeasureID:  1,
		nextExactID:    1,

		snapshots:      make(map[int64]*types.Snapshot),
		snapshotByKey:  make(map[snapshotKey]int64),
		snapshotByName: make(map[string]int64),
		snapshotEdges:  make(map[int64][]graph.Edge),
		snapshotNodes:  make(map[int64][]int64),

		sims:      make(map[int64]*types.SimulationRecord),
		simByKey:  make(map[simKey]int64),
		simResult: make(map[int64][]int64),

		measureTypes:  make(map[int64]string),
		measureByName: make(map[string]int64),
		measureValues: make(map[measureKey]map[int64]float64),

		exactComputations: make(map[int64]int64),
		exactByFullKey:    make(map[string]int64),
		exactValues:       make(map[exactValueKey]map[int64]float64),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) UpsertSnapshot(_ context.Context, snapTime time.Time, sem types.Semantics, name string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey{t: snapTime.UTC().Unix(), sem: sem}
	if id, ok := s.snapshotByKey[key]; ok {
		return id, false, nil
	}

	id := s.nextSnapshotID
	s.nextSnapshotID++
	snap := &types.Snapshot{ID: id, SnapshotTime: snapTime, Semantics: sem, Name: name}
	s.snapshots[id] = snap
	s.snapshotByKey[key] = id
	if name != "" {
		s.snapshotByName[name] = id
	}
	return id, true, nil
}

func (s *Store) GetSnapshot(_ context.Context, id int64) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, errs.NotFound("GetSnapshot", "snapshot %d not found", id)
	}
	cp := *snap
	return &cp, nil
}

func (s *Store) GetSnapshotByName(_ context.Context, name string) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.snapshotByName[name]
	if !ok {
		return nil, errs.NotFound("GetSnapshotByName", "snapshot %q not found", name)
	}
	cp := *s.snapshots[id]
	return &cp, nil
}

func (s *Store) GetSnapshotByKey(_ context.Context, snapTime time.Time, sem types.Semantics) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.snapshotByKey[snapshotKey{t: snapTime.UTC().Unix(), sem: sem}]
	if !ok {
		return nil, errs.NotFound("GetSnapshotByKey", "no snapshot for given time/semantics")
	}
	cp := *s.snapshots[id]
	return &cp, nil
}

func (s *Store) HasSnapshotEdges(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.snapshotEdges[id]
	return ok, nil
}

func (s *Store) InsertSnapshotEdges(_ context.Context, id int64, edges []graph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]graph.Edge, len(edges))
	copy(cp, edges)
	s.snapshotEdges[id] = cp

	nodeSet := make(map[int64]struct{})
	for _, e := range edges {
		nodeSet[e.Using] = struct{}{}
		nodeSet[e.Used] = struct{}{}
	}
	if _, ok := s.snapshotNodes[id]; !ok {
		nodes := make([]int64, 0, len(nodeSet))
		for n := range nodeSet {
			nodes = append(nodes, n)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
		s.snapshotNodes[id] = nodes
	}
	return nil
}

// SetSnapshotNodes lets the snapshot builder record the full node set
// (which may include nodes with no incident edges) independently of
// InsertSnapshotEdges.
func (s *Store) SetSnapshotNodes(_ context.Context, id int64, nodes []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]int64, len(nodes))
	copy(cp, nodes)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	s.snapshotNodes[id] = cp
	return nil
}

func (s *Store) GetSnapshotEdges(_ context.Context, id int64) ([]graph.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges, ok := s.snapshotEdges[id]
	if !ok {
		return nil, nil
	}
	cp := make([]graph.Edge, len(edges))
	copy(cp, edges)
	return cp, nil
}

func (s *Store) GetSnapshotNodes(_ context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, ok := s.snapshotNodes[id]
	if !ok {
		return nil, nil
	}
	cp := make([]int64, len(nodes))
	copy(cp, nodes)
	return cp, nil
}

func (s *Store) DeleteSnapshot(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[id]; ok {
		delete(s.snapshotByKey, snapshotKey{t: snap.SnapshotTime.UTC().Unix(), sem: snap.Semantics})
		if snap.Name != "" {
			delete(s.snapshotByName, snap.Name)
		}
	}
	delete(s.snapshots, id)
	delete(s.snapshotEdges, id)
	delete(s.snapshotNodes, id)

	for simID, rec := range s.sims {
		if rec.SnapshotID == id {
			delete(s.sims, simID)
			delete(s.simResult, simID)
			for k, v := range s.simByKey {
				if v == simID {
					delete(s.simByKey, k)
				}
			}
		}
	}
	for k := range s.measureValues {
		if k.snapshotID == id {
			delete(s.measureValues, k)
		}
	}
	for exactID, snapID := range s.exactComputations {
		if snapID == id {
			delete(s.exactComputations, exactID)
			for k := range s.exactByFullKey {
				if s.exactByFullKey[k] == exactID {
					delete(s.exactByFullKey, k)
				}
			}
			for k := range s.exactValues {
				if k.exactID == exactID {
					delete(s.exactValues, k)
				}
			}
		}
	}
	return nil
}

func (s *Store) UpsertSimulationRecord(_ context.Context, rec types.SimulationRecord) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := simKey{snapshotID: rec.SnapshotID, cfgJSON: rec.SimCfgJSON, seed: int64(rec.RandomSeed), source: rec.FailingProject}
	if id, ok := s.simByKey[key]; ok {
		return id, false, nil
	}

	id := s.nextSimID
	s.nextSimID++
	cp := rec
	cp.ID = id
	cp.Executed = false
	s.sims[id] = &cp
	s.simByKey[key] = id
	return id, true, nil
}

func (s *Store) GetSimulationRecord(_ context.Context, id int64) (*types.SimulationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sims[id]
	if !ok {
		return nil, errs.NotFound("GetSimulationRecord", "simulation %d not found", id)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) ListSimulationRecords(_ context.Context, snapshotID int64, failingProject *int64, cfgJSON string, limit int) ([]types.SimulationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, rec := range s.sims {
		if rec.SnapshotID != snapshotID || rec.SimCfgJSON != cfgJSON {
			continue
		}
		if failingProject != nil && rec.FailingProject != *failingProject {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ri, rj := s.sims[ids[i]], s.sims[ids[j]]
		if ri.Executed != rj.Executed {
			return !ri.Executed && rj.Executed
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]types.SimulationRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.sims[id])
	}
	return out, nil
}

func (s *Store) MarkExecuted(_ context.Context, simID int64, failedProjects []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sims[simID]
	if !ok {
		return errs.NotFound("MarkExecuted", "simulation %d not found", simID)
	}
	if rec.Executed {
		return nil
	}
	rec.Executed = true
	cp := make([]int64, len(failedProjects))
	copy(cp, failedProjects)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	s.simResult[simID] = cp
	return nil
}

func (s *Store) GetSimulationResults(_ context.Context, simIDs []int64) (map[int64][]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]int64, len(simIDs))
	for _, id := range simIDs {
		res := s.simResult[id]
		cp := make([]int64, len(res))
		copy(cp, res)
		out[id] = cp
	}
	return out, nil
}

func (s *Store) UpsertMeasureType(_ context.Context, name, cfgJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fullKey := name + "\x00" + cfgJSON
	if id, ok := s.measureByName[fullKey]; ok {
		return id, nil
	}
	id := s.nextMeasureID
	s.nextMeasureID++
	s.measureTypes[id] = name
	s.measureByName[fullKey] = id
	return id, nil
}

func (s *Store) HasMeasureValues(_ context.Context, measureID, snapshotID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.measureValues[measureKey{measureID: measureID, snapshotID: snapshotID}]
	return ok, nil
}

func (s *Store) InsertMeasureValues(_ context.Context, measureID, snapshotID int64, values map[int64]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := measureKey{measureID: measureID, snapshotID: snapshotID}
	if _, ok := s.measureValues[key]; ok {
		return nil
	}
	cp := make(map[int64]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	s.measureValues[key] = cp
	return nil
}

func (s *Store) GetMeasureValues(_ context.Context, measureID, snapshotID int64) (map[int64]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.measureValues[measureKey{measureID: measureID, snapshotID: snapshotID}]
	if !ok {
		return nil, errs.NotFound("GetMeasureValues", "no values for measure %d snapshot %d", measureID, snapshotID)
	}
	cp := make(map[int64]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return cp, nil
}

func (s *Store) UpsertExactComputation(_ context.Context, snapshotID int64, cfgJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fullKey := composeKey(snapshotID, cfgJSON)
	if id, ok := s.exactByFullKey[fullKey]; ok {
		return id, nil
	}
	id := s.nextExactID
	s.nextExactID++
	s.exactComputations[id] = snapshotID
	s.exactByFullKey[fullKey] = id
	return id, nil
}

func composeKey(snapshotID int64, cfgJSON string) string {
	return cfgJSON + "\x00snap=" + strconv.FormatInt(snapshotID, 10)
}

func (s *Store) HasExactValues(_ context.Context, exactID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.exactValues {
		if k.exactID == exactID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertExactValues(_ context.Context, exactID, sourceID int64, values map[int64]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := exactValueKey{exactID: exactID, sourceID: sourceID}
	if _, ok := s.exactValues[key]; ok {
		return nil
	}
	cp := make(map[int64]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	s.exactValues[key] = cp
	return nil
}

func (s *Store) GetExactValues(_ context.Context, exactID, sourceID int64) (map[int64]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.exactValues[exactValueKey{exactID: exactID, sourceID: sourceID}]
	if !ok {
		return nil, errs.NotFound("GetExactValues", "no values for exact computation %d source %d", exactID, sourceID)
	}
	cp := make(map[int64]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return cp, nil
}

func (s *Store) Close() error { return nil }
