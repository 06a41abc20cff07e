// Package sqlcore implements store.Store once against database/sql,
// parameterized by a small Dialect so the local-file (SQLite) and
// network-server (MySQL-compatible) backends differ only in DDL and
// "insert if absent" syntax. Both drivers accept '?' placeholders, so
// query text itself is shared.
package sqlcore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/types"
)

// Dialect supplies the handful of DDL and statement fragments that
// differ between backends.
type Dialect interface {
	// Name identifies the dialect for error messages.
	Name() string
	// AutoIncrementPK returns the column type+constraint for a 64-bit
	// autoincrement primary key, e.g. "INTEGER PRIMARY KEY AUTOINCREMENT".
	AutoIncrementPK() string
	// InsertIgnore returns "INSERT" prefixed with the dialect's
	// conflict-do-nothing keyword, e.g. "INSERT OR IGNORE" / "INSERT IGNORE".
	InsertIgnore() string
	// BoolType returns the column type used for boolean flags.
	BoolType() string
	// TimestampType returns the column type used for instants.
	TimestampType() string
	// FormatTime renders t as a literal this dialect's driver accepts.
	FormatTime(t time.Time) string
}

// Core implements store.Store against a *sql.DB plus Dialect.
type Core struct {
	DB      *sql.DB
	Dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Core {
	return &Core{DB: db, Dialect: dialect}
}

var _ store.Store = (*Core)(nil)

// Schema returns the DDL statements to create every table this store
// needs, in dependency order. Callers execute these against a freshly
// opened database; schema provisioning is left to the operator or
// bootstrap step rather than a migration framework, using plain
// CREATE TABLE IF NOT EXISTS statements.
func (c *Core) Schema() []string {
	pk := c.Dialect.AutoIncrementPK()
	boolT := c.Dialect.BoolType()
	tsT := c.Dialect.TimestampType()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snapshots (
			id %s,
			snapshot_time %s NOT NULL,
			semantics TEXT NOT NULL,
			name TEXT,
			UNIQUE (snapshot_time, semantics)
		)`, pk, tsT),
		`CREATE TABLE IF NOT EXISTS snapshot_edges (
			snapshot_id BIGINT NOT NULL,
			using_project_id BIGINT NOT NULL,
			used_project_id BIGINT NOT NULL,
			UNIQUE (snapshot_id, using_project_id, used_project_id)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_nodes (
			snapshot_id BIGINT NOT NULL,
			project_id BIGINT NOT NULL,
			UNIQUE (snapshot_id, project_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS simulations (
			id %s,
			snapshot_id BIGINT NOT NULL,
			config_json TEXT NOT NULL,
			seed BIGINT NOT NULL,
			source_project_id BIGINT NOT NULL,
			executed %s NOT NULL DEFAULT 0,
			UNIQUE (snapshot_id, config_json, seed, source_project_id)
		)`, pk, boolT),
		`CREATE TABLE IF NOT EXISTS simulation_results (
			simulation_id BIGINT NOT NULL,
			failed_project_id BIGINT NOT NULL,
			UNIQUE (simulation_id, failed_project_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS measure_types (
			id %s,
			name TEXT NOT NULL,
			config_json TEXT NOT NULL,
			UNIQUE (name, config_json)
		)`, pk),
		`CREATE TABLE IF NOT EXISTS measure_values (
			measure_id BIGINT NOT NULL,
			snapshot_id BIGINT NOT NULL,
			project_id BIGINT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			UNIQUE (measure_id, snapshot_id, project_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS exact_computations (
			id %s,
			snapshot_id BIGINT NOT NULL,
			config_json TEXT NOT NULL,
			UNIQUE (snapshot_id, config_json)
		)`, pk),
		`CREATE TABLE IF NOT EXISTS exact_values (
			exact_id BIGINT NOT NULL,
			source_project_id BIGINT NOT NULL,
			target_project_id BIGINT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			UNIQUE (exact_id, source_project_id, target_project_id)
		)`,
	}
}

// Migrate executes Schema() against the underlying database.
func (c *Core) Migrate(ctx context.Context) error {
	for _, stmt := range c.Schema() {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return errs.Store("Migrate", fmt.Errorf("%s: %w", c.Dialect.Name(), err))
		}
	}
	return nil
}

func (c *Core) UpsertSnapshot(ctx context.Context, snapTime time.Time, sem types.Semantics, name string) (int64, bool, error) {
	existing, err := c.GetSnapshotByKey(ctx, snapTime, sem)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return 0, false, err
	}

	res, err := c.DB.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_time, semantics, name) VALUES (?, ?, ?)`,
		c.Dialect.FormatTime(snapTime), string(sem), nullableString(name))
	if err != nil {
		// A concurrent writer may have raced us; re-read instead of failing.
		if again, rerr := c.GetSnapshotByKey(ctx, snapTime, sem); rerr == nil {
			return again.ID, false, nil
		}
		return 0, false, errs.Store("UpsertSnapshot", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, errs.Store("UpsertSnapshot", err)
	}
	return id, true, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (c *Core) scanSnapshot(row *sql.Row) (*types.Snapshot, error) {
	var snap types.Snapshot
	var name sql.NullString
	var sem string
	var ts time.Time
	if err := row.Scan(&snap.ID, &ts, &sem, &name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("GetSnapshot", "snapshot not found")
		}
		return nil, errs.Store("GetSnapshot", err)
	}
	snap.SnapshotTime = ts
	snap.Semantics = types.Semantics(sem)
	if name.Valid {
		snap.Name = name.String
	}
	return &snap, nil
}

func (c *Core) GetSnapshot(ctx context.Context, id int64) (*types.Snapshot, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT id, snapshot_time, semantics, name FROM snapshots WHERE id = ?`, id)
	return c.scanSnapshot(row)
}

func (c *Core) GetSnapshotByName(ctx context.Context, name string) (*types.Snapshot, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT id, snapshot_time, semantics, name FROM snapshots WHERE name = ?`, name)
	return c.scanSnapshot(row)
}

func (c *Core) GetSnapshotByKey(ctx context.Context, snapTime time.Time, sem types.Semantics) (*types.Snapshot, error) {
	row := c.DB.QueryRowContext(ctx,
		`SELECT id, snapshot_time, semantics, name FROM snapshots WHERE snapshot_time = ? AND semantics = ?`,
		c.Dialect.FormatTime(snapTime), string(sem))
	return c.scanSnapshot(row)
}

func (c *Core) HasSnapshotEdges(ctx context.Context, id int64) (bool, error) {
	var n int
	err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_nodes WHERE snapshot_id = ?`, id).Scan(&n)
	if err != nil {
		return false, errs.Store("HasSnapshotEdges", err)
	}
	return n > 0, nil
}

func (c *Core) InsertSnapshotEdges(ctx context.Context, id int64, edges []graph.Edge) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("InsertSnapshotEdges", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := fmt.Sprintf(`%s INTO snapshot_edges (snapshot_id, using_project_id, used_project_id) VALUES (?, ?, ?)`, c.Dialect.InsertIgnore())
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, stmt, id, e.Using, e.Used); err != nil {
			return errs.Store("InsertSnapshotEdges", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Store("InsertSnapshotEdges", err)
	}
	return nil
}

func (c *Core) SetSnapshotNodes(ctx context.Context, id int64, nodes []int64) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("SetSnapshotNodes", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := fmt.Sprintf(`%s INTO snapshot_nodes (snapshot_id, project_id) VALUES (?, ?)`, c.Dialect.InsertIgnore())
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, stmt, id, n); err != nil {
			return errs.Store("SetSnapshotNodes", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Store("SetSnapshotNodes", err)
	}
	return nil
}

func (c *Core) GetSnapshotEdges(ctx context.Context, id int64) ([]graph.Edge, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT using_project_id, used_project_id FROM snapshot_edges WHERE snapshot_id = ? ORDER BY using_project_id, used_project_id`, id)
	if err != nil {
		return nil, errs.Store("GetSnapshotEdges", err)
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Using, &e.Used); err != nil {
			return nil, errs.Store("GetSnapshotEdges", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Core) GetSnapshotNodes(ctx context.Context, id int64) ([]int64, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT project_id FROM snapshot_nodes WHERE snapshot_id = ? ORDER BY project_id`, id)
	if err != nil {
		return nil, errs.Store("GetSnapshotNodes", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, errs.Store("GetSnapshotNodes", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c *Core) DeleteSnapshot(ctx context.Context, id int64) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("DeleteSnapshot", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM simulation_results WHERE simulation_id IN (SELECT id FROM simulations WHERE snapshot_id = ?)`, []interface{}{id}},
		{`DELETE FROM simulations WHERE snapshot_id = ?`, []interface{}{id}},
		{`DELETE FROM measure_values WHERE snapshot_id = ?`, []interface{}{id}},
		{`DELETE FROM exact_values WHERE exact_id IN (SELECT id FROM exact_computations WHERE snapshot_id = ?)`, []interface{}{id}},
		{`DELETE FROM exact_computations WHERE snapshot_id = ?`, []interface{}{id}},
		{`DELETE FROM snapshot_edges WHERE snapshot_id = ?`, []interface{}{id}},
		{`DELETE FROM snapshot_nodes WHERE snapshot_id = ?`, []interface{}{id}},
		{`DELETE FROM snapshots WHERE id = ?`, []interface{}{id}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return errs.Store("DeleteSnapshot", err)
		}
	}
	return tx.Commit()
}

func (c *Core) UpsertSimulationRecord(ctx context.Context, rec types.SimulationRecord) (int64, bool, error) {
	row := c.DB.QueryRowContext(ctx,
		`SELECT id, executed FROM simulations WHERE snapshot_id = ? AND config_json = ? AND seed = ? AND source_project_id = ?`,
		rec.SnapshotID, rec.SimCfgJSON, rec.RandomSeed, rec.FailingProject)
	var id int64
	var executed bool
	if err := row.Scan(&id, &executed); err == nil {
		return id, false, nil
	} else if err != sql.ErrNoRows {
		return 0, false, errs.Store("UpsertSimulationRecord", err)
	}

	res, err := c.DB.ExecContext(ctx,
		`INSERT INTO simulations (snapshot_id, config_json, seed, source_project_id, executed) VALUES (?, ?, ?, ?, 0)`,
		rec.SnapshotID, rec.SimCfgJSON, rec.RandomSeed, rec.FailingProject)
	if err != nil {
		if row2 := c.DB.QueryRowContext(ctx,
			`SELECT id FROM simulations WHERE snapshot_id = ? AND config_json = ? AND seed = ? AND source_project_id = ?`,
			rec.SnapshotID, rec.SimCfgJSON, rec.RandomSeed, rec.FailingProject); row2 != nil {
			var again int64
			if scanErr := row2.Scan(&again); scanErr == nil {
				return again, false, nil
			}
		}
		return 0, false, errs.Store("UpsertSimulationRecord", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, false, errs.Store("UpsertSimulationRecord", err)
	}
	return newID, true, nil
}

func (c *Core) GetSimulationRecord(ctx context.Context, id int64) (*types.SimulationRecord, error) {
	row := c.DB.QueryRowContext(ctx,
		`SELECT id, snapshot_id, config_json, seed, source_project_id, executed FROM simulations WHERE id = ?`, id)
	var rec types.SimulationRecord
	if err := row.Scan(&rec.ID, &rec.SnapshotID, &rec.SimCfgJSON, &rec.RandomSeed, &rec.FailingProject, &rec.Executed); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("GetSimulationRecord", "simulation %d not found", id)
		}
		return nil, errs.Store("GetSimulationRecord", err)
	}
	return &rec, nil
}

func (c *Core) ListSimulationRecords(ctx context.Context, snapshotID int64, failingProject *int64, cfgJSON string, limit int) ([]types.SimulationRecord, error) {
	query := `SELECT id, snapshot_id, config_json, seed, source_project_id, executed FROM simulations WHERE snapshot_id = ? AND config_json = ?`
	args := []interface{}{snapshotID, cfgJSON}
	if failingProject != nil {
		query += ` AND source_project_id = ?`
		args = append(args, *failingProject)
	}
	query += ` ORDER BY executed ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("ListSimulationRecords", err)
	}
	defer rows.Close()

	var out []types.SimulationRecord
	for rows.Next() {
		var rec types.SimulationRecord
		if err := rows.Scan(&rec.ID, &rec.SnapshotID, &rec.SimCfgJSON, &rec.RandomSeed, &rec.FailingProject, &rec.Executed); err != nil {
			return nil, errs.Store("ListSimulationRecords", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (c *Core) MarkExecuted(ctx context.Context, simID int64, failedProjects []int64) error {
	rec, err := c.GetSimulationRecord(ctx, simID)
	if err != nil {
		return err
	}
	if rec.Executed {
		return nil
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("MarkExecuted", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertStmt := fmt.Sprintf(`%s INTO simulation_results (simulation_id, failed_project_id) VALUES (?, ?)`, c.Dialect.InsertIgnore())
	for _, p := range failedProjects {
		if _, err := tx.ExecContext(ctx, insertStmt, simID, p); err != nil {
			return errs.Store("MarkExecuted", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE simulations SET executed = 1 WHERE id = ?`, simID); err != nil {
		return errs.Store("MarkExecuted", err)
	}
	return tx.Commit()
}

func (c *Core) GetSimulationResults(ctx context.Context, simIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(simIDs))
	for _, id := range simIDs {
		rows, err := c.DB.QueryContext(ctx,
			`SELECT failed_project_id FROM simulation_results WHERE simulation_id = ? ORDER BY failed_project_id`, id)
		if err != nil {
			return nil, errs.Store("GetSimulationResults", err)
		}
		var failed []int64
		for rows.Next() {
			var p int64
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return nil, errs.Store("GetSimulationResults", err)
			}
			failed = append(failed, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errs.Store("GetSimulationResults", err)
		}
		out[id] = failed
	}
	return out, nil
}

func (c *Core) UpsertMeasureType(ctx context.Context, name, cfgJSON string) (int64, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT id FROM measure_types WHERE name = ? AND config_json = ?`, name, cfgJSON)
	var id int64
	if err := row.Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, errs.Store("UpsertMeasureType", err)
	}

	res, err := c.DB.ExecContext(ctx, `INSERT INTO measure_types (name, config_json) VALUES (?, ?)`, name, cfgJSON)
	if err != nil {
		return 0, errs.Store("UpsertMeasureType", err)
	}
	return res.LastInsertId()
}

func (c *Core) HasMeasureValues(ctx context.Context, measureID, snapshotID int64) (bool, error) {
	var n int
	err := c.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM measure_values WHERE measure_id = ? AND snapshot_id = ?`, measureID, snapshotID).Scan(&n)
	if err != nil {
		return false, errs.Store("HasMeasureValues", err)
	}
	return n > 0, nil
}

func (c *Core) InsertMeasureValues(ctx context.Context, measureID, snapshotID int64, values map[int64]float64) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("InsertMeasureValues", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := fmt.Sprintf(`%s INTO measure_values (measure_id, snapshot_id, project_id, value) VALUES (?, ?, ?, ?)`, c.Dialect.InsertIgnore())
	for _, projectID := range sortedKeys(values) {
		if _, err := tx.ExecContext(ctx, stmt, measureID, snapshotID, projectID, values[projectID]); err != nil {
			return errs.Store("InsertMeasureValues", err)
		}
	}
	return tx.Commit()
}

func (c *Core) GetMeasureValues(ctx context.Context, measureID, snapshotID int64) (map[int64]float64, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT project_id, value FROM measure_values WHERE measure_id = ? AND snapshot_id = ?`, measureID, snapshotID)
	if err != nil {
		return nil, errs.Store("GetMeasureValues", err)
	}
	defer rows.Close()

	out := make(map[int64]float64)
	for rows.Next() {
		var p int64
		var v float64
		if err := rows.Scan(&p, &v); err != nil {
			return nil, errs.Store("GetMeasureValues", err)
		}
		out[p] = v
	}
	if len(out) == 0 {
		return nil, errs.NotFound("GetMeasureValues", "no values for measure %d snapshot %d", measureID, snapshotID)
	}
	return out, rows.Err()
}

func (c *Core) UpsertExactComputation(ctx context.Context, snapshotID int64, cfgJSON string) (int64, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT id FROM exact_computations WHERE snapshot_id = ? AND config_json = ?`, snapshotID, cfgJSON)
	var id int64
	if err := row.Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, errs.Store("UpsertExactComputation", err)
	}

	res, err := c.DB.ExecContext(ctx, `INSERT INTO exact_computations (snapshot_id, config_json) VALUES (?, ?)`, snapshotID, cfgJSON)
	if err != nil {
		return 0, errs.Store("UpsertExactComputation", err)
	}
	return res.LastInsertId()
}

func (c *Core) HasExactValues(ctx context.Context, exactID int64) (bool, error) {
	var n int
	err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM exact_values WHERE exact_id = ?`, exactID).Scan(&n)
	if err != nil {
		return false, errs.Store("HasExactValues", err)
	}
	return n > 0, nil
}

func (c *Core) InsertExactValues(ctx context.Context, exactID, sourceID int64, values map[int64]float64) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("InsertExactValues", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := fmt.Sprintf(`%s INTO exact_values (exact_id, source_project_id, target_project_id, value) VALUES (?, ?, ?, ?)`, c.Dialect.InsertIgnore())
	for _, targetID := range sortedKeys(values) {
		if _, err := tx.ExecContext(ctx, stmt, exactID, sourceID, targetID, values[targetID]); err != nil {
			return errs.Store("InsertExactValues", err)
		}
	}
	return tx.Commit()
}

func (c *Core) GetExactValues(ctx context.Context, exactID, sourceID int64) (map[int64]float64, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT target_project_id, value FROM exact_values WHERE exact_id = ? AND source_project_id = ?`, exactID, sourceID)
	if err != nil {
		return nil, errs.Store("GetExactValues", err)
	}
	defer rows.Close()

	out := make(map[int64]float64)
	for rows.Next() {
		var t int64
		var v float64
		if err := rows.Scan(&t, &v); err != nil {
			return nil, errs.Store("GetExactValues", err)
		}
		out[t] = v
	}
	if len(out) == 0 {
		return nil, errs.NotFound("GetExactValues", "no values for exact computation %d source %d", exactID, sourceID)
	}
	return out, rows.Err()
}

func (c *Core) Close() error {
	return c.DB.Close()
}

func sortedKeys(m map[int64]float64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
