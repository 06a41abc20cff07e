// Package sqlstore implements eventlog.EventLog directly against the
// projects/releases/dependencies tables of either persistence backend,
// so a snapshot can be built straight from SQL without first loading
// the whole event log into process memory.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cascadegraph/cascade/internal/graph"
)

// Dialect distinguishes the small timestamp-literal differences between
// the local-file (SQLite) and network-server (MySQL-compatible) backends.
// Both use '?' placeholders, so query text is otherwise shared.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectServer
)

// Store reads event-log rows from db using dialect's timestamp
// formatting.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

func (s *Store) tsLiteral(t time.Time) string {
	if s.Dialect == DialectSQLite {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func (s *Store) ProjectsCreatedBefore(ctx context.Context, t time.Time) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM projects WHERE created_at <= ? ORDER BY id`, s.tsLiteral(t))
	if err != nil {
		return nil, fmt.Errorf("projects created before: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FullEdges unions the dependencies declared by every release of a
// project up to t.
func (s *Store) FullEdges(ctx context.Context, t time.Time) ([]graph.Edge, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT r.project_id, d.dep_project_id
		FROM dependencies d
		INNER JOIN releases r ON r.id = d.release_id
		WHERE r.created_at <= ?
		ORDER BY r.project_id, d.dep_project_id
	`, s.tsLiteral(t))
	if err != nil {
		return nil, fmt.Errorf("full edges: %w", err)
	}
	return scanEdges(rows)
}

// LatestEdges takes only the dependencies of the most recent qualifying
// release of each using project, found via a correlated subquery
// rather than a window function for portability across dialects.
func (s *Store) LatestEdges(ctx context.Context, t time.Time) ([]graph.Edge, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT r.project_id, d.dep_project_id
		FROM dependencies d
		INNER JOIN releases r ON r.id = d.release_id
		WHERE r.id = (
			SELECT r2.id FROM releases r2
			WHERE r2.project_id = r.project_id
			  AND r2.created_at <= ?
			ORDER BY r2.created_at DESC, r2.id DESC
			LIMIT 1
		)
		ORDER BY r.project_id, d.dep_project_id
	`, s.tsLiteral(t))
	if err != nil {
		return nil, fmt.Errorf("latest edges: %w", err)
	}
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]graph.Edge, error) {
	defer rows.Close()
	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Using, &e.Used); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
