// Package sqlite is the local single-file persistence backend, built
// on ncruces/go-sqlite3: one *sql.DB, schema migrated on Open, and a
// connection pool capped at one writer because SQLite serializes
// writes at the file level regardless.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/store/sqlcore"
)

type dialect struct{}

func (dialect) Name() string               { return "sqlite" }
func (dialect) AutoIncrementPK() string     { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (dialect) InsertIgnore() string        { return "INSERT OR IGNORE" }
func (dialect) BoolType() string            { return "BOOLEAN" }
func (dialect) TimestampType() string       { return "TEXT" }
func (dialect) FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Store is the SQLite-backed store.Store implementation. It embeds
// sqlcore.Core for its CRUD surface and adds a RAM-backed lifecycle for
// a heavy write phase against an in-memory copy, synced back to the
// file at the end.
type Store struct {
	*sqlcore.Core
	path string
}

// Open opens (creating if absent) a SQLite database at path and
// migrates its schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Store("sqlite.Open", fmt.Errorf("open %s: %w", path, err))
	}
	// SQLite has one writer at a time; a larger pool only adds contention
	// and SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	core := sqlcore.New(db, dialect{})
	if err := core.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Core: core, path: path}, nil
}

var _ store.Store = (*Store)(nil)

// EnterMemoryMode copies the database file into an in-memory SQLite
// connection and returns a Store backed by it, for write-heavy batch
// phases such as an experiment run writing thousands of simulation
// results. Call Sync to persist the in-memory copy back to path.
func EnterMemoryMode(ctx context.Context, path string) (*Store, error) {
	memDB, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		return nil, errs.Store("EnterMemoryMode", err)
	}
	memDB.SetMaxOpenConns(1)

	if err := copyViaAttach(ctx, memDB, path); err != nil {
		memDB.Close()
		return nil, errs.Store("EnterMemoryMode", err)
	}

	core := sqlcore.New(memDB, dialect{})
	if err := core.Migrate(ctx); err != nil {
		memDB.Close()
		return nil, err
	}
	return &Store{Core: core, path: path}, nil
}

func copyViaAttach(ctx context.Context, memDB *sql.DB, path string) error {
	if _, err := memDB.ExecContext(ctx, `ATTACH DATABASE ? AS disk`, path); err != nil {
		return err
	}
	defer memDB.ExecContext(ctx, `DETACH DATABASE disk`) //nolint:errcheck

	rows, err := memDB.QueryContext(ctx, `SELECT name FROM disk.sqlite_master WHERE type='table'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	rows.Close()
	for _, t := range tables {
		if _, err := memDB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM disk.%s`, t, t)); err != nil {
			return err
		}
	}
	return nil
}

// Sync writes the in-memory database's contents back to the on-disk
// file at path, completing the RAM-backed write cycle.
func (s *Store) Sync(ctx context.Context) error {
	if _, err := s.Core.DB.ExecContext(ctx, `VACUUM INTO ?`, s.path); err != nil {
		return errs.Store("Sync", err)
	}
	return nil
}
