// Package netstore is the network-server persistence backend: a
// MySQL-compatible server reached over go-sql-driver/mysql, for
// deployments where multiple processes share one store over the
// network rather than each opening its own local file.
package netstore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/store/sqlcore"
)

type dialect struct{}

func (dialect) Name() string           { return "mysql" }
func (dialect) AutoIncrementPK() string { return "BIGINT PRIMARY KEY AUTO_INCREMENT" }
func (dialect) InsertIgnore() string   { return "INSERT IGNORE" }
func (dialect) BoolType() string       { return "TINYINT(1)" }
func (dialect) TimestampType() string  { return "DATETIME" }
func (dialect) FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Store is the MySQL-compatible store.Store implementation.
type Store struct {
	*sqlcore.Core
}

// Open connects to a MySQL-compatible server at dsn and migrates its
// schema. dsn is a go-sql-driver/mysql data source name, e.g.
// "user:pass@tcp(host:3306)/cascade?parseTime=true".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.Store("netstore.Open", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Store("netstore.Open", err)
	}

	core := sqlcore.New(db, dialect{})
	if err := core.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Core: core}, nil
}

var _ store.Store = (*Store)(nil)
