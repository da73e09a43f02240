package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/thomasnguyen/corgi-quest/internal/migrations"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlstore"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Dialect configures sqlstore for SQLite.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// Open opens (or creates) a SQLite database at path with WAL journaling and
// foreign keys enabled. Times are written in SQLite's text format so that
// UTC timestamps order lexically. A single connection is used so that writers serialise
// and in-memory databases stay shared across calls.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == MemoryPath || path == "" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)&_time_format=sqlite"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database, applies migrations and returns a ready store.
func New(ctx context.Context, path string, log zerolog.Logger) (*sqlstore.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db, Dialect.Name, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db, Dialect), nil
}
