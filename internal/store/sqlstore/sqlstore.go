// Package sqlstore implements store.Store over database/sql for both the
// Postgres and SQLite dialects. Queries are written with '?' placeholders and
// rebound for dialects that use numbered parameters.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// Dialect captures the few places where Postgres and SQLite differ.
type Dialect struct {
	Name string
	// NumberedParams rewrites '?' placeholders to $1, $2, ...
	NumberedParams bool
	// SkipLocked appends FOR UPDATE SKIP LOCKED when leasing outbox rows.
	SkipLocked bool
	// RowLocks appends FOR UPDATE to locking reads inside a transaction.
	// Dialects without it must serialise writers some other way.
	RowLocks bool
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the SQL-backed store.Store.
type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, q: db, dialect: dialect}
}

func (s *Store) Households() store.Households { return &households{s} }
func (s *Store) Users() store.Users           { return &users{s} }
func (s *Store) Dogs() store.Dogs             { return &dogs{s} }
func (s *Store) Stats() store.Stats           { return &stats{s} }
func (s *Store) Activities() store.Activities { return &activities{s} }
func (s *Store) Goals() store.Goals           { return &goals{s} }
func (s *Store) Streaks() store.Streaks       { return &streaks{s} }
func (s *Store) Moods() store.Moods           { return &moods{s} }
func (s *Store) Cosmetics() store.Cosmetics   { return &cosmetics{s} }
func (s *Store) Outbox() store.Outbox         { return &outbox{s} }

// DB exposes the underlying handle for health checks and shutdown.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the configured dialect name.
func (s *Store) Dialect() string { return s.dialect.Name }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// WithTx implements store.Store. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.WithTx(ctx, func(tx store.Store) error { return fn(tx.(*Store)) })
}

// forUpdate returns the locking clause for reads made inside a transaction.
func (s *Store) forUpdate() string {
	if s.inTx && s.dialect.RowLocks {
		return ` FOR UPDATE`
	}
	return ""
}

func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedParams || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// execOne runs an UPDATE/DELETE and returns NotFoundError when no row matched.
func (s *Store) execOne(ctx context.Context, field, id, query string, args ...interface{}) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewNotFoundError(field, id)
	}
	return nil
}

func (s *Store) mapInsertErr(err error, field, msg string) error {
	if err == nil {
		return nil
	}
	if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return model.NewConflictError(field, msg)
	}
	return err
}

func notFound(err error, field, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError(field, id)
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 200:
		return 200
	}
	return limit
}
