/*
Package sqlstore provides a SQL-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine (leave.TxStore,
  accrual.SettingsStore, notify.Sink, notify.Reader) on database/sql through
  sqlx. Two dialects share one set of queries written with ? placeholders and
  rebound per driver:

    sqlite3  github.com/mattn/go-sqlite3   (dev, tests, single node)
    pgx      github.com/jackc/pgx/v5       (production PostgreSQL)

INTERFACES IMPLEMENTED:
  leave.TxStore:         users, leave types, applications, balances, rates, journal
  accrual.SettingsStore: allocation settings and run records
  notify.Sink/Reader:    email_queue and notifications outbox tables

KEY TABLES:
  leave_balances:        one row per (user_id, leave_type_id, year)
  leave_applications:    status + cached sandwich_deducted_days
  balance_transactions:  append-only journal, UNIQUE idempotency_key
  email_queue:           outbox consumed by a separate delivery worker

CONCURRENCY:
  Inside WithTx on PostgreSQL, single-row reads of balances, users and
  applications take FOR UPDATE locks, so concurrent deltas on one ledger row
  serialize. SQLite serializes writers itself; WithTx additionally holds a
  mutex so in-process transactions never hit SQLITE_BUSY.

USAGE:
  store, err := sqlstore.Open(sqlstore.SQLite, "./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper migration
  tool with versioned migrations.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
)

// Dialect is the database/sql driver name.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// Store implements all storage interfaces on a *sqlx.DB.
type Store struct {
	conn
	db *sqlx.DB
	mu sync.Mutex
}

var (
	_ leave.TxStore         = (*Store)(nil)
	_ accrual.SettingsStore = (*Store)(nil)
	_ notify.Sink           = (*Store)(nil)
	_ notify.Reader         = (*Store)(nil)
)

// Open connects and migrates. For SQLite use ":memory:" for an in-memory database.
func Open(dialect Dialect, dsn string) (*Store, error) {
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := Wrap(db, dialect)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Wrap builds a Store on an open handle without migrating.
func Wrap(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{conn: conn{q: db, dialect: dialect}, db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dialect() Dialect { return s.dialect }

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	if s.dialect == SQLite {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&conn{q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// CONNECTION - shared by the root store and transactional views
// =============================================================================

type conn struct {
	q       sqlx.ExtContext
	dialect Dialect
	inTx    bool
}

func (c *conn) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, c.q, dest, c.q.Rebind(query), args...)
}

func (c *conn) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, c.q, dest, c.q.Rebind(query), args...)
}

func (c *conn) exec(ctx context.Context, query string, args ...any) error {
	_, err := c.q.ExecContext(ctx, c.q.Rebind(query), args...)
	return err
}

func (c *conn) execRows(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, c.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// forUpdate appends a row lock on PostgreSQL inside a transaction.
func (c *conn) forUpdate(query string) string {
	if c.inTx && c.dialect == Postgres {
		return query + " FOR UPDATE"
	}
	return query
}

// =============================================================================
// HELPERS
// =============================================================================

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	if path == ":memory:" {
		return path + "?_foreign_keys=on"
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL"
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
