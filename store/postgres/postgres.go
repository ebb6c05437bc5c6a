/*
Package postgres provides a PostgreSQL-backed rental.TxStore.

PURPOSE:
  Production persistence. Queries live in store/sqlstore and run through
  database/sql, so either driver can sit underneath:

    pgx (recommended):  Open(ctx, "pgx", dsn) or NewFromPGXPool(pool)
    lib/pq:             Open(ctx, "postgres", dsn)

CONCURRENCY:
  LockBook and LockRequest take row locks (SELECT ... FOR UPDATE). Engine
  operations always lock the request before the book, so two transactions
  never wait on each other in opposite order.

  Every transaction starts with SET LOCAL lock_timeout. A lock wait past the
  timeout (55P03), a deadlock (40P01) or a serialization failure (40001)
  surfaces as rental.ErrConcurrentModification and is retried by the engine.

  Read Committed is enough for the locking protocol. WithSerializable raises
  the isolation level for deployments that add their own queries.

SEE ALSO:
  - store/sqlstore: Queries
  - store/sqlite: Development backend
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/store/sqlstore"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock.
const DefaultLockTimeout = 2 * time.Second

// SQLSTATE codes with a domain meaning.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeForeignKeyViolation  = "23503"
)

// Store implements rental.TxStore using PostgreSQL.
type Store struct {
	*sqlstore.Store
	pool *pgxpool.Pool
}

var _ rental.TxStore = (*Store)(nil)

type config struct {
	lockTimeout  time.Duration
	serializable bool
}

// Option configures a Store.
type Option func(*config)

// WithLockTimeout overrides DefaultLockTimeout. Zero disables the timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.lockTimeout = d }
}

// WithSerializable runs transactions at SERIALIZABLE isolation.
func WithSerializable() Option {
	return func(c *config) { c.serializable = true }
}

// Open connects with driver "pgx" or "postgres" (lib/pq) and pings.
func Open(ctx context.Context, driver, dsn string, options ...Option) (*Store, error) {
	switch driver {
	case "pgx", "postgres":
	default:
		return nil, fmt.Errorf("unsupported postgres driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewFromSQLX(db, options...), nil
}

// NewFromPGXPool wraps an existing pgx pool. Close closes the pool too.
func NewFromPGXPool(pool *pgxpool.Pool, options ...Option) *Store {
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	s := NewFromSQLX(db, options...)
	s.pool = pool
	return s
}

// NewFromDB wraps a database/sql handle opened with a postgres driver.
func NewFromDB(db *sql.DB, options ...Option) *Store {
	return NewFromSQLX(sqlx.NewDb(db, "postgres"), options...)
}

// NewFromSQLX wraps an sqlx handle.
func NewFromSQLX(db *sqlx.DB, options ...Option) *Store {
	cfg := config{lockTimeout: DefaultLockTimeout}
	for _, option := range options {
		option(&cfg)
	}

	storeOptions := []sqlstore.Option{sqlstore.WithErrorClassifier(Classify)}
	if cfg.serializable {
		storeOptions = append(storeOptions, sqlstore.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}))
	}
	if cfg.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", cfg.lockTimeout.Milliseconds())
		storeOptions = append(storeOptions, sqlstore.WithBeginHook(func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, stmt)
			return err
		}))
	}
	return &Store{Store: sqlstore.New(db, "postgres", storeOptions...)}
}

// Close closes the database and, if owned, the pgx pool.
func (s *Store) Close() error {
	err := s.Store.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	stock INTEGER NOT NULL,
	copies INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT books_stock_bounds CHECK (stock >= 0 AND stock <= copies)
);

CREATE INDEX IF NOT EXISTS idx_books_title ON books (title);

CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('User', 'Admin')),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS book_requests (
	id UUID PRIMARY KEY,
	book_id UUID NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	request_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('Pending', 'Approved', 'Rejected')),
	decided_at TIMESTAMPTZ,
	decided_by UUID
);

CREATE INDEX IF NOT EXISTS idx_requests_user ON book_requests (user_id, request_date DESC);
CREATE INDEX IF NOT EXISTS idx_requests_pending ON book_requests (request_date) WHERE status = 'Pending';

CREATE TABLE IF NOT EXISTS rentals (
	id UUID PRIMARY KEY,
	book_id UUID NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	request_id UUID REFERENCES book_requests (id) ON DELETE SET NULL,
	rented_at TIMESTAMPTZ NOT NULL,
	due_at TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ,
	late_fee NUMERIC(10, 2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rentals_open ON rentals (book_id) WHERE returned_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_rentals_user ON rentals (user_id, rented_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	actor_id UUID NOT NULL,
	action TEXT NOT NULL,
	book_id UUID NOT NULL,
	request_id UUID,
	rental_id UUID,
	details JSONB
);

CREATE INDEX IF NOT EXISTS idx_audit_book ON audit_log (book_id);
`

// Classify maps SQLSTATE codes from pgx or lib/pq onto rental sentinels.
func Classify(err error) error {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return rental.ErrConcurrentModification
	case codeUniqueViolation:
		return rental.ErrConflict
	case codeCheckViolation:
		return rental.ErrInvariantViolation
	case codeForeignKeyViolation:
		return rental.ErrNotFound
	}
	return nil
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
