/*
Package sqlite provides a SQLite-backed rental.TxStore.

PURPOSE:
  Single-file persistence for development, demos and small deployments.
  All queries live in store/sqlstore; this package owns the connection
  string, the schema and the mapping of SQLite result codes onto the
  rental error sentinels.

CONCURRENCY:
  SQLite has no row locks, so FOR UPDATE renders as nothing. Instead every
  transaction is opened with BEGIN IMMEDIATE (_txlock=immediate), taking the
  database write lock up front. Writers are serialized; a writer that cannot
  get the lock within the busy timeout fails with SQLITE_BUSY, which is
  reported as rental.ErrConcurrentModification and retried by the engine.

WAL MODE:
  Readers outside a transaction are not blocked by the single writer.

KEY TABLES:
  books:         Catalog with stock and copies (CHECK 0 <= stock <= copies)
  users:         Accounts, email unique
  book_requests: Rental requests, cascade with their book
  rentals:       Rental records; returned_at NULL means open
  audit_log:     Lifecycle transitions, no foreign keys (outlives books)

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine, err := rental.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/sqlstore: Queries
  - store/postgres: Production backend
  - rental/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/store/sqlstore"
)

// DefaultBusyTimeoutMS is how long a writer waits for the write lock.
const DefaultBusyTimeoutMS = 5000

// Store implements rental.TxStore using SQLite.
type Store struct {
	*sqlstore.Store
}

var _ rental.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		dbPath, DefaultBusyTimeoutMS)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{Store: sqlstore.New(db, "sqlite3", sqlstore.WithErrorClassifier(Classify))}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		stock INTEGER NOT NULL,
		copies INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (stock >= 0 AND stock <= copies)
	);

	CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('User', 'Admin')),
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS book_requests (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		request_date TIMESTAMP NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Pending', 'Approved', 'Rejected')),
		decided_at TIMESTAMP,
		decided_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user ON book_requests(user_id, request_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON book_requests(status);

	CREATE TABLE IF NOT EXISTS rentals (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		request_id TEXT REFERENCES book_requests(id) ON DELETE SET NULL,
		rented_at TIMESTAMP NOT NULL,
		due_at TIMESTAMP NOT NULL,
		returned_at TIMESTAMP,
		late_fee TEXT NOT NULL DEFAULT '0.00'
	);

	-- Hot path: open rentals of one book (return, delete, reconcile)
	CREATE INDEX IF NOT EXISTS idx_rentals_open ON rentals(book_id) WHERE returned_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_rentals_user ON rentals(user_id, rented_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		occurred_at TIMESTAMP NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		book_id TEXT NOT NULL,
		request_id TEXT,
		rental_id TEXT,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_book ON audit_log(book_id);
	`
	_, err := s.DB().ExecContext(ctx, schema)
	return err
}

// Classify maps SQLite result codes onto rental sentinels.
func Classify(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return rental.ErrConcurrentModification
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return rental.ErrConflict
		case sqlite3.ErrConstraintCheck:
			return rental.ErrInvariantViolation
		case sqlite3.ErrConstraintForeignKey:
			return rental.ErrNotFound
		}
	}
	return nil
}
