/*
store.go - Persistence contract for the rental lifecycle engine

PURPOSE:
  Defines what the engine needs from a database. Implementations decide how
  per-book serialization is achieved; the engine only relies on:

    1. LockBook / LockRequest / LockUser read a row and hold it exclusively until the
       enclosing WithTx scope ends (SELECT ... FOR UPDATE, or equivalent).
    2. WithTx is all-or-nothing. If fn returns an error (or panics) nothing
       fn wrote is visible to anyone, ever.
    3. Transient conflicts surface as ErrConcurrentModification so the
       engine can retry the whole scope.

KEY INTERFACES:
  BookLedger:    Book metadata and stock counter
  UserDirectory: User lookups (existence is all the engine needs)
  RequestStore:  BookRequest persistence
  RentalStore:   Rental records, open and closed
  AuditLog:      Append-only transition log
  TxStore:       Store + WithTx

IMPLEMENTATIONS:
  - rental/store/memory.go: In-memory, row locks emulated per key
  - store/sqlite:           SQLite (BEGIN IMMEDIATE)
  - store/postgres:         PostgreSQL (row locks, optional SERIALIZABLE)

SEE ALSO:
  - engine.go: The only writer of stock and rental records
  - store/sqlstore: Shared SQL implementation
*/
package rental

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// COMPONENT INTERFACES
// =============================================================================

// BookLedger owns book metadata and stock.
type BookLedger interface {
	// GetBook returns a *NotFoundError if the book does not exist.
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)

	// LockBook is GetBook plus an exclusive row lock held until scope end.
	LockBook(ctx context.Context, id uuid.UUID) (*Book, error)

	// AdjustStock moves stock by delta. Returns a *StockError (ErrInvariantViolation)
	// when the result would leave [0, copies].
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Book, error)

	CreateBook(ctx context.Context, b Book) error
	UpdateBook(ctx context.Context, b Book) error

	// DeleteBook removes the book with its requests and rental history.
	DeleteBook(ctx context.Context, id uuid.UUID) error

	// ListBooks returns one page and the total number of matches.
	ListBooks(ctx context.Context, f BookFilter) ([]Book, int, error)
}

// UserDirectory resolves users.
type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// LockUser is GetUser plus an exclusive row lock held until scope end.
	LockUser(ctx context.Context, id uuid.UUID) (*User, error)

	// CreateUser returns a *ConflictError when the email is taken.
	CreateUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, u User) error
}

// RequestStore persists book requests.
type RequestStore interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*BookRequest, error)
	LockRequest(ctx context.Context, id uuid.UUID) (*BookRequest, error)
	CreateRequest(ctx context.Context, r BookRequest) error
	UpdateRequest(ctx context.Context, r BookRequest) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error
	ListRequests(ctx context.Context, f RequestFilter) ([]BookRequest, int, error)
}

// RentalStore persists rental records.
type RentalStore interface {
	InsertRental(ctx context.Context, r RentalRecord) error

	// GetRental returns a *NotFoundError if the record does not exist.
	GetRental(ctx context.Context, id uuid.UUID) (*RentalRecord, error)

	// OpenRentals returns every record for the book with no return date.
	OpenRentals(ctx context.Context, bookID uuid.UUID) ([]RentalRecord, error)

	// CloseRental stores ReturnDate and LateFee of an open record.
	CloseRental(ctx context.Context, r RentalRecord) error

	ListRentals(ctx context.Context, f RentalFilter) ([]RentalRecord, int, error)

	// CountRentals returns the total and open record counts.
	CountRentals(ctx context.Context) (total int, active int, err error)

	// OpenRentalCounts returns open record counts keyed by book.
	OpenRentalCounts(ctx context.Context) (map[uuid.UUID]int, error)
}

// =============================================================================
// STORE - Composition used by the engine
// =============================================================================

// Store is everything the engine reads and writes.
type Store interface {
	BookLedger
	UserDirectory
	RequestStore
	RentalStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Resetter is implemented by stores that can wipe all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}
