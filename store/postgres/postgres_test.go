package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/store/postgres"
)

var t0 = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T, options ...postgres.Option) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewFromDB(db, options...), mock
}

var bookColumns = []string{"id", "title", "author", "stock", "copies", "created_at", "updated_at"}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, rental.ErrConcurrentModification},
		{"pgx lock timeout", &pgconn.PgError{Code: "55P03"}, rental.ErrConcurrentModification},
		{"pgx serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), rental.ErrConcurrentModification},
		{"pq unique", &pq.Error{Code: "23505"}, rental.ErrConflict},
		{"pq check", &pq.Error{Code: "23514"}, rental.ErrInvariantViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, rental.ErrNotFound},
		{"syntax error", &pgconn.PgError{Code: "42601"}, nil},
		{"plain", errors.New("connection refused"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postgres.Classify(tt.err))
		})
	}
}

func TestStore_WithTx_LocksBookForUpdate(t *testing.T) {
	// GIVEN: A book row
	s, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '2000ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id", "title", "author", "stock", "copies", "created_at", "updated_at" FROM "books" WHERE \("id" = \$1\) FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow(id.String(), "Emma", "Jane Austen", 2, 3, t0, t0))
	mock.ExpectExec(`UPDATE "books" SET "stock"=\$1 WHERE \("id" = \$2\)`).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// WHEN: Stock is adjusted in a transaction
	var got *rental.Book
	err := s.WithTx(context.Background(), func(st rental.Store) error {
		var err error
		got, err = st.AdjustStock(context.Background(), id, -1)
		return err
	})

	// THEN: The row was locked, written and committed
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.Equal(t, id, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LockTimeout_IsRetryable(t *testing.T) {
	s, mock := newMock(t, postgres.WithLockTimeout(50*time.Millisecond))

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '50ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM "book_requests" WHERE .* FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(st rental.Store) error {
		_, err := st.LockRequest(context.Background(), uuid.New())
		return err
	})

	assert.True(t, rental.IsRetryable(err))
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr, "driver error stays in the chain")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CommitSerializationFailure(t *testing.T) {
	s, mock := newMock(t, postgres.WithLockTimeout(0), postgres.WithSerializable())

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := s.WithTx(context.Background(), func(rental.Store) error { return nil })

	assert.ErrorIs(t, err, rental.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBook_NotFound(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()
	mock.ExpectQuery(`FROM "books" WHERE \("id" = \$1\)$`).WillReturnRows(sqlmock.NewRows(bookColumns))

	_, err := s.GetBook(context.Background(), id)

	var notFound *rental.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, rental.KindBook, notFound.Kind)
	assert.Equal(t, id, notFound.ID)
}

func TestStore_CreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateUser(context.Background(), rental.User{ID: uuid.New(), Email: "a@example.com", Role: rental.RoleUser})

	var conflict *rental.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, rental.KindUser, conflict.Kind)
}

func TestStore_CountRentals(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS "total", COUNT\("returned_at"\) AS "returned" FROM "rentals"`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "returned"}).AddRow(5, 3))

	total, active, err := s.CountRentals(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, active)
}

func TestEngine_DeadlockExhaustsRetries(t *testing.T) {
	// GIVEN: Every attempt to lock the book deadlocks
	s, mock := newMock(t, postgres.WithLockTimeout(0))
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM "books" .* FOR UPDATE`).WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}
	engine, err := rental.NewEngine(s, rental.WithRetry(rental.WithMaxAttempts(2), rental.WithBaseDelay(time.Millisecond)))
	require.NoError(t, err)

	// WHEN: A direct rent is attempted
	_, err = engine.DirectRent(context.Background(), uuid.New(), uuid.New(), uuid.New())

	// THEN: The engine gives up with a contention error
	var contention *rental.ContentionError
	require.ErrorAs(t, err, &contention)
	assert.Equal(t, 2, contention.Attempts)
	assert.ErrorIs(t, err, rental.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
