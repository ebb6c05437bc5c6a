/*
Package sqlstore implements rental.TxStore on top of database/sql.

PURPOSE:
  One implementation of every rental query, shared by the SQLite and
  PostgreSQL stores. Queries are built with goqu for the configured dialect
  and executed through sqlx, which scans rows into the db-tagged domain
  structs. Backends only supply the connection, the schema and an error
  classifier.

LOCKING:
  LockBook and LockRequest render SELECT ... FOR UPDATE. Dialects without
  row locks (sqlite3) render no lock clause; such backends must serialize
  writers another way (SQLite: BEGIN IMMEDIATE).

  Every statement that writes a rental also goes through the book row, so
  holding the book lock is enough to make a book's open rentals stable.

ERRORS:
  Driver errors are passed through the backend's ErrorClassifier. A
  classified error keeps both the rental sentinel and the driver error in
  its chain:

    approve: lock book: concurrent modification detected: pq: deadlock detected

TABLES:
  books, users, book_requests, rentals, audit_log

SEE ALSO:
  - rental/store.go: The contract
  - store/sqlite, store/postgres: Backends
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	// Register the dialects New accepts.
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/warp/book-rental/rental"
)

const (
	tableBooks    = "books"
	tableUsers    = "users"
	tableRequests = "book_requests"
	tableRentals  = "rentals"
	tableAudit    = "audit_log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorClassifier maps a driver error to a rental sentinel
// (ErrConcurrentModification, ErrConflict, ErrInvariantViolation, ErrNotFound),
// or nil when the error has no domain meaning.
type ErrorClassifier func(err error) error

// BeginHook runs first in every transaction (e.g. SET LOCAL lock_timeout).
type BeginHook func(ctx context.Context, tx *sqlx.Tx) error

// Option configures a Store.
type Option func(*Store)

// WithErrorClassifier sets the driver error classifier.
func WithErrorClassifier(c ErrorClassifier) Option {
	return func(s *Store) { s.classify = c }
}

// WithTxOptions sets the isolation level used by WithTx.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(s *Store) { s.txOpts = opts }
}

// WithBeginHook registers a statement to run at the start of each transaction.
func WithBeginHook(h BeginHook) Option {
	return func(s *Store) { s.onBegin = h }
}

// Store implements rental.TxStore.
type Store struct {
	*conn
	db      *sqlx.DB
	txOpts  *sql.TxOptions
	onBegin BeginHook
}

// New wraps db. dialect is a goqu dialect name: "postgres" or "sqlite3".
func New(db *sqlx.DB, dialect string, options ...Option) *Store {
	s := &Store{db: db}
	s.conn = &conn{q: db, d: goqu.Dialect(dialect), classify: noClassifier}
	for _, option := range options {
		option(s)
	}
	return s
}

func noClassifier(error) error { return nil }

// DB returns the underlying handle (migrations, health checks).
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(rental.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, s.txOpts)
	if err != nil {
		return s.fail("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if s.onBegin != nil {
		if err := s.onBegin(ctx, tx); err != nil {
			return s.fail("begin hook", err)
		}
	}

	if err := fn(&conn{q: tx, d: s.d, classify: s.classify}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.fail("commit", err)
	}
	return nil
}

// Reset deletes all rows (for testing/demo). Children first.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st rental.Store) error {
		c := st.(*conn)
		for _, table := range []string{tableAudit, tableRentals, tableRequests, tableBooks, tableUsers} {
			if _, err := c.exec(ctx, "reset "+table, c.d.Delete(table).Prepared(true)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// CONN - Queries against either the pool or one transaction
// =============================================================================

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type conn struct {
	q        queryer
	d        goqu.DialectWrapper
	classify ErrorClassifier
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (c *conn) get(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	if err := c.q.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return c.fail(op, err)
	}
	return nil
}

func (c *conn) selectAll(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	if err := c.q.SelectContext(ctx, dest, query, args...); err != nil {
		return c.fail(op, err)
	}
	return nil
}

func (c *conn) exec(ctx context.Context, op string, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("%s: build query: %w", op, err)
	}
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.fail(op, err)
	}
	return res.RowsAffected()
}

func (c *conn) fail(op string, err error) error {
	if kind := c.classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *conn) count(ctx context.Context, op string, ds *goqu.SelectDataset) (int, error) {
	var n int
	if err := c.get(ctx, op, &n, ds.Select(goqu.COUNT(goqu.Star())).Prepared(true)); err != nil {
		return 0, err
	}
	return n, nil
}

func paged(ds *goqu.SelectDataset, p rental.Page) *goqu.SelectDataset {
	p = p.Normalize()
	return ds.Limit(uint(p.Size)).Offset(uint(p.Offset())).Prepared(true)
}

// =============================================================================
// BOOKS
// =============================================================================

var bookColumns = []interface{}{"id", "title", "author", "stock", "copies", "created_at", "updated_at"}

func (c *conn) selectBook(ctx context.Context, id uuid.UUID, lock bool) (*rental.Book, error) {
	ds := c.d.From(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(id))
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	var b rental.Book
	if err := c.get(ctx, "get book", &b, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &rental.NotFoundError{Kind: rental.KindBook, ID: id}
		}
		return nil, err
	}
	return &b, nil
}

func (c *conn) GetBook(ctx context.Context, id uuid.UUID) (*rental.Book, error) {
	return c.selectBook(ctx, id, false)
}

func (c *conn) LockBook(ctx context.Context, id uuid.UUID) (*rental.Book, error) {
	return c.selectBook(ctx, id, true)
}

func (c *conn) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*rental.Book, error) {
	b, err := c.LockBook(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := b.WithStockDelta(delta)
	if err != nil {
		return nil, err
	}
	_, err = c.exec(ctx, "adjust stock", c.d.Update(tableBooks).
		Set(goqu.Record{"stock": next.Stock}).
		Where(goqu.C("id").Eq(id)).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (c *conn) CreateBook(ctx context.Context, b rental.Book) error {
	_, err := c.exec(ctx, "create book", c.d.Insert(tableBooks).Rows(goqu.Record{
		"id":         b.ID,
		"title":      b.Title,
		"author":     b.Author,
		"stock":      b.Stock,
		"copies":     b.Copies,
		"created_at": b.CreatedAt,
		"updated_at": b.UpdatedAt,
	}).Prepared(true))
	return err
}

func (c *conn) UpdateBook(ctx context.Context, b rental.Book) error {
	n, err := c.exec(ctx, "update book", c.d.Update(tableBooks).Set(goqu.Record{
		"title":      b.Title,
		"author":     b.Author,
		"stock":      b.Stock,
		"copies":     b.Copies,
		"updated_at": b.UpdatedAt,
	}).Where(goqu.C("id").Eq(b.ID)).Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &rental.NotFoundError{Kind: rental.KindBook, ID: b.ID}
	}
	return nil
}

// DeleteBook relies on ON DELETE CASCADE for requests and rentals.
func (c *conn) DeleteBook(ctx context.Context, id uuid.UUID) error {
	n, err := c.exec(ctx, "delete book", c.d.Delete(tableBooks).Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &rental.NotFoundError{Kind: rental.KindBook, ID: id}
	}
	return nil
}

func (c *conn) ListBooks(ctx context.Context, f rental.BookFilter) ([]rental.Book, int, error) {
	ds := c.d.From(tableBooks)
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + stripWildcards.Replace(q) + "%"
		ds = ds.Where(goqu.Or(goqu.C("title").ILike(pattern), goqu.C("author").ILike(pattern)))
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.C("stock").Gt(0))
	}

	total, err := c.count(ctx, "count books", ds)
	if err != nil {
		return nil, 0, err
	}
	books := []rental.Book{}
	err = c.selectAll(ctx, "list books", &books,
		paged(ds.Select(bookColumns...).Order(goqu.C("title").Asc(), goqu.C("id").Asc()), f.Page))
	return books, total, err
}

// Search terms are literal substrings.
var stripWildcards = strings.NewReplacer("%", "", "_", "")

// =============================================================================
// USERS
// =============================================================================

var userColumns = []interface{}{"id", "full_name", "email", "password_hash", "role", "created_at"}

func (c *conn) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := c.count(ctx, "user exists", c.d.From(tableUsers).Where(goqu.C("id").Eq(id)))
	return n > 0, err
}

func (c *conn) getUser(ctx context.Context, where exp.Expression, lock bool, notFound *rental.NotFoundError) (*rental.User, error) {
	ds := c.d.From(tableUsers).Select(userColumns...).Where(where)
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	var u rental.User
	err := c.get(ctx, "get user", &u, ds.Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *conn) GetUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	return c.getUser(ctx, goqu.C("id").Eq(id), false, &rental.NotFoundError{Kind: rental.KindUser, ID: id})
}

func (c *conn) LockUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	return c.getUser(ctx, goqu.C("id").Eq(id), true, &rental.NotFoundError{Kind: rental.KindUser, ID: id})
}

func (c *conn) GetUserByEmail(ctx context.Context, email string) (*rental.User, error) {
	return c.getUser(ctx, goqu.C("email").Eq(rental.NormalizeEmail(email)), false, &rental.NotFoundError{Kind: rental.KindUser})
}

func (c *conn) CreateUser(ctx context.Context, u rental.User) error {
	_, err := c.exec(ctx, "create user", c.d.Insert(tableUsers).Rows(goqu.Record{
		"id":            u.ID,
		"full_name":     u.FullName,
		"email":         rental.NormalizeEmail(u.Email),
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"created_at":    u.CreatedAt,
	}).Prepared(true))
	return emailConflict(err)
}

func (c *conn) UpdateUser(ctx context.Context, u rental.User) error {
	n, err := c.exec(ctx, "update user", c.d.Update(tableUsers).Set(goqu.Record{
		"full_name":     u.FullName,
		"email":         rental.NormalizeEmail(u.Email),
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
	}).Where(goqu.C("id").Eq(u.ID)).Prepared(true))
	if err != nil {
		return emailConflict(err)
	}
	if n == 0 {
		return &rental.NotFoundError{Kind: rental.KindUser, ID: u.ID}
	}
	return nil
}

func emailConflict(err error) error {
	if errors.Is(err, rental.ErrConflict) {
		return &rental.ConflictError{Kind: rental.KindUser, Detail: "email already registered"}
	}
	return err
}

// =============================================================================
// REQUESTS
// =============================================================================

var requestColumns = []interface{}{"id", "book_id", "user_id", "request_date", "status", "decided_at", "decided_by"}

func (c *conn) selectRequest(ctx context.Context, id uuid.UUID, lock bool) (*rental.BookRequest, error) {
	ds := c.d.From(tableRequests).Select(requestColumns...).Where(goqu.C("id").Eq(id))
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	var r rental.BookRequest
	if err := c.get(ctx, "get request", &r, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &rental.NotFoundError{Kind: rental.KindRequest, ID: id}
		}
		return nil, err
	}
	return &r, nil
}

func (c *conn) GetRequest(ctx context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	return c.selectRequest(ctx, id, false)
}

func (c *conn) LockRequest(ctx context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	return c.selectRequest(ctx, id, true)
}

func (c *conn) CreateRequest(ctx context.Context, r rental.BookRequest) error {
	_, err := c.exec(ctx, "create request", c.d.Insert(tableRequests).Rows(goqu.Record{
		"id":           r.ID,
		"book_id":      r.BookID,
		"user_id":      r.UserID,
		"request_date": r.RequestDate,
		"status":       string(r.Status),
		"decided_at":   r.DecidedAt,
		"decided_by":   r.DecidedBy,
	}).Prepared(true))
	return err
}

func (c *conn) UpdateRequest(ctx context.Context, r rental.BookRequest) error {
	n, err := c.exec(ctx, "update request", c.d.Update(tableRequests).Set(goqu.Record{
		"status":     string(r.Status),
		"decided_at": r.DecidedAt,
		"decided_by": r.DecidedBy,
	}).Where(goqu.C("id").Eq(r.ID)).Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &rental.NotFoundError{Kind: rental.KindRequest, ID: r.ID}
	}
	return nil
}

func (c *conn) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	n, err := c.exec(ctx, "delete request", c.d.Delete(tableRequests).Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &rental.NotFoundError{Kind: rental.KindRequest, ID: id}
	}
	return nil
}

func (c *conn) ListRequests(ctx context.Context, f rental.RequestFilter) ([]rental.BookRequest, int, error) {
	ds := c.d.From(tableRequests)
	if f.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.C("book_id").Eq(*f.BookID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}

	total, err := c.count(ctx, "count requests", ds)
	if err != nil {
		return nil, 0, err
	}
	requests := []rental.BookRequest{}
	err = c.selectAll(ctx, "list requests", &requests,
		paged(ds.Select(requestColumns...).Order(goqu.C("request_date").Desc(), goqu.C("id").Asc()), f.Page))
	return requests, total, err
}

// =============================================================================
// RENTALS
// =============================================================================

var rentalColumns = []interface{}{"id", "book_id", "user_id", "request_id", "rented_at", "due_at", "returned_at", "late_fee"}

func (c *conn) InsertRental(ctx context.Context, r rental.RentalRecord) error {
	_, err := c.exec(ctx, "insert rental", c.d.Insert(tableRentals).Rows(goqu.Record{
		"id":          r.ID,
		"book_id":     r.BookID,
		"user_id":     r.UserID,
		"request_id":  r.RequestID,
		"rented_at":   r.RentalDate,
		"due_at":      r.DueDate,
		"returned_at": r.ReturnDate,
		"late_fee":    r.LateFee.StringFixed(2),
	}).Prepared(true))
	return err
}

func (c *conn) GetRental(ctx context.Context, id uuid.UUID) (*rental.RentalRecord, error) {
	var r rental.RentalRecord
	err := c.get(ctx, "get rental", &r,
		c.d.From(tableRentals).Select(rentalColumns...).Where(goqu.C("id").Eq(id)).Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &rental.NotFoundError{Kind: rental.KindRental, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *conn) OpenRentals(ctx context.Context, bookID uuid.UUID) ([]rental.RentalRecord, error) {
	open := []rental.RentalRecord{}
	err := c.selectAll(ctx, "open rentals", &open, c.d.From(tableRentals).
		Select(rentalColumns...).
		Where(goqu.C("book_id").Eq(bookID), goqu.C("returned_at").IsNull()).
		Order(goqu.C("rented_at").Asc()).
		Prepared(true))
	return open, err
}

// CloseRental only touches a rental that is still open.
func (c *conn) CloseRental(ctx context.Context, r rental.RentalRecord) error {
	n, err := c.exec(ctx, "close rental", c.d.Update(tableRentals).Set(goqu.Record{
		"returned_at": r.ReturnDate,
		"late_fee":    r.LateFee.StringFixed(2),
	}).Where(goqu.C("id").Eq(r.ID), goqu.C("returned_at").IsNull()).Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &rental.NoActiveRentalError{BookID: r.BookID}
	}
	return nil
}

func (c *conn) ListRentals(ctx context.Context, f rental.RentalFilter) ([]rental.RentalRecord, int, error) {
	ds := c.d.From(tableRentals)
	if f.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.C("book_id").Eq(*f.BookID))
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.C("returned_at").IsNull())
	}

	total, err := c.count(ctx, "count rentals", ds)
	if err != nil {
		return nil, 0, err
	}
	rentals := []rental.RentalRecord{}
	err = c.selectAll(ctx, "list rentals", &rentals,
		paged(ds.Select(rentalColumns...).Order(goqu.C("rented_at").Desc(), goqu.C("id").Asc()), f.Page))
	return rentals, total, err
}

func (c *conn) CountRentals(ctx context.Context) (int, int, error) {
	var row struct {
		Total    int `db:"total"`
		Returned int `db:"returned"`
	}
	err := c.get(ctx, "count rentals", &row, c.d.From(tableRentals).Select(
		goqu.COUNT(goqu.Star()).As("total"),
		goqu.COUNT("returned_at").As("returned"),
	).Prepared(true))
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Total - row.Returned, nil
}

func (c *conn) OpenRentalCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	var rows []struct {
		BookID uuid.UUID `db:"book_id"`
		Open   int       `db:"open_count"`
	}
	err := c.selectAll(ctx, "open rental counts", &rows, c.d.From(tableRentals).
		Select(goqu.C("book_id"), goqu.COUNT(goqu.Star()).As("open_count")).
		Where(goqu.C("returned_at").IsNull()).
		GroupBy(goqu.C("book_id")).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.BookID] = r.Open
	}
	return counts, nil
}

// =============================================================================
// AUDIT
// =============================================================================

type auditRow struct {
	ID        string        `db:"id"`
	Timestamp time.Time     `db:"occurred_at"`
	ActorID   uuid.UUID     `db:"actor_id"`
	Action    string        `db:"action"`
	BookID    uuid.UUID     `db:"book_id"`
	RequestID uuid.NullUUID `db:"request_id"`
	RentalID  uuid.NullUUID `db:"rental_id"`
	Details   string        `db:"details"`
}

func (c *conn) AppendAudit(ctx context.Context, e rental.AuditEntry) error {
	details, err := json.MarshalToString(e.Details)
	if err != nil {
		return fmt.Errorf("append audit: encode details: %w", err)
	}
	_, err = c.exec(ctx, "append audit", c.d.Insert(tableAudit).Rows(goqu.Record{
		"id":          e.ID,
		"occurred_at": e.Timestamp,
		"actor_id":    e.ActorID,
		"action":      string(e.Action),
		"book_id":     e.BookID,
		"request_id":  e.RequestID,
		"rental_id":   e.RentalID,
		"details":     details,
	}).Prepared(true))
	return err
}

func (c *conn) ListAudit(ctx context.Context, f rental.AuditFilter) ([]rental.AuditEntry, error) {
	ds := c.d.From(tableAudit).Select(
		"id", "occurred_at", "actor_id", "action", "book_id", "request_id", "rental_id", "details")
	if f.BookID != nil {
		ds = ds.Where(goqu.C("book_id").Eq(*f.BookID))
	}
	if f.RequestID != nil {
		ds = ds.Where(goqu.C("request_id").Eq(*f.RequestID))
	}
	if f.ActorID != nil {
		ds = ds.Where(goqu.C("actor_id").Eq(*f.ActorID))
	}
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		ds = ds.Where(goqu.C("action").In(actions))
	}
	ds = ds.Order(goqu.C("id").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}

	var rows []auditRow
	if err := c.selectAll(ctx, "list audit", &rows, ds.Prepared(true)); err != nil {
		return nil, err
	}
	entries := make([]rental.AuditEntry, 0, len(rows))
	for _, r := range rows {
		var details map[string]string
		if r.Details != "" && r.Details != "null" {
			if err := json.UnmarshalFromString(r.Details, &details); err != nil {
				return nil, fmt.Errorf("list audit: decode details of %s: %w", r.ID, err)
			}
		}
		entries = append(entries, rental.AuditEntry{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			ActorID:   r.ActorID,
			Action:    rental.AuditAction(r.Action),
			BookID:    r.BookID,
			RequestID: r.RequestID,
			RentalID:  r.RentalID,
			Details:   details,
		})
	}
	return entries, nil
}
