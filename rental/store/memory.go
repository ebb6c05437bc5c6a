// Package store provides an in-memory rental.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/warp/book-rental/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
//
// Row locks are emulated with one lock channel per key ("book:<id>",
// "request:<id>", "email:<addr>"), held until the transaction ends. Writes
// are buffered in the transaction and applied in one step on commit, so a
// rolled back transaction leaves nothing behind. A lock that cannot be taken
// within the lock timeout fails with rental.ErrConcurrentModification.
//
// Lock entries live as long as their row: a committed delete drops the
// book and request entries, a lookup that finds no row drops its entry on
// release, Reset drops every entry except the email ones.
// =============================================================================

const defaultLockTimeout = 2 * time.Second

type Memory struct {
	mu       sync.RWMutex
	books    map[uuid.UUID]rental.Book
	users    map[uuid.UUID]rental.User
	requests map[uuid.UUID]rental.BookRequest
	rentals  map[uuid.UUID]rental.RentalRecord
	audit    []rental.AuditEntry

	locks       sync.Map // key -> chan struct{}
	lockTimeout time.Duration
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithLockTimeout bounds how long a transaction waits for a row lock.
func WithLockTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{lockTimeout: defaultLockTimeout}
	m.clear()
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *Memory) clear() {
	m.books = make(map[uuid.UUID]rental.Book)
	m.users = make(map[uuid.UUID]rental.User)
	m.requests = make(map[uuid.UUID]rental.BookRequest)
	m.rentals = make(map[uuid.UUID]rental.RentalRecord)
	m.audit = nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	m.locks.Range(func(k, _ any) bool {
		// Emails are reused across resets (seeded admins); their ids are not.
		if !strings.HasPrefix(k.(string), "email:") {
			m.locks.Delete(k)
		}
		return true
	})
	return nil
}

// WithTx executes fn within a transaction.
// Writes become visible on commit only; locks are released after.
func (m *Memory) WithTx(ctx context.Context, fn func(rental.Store) error) error {
	tx := m.begin()
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) begin() *memTx {
	return &memTx{
		parent:   m,
		held:     make(map[string]chan struct{}),
		books:    newOverlay[uuid.UUID, rental.Book](),
		users:    newOverlay[uuid.UUID, rental.User](),
		requests: newOverlay[uuid.UUID, rental.BookRequest](),
		rentals:  newOverlay[uuid.UUID, rental.RentalRecord](),
	}
}

func (m *Memory) acquire(ctx context.Context, key string) (chan struct{}, error) {
	v, _ := m.locks.LoadOrStore(key, make(chan struct{}, 1))
	ch := v.(chan struct{})

	timer := time.NewTimer(m.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return ch, nil
	case <-timer.C:
		return nil, fmt.Errorf("memory: lock %s: %w", key, rental.ErrConcurrentModification)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// =============================================================================
// AUTOCOMMIT - Direct calls on Memory run as single-statement transactions
// =============================================================================

func autocommit[T any](ctx context.Context, m *Memory, fn func(*memTx) (T, error)) (T, error) {
	var out T
	err := m.WithTx(ctx, func(s rental.Store) error {
		var err error
		out, err = fn(s.(*memTx))
		return err
	})
	return out, err
}

func autocommitErr(ctx context.Context, m *Memory, fn func(*memTx) error) error {
	return m.WithTx(ctx, func(s rental.Store) error { return fn(s.(*memTx)) })
}

func (m *Memory) GetBook(ctx context.Context, id uuid.UUID) (*rental.Book, error) {
	return m.begin().GetBook(ctx, id)
}

func (m *Memory) LockBook(ctx context.Context, id uuid.UUID) (*rental.Book, error) {
	return autocommit(ctx, m, func(tx *memTx) (*rental.Book, error) { return tx.LockBook(ctx, id) })
}

func (m *Memory) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*rental.Book, error) {
	return autocommit(ctx, m, func(tx *memTx) (*rental.Book, error) { return tx.AdjustStock(ctx, id, delta) })
}

func (m *Memory) CreateBook(ctx context.Context, b rental.Book) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.CreateBook(ctx, b) })
}

func (m *Memory) UpdateBook(ctx context.Context, b rental.Book) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.UpdateBook(ctx, b) })
}

func (m *Memory) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.DeleteBook(ctx, id) })
}

func (m *Memory) ListBooks(ctx context.Context, f rental.BookFilter) ([]rental.Book, int, error) {
	return m.begin().ListBooks(ctx, f)
}

func (m *Memory) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.begin().UserExists(ctx, id)
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	return m.begin().GetUser(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*rental.User, error) {
	return m.begin().GetUserByEmail(ctx, email)
}

func (m *Memory) LockUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	return autocommit(ctx, m, func(tx *memTx) (*rental.User, error) { return tx.LockUser(ctx, id) })
}

func (m *Memory) CreateUser(ctx context.Context, u rental.User) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.CreateUser(ctx, u) })
}

func (m *Memory) UpdateUser(ctx context.Context, u rental.User) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.UpdateUser(ctx, u) })
}

func (m *Memory) GetRequest(ctx context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	return m.begin().GetRequest(ctx, id)
}

func (m *Memory) LockRequest(ctx context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	return autocommit(ctx, m, func(tx *memTx) (*rental.BookRequest, error) { return tx.LockRequest(ctx, id) })
}

func (m *Memory) CreateRequest(ctx context.Context, r rental.BookRequest) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.CreateRequest(ctx, r) })
}

func (m *Memory) UpdateRequest(ctx context.Context, r rental.BookRequest) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.UpdateRequest(ctx, r) })
}

func (m *Memory) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.DeleteRequest(ctx, id) })
}

func (m *Memory) ListRequests(ctx context.Context, f rental.RequestFilter) ([]rental.BookRequest, int, error) {
	return m.begin().ListRequests(ctx, f)
}

func (m *Memory) InsertRental(ctx context.Context, r rental.RentalRecord) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.InsertRental(ctx, r) })
}

func (m *Memory) GetRental(ctx context.Context, id uuid.UUID) (*rental.RentalRecord, error) {
	return m.begin().GetRental(ctx, id)
}

func (m *Memory) OpenRentals(ctx context.Context, bookID uuid.UUID) ([]rental.RentalRecord, error) {
	return m.begin().OpenRentals(ctx, bookID)
}

func (m *Memory) CloseRental(ctx context.Context, r rental.RentalRecord) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.CloseRental(ctx, r) })
}

func (m *Memory) ListRentals(ctx context.Context, f rental.RentalFilter) ([]rental.RentalRecord, int, error) {
	return m.begin().ListRentals(ctx, f)
}

func (m *Memory) CountRentals(ctx context.Context) (int, int, error) {
	return m.begin().CountRentals(ctx)
}

func (m *Memory) OpenRentalCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	return m.begin().OpenRentalCounts(ctx)
}

func (m *Memory) AppendAudit(ctx context.Context, e rental.AuditEntry) error {
	return autocommitErr(ctx, m, func(tx *memTx) error { return tx.AppendAudit(ctx, e) })
}

func (m *Memory) ListAudit(ctx context.Context, f rental.AuditFilter) ([]rental.AuditEntry, error) {
	return m.begin().ListAudit(ctx, f)
}

// =============================================================================
// OVERLAY - Buffered writes of one transaction over the committed maps
// =============================================================================

type overlay[K comparable, V any] struct {
	put map[K]V
	del map[K]struct{}
}

func newOverlay[K comparable, V any]() *overlay[K, V] {
	return &overlay[K, V]{put: make(map[K]V), del: make(map[K]struct{})}
}

func (o *overlay[K, V]) set(k K, v V) {
	delete(o.del, k)
	o.put[k] = v
}

func (o *overlay[K, V]) remove(k K) {
	delete(o.put, k)
	o.del[k] = struct{}{}
}

func (o *overlay[K, V]) get(base map[K]V, k K) (V, bool) {
	if v, ok := o.put[k]; ok {
		return v, true
	}
	if _, gone := o.del[k]; gone {
		var zero V
		return zero, false
	}
	v, ok := base[k]
	return v, ok
}

// all returns the merged view. Caller holds parent.mu for reading.
func (o *overlay[K, V]) all(base map[K]V) []V {
	out := make([]V, 0, len(base)+len(o.put))
	for k, v := range base {
		if _, gone := o.del[k]; gone {
			continue
		}
		if _, replaced := o.put[k]; replaced {
			continue
		}
		out = append(out, v)
	}
	return append(out, lo.Values(o.put)...)
}

func (o *overlay[K, V]) apply(base map[K]V) {
	for k := range o.del {
		delete(base, k)
	}
	for k, v := range o.put {
		base[k] = v
	}
}

// =============================================================================
// TRANSACTION VIEW
// =============================================================================

type memTx struct {
	parent *Memory
	held   map[string]chan struct{}
	forget []string

	books    *overlay[uuid.UUID, rental.Book]
	users    *overlay[uuid.UUID, rental.User]
	requests *overlay[uuid.UUID, rental.BookRequest]
	rentals  *overlay[uuid.UUID, rental.RentalRecord]
	audit    []rental.AuditEntry
}

func (tx *memTx) lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	ch, err := tx.parent.acquire(ctx, key)
	if err != nil {
		return err
	}
	tx.held[key] = ch
	return nil
}

func (tx *memTx) release() {
	for key, ch := range tx.held {
		<-ch
		delete(tx.held, key)
	}
	for _, key := range tx.forget {
		tx.parent.locks.Delete(key)
	}
	tx.forget = nil
}

func (tx *memTx) commit() {
	m := tx.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	tx.books.apply(m.books)
	tx.users.apply(m.users)
	tx.requests.apply(m.requests)
	tx.rentals.apply(m.rentals)
	m.audit = append(m.audit, tx.audit...)

	for id := range tx.books.del {
		tx.forget = append(tx.forget, bookKey(id))
	}
	for id := range tx.requests.del {
		tx.forget = append(tx.forget, requestKey(id))
	}

	// ON DELETE CASCADE: rows written concurrently with a book deletion.
	for id, r := range m.requests {
		if _, ok := m.books[r.BookID]; !ok {
			delete(m.requests, id)
			tx.forget = append(tx.forget, requestKey(id))
		}
	}
	for id, r := range m.rentals {
		if _, ok := m.books[r.BookID]; !ok {
			delete(m.rentals, id)
		}
	}
}

func (tx *memTx) book(id uuid.UUID) (rental.Book, bool) {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	return tx.books.get(tx.parent.books, id)
}

func bookKey(id uuid.UUID) string    { return "book:" + id.String() }
func requestKey(id uuid.UUID) string { return "request:" + id.String() }
func userKey(id uuid.UUID) string    { return "user:" + id.String() }
func emailKey(email string) string   { return "email:" + rental.NormalizeEmail(email) }

func notFound(kind rental.EntityKind, id uuid.UUID) error {
	return &rental.NotFoundError{Kind: kind, ID: id}
}

// ----- books -----

func (tx *memTx) GetBook(_ context.Context, id uuid.UUID) (*rental.Book, error) {
	b, ok := tx.book(id)
	if !ok {
		return nil, notFound(rental.KindBook, id)
	}
	return &b, nil
}

func (tx *memTx) LockBook(ctx context.Context, id uuid.UUID) (*rental.Book, error) {
	if err := tx.lock(ctx, bookKey(id)); err != nil {
		return nil, err
	}
	b, err := tx.GetBook(ctx, id)
	if err != nil {
		tx.forget = append(tx.forget, bookKey(id))
	}
	return b, err
}

func (tx *memTx) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*rental.Book, error) {
	b, err := tx.LockBook(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := b.WithStockDelta(delta)
	if err != nil {
		return nil, err
	}
	tx.books.set(id, next)
	return &next, nil
}

func (tx *memTx) CreateBook(ctx context.Context, b rental.Book) error {
	if err := tx.lock(ctx, bookKey(b.ID)); err != nil {
		return err
	}
	if _, exists := tx.book(b.ID); exists {
		return &rental.ConflictError{Kind: rental.KindBook, Detail: "duplicate id"}
	}
	tx.books.set(b.ID, b)
	return nil
}

func (tx *memTx) UpdateBook(ctx context.Context, b rental.Book) error {
	if _, err := tx.LockBook(ctx, b.ID); err != nil {
		return err
	}
	tx.books.set(b.ID, b)
	return nil
}

func (tx *memTx) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if _, err := tx.LockBook(ctx, id); err != nil {
		return err
	}
	tx.books.remove(id)

	tx.parent.mu.RLock()
	requests := tx.requests.all(tx.parent.requests)
	rentals := tx.rentals.all(tx.parent.rentals)
	tx.parent.mu.RUnlock()

	for _, r := range requests {
		if r.BookID == id {
			tx.requests.remove(r.ID)
		}
	}
	for _, r := range rentals {
		if r.BookID == id {
			tx.rentals.remove(r.ID)
		}
	}
	return nil
}

func (tx *memTx) ListBooks(_ context.Context, f rental.BookFilter) ([]rental.Book, int, error) {
	tx.parent.mu.RLock()
	books := tx.books.all(tx.parent.books)
	tx.parent.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(f.Query))
	books = lo.Filter(books, func(b rental.Book, _ int) bool {
		if f.AvailableOnly && !b.Available() {
			return false
		}
		if query == "" {
			return true
		}
		return strings.Contains(strings.ToLower(b.Title), query) ||
			strings.Contains(strings.ToLower(b.Author), query)
	})
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID.String() < books[j].ID.String()
	})
	page, total := paginate(books, f.Page)
	return page, total, nil
}

// ----- users -----

func (tx *memTx) allUsers() []rental.User {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	return tx.users.all(tx.parent.users)
}

func (tx *memTx) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	_, ok := tx.users.get(tx.parent.users, id)
	return ok, nil
}

func (tx *memTx) GetUser(_ context.Context, id uuid.UUID) (*rental.User, error) {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	u, ok := tx.users.get(tx.parent.users, id)
	if !ok {
		return nil, notFound(rental.KindUser, id)
	}
	return &u, nil
}

func (tx *memTx) GetUserByEmail(_ context.Context, email string) (*rental.User, error) {
	email = rental.NormalizeEmail(email)
	u, ok := lo.Find(tx.allUsers(), func(u rental.User) bool { return u.Email == email })
	if !ok {
		return nil, &rental.NotFoundError{Kind: rental.KindUser}
	}
	return &u, nil
}

func (tx *memTx) emailTaken(email string, except uuid.UUID) bool {
	return lo.ContainsBy(tx.allUsers(), func(u rental.User) bool {
		return u.Email == email && u.ID != except
	})
}

func (tx *memTx) LockUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	if err := tx.lock(ctx, userKey(id)); err != nil {
		return nil, err
	}
	u, err := tx.GetUser(ctx, id)
	if err != nil {
		tx.forget = append(tx.forget, userKey(id))
	}
	return u, err
}

func (tx *memTx) CreateUser(ctx context.Context, u rental.User) error {
	u.Email = rental.NormalizeEmail(u.Email)
	if err := tx.lock(ctx, emailKey(u.Email)); err != nil {
		return err
	}
	if tx.emailTaken(u.Email, u.ID) {
		return &rental.ConflictError{Kind: rental.KindUser, Detail: "email already registered"}
	}
	tx.users.set(u.ID, u)
	return nil
}

func (tx *memTx) UpdateUser(ctx context.Context, u rental.User) error {
	u.Email = rental.NormalizeEmail(u.Email)
	if err := tx.lock(ctx, userKey(u.ID)); err != nil {
		return err
	}
	if err := tx.lock(ctx, emailKey(u.Email)); err != nil {
		return err
	}
	if ok, _ := tx.UserExists(ctx, u.ID); !ok {
		return notFound(rental.KindUser, u.ID)
	}
	if tx.emailTaken(u.Email, u.ID) {
		return &rental.ConflictError{Kind: rental.KindUser, Detail: "email already registered"}
	}
	tx.users.set(u.ID, u)
	return nil
}

// ----- requests -----

func (tx *memTx) GetRequest(_ context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	r, ok := tx.requests.get(tx.parent.requests, id)
	if !ok {
		return nil, notFound(rental.KindRequest, id)
	}
	return &r, nil
}

func (tx *memTx) LockRequest(ctx context.Context, id uuid.UUID) (*rental.BookRequest, error) {
	if err := tx.lock(ctx, requestKey(id)); err != nil {
		return nil, err
	}
	r, err := tx.GetRequest(ctx, id)
	if err != nil {
		tx.forget = append(tx.forget, requestKey(id))
	}
	return r, err
}

// CreateRequest takes the book lock the way a foreign key check would, so a
// request cannot be created for a book being deleted.
func (tx *memTx) CreateRequest(ctx context.Context, r rental.BookRequest) error {
	if _, err := tx.LockBook(ctx, r.BookID); err != nil {
		return err
	}
	if ok, _ := tx.UserExists(ctx, r.UserID); !ok {
		return notFound(rental.KindUser, r.UserID)
	}
	if err := tx.lock(ctx, requestKey(r.ID)); err != nil {
		return err
	}
	tx.requests.set(r.ID, r)
	return nil
}

func (tx *memTx) UpdateRequest(ctx context.Context, r rental.BookRequest) error {
	if _, err := tx.LockRequest(ctx, r.ID); err != nil {
		return err
	}
	tx.requests.set(r.ID, r)
	return nil
}

func (tx *memTx) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	if _, err := tx.LockRequest(ctx, id); err != nil {
		return err
	}
	tx.requests.remove(id)
	return nil
}

func (tx *memTx) ListRequests(_ context.Context, f rental.RequestFilter) ([]rental.BookRequest, int, error) {
	tx.parent.mu.RLock()
	requests := tx.requests.all(tx.parent.requests)
	tx.parent.mu.RUnlock()

	requests = lo.Filter(requests, func(r rental.BookRequest, _ int) bool {
		return (f.UserID == nil || r.UserID == *f.UserID) &&
			(f.BookID == nil || r.BookID == *f.BookID) &&
			(f.Status == "" || r.Status == f.Status)
	})
	sort.Slice(requests, func(i, j int) bool {
		return newerFirst(requests[i].RequestDate, requests[j].RequestDate, requests[i].ID, requests[j].ID)
	})
	page, total := paginate(requests, f.Page)
	return page, total, nil
}

// ----- rentals -----

func (tx *memTx) allRentals() []rental.RentalRecord {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	return tx.rentals.all(tx.parent.rentals)
}

func (tx *memTx) InsertRental(ctx context.Context, r rental.RentalRecord) error {
	if _, err := tx.LockBook(ctx, r.BookID); err != nil {
		return err
	}
	if ok, _ := tx.UserExists(ctx, r.UserID); !ok {
		return notFound(rental.KindUser, r.UserID)
	}
	tx.rentals.set(r.ID, r)
	return nil
}

func (tx *memTx) GetRental(_ context.Context, id uuid.UUID) (*rental.RentalRecord, error) {
	tx.parent.mu.RLock()
	defer tx.parent.mu.RUnlock()
	r, ok := tx.rentals.get(tx.parent.rentals, id)
	if !ok {
		return nil, notFound(rental.KindRental, id)
	}
	return &r, nil
}

func (tx *memTx) OpenRentals(_ context.Context, bookID uuid.UUID) ([]rental.RentalRecord, error) {
	open := lo.Filter(tx.allRentals(), func(r rental.RentalRecord, _ int) bool {
		return r.BookID == bookID && r.Open()
	})
	sort.Slice(open, func(i, j int) bool { return open[i].RentalDate.Before(open[j].RentalDate) })
	return open, nil
}

func (tx *memTx) CloseRental(ctx context.Context, r rental.RentalRecord) error {
	if err := tx.lock(ctx, bookKey(r.BookID)); err != nil {
		return err
	}
	tx.parent.mu.RLock()
	current, ok := tx.rentals.get(tx.parent.rentals, r.ID)
	tx.parent.mu.RUnlock()
	if !ok {
		return notFound(rental.KindRental, r.ID)
	}
	if !current.Open() {
		return &rental.NoActiveRentalError{BookID: r.BookID}
	}
	current.ReturnDate = r.ReturnDate
	current.LateFee = r.LateFee
	tx.rentals.set(r.ID, current)
	return nil
}

func (tx *memTx) ListRentals(_ context.Context, f rental.RentalFilter) ([]rental.RentalRecord, int, error) {
	rentals := lo.Filter(tx.allRentals(), func(r rental.RentalRecord, _ int) bool {
		return (f.UserID == nil || r.UserID == *f.UserID) &&
			(f.BookID == nil || r.BookID == *f.BookID) &&
			(!f.ActiveOnly || r.Open())
	})
	sort.Slice(rentals, func(i, j int) bool {
		return newerFirst(rentals[i].RentalDate, rentals[j].RentalDate, rentals[i].ID, rentals[j].ID)
	})
	page, total := paginate(rentals, f.Page)
	return page, total, nil
}

func (tx *memTx) CountRentals(_ context.Context) (int, int, error) {
	rentals := tx.allRentals()
	active := lo.CountBy(rentals, func(r rental.RentalRecord) bool { return r.Open() })
	return len(rentals), active, nil
}

func (tx *memTx) OpenRentalCounts(_ context.Context) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int)
	for _, r := range tx.allRentals() {
		if r.Open() {
			counts[r.BookID]++
		}
	}
	return counts, nil
}

// ----- audit -----

func (tx *memTx) AppendAudit(_ context.Context, e rental.AuditEntry) error {
	tx.audit = append(tx.audit, e)
	return nil
}

func (tx *memTx) ListAudit(_ context.Context, f rental.AuditFilter) ([]rental.AuditEntry, error) {
	tx.parent.mu.RLock()
	entries := append(append([]rental.AuditEntry{}, tx.parent.audit...), tx.audit...)
	tx.parent.mu.RUnlock()

	entries = lo.Filter(entries, func(e rental.AuditEntry, _ int) bool {
		return (f.BookID == nil || e.BookID == *f.BookID) &&
			(f.RequestID == nil || (e.RequestID.Valid && e.RequestID.UUID == *f.RequestID)) &&
			(f.ActorID == nil || e.ActorID == *f.ActorID) &&
			(len(f.Actions) == 0 || lo.Contains(f.Actions, e.Action))
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newerFirst(a, b time.Time, idA, idB uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA.String() < idB.String()
}

func paginate[T any](items []T, p rental.Page) ([]T, int) {
	total := len(items)
	p = p.Normalize()
	start := p.Offset()
	if start >= total {
		return []T{}, total
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	return items[start:end], total
}
