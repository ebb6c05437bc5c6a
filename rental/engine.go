/*
engine.go - Rental lifecycle engine

PURPOSE:
  The transactional use cases of the rental system. Each public operation
  is one unit of work: it opens a single WithTx scope, reads and locks what
  it needs, checks every guard, and only then writes. A failed guard or a
  failed write rolls the whole scope back.

OPERATIONS:
  SubmitRequest    Pending request, best-effort availability check, no reserve
  ApproveRequest   request Approved + stock -1 + open rental, atomically
  RejectRequest    request Rejected, no stock effect
  CancelRequest    owner deletes a Pending request
  DirectRent       stock -1 + open rental, no request
  ReturnBook       close the book's open rental (late fee) + stock +1
  ReturnRental     same, for one named rental of a multi-copy book
  RentalStatistics total / active / completed counts

CONCURRENCY:
  The engine holds no mutex. Stock check and decrement happen under the
  book's row lock (LockBook) inside one scope, so two approvals of the last
  copy cannot both see stock = 1. Lock order is request, then book.
  Transient conflicts reported by the store are retried (see retry.go).

SEE ALSO:
  - store.go: What the engine requires from persistence
  - request.go: Transition guards
  - ledger.go: Stock arithmetic
*/
package rental

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	opSubmitRequest = "submit_request"
	opApprove       = "approve_request"
	opReject        = "reject_request"
	opCancel        = "cancel_request"
	opDirectRent    = "direct_rent"
	opReturn        = "return_book"
	opReturnRental  = "return_rental"
	opStatistics    = "rental_statistics"
)

const (
	outcomeSuccess    = "success"
	outcomeRejected   = "rejected"
	outcomeContention = "contention"
	outcomeError      = "error"
)

// Engine runs rental lifecycle operations against a transactional store.
type Engine struct {
	store    TxStore
	logger   Logger
	metrics  MetricsCollector
	now      func() time.Time
	fees     LateFeePolicy
	retryCfg retryConfig
}

// NewEngine creates an Engine. Defaults: 5 attempts with 5ms backoff, a
// 14 day loan at 0.50 per late day, no logging, no metrics.
func NewEngine(store TxStore, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	e := &Engine{
		store:    store,
		now:      time.Now,
		fees:     DefaultLateFeePolicy(),
		retryCfg: defaultRetryConfig(),
	}
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Store returns the underlying store for read-only collaborators.
func (e *Engine) Store() TxStore {
	return e.store
}

// LateFees returns the active late fee policy.
func (e *Engine) LateFees() LateFeePolicy {
	return e.fees
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// SubmitRequest creates a Pending request for one copy of a book.
// Availability is checked but nothing is reserved; ApproveRequest re-checks.
func (e *Engine) SubmitRequest(ctx context.Context, bookID, userID uuid.UUID) (*BookRequest, error) {
	var created BookRequest

	err := e.run(ctx, opSubmitRequest, func(s Store) error {
		book, err := s.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if !book.Available() {
			return &UnavailableError{BookID: book.ID, Stock: book.Stock}
		}
		if err := requireUser(ctx, s, userID); err != nil {
			return err
		}

		now := e.clock()
		created = BookRequest{
			ID:          uuid.New(),
			BookID:      bookID,
			UserID:      userID,
			RequestDate: now,
			Status:      RequestPending,
		}
		if err := s.CreateRequest(ctx, created); err != nil {
			return err
		}

		entry := e.auditEntry(now, userID, AuditRequestCreated, bookID)
		entry.RequestID = uuid.NullUUID{UUID: created.ID, Valid: true}
		return s.AppendAudit(ctx, entry)
	}, LogAttrBookID, bookID.String(), LogAttrUserID, userID.String())
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ApproveRequest approves a Pending request: the request becomes Approved,
// the book's stock drops by one and an open rental is recorded. If the book
// has no stock left the request stays Pending and ErrBookUnavailable is returned.
func (e *Engine) ApproveRequest(ctx context.Context, requestID, actorID uuid.UUID) (*RentalRecord, error) {
	var record RentalRecord

	err := e.run(ctx, opApprove, func(s Store) error {
		req, err := s.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := req.Approve(actorID, now); err != nil {
			return err
		}

		book, err := lockAvailable(ctx, s, req.BookID)
		if err != nil {
			return err
		}
		if err := takeCopy(ctx, s, book); err != nil {
			return err
		}
		if err := s.UpdateRequest(ctx, *req); err != nil {
			return err
		}

		record = e.openRental(req.BookID, req.UserID, now)
		record.RequestID = uuid.NullUUID{UUID: req.ID, Valid: true}
		if err := s.InsertRental(ctx, record); err != nil {
			return err
		}

		entry := e.auditEntry(now, actorID, AuditRequestApproved, req.BookID)
		entry.RequestID = record.RequestID
		entry.RentalID = uuid.NullUUID{UUID: record.ID, Valid: true}
		entry.Details = map[string]string{"user_id": req.UserID.String()}
		return s.AppendAudit(ctx, entry)
	}, LogAttrRequestID, requestID.String())
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RejectRequest rejects a Pending request. Stock and rentals are untouched.
func (e *Engine) RejectRequest(ctx context.Context, requestID, actorID uuid.UUID) (*BookRequest, error) {
	var rejected BookRequest

	err := e.run(ctx, opReject, func(s Store) error {
		req, err := s.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := req.Reject(actorID, now); err != nil {
			return err
		}
		if err := s.UpdateRequest(ctx, *req); err != nil {
			return err
		}
		rejected = *req

		entry := e.auditEntry(now, actorID, AuditRequestRejected, req.BookID)
		entry.RequestID = uuid.NullUUID{UUID: req.ID, Valid: true}
		return s.AppendAudit(ctx, entry)
	}, LogAttrRequestID, requestID.String())
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// CancelRequest deletes a Pending request on behalf of its owner.
func (e *Engine) CancelRequest(ctx context.Context, requestID, requesterID uuid.UUID) error {
	return e.run(ctx, opCancel, func(s Store) error {
		req, err := s.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := req.CheckCancel(requesterID); err != nil {
			return err
		}
		if err := s.DeleteRequest(ctx, req.ID); err != nil {
			return err
		}

		entry := e.auditEntry(e.clock(), requesterID, AuditRequestCanceled, req.BookID)
		entry.RequestID = uuid.NullUUID{UUID: req.ID, Valid: true}
		return s.AppendAudit(ctx, entry)
	}, LogAttrRequestID, requestID.String(), LogAttrUserID, requesterID.String())
}

// =============================================================================
// DIRECT RENT / RETURN
// =============================================================================

// DirectRent checks a copy out to a user without a prior request.
func (e *Engine) DirectRent(ctx context.Context, bookID, userID, actorID uuid.UUID) (*RentalRecord, error) {
	var record RentalRecord

	err := e.run(ctx, opDirectRent, func(s Store) error {
		book, err := lockAvailable(ctx, s, bookID)
		if err != nil {
			return err
		}
		if err := requireUser(ctx, s, userID); err != nil {
			return err
		}
		if err := takeCopy(ctx, s, book); err != nil {
			return err
		}

		now := e.clock()
		record = e.openRental(bookID, userID, now)
		if err := s.InsertRental(ctx, record); err != nil {
			return err
		}

		entry := e.auditEntry(now, actorID, AuditBookRented, bookID)
		entry.RentalID = uuid.NullUUID{UUID: record.ID, Valid: true}
		entry.Details = map[string]string{"user_id": userID.String()}
		return s.AppendAudit(ctx, entry)
	}, LogAttrBookID, bookID.String(), LogAttrUserID, userID.String())
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ReturnBook closes the book's open rental and puts the copy back in stock.
// More than one open rental for the book is reported as a consistency fault
// and nothing is changed.
func (e *Engine) ReturnBook(ctx context.Context, bookID, actorID uuid.UUID) (*RentalRecord, error) {
	var record RentalRecord

	err := e.run(ctx, opReturn, func(s Store) error {
		if _, err := s.LockBook(ctx, bookID); err != nil {
			return err
		}
		open, err := s.OpenRentals(ctx, bookID)
		if err != nil {
			return err
		}
		switch {
		case len(open) == 0:
			return &NoActiveRentalError{BookID: bookID}
		case len(open) > 1:
			return &ConsistencyError{BookID: bookID, OpenCount: len(open), Detail: "multiple open rentals"}
		}

		closed, err := e.closeRental(ctx, s, open[0], actorID)
		if err != nil {
			return err
		}
		record = *closed
		return nil
	}, LogAttrBookID, bookID.String())
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ReturnRental closes one specific open rental. Books with several copies
// out use it where ReturnBook would be ambiguous.
func (e *Engine) ReturnRental(ctx context.Context, rentalID, actorID uuid.UUID) (*RentalRecord, error) {
	var record RentalRecord

	err := e.run(ctx, opReturnRental, func(s Store) error {
		found, err := s.GetRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if _, err := s.LockBook(ctx, found.BookID); err != nil {
			return err
		}
		// Rental writes take the book lock, so this read is stable.
		current, err := s.GetRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if !current.Open() {
			return &NoActiveRentalError{BookID: current.BookID}
		}

		closed, err := e.closeRental(ctx, s, *current, actorID)
		if err != nil {
			return err
		}
		record = *closed
		return nil
	}, "rental_id", rentalID.String())
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RentalStatistics counts rental records. Completed is total minus active.
func (e *Engine) RentalStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	err := e.run(ctx, opStatistics, func(s Store) error {
		total, active, err := s.CountRentals(ctx)
		if err != nil {
			return err
		}
		stats = NewStatistics(total, active)
		return nil
	})
	return stats, err
}

// =============================================================================
// SHARED STEPS
// =============================================================================

// lockAvailable locks the book row and requires stock > 0. This is the
// authoritative availability check; the lock is held until the scope ends.
func lockAvailable(ctx context.Context, s Store, bookID uuid.UUID) (*Book, error) {
	book, err := s.LockBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !book.Available() {
		return nil, &UnavailableError{BookID: book.ID, Stock: book.Stock}
	}
	return book, nil
}

// takeCopy decrements the stock of a book locked by lockAvailable.
func takeCopy(ctx context.Context, s Store, book *Book) error {
	if _, err := s.AdjustStock(ctx, book.ID, -1); err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			return &ConsistencyError{BookID: book.ID, Detail: "stock changed under lock", Err: err}
		}
		return err
	}
	return nil
}

// closeRental sets the return date and fee, puts the copy back and audits.
// The caller holds the book lock.
func (e *Engine) closeRental(ctx context.Context, s Store, record RentalRecord, actorID uuid.UUID) (*RentalRecord, error) {
	now := e.clock()
	record.ReturnDate = &now
	record.LateFee = e.fees.Fee(record.DueDate, now)
	if err := s.CloseRental(ctx, record); err != nil {
		return nil, err
	}

	if _, err := s.AdjustStock(ctx, record.BookID, +1); err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			return nil, &ConsistencyError{BookID: record.BookID, OpenCount: 1, Detail: "stock already at copies", Err: err}
		}
		return nil, err
	}

	entry := e.auditEntry(now, actorID, AuditBookReturned, record.BookID)
	entry.RequestID = record.RequestID
	entry.RentalID = uuid.NullUUID{UUID: record.ID, Valid: true}
	entry.Details = map[string]string{
		"user_id":  record.UserID.String(),
		"late_fee": record.LateFee.StringFixed(2),
	}
	if err := s.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return &record, nil
}

func (e *Engine) openRental(bookID, userID uuid.UUID, now time.Time) RentalRecord {
	return RentalRecord{
		ID:         uuid.New(),
		BookID:     bookID,
		UserID:     userID,
		RentalDate: now,
		DueDate:    e.fees.DueDate(now),
	}
}

func requireUser(ctx context.Context, s Store, userID uuid.UUID) error {
	exists, err := s.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{Kind: KindUser, ID: userID}
	}
	return nil
}

func (e *Engine) auditEntry(at time.Time, actor uuid.UUID, action AuditAction, bookID uuid.UUID) AuditEntry {
	return AuditEntry{
		ID:        NewAuditID(at),
		Timestamp: at,
		ActorID:   actor,
		Action:    action,
		BookID:    bookID,
	}
}

// clock returns the current time in UTC, truncated to microseconds so values
// survive a round trip through every store unchanged.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// =============================================================================
// EXECUTION - one scope per attempt, retried on transient conflicts
// =============================================================================

func (e *Engine) run(ctx context.Context, operation string, fn func(Store) error, attrs ...any) error {
	start := time.Now()
	err := e.retry(ctx, operation, func(ctx context.Context) error {
		return e.store.WithTx(ctx, fn)
	})
	e.observe(operation, start, err, attrs)
	return err
}

func (e *Engine) observe(operation string, start time.Time, err error, attrs []any) {
	elapsed := time.Since(start)
	outcome := classifyOutcome(err)
	labels := map[string]string{LogAttrOperation: operation, LogAttrOutcome: outcome}

	e.recordDuration(MetricOperationDuration, elapsed, labels)
	e.incrementCounter(MetricOperations, labels)

	args := append([]any{LogAttrOperation, operation, LogAttrDuration, elapsed.Milliseconds()}, attrs...)
	switch outcome {
	case outcomeSuccess:
		e.logInfo("operation completed", args...)
	case outcomeRejected:
		e.logDebug("operation rejected", append(args, LogAttrError, err.Error())...)
	case outcomeContention:
		e.logWarn("operation gave up on contention", append(args, LogAttrError, err.Error())...)
	default:
		e.logError("operation failed", append(args, LogAttrError, err.Error())...)
	}
}

func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsClientError(err):
		return outcomeRejected
	case errors.Is(err, ErrContention):
		return outcomeContention
	}
	return outcomeError
}

// =============================================================================
// INSTRUMENTATION HELPERS - nil-safe
// =============================================================================

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) recordDuration(metric string, d time.Duration, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordDuration(metric, d, labels)
	}
}

func (e *Engine) incrementCounter(metric string, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.IncrementCounter(metric, labels)
	}
}

func (e *Engine) recordValue(metric string, value float64, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordValue(metric, value, labels)
	}
}
