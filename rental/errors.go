/*
errors.go - Centralized error types for the rental lifecycle engine

PURPOSE:
  All failure kinds in one place. Every engine operation returns either a
  result or one of these typed failures; callers map them to transport
  status codes with errors.Is and show users Message(err).

ERROR CATEGORIES:
  1. Lookup errors     - NotFound
  2. State errors      - InvalidTransition, BookUnavailable, NoActiveRental
  3. Authorization     - Forbidden, Unauthorized
  4. Identity          - Conflict (duplicate email, book still rented)
  5. Internal          - InternalConsistencyFault, InvariantViolation
  6. Concurrency       - ConcurrentModification (retried), Contention (retries exhausted)

USAGE:
    rec, err := engine.ApproveRequest(ctx, requestID, adminID)
    if errors.Is(err, rental.ErrBookUnavailable) {
        // request stays Pending, admin may retry later
    }

SEE ALSO:
  - engine.go: Returns these errors
  - retry.go: Converts exhausted ErrConcurrentModification into ContentionError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package rental

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a book, user or request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a request is not in the state the
	// action requires (only Pending requests can be approved, rejected or cancelled).
	ErrInvalidTransition = errors.New("invalid request transition")

	// ErrBookUnavailable is returned when the authoritative stock check sees stock <= 0.
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrForbidden is returned when the actor does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when credentials are missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoActiveRental is returned when a return is attempted with no open rental.
	ErrNoActiveRental = errors.New("no active rental")

	// ErrConflict is returned on identity collisions (duplicate email) or when
	// a catalog change would orphan open rentals.
	ErrConflict = errors.New("conflict")

	// ErrInternalConsistencyFault is returned when an invariant that should be
	// impossible to break was observed broken (e.g. two open rentals where one was expected).
	ErrInternalConsistencyFault = errors.New("internal consistency fault")

	// ErrInvariantViolation is returned by the book ledger when a stock
	// adjustment would leave stock outside [0, copies].
	ErrInvariantViolation = errors.New("stock invariant violation")

	// ErrConcurrentModification is returned by stores on transient write
	// conflicts (serialization failure, deadlock, lock timeout, busy database).
	// The engine retries it; callers only ever see ErrContention.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrContention is returned when bounded retries on concurrent
	// modification were exhausted. The whole request may be retried.
	ErrContention = errors.New("contention: retries exhausted")

	// ErrInvalidInput is returned when arguments fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EntityKind names the kind of record a lookup failed for.
type EntityKind string

const (
	KindBook    EntityKind = "book"
	KindUser    EntityKind = "user"
	KindRequest EntityKind = "request"
	KindRental  EntityKind = "rental"
)

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind EntityKind
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// TransitionError reports a state machine guard violation.
type TransitionError struct {
	RequestID uuid.UUID
	From      RequestStatus
	Action    RequestAction
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s: status is %s", e.Action, e.RequestID, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UnavailableError reports the stock seen by the failed availability check.
type UnavailableError struct {
	BookID uuid.UUID
	Stock  int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("book %s unavailable: stock %d", e.BookID, e.Stock)
}

func (e *UnavailableError) Unwrap() error {
	return ErrBookUnavailable
}

// ForbiddenError reports an ownership mismatch.
type ForbiddenError struct {
	RequestID uuid.UUID
	OwnerID   uuid.UUID
	ActorID   uuid.UUID
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %s does not own request %s", e.ActorID, e.RequestID)
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// NoActiveRentalError reports a return against a book with no open rental.
type NoActiveRentalError struct {
	BookID uuid.UUID
}

func (e *NoActiveRentalError) Error() string {
	return fmt.Sprintf("book %s has no active rental", e.BookID)
}

func (e *NoActiveRentalError) Unwrap() error {
	return ErrNoActiveRental
}

// ConsistencyError reports a broken stock/rental invariant.
type ConsistencyError struct {
	BookID    uuid.UUID
	OpenCount int
	Detail    string
	Err       error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("consistency fault on book %s: %s", e.BookID, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConsistencyError) Unwrap() error {
	return ErrInternalConsistencyFault
}

// ConflictError reports an identity collision or a blocked catalog change.
type ConflictError struct {
	Kind   EntityKind
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Kind, e.Detail)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// StockError reports a stock adjustment that would break 0 <= stock <= copies.
type StockError struct {
	BookID uuid.UUID
	Stock  int
	Copies int
	Delta  int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("stock %d%+d outside [0, %d] for book %s", e.Stock, e.Delta, e.Copies, e.BookID)
}

func (e *StockError) Unwrap() error {
	return ErrInvariantViolation
}

// ContentionError is returned when the retry budget ran out.
type ContentionError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

// Unwrap exposes both ErrContention and the last underlying conflict.
func (e *ContentionError) Unwrap() []error {
	return []error{ErrContention, e.Last}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) && !errors.Is(err, ErrContention)
}

// IsClientError returns true if the error is a deliberate business outcome
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrBookUnavailable) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNoActiveRental) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Message returns the stable, user-facing text for an error. Storage and
// driver details never leak through it.
func Message(err error) string {
	var (
		notFound   *NotFoundError
		transition *TransitionError
		validation *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		switch notFound.Kind {
		case KindBook:
			return "Book not found"
		case KindUser:
			return "User not found"
		case KindRequest:
			return "Book request not found"
		case KindRental:
			return "Rental record not found"
		}
		return "Resource not found"
	case errors.Is(err, ErrNotFound):
		return "Resource not found"
	case errors.As(err, &transition):
		return fmt.Sprintf("Only pending requests can be %s", transition.Action.PastTense())
	case errors.Is(err, ErrInvalidTransition):
		return "Request is no longer pending"
	case errors.Is(err, ErrBookUnavailable):
		return "Book is not available"
	case errors.Is(err, ErrForbidden):
		return "You can only cancel your own requests"
	case errors.Is(err, ErrUnauthorized):
		return "Invalid credentials"
	case errors.Is(err, ErrNoActiveRental):
		return "No active rental found for this book"
	case errors.Is(err, ErrConflict):
		var conflict *ConflictError
		if errors.As(err, &conflict) && conflict.Kind == KindUser {
			return "Email is already registered"
		}
		if errors.As(err, &conflict) && conflict.Kind == KindBook {
			return "Book has active rentals"
		}
		return "Resource already exists"
	case errors.Is(err, ErrContention):
		return "The book is busy, please retry"
	case errors.Is(err, ErrInternalConsistencyFault), errors.Is(err, ErrInvariantViolation):
		return "Inventory is in an inconsistent state"
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, ErrInvalidInput):
		return "Invalid input"
	}
	return "An error occurred while processing your request"
}
