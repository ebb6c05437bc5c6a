/*
request.go - Book request state machine

PURPOSE:
  A BookRequest is a user's ask to rent one copy of a book. It is created
  Pending and changes state exactly once:

    Pending ──approve──▶ Approved   (stock -1, open rental inserted)
    Pending ──reject───▶ Rejected   (no stock effect)
    Pending ──cancel───▶ (deleted)  (owner only)

  Approved and Rejected are terminal. There is no expiry: a Pending request
  waits until an admin or its owner acts.

GUARDS:
  approve/reject: status must be Pending, else *TransitionError
  cancel:         requester must own the request (*ForbiddenError), then
                  status must be Pending (*TransitionError)

  Guards only mutate the in-memory copy. The engine persists the result in
  the same transactional scope that loaded (and locked) the request.

SEE ALSO:
  - engine.go: ApproveRequest, RejectRequest, CancelRequest
*/
package rental

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STATUS
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// Valid reports whether s is a stored status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// ParseRequestStatus accepts the stored spelling case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	for _, status := range []RequestStatus{RequestPending, RequestApproved, RequestRejected} {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

// RequestAction names a transition for error reporting and audit.
type RequestAction string

const (
	ActionApprove RequestAction = "approve"
	ActionReject  RequestAction = "reject"
	ActionCancel  RequestAction = "cancel"
)

// PastTense is used in user-facing messages.
func (a RequestAction) PastTense() string {
	switch a {
	case ActionApprove:
		return "approved"
	case ActionReject:
		return "rejected"
	case ActionCancel:
		return "cancelled"
	}
	return string(a)
}

// =============================================================================
// REQUEST
// =============================================================================

// BookRequest is a user's pending ask to rent a book.
type BookRequest struct {
	ID          uuid.UUID     `db:"id"`
	BookID      uuid.UUID     `db:"book_id"`
	UserID      uuid.UUID     `db:"user_id"`
	RequestDate time.Time     `db:"request_date"`
	Status      RequestStatus `db:"status"`
	DecidedAt   *time.Time    `db:"decided_at"`
	DecidedBy   uuid.NullUUID `db:"decided_by"`
}

// Approve moves a Pending request to Approved.
func (r *BookRequest) Approve(actor uuid.UUID, at time.Time) error {
	return r.decide(ActionApprove, RequestApproved, actor, at)
}

// Reject moves a Pending request to Rejected.
func (r *BookRequest) Reject(actor uuid.UUID, at time.Time) error {
	return r.decide(ActionReject, RequestRejected, actor, at)
}

// CheckCancel verifies requester may delete the request. Ownership is
// checked before state, so a stranger learns nothing about the status.
func (r *BookRequest) CheckCancel(requester uuid.UUID) error {
	if r.UserID != requester {
		return &ForbiddenError{RequestID: r.ID, OwnerID: r.UserID, ActorID: requester}
	}
	if r.Status != RequestPending {
		return &TransitionError{RequestID: r.ID, From: r.Status, Action: ActionCancel}
	}
	return nil
}

func (r *BookRequest) decide(action RequestAction, to RequestStatus, actor uuid.UUID, at time.Time) error {
	if r.Status != RequestPending {
		return &TransitionError{RequestID: r.ID, From: r.Status, Action: action}
	}
	r.Status = to
	r.DecidedAt = &at
	r.DecidedBy = uuid.NullUUID{UUID: actor, Valid: actor != uuid.Nil}
	return nil
}
