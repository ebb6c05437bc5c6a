package rental

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// =============================================================================
// AUDIT LOG - Separate from rentals, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated  AuditAction = "request_created"
	AuditRequestApproved AuditAction = "request_approved"
	AuditRequestRejected AuditAction = "request_rejected"
	AuditRequestCanceled AuditAction = "request_canceled"
	AuditBookRented      AuditAction = "book_rented"
	AuditBookReturned    AuditAction = "book_returned"
)

// AuditEntry records one lifecycle transition. It is written in the same
// scope as the transition, so it exists iff the transition committed.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   uuid.UUID
	Action    AuditAction
	BookID    uuid.UUID
	RequestID uuid.NullUUID
	RentalID  uuid.NullUUID
	Details   map[string]string
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

var (
	auditEntropyMu sync.Mutex
	auditEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewAuditID returns a ULID, so entries sort by creation time.
func NewAuditID(at time.Time) string {
	auditEntropyMu.Lock()
	defer auditEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), auditEntropy).String()
}
