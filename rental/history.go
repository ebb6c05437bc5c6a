package rental

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// GetRequest returns one request.
func (e *Engine) GetRequest(ctx context.Context, id uuid.UUID) (*BookRequest, error) {
	return e.store.GetRequest(ctx, id)
}

// ListRequests returns requests newest first.
func (e *Engine) ListRequests(ctx context.Context, f RequestFilter) ([]BookRequest, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Message: "unknown request status"}
	}
	f.Page = f.Page.Normalize()
	return e.store.ListRequests(ctx, f)
}

// GetRental returns one rental record.
func (e *Engine) GetRental(ctx context.Context, id uuid.UUID) (*RentalRecord, error) {
	return e.store.GetRental(ctx, id)
}

// UserHistory returns a user's rentals, most recent first.
func (e *Engine) UserHistory(ctx context.Context, userID uuid.UUID, page Page) ([]RentalRecord, int, error) {
	exists, err := e.store.UserExists(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, &NotFoundError{Kind: KindUser, ID: userID}
	}
	return e.store.ListRentals(ctx, RentalFilter{UserID: &userID, Page: page.Normalize()})
}

// ActiveRentals returns every open rental, most recent first.
func (e *Engine) ActiveRentals(ctx context.Context, page Page) ([]RentalRecord, int, error) {
	return e.store.ListRentals(ctx, RentalFilter{ActiveOnly: true, Page: page.Normalize()})
}

// AllRentals returns every rental record, most recent first.
func (e *Engine) AllRentals(ctx context.Context, page Page) ([]RentalRecord, int, error) {
	return e.store.ListRentals(ctx, RentalFilter{Page: page.Normalize()})
}

// AuditTrail returns matching audit entries, newest first.
func (e *Engine) AuditTrail(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultAuditLimit
	}
	if f.Limit > maxAuditLimit {
		f.Limit = maxAuditLimit
	}
	return e.store.ListAudit(ctx, f)
}
