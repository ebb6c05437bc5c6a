package rental_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/warp/book-rental/rental"
)

func TestMessage_StableAndLeakFree(t *testing.T) {
	driverErr := errors.New(`pq: relation "books" does not exist`)

	tests := []struct {
		err  error
		want string
	}{
		{&rental.NotFoundError{Kind: rental.KindBook, ID: uuid.New()}, "Book not found"},
		{&rental.UnavailableError{BookID: uuid.New()}, "Book is not available"},
		{&rental.NoActiveRentalError{BookID: uuid.New()}, "No active rental found for this book"},
		{&rental.ConflictError{Kind: rental.KindUser, Detail: "dup"}, "Email is already registered"},
		{&rental.TransitionError{Action: rental.ActionReject}, "Only pending requests can be rejected"},
		{&rental.ConsistencyError{BookID: uuid.New(), OpenCount: 2}, "Inventory is in an inconsistent state"},
		{&rental.ValidationError{Field: "email", Message: "is required"}, "email: is required"},
		{fmt.Errorf("approve: %w", rental.ErrUnauthorized), "Invalid credentials"},
		{fmt.Errorf("get book: %w", driverErr), "An error occurred while processing your request"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rental.Message(tt.err))
	}
}

func TestErrorClassification(t *testing.T) {
	conflict := fmt.Errorf("lock book: %w", rental.ErrConcurrentModification)
	assert.True(t, rental.IsRetryable(conflict))
	assert.False(t, rental.IsClientError(conflict))

	exhausted := &rental.ContentionError{Operation: "direct_rent", Attempts: 5, Last: conflict}
	assert.False(t, rental.IsRetryable(exhausted))
	assert.ErrorIs(t, exhausted, rental.ErrContention)

	assert.True(t, rental.IsClientError(&rental.ForbiddenError{}))
	assert.True(t, rental.IsNotFound(&rental.NotFoundError{Kind: rental.KindRequest}))
	assert.False(t, rental.IsClientError(&rental.ConsistencyError{}))
}
