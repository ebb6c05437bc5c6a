/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the rental domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked in
  decodeBody (handlers.go) before a handler sees them. Domain rules (stock,
  request state) stay in the engine.

TIME FORMAT:
  All timestamps are RFC 3339 in UTC. Money is a decimal string with two
  places ("1.50").

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/rental"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the body of PUT /auth/me.
type UpdateProfileRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
}

// ChangePasswordRequest is the body of POST /auth/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// UserDTO represents an account in API responses. The hash never leaves.
type UserDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
	User      UserDTO `json:"user"`
}

// =============================================================================
// BOOKS
// =============================================================================

// CreateBookRequest is the body of POST /books.
type CreateBookRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Author string `json:"author" validate:"required,max=200"`
	Copies int    `json:"copies" validate:"gte=0,lte=10000"`
}

// UpdateBookRequest is the body of PUT /books/{id}. Absent fields are kept.
type UpdateBookRequest struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author *string `json:"author" validate:"omitempty,min=1,max=200"`
	Copies *int    `json:"copies" validate:"omitempty,gte=0,lte=10000"`
}

// RentBookRequest is the body of POST /books/{id}/rent.
type RentBookRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// ReturnBookRequest is the optional body of POST /books/{id}/return.
// Without a rental id the book's single open rental is closed.
type ReturnBookRequest struct {
	RentalID string `json:"rentalId" validate:"omitempty,uuid"`
}

// BookDTO represents a book in API responses.
type BookDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Stock     int    `json:"stock"`
	Copies    int    `json:"copies"`
	Available bool   `json:"available"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// =============================================================================
// REQUESTS AND RENTALS
// =============================================================================

// SubmitRequestRequest is the body of POST /requests.
type SubmitRequestRequest struct {
	BookID string `json:"bookId" validate:"required,uuid"`
}

// RequestDTO represents a book request in API responses.
type RequestDTO struct {
	ID          string  `json:"id"`
	BookID      string  `json:"bookId"`
	UserID      string  `json:"userId"`
	RequestDate string  `json:"requestDate"`
	Status      string  `json:"status"`
	DecidedAt   *string `json:"decidedAt,omitempty"`
	DecidedBy   *string `json:"decidedBy,omitempty"`
}

// RentalDTO represents a rental record in API responses.
type RentalDTO struct {
	ID         string  `json:"id"`
	BookID     string  `json:"bookId"`
	UserID     string  `json:"userId"`
	RequestID  *string `json:"requestId,omitempty"`
	RentalDate string  `json:"rentalDate"`
	DueDate    string  `json:"dueDate"`
	ReturnDate *string `json:"returnDate,omitempty"`
	LateFee    string  `json:"lateFee"`
	Active     bool    `json:"active"`
}

// StatisticsDTO is the body of GET /rentals/statistics.
type StatisticsDTO struct {
	TotalRentals     int `json:"totalRentals"`
	ActiveRentals    int `json:"activeRentals"`
	CompletedRentals int `json:"completedRentals"`
}

// AuditEntryDTO represents one audit trail entry.
type AuditEntryDTO struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	ActorID   string            `json:"actorId"`
	Action    string            `json:"action"`
	BookID    string            `json:"bookId"`
	RequestID *string           `json:"requestId,omitempty"`
	RentalID  *string           `json:"rentalId,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// =============================================================================
// RECONCILIATION AND SCENARIOS
// =============================================================================

// DiscrepancyDTO is one book failing the stock invariant.
type DiscrepancyDTO struct {
	BookID      string `json:"bookId"`
	Title       string `json:"title"`
	Stock       int    `json:"stock"`
	Copies      int    `json:"copies"`
	OpenRentals int    `json:"openRentals"`
	Expected    int    `json:"expected"`
}

// ReconciliationDTO is the latest invariant check plus books drifting on
// consecutive runs.
type ReconciliationDTO struct {
	CheckedAt     string           `json:"checkedAt,omitempty"`
	BooksChecked  int              `json:"booksChecked"`
	Healthy       bool             `json:"healthy"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
	Persistent    []DiscrepancyDTO `json:"persistent"`
	Runs          int              `json:"runs"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// =============================================================================
// ENVELOPES
// =============================================================================

// PageDTO wraps one page of a listing.
type PageDTO[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ErrorResponse is the body of every error. Details only in debug mode.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func formatNullUUID(id uuid.NullUUID) *string {
	if !id.Valid {
		return nil
	}
	s := id.UUID.String()
	return &s
}

func toUserDTO(u rental.User) UserDTO {
	return UserDTO{
		ID:        u.ID.String(),
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toLoginResponse(res *auth.LoginResult) LoginResponse {
	return LoginResponse{
		Token:     res.Token,
		ExpiresAt: formatTime(res.ExpiresAt),
		User:      toUserDTO(res.User),
	}
}

func toBookDTO(b rental.Book) BookDTO {
	return BookDTO{
		ID:        b.ID.String(),
		Title:     b.Title,
		Author:    b.Author,
		Stock:     b.Stock,
		Copies:    b.Copies,
		Available: b.Available(),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

func toRequestDTO(r rental.BookRequest) RequestDTO {
	return RequestDTO{
		ID:          r.ID.String(),
		BookID:      r.BookID.String(),
		UserID:      r.UserID.String(),
		RequestDate: formatTime(r.RequestDate),
		Status:      string(r.Status),
		DecidedAt:   formatTimePtr(r.DecidedAt),
		DecidedBy:   formatNullUUID(r.DecidedBy),
	}
}

func toRentalDTO(r rental.RentalRecord) RentalDTO {
	return RentalDTO{
		ID:         r.ID.String(),
		BookID:     r.BookID.String(),
		UserID:     r.UserID.String(),
		RequestID:  formatNullUUID(r.RequestID),
		RentalDate: formatTime(r.RentalDate),
		DueDate:    formatTime(r.DueDate),
		ReturnDate: formatTimePtr(r.ReturnDate),
		LateFee:    r.LateFee.StringFixed(2),
		Active:     r.Open(),
	}
}

func toStatisticsDTO(s rental.Statistics) StatisticsDTO {
	return StatisticsDTO{
		TotalRentals:     s.TotalRentals,
		ActiveRentals:    s.ActiveRentals,
		CompletedRentals: s.CompletedRentals,
	}
}

func toAuditEntryDTO(e rental.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: formatTime(e.Timestamp),
		ActorID:   e.ActorID.String(),
		Action:    string(e.Action),
		BookID:    e.BookID.String(),
		RequestID: formatNullUUID(e.RequestID),
		RentalID:  formatNullUUID(e.RentalID),
		Details:   e.Details,
	}
}

func toDiscrepancyDTOs(ds []rental.Discrepancy) []DiscrepancyDTO {
	return lo.Map(ds, func(d rental.Discrepancy, _ int) DiscrepancyDTO {
		return DiscrepancyDTO{
			BookID:      d.BookID.String(),
			Title:       d.Title,
			Stock:       d.Stock,
			Copies:      d.Copies,
			OpenRentals: d.OpenRentals,
			Expected:    d.Expected,
		}
	})
}

// pageOf maps items and fills the paging envelope.
func pageOf[In, Out any](items []In, total int, p rental.Page, conv func(In) Out) PageDTO[Out] {
	p = p.Normalize()
	return PageDTO[Out]{
		Items:      lo.Map(items, func(item In, _ int) Out { return conv(item) }),
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: (total + p.Size - 1) / p.Size,
	}
}
