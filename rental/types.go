package rental

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// USERS
// =============================================================================

// Role decides which engine operations a caller may invoke.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is owned by the accounts subsystem. The lifecycle engine only checks existence.
type User struct {
	ID           uuid.UUID `db:"id"`
	FullName     string    `db:"full_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// NormalizeEmail lowercases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// RENTAL RECORDS
// =============================================================================

// RentalRecord is one unit of a book checked out by one user.
// ReturnDate == nil means the rental is open.
type RentalRecord struct {
	ID         uuid.UUID       `db:"id"`
	BookID     uuid.UUID       `db:"book_id"`
	UserID     uuid.UUID       `db:"user_id"`
	RequestID  uuid.NullUUID   `db:"request_id"`
	RentalDate time.Time       `db:"rented_at"`
	DueDate    time.Time       `db:"due_at"`
	ReturnDate *time.Time      `db:"returned_at"`
	LateFee    decimal.Decimal `db:"late_fee"`
}

// Open reports whether the unit is still checked out.
func (r RentalRecord) Open() bool {
	return r.ReturnDate == nil
}

// Statistics aggregates rental records. Completed is always Total - Active.
type Statistics struct {
	TotalRentals     int
	ActiveRentals    int
	CompletedRentals int
}

// NewStatistics derives the completed count.
func NewStatistics(total, active int) Statistics {
	return Statistics{
		TotalRentals:     total,
		ActiveRentals:    active,
		CompletedRentals: total - active,
	}
}

// =============================================================================
// QUERIES
// =============================================================================

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps a page to number >= 1 and 1 <= size <= MaxPageSize.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// BookFilter narrows catalog listings.
type BookFilter struct {
	Query         string // case-insensitive match on title or author
	AvailableOnly bool   // stock > 0
	Page          Page
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	UserID *uuid.UUID
	BookID *uuid.UUID
	Status RequestStatus
	Page   Page
}

// RentalFilter narrows rental history listings.
type RentalFilter struct {
	UserID     *uuid.UUID
	BookID     *uuid.UUID
	ActiveOnly bool
	Page       Page
}

// AuditFilter narrows audit trail queries.
type AuditFilter struct {
	BookID    *uuid.UUID
	RequestID *uuid.UUID
	ActorID   *uuid.UUID
	Actions   []AuditAction
	Limit     int
}
