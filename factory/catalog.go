/*
Package factory provides JSON to Go catalog seed conversion.

PURPOSE:
  Converts JSON catalog definitions (accounts, books and a rental history
  to replay) into validated Go values. Demo scenarios and the -scenario
  flag are defined this way, so a catalog can be changed without touching
  loader code.

JSON SCHEMA:
  {
    "id": "classics",
    "name": "Classics Shelf",
    "description": "...",
    "accounts": [
      {"full_name": "Ada Admin", "email": "admin@library.test",
       "password": "admin-pass", "role": "Admin"}
    ],
    "books": [
      {"key": "emma", "title": "Emma", "author": "Jane Austen", "copies": 2}
    ],
    "activity": [
      {"book": "emma", "user": "reader@library.test", "kind": "rented"}
    ]
  }

ACTIVITY KINDS:
  pending:  request submitted, not decided
  approved: request submitted and approved (opens a rental)
  rejected: request submitted and rejected
  rented:   direct rental by the first admin
  returned: direct rental, then returned

KEY FEATURES:
  - Validates JSON structure and cross references (book keys, user emails)
  - Sets sensible defaults (role User, key derived from title)
  - Activity is replayed through the engine, so seeded data obeys the
    same invariants as live traffic

USAGE:
  f := NewCatalogFactory()
  catalog, err := f.ParseCatalog(jsonString)

SEE ALSO:
  - api/scenarios.go: Named catalogs and the loader
*/
package factory

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	"github.com/warp/book-rental/rental"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a seed catalog.
type CatalogJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Accounts    []AccountJSON  `json:"accounts"`
	Books       []BookJSON     `json:"books"`
	Activity    []ActivityJSON `json:"activity,omitempty"`
}

// AccountJSON defines one account.
type AccountJSON struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"` // Default: User
}

// BookJSON defines one title.
type BookJSON struct {
	Key    string `json:"key,omitempty"` // Default: lowercased title
	Title  string `json:"title"`
	Author string `json:"author"`
	Copies int    `json:"copies"`
}

// ActivityJSON is one step of history to replay.
type ActivityJSON struct {
	Book string       `json:"book"` // BookJSON.Key
	User string       `json:"user"` // AccountJSON.Email
	Kind ActivityKind `json:"kind"`
}

// ActivityKind names what happens in an activity step.
type ActivityKind string

const (
	ActivityPending  ActivityKind = "pending"
	ActivityApproved ActivityKind = "approved"
	ActivityRejected ActivityKind = "rejected"
	ActivityRented   ActivityKind = "rented"
	ActivityReturned ActivityKind = "returned"
)

var activityKinds = []ActivityKind{ActivityPending, ActivityApproved, ActivityRejected, ActivityRented, ActivityReturned}

// =============================================================================
// FACTORY
// =============================================================================

// CatalogFactory parses and validates catalog definitions.
type CatalogFactory struct{}

// NewCatalogFactory creates a factory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a catalog from a JSON string.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*CatalogJSON, error) {
	var c CatalogJSON
	if err := json.UnmarshalFromString(jsonStr, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.normalize(&c); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", c.ID, err)
	}
	return &c, nil
}

func (f *CatalogFactory) normalize(c *CatalogJSON) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id is required")
	}

	for i := range c.Accounts {
		a := &c.Accounts[i]
		a.Email = rental.NormalizeEmail(a.Email)
		if a.Email == "" {
			return fmt.Errorf("account %d: email is required", i)
		}
		if a.Role == "" {
			a.Role = string(rental.RoleUser)
		}
		if !rental.Role(a.Role).Valid() {
			return fmt.Errorf("account %s: unknown role %q", a.Email, a.Role)
		}
	}
	if dup, ok := firstDuplicate(lo.Map(c.Accounts, func(a AccountJSON, _ int) string { return a.Email })); ok {
		return fmt.Errorf("duplicate account %s", dup)
	}
	if !lo.ContainsBy(c.Accounts, func(a AccountJSON) bool { return a.Role == string(rental.RoleAdmin) }) {
		return fmt.Errorf("at least one Admin account is required")
	}

	for i := range c.Books {
		b := &c.Books[i]
		if b.Key == "" {
			b.Key = strings.ToLower(strings.TrimSpace(b.Title))
		}
		nb := rental.NewBook{Title: b.Title, Author: b.Author, Copies: b.Copies}
		if err := nb.Validate(); err != nil {
			return fmt.Errorf("book %q: %w", b.Key, err)
		}
	}
	if dup, ok := firstDuplicate(lo.Map(c.Books, func(b BookJSON, _ int) string { return b.Key })); ok {
		return fmt.Errorf("duplicate book key %s", dup)
	}

	books := lo.SliceToMap(c.Books, func(b BookJSON) (string, BookJSON) { return b.Key, b })
	for i := range c.Activity {
		a := &c.Activity[i]
		a.User = rental.NormalizeEmail(a.User)
		if _, ok := books[a.Book]; !ok {
			return fmt.Errorf("activity %d: unknown book %q", i, a.Book)
		}
		if !lo.ContainsBy(c.Accounts, func(acc AccountJSON) bool { return acc.Email == a.User }) {
			return fmt.Errorf("activity %d: unknown user %q", i, a.User)
		}
		if !lo.Contains(activityKinds, a.Kind) {
			return fmt.Errorf("activity %d: unknown kind %q", i, a.Kind)
		}
	}
	return nil
}

// Admins returns the Admin accounts, first one first.
func (c *CatalogJSON) Admins() []AccountJSON {
	return lo.Filter(c.Accounts, func(a AccountJSON, _ int) bool { return a.Role == string(rental.RoleAdmin) })
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}
