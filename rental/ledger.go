/*
ledger.go - Book ledger: catalog metadata and the stock counter

PURPOSE:
  A Book owns its title/author and a non-negative stock counter. Stock is
  the number of copies not currently checked out, so for every book:

    0 <= stock <= copies
    stock == copies - count(open rentals for the book)

  Stock arithmetic lives here so every store applies the same rule. Stores
  call WithStockDelta inside the transactional scope that holds the book's
  row lock; nothing mutates a stock value outside a scope.

SEE ALSO:
  - store.go: BookLedger interface (LockBook, AdjustStock)
  - reconcile.go: Verifies the copies/open-rental invariant
*/
package rental

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry with its stock counter.
type Book struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title"`
	Author    string    `db:"author"`
	Stock     int       `db:"stock"`
	Copies    int       `db:"copies"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Available reports whether at least one copy can be checked out.
func (b Book) Available() bool {
	return b.Stock > 0
}

// Rented returns how many copies are checked out according to the counter.
func (b Book) Rented() int {
	return b.Copies - b.Stock
}

// WithStockDelta returns the book with stock moved by delta, or a
// *StockError if the result would leave [0, copies].
func (b Book) WithStockDelta(delta int) (Book, error) {
	next := b.Stock + delta
	if next < 0 || next > b.Copies {
		return b, &StockError{BookID: b.ID, Stock: b.Stock, Copies: b.Copies, Delta: delta}
	}
	b.Stock = next
	return b, nil
}

// WithCopies resizes the owned copies. Stock moves by the same amount, so
// the number of rented copies is preserved; shrinking below it fails.
func (b Book) WithCopies(copies int) (Book, error) {
	if copies < 0 {
		return b, &ValidationError{Field: "copies", Message: "must be at least 0"}
	}
	delta := copies - b.Copies
	if b.Stock+delta < 0 {
		return b, &ConflictError{Kind: KindBook, Detail: "copies cannot drop below rented units"}
	}
	b.Stock += delta
	b.Copies = copies
	return b, nil
}

// NewBook describes a catalog addition. All copies start in stock.
type NewBook struct {
	Title  string
	Author string
	Copies int
}

// Validate checks the catalog rules for titles, authors and copy counts.
func (n NewBook) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Message: "Book title is required"}
	}
	if strings.TrimSpace(n.Author) == "" {
		return &ValidationError{Field: "author", Message: "Author name is required"}
	}
	if n.Copies < 0 {
		return &ValidationError{Field: "copies", Message: "Stock must be at least 0"}
	}
	return nil
}

// BookUpdate changes catalog metadata. Nil fields are left alone.
type BookUpdate struct {
	Title  *string
	Author *string
	Copies *int
}

// Apply returns b with the update applied.
func (u BookUpdate) Apply(b Book) (Book, error) {
	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return b, &ValidationError{Field: "title", Message: "Book title is required"}
		}
		b.Title = strings.TrimSpace(*u.Title)
	}
	if u.Author != nil {
		if strings.TrimSpace(*u.Author) == "" {
			return b, &ValidationError{Field: "author", Message: "Author name is required"}
		}
		b.Author = strings.TrimSpace(*u.Author)
	}
	if u.Copies != nil {
		return b.WithCopies(*u.Copies)
	}
	return b, nil
}
