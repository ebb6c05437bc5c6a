package rental

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	opCreateBook = "create_book"
	opUpdateBook = "update_book"
	opDeleteBook = "delete_book"
)

// =============================================================================
// CATALOG - Book metadata management. Stock is only ever set on creation;
// afterwards it moves with copies (UpdateBook) or with the lifecycle.
// =============================================================================

// CreateBook adds a book with all copies in stock.
func (e *Engine) CreateBook(ctx context.Context, nb NewBook) (*Book, error) {
	if err := nb.Validate(); err != nil {
		return nil, err
	}

	var created Book
	err := e.run(ctx, opCreateBook, func(s Store) error {
		now := e.clock()
		created = Book{
			ID:        uuid.New(),
			Title:     strings.TrimSpace(nb.Title),
			Author:    strings.TrimSpace(nb.Author),
			Stock:     nb.Copies,
			Copies:    nb.Copies,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.CreateBook(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBook changes title, author or copies. Changing copies moves stock by
// the same amount, and fails with ErrConflict if rented copies would exceed it.
func (e *Engine) UpdateBook(ctx context.Context, id uuid.UUID, update BookUpdate) (*Book, error) {
	var updated Book
	err := e.run(ctx, opUpdateBook, func(s Store) error {
		book, err := s.LockBook(ctx, id)
		if err != nil {
			return err
		}
		next, err := update.Apply(*book)
		if err != nil {
			return err
		}
		next.UpdatedAt = e.clock()
		if err := s.UpdateBook(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	}, LogAttrBookID, id.String())
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBook removes a book together with its requests and closed rentals.
// A book with open rentals cannot be deleted.
func (e *Engine) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return e.run(ctx, opDeleteBook, func(s Store) error {
		if _, err := s.LockBook(ctx, id); err != nil {
			return err
		}
		open, err := s.OpenRentals(ctx, id)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return &ConflictError{Kind: KindBook, Detail: "book has open rentals"}
		}
		return s.DeleteBook(ctx, id)
	}, LogAttrBookID, id.String())
}

// GetBook returns one book.
func (e *Engine) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return e.store.GetBook(ctx, id)
}

// ListBooks searches the catalog. AvailableOnly keeps books with stock > 0.
func (e *Engine) ListBooks(ctx context.Context, f BookFilter) ([]Book, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Page = f.Page.Normalize()
	return e.store.ListBooks(ctx, f)
}
