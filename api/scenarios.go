/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with accounts,
	books and a short rental history. Each scenario is a catalog JSON
	document parsed by the factory package and replayed through the engine,
	so seeded data obeys the same stock rules as live traffic.

AVAILABLE SCENARIOS:

	classics:    A small shelf with pending, approved and returned history
	last-copy:   One copy, several readers queued for it
	empty-shelf: Every copy out, approvals fail until something is returned

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create accounts (Admin and User)
 3. Create books
 4. Replay activity in order

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "classics"}

ADDING NEW SCENARIOS:
 1. Add a catalog JSON document to 'scenarioCatalogs'
 2. Nothing else: the loader is generic

NOTE:

	Scenarios reset the store, including the caller's account. The
	Bootstrap hook (set by cmd/server) re-creates the configured admin.

SEE ALSO:
  - handlers.go: Handler
  - factory/catalog.go: Catalog JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/factory"
	"github.com/warp/book-rental/rental"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarioCatalogs = map[string]string{
	"classics": `{
  "id": "classics",
  "name": "Classics Shelf",
  "description": "Five titles, two readers, a mix of pending, approved, rejected and returned history",
  "accounts": [
    {"full_name": "Ada Admin", "email": "admin@library.test", "password": "admin-pass", "role": "Admin"},
    {"full_name": "Rosa Reader", "email": "rosa@library.test", "password": "reader-pass"},
    {"full_name": "Tom Turner", "email": "tom@library.test", "password": "reader-pass"}
  ],
  "books": [
    {"key": "emma", "title": "Emma", "author": "Jane Austen", "copies": 3},
    {"key": "dune", "title": "Dune", "author": "Frank Herbert", "copies": 2},
    {"key": "beloved", "title": "Beloved", "author": "Toni Morrison", "copies": 1},
    {"key": "ulysses", "title": "Ulysses", "author": "James Joyce", "copies": 1},
    {"key": "middlemarch", "title": "Middlemarch", "author": "George Eliot", "copies": 2}
  ],
  "activity": [
    {"book": "emma", "user": "rosa@library.test", "kind": "approved"},
    {"book": "dune", "user": "rosa@library.test", "kind": "returned"},
    {"book": "dune", "user": "tom@library.test", "kind": "pending"},
    {"book": "beloved", "user": "tom@library.test", "kind": "rented"},
    {"book": "ulysses", "user": "rosa@library.test", "kind": "rejected"},
    {"book": "middlemarch", "user": "tom@library.test", "kind": "pending"}
  ]
}`,
	"last-copy": `{
  "id": "last-copy",
  "name": "Last Copy",
  "description": "One copy and four readers waiting for it; only one approval can succeed",
  "accounts": [
    {"full_name": "Ada Admin", "email": "admin@library.test", "password": "admin-pass", "role": "Admin"},
    {"full_name": "Reader One", "email": "one@library.test", "password": "reader-pass"},
    {"full_name": "Reader Two", "email": "two@library.test", "password": "reader-pass"},
    {"full_name": "Reader Three", "email": "three@library.test", "password": "reader-pass"},
    {"full_name": "Reader Four", "email": "four@library.test", "password": "reader-pass"}
  ],
  "books": [
    {"key": "hobbit", "title": "The Hobbit", "author": "J. R. R. Tolkien", "copies": 1}
  ],
  "activity": [
    {"book": "hobbit", "user": "one@library.test", "kind": "pending"},
    {"book": "hobbit", "user": "two@library.test", "kind": "pending"},
    {"book": "hobbit", "user": "three@library.test", "kind": "pending"},
    {"book": "hobbit", "user": "four@library.test", "kind": "pending"}
  ]
}`,
	"empty-shelf": `{
  "id": "empty-shelf",
  "name": "Empty Shelf",
  "description": "Every copy is rented out; pending requests wait for a return",
  "accounts": [
    {"full_name": "Ada Admin", "email": "admin@library.test", "password": "admin-pass", "role": "Admin"},
    {"full_name": "Rosa Reader", "email": "rosa@library.test", "password": "reader-pass"},
    {"full_name": "Tom Turner", "email": "tom@library.test", "password": "reader-pass"}
  ],
  "books": [
    {"key": "emma", "title": "Emma", "author": "Jane Austen", "copies": 2},
    {"key": "dune", "title": "Dune", "author": "Frank Herbert", "copies": 1}
  ],
  "activity": [
    {"book": "dune", "user": "tom@library.test", "kind": "pending"},
    {"book": "emma", "user": "rosa@library.test", "kind": "pending"},
    {"book": "emma", "user": "rosa@library.test", "kind": "rented"},
    {"book": "emma", "user": "tom@library.test", "kind": "rented"},
    {"book": "dune", "user": "rosa@library.test", "kind": "rented"}
  ]
}`,
}

// Scenarios returns the available scenarios sorted by id.
func (h *Handler) Scenarios() ([]ScenarioDTO, error) {
	out := make([]ScenarioDTO, 0, len(scenarioCatalogs))
	for _, raw := range scenarioCatalogs {
		c, err := h.catalogs.ParseCatalog(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ScenarioDTO{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := h.Scenarios()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	c, err := h.catalogs.ParseCatalog(scenarioCatalogs[current])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: c.ID, Name: c.Name, Description: c.Description})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ApplyScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.Bootstrap != nil {
		if err := h.Bootstrap(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADER
// =============================================================================

// ApplyScenario resets the store and loads the named scenario.
func (h *Handler) ApplyScenario(ctx context.Context, id string) error {
	raw, ok := scenarioCatalogs[id]
	if !ok {
		return &rental.ValidationError{Field: "scenarioId", Message: fmt.Sprintf("unknown scenario %q", id)}
	}
	catalog, err := h.catalogs.ParseCatalog(raw)
	if err != nil {
		return err
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := h.seed(ctx, catalog); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}
	if h.Bootstrap != nil {
		if err := h.Bootstrap(ctx); err != nil {
			return err
		}
	}
	h.currentScenario = id
	h.Logger.WithFields(logrus.Fields{
		"component": "api",
		"scenario":  id,
		"accounts":  len(catalog.Accounts),
		"books":     len(catalog.Books),
		"activity":  len(catalog.Activity),
	}).Info("scenario loaded")
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Engine.Store().(rental.Resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.Scheduler.Reset()
	return nil
}

// seed creates accounts and books, then replays activity.
func (h *Handler) seed(ctx context.Context, c *factory.CatalogJSON) error {
	users := make(map[string]uuid.UUID, len(c.Accounts))
	for _, a := range c.Accounts {
		u, err := h.Accounts.CreateAccount(ctx, auth.Registration{FullName: a.FullName, Email: a.Email, Password: a.Password}, rental.Role(a.Role))
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Email, err)
		}
		users[a.Email] = u.ID
	}

	books := make(map[string]uuid.UUID, len(c.Books))
	for _, b := range c.Books {
		book, err := h.Engine.CreateBook(ctx, rental.NewBook{Title: b.Title, Author: b.Author, Copies: b.Copies})
		if err != nil {
			return fmt.Errorf("book %s: %w", b.Key, err)
		}
		books[b.Key] = book.ID
	}

	admin := users[c.Admins()[0].Email]
	for i, step := range c.Activity {
		if err := h.replay(ctx, admin, books[step.Book], users[step.User], step.Kind); err != nil {
			return fmt.Errorf("activity %d (%s %s): %w", i, step.Kind, step.Book, err)
		}
	}
	return nil
}

func (h *Handler) replay(ctx context.Context, admin, bookID, userID uuid.UUID, kind factory.ActivityKind) error {
	switch kind {
	case factory.ActivityPending, factory.ActivityApproved, factory.ActivityRejected:
		req, err := h.Engine.SubmitRequest(ctx, bookID, userID)
		if err != nil {
			return err
		}
		switch kind {
		case factory.ActivityApproved:
			_, err = h.Engine.ApproveRequest(ctx, req.ID, admin)
		case factory.ActivityRejected:
			_, err = h.Engine.RejectRequest(ctx, req.ID, admin)
		}
		return err
	case factory.ActivityRented, factory.ActivityReturned:
		rec, err := h.Engine.DirectRent(ctx, bookID, userID, admin)
		if err != nil || kind == factory.ActivityRented {
			return err
		}
		_, err = h.Engine.ReturnRental(ctx, rec.ID, admin)
		return err
	}
	return fmt.Errorf("unknown activity kind %q", kind)
}
