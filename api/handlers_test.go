/*
handlers_test.go - HTTP tests for the rental API

Tests for:
- Authentication and Admin-only routes
- Request lifecycle over HTTP (submit, approve, reject, cancel)
- Direct rent and return
- Error status mapping and field validation
- Reconciliation and scenario endpoints
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/logging"
	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/rental/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testEnv struct {
	t          *testing.T
	h          *Handler
	router     http.Handler
	mem        *store.Memory
	adminToken string
	adminID    uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	engine, err := rental.NewEngine(mem)
	require.NoError(t, err)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	accounts := auth.NewService(mem, tokens)
	scheduler := NewReconciliationScheduler(engine, logging.For(logger, "reconcile"))
	h := NewHandler(engine, accounts, scheduler, logger)

	env := &testEnv{t: t, h: h, router: NewRouter(h, RouterConfig{}), mem: mem}
	env.adminID, env.adminToken = env.account("Ada Admin", "admin@library.test", rental.RoleAdmin)
	return env
}

// account creates an account and logs it in.
func (e *testEnv) account(name, email string, role rental.Role) (uuid.UUID, string) {
	e.t.Helper()
	ctx := context.Background()
	u, err := e.h.Accounts.CreateAccount(ctx, auth.Registration{FullName: name, Email: email, Password: "password-123"}, role)
	require.NoError(e.t, err)
	res, err := e.h.Accounts.Login(ctx, email, "password-123")
	require.NoError(e.t, err)
	return u.ID, res.Token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createBook(title string, copies int) BookDTO {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/books", e.adminToken, CreateBookRequest{Title: title, Author: "Someone", Copies: copies})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[BookDTO](e.t, rec)
}

func (e *testEnv) submit(token, bookID string) RequestDTO {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/requests", token, SubmitRequestRequest{BookID: bookID})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[RequestDTO](e.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAuth_RegisterLoginProfile(t *testing.T) {
	env := newTestEnv(t)

	// GIVEN: A new registration
	rec := env.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{FullName: "Rosa Reader", Email: "Rosa@Library.test", Password: "reader-pass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[UserDTO](t, rec)
	assert.Equal(t, "rosa@library.test", user.Email)
	assert.Equal(t, "User", user.Role)

	// WHEN: Logging in
	rec = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "rosa@library.test", Password: "reader-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[LoginResponse](t, rec)
	require.NotEmpty(t, login.Token)

	// THEN: The token identifies the account
	rec = env.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decode[UserDTO](t, rec).ID)

	// AND: Profile updates apply
	name := "Rosa R."
	rec = env.do(http.MethodPut, "/api/auth/me", login.Token, UpdateProfileRequest{FullName: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Rosa R.", decode[UserDTO](t, rec).FullName)

	// AND: Password change invalidates the old password
	rec = env.do(http.MethodPost, "/api/auth/me/password", login.Token, ChangePasswordRequest{CurrentPassword: "reader-pass", NewPassword: "new-reader-pass"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "rosa@library.test", Password: "reader-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_Failures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		errMsg string
	}{
		{"duplicate email", http.MethodPost, "/api/auth/register", "", RegisterRequest{FullName: "X", Email: "admin@library.test", Password: "password-123"}, http.StatusConflict, "Email is already registered"},
		{"wrong password", http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "admin@library.test", Password: "nope-nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown email", http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ghost@library.test", Password: "nope-nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"no token", http.MethodGet, "/api/auth/me", "", nil, http.StatusUnauthorized, "Authentication required"},
		{"garbage token", http.MethodGet, "/api/auth/me", "not-a-jwt", nil, http.StatusUnauthorized, "Authentication required"},
		{"multibyte password over bcrypt limit", http.MethodPost, "/api/auth/register", "", RegisterRequest{FullName: "X", Email: "x@library.test", Password: strings.Repeat("ü", 72)}, http.StatusBadRequest, "password: must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.errMsg, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestValidation_ReportsFields(t *testing.T) {
	env := newTestEnv(t)

	// GIVEN: A registration missing its email and with a short password
	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{"fullName": "Rosa", "password": "short"})

	// THEN: 400 with one message per field, named as in JSON
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, "is required", resp.Fields["email"])
	assert.Equal(t, "must be at least 8", resp.Fields["password"])

	// AND: Malformed JSON is rejected before validation
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestBooks_WritesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.account("Rosa", "rosa@library.test", rental.RoleUser)
	body := CreateBookRequest{Title: "Emma", Author: "Jane Austen", Copies: 2}

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/books", "", body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/books", userToken, body).Code)

	book := env.createBook("Emma", 2)
	assert.Equal(t, 2, book.Stock)
	assert.True(t, book.Available)

	// Reads are public
	rec := env.do(http.MethodGet, "/api/books?query=emm", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PageDTO[BookDTO]](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, book.ID, page.Items[0].ID)

	rec = env.do(http.MethodGet, "/api/books/"+book.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Emma", decode[BookDTO](t, rec).Title)
}

func TestBooks_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Dune", 1)
	readerID, _ := env.account("Tom", "tom@library.test", rental.RoleUser)

	// GIVEN: The only copy is rented
	rec := env.do(http.MethodPost, "/api/books/"+book.ID+"/rent", env.adminToken, RentBookRequest{UserID: readerID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: Copies cannot drop below the rented count, and delete is refused
	zero := 0
	rec = env.do(http.MethodPut, "/api/books/"+book.ID, env.adminToken, UpdateBookRequest{Copies: &zero})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	rec = env.do(http.MethodDelete, "/api/books/"+book.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// WHEN: Adding a copy
	three := 3
	rec = env.do(http.MethodPut, "/api/books/"+book.ID, env.adminToken, UpdateBookRequest{Copies: &three})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[BookDTO](t, rec)
	assert.Equal(t, 3, updated.Copies)
	assert.Equal(t, 2, updated.Stock)

	// WHEN: The rental is returned the book can be deleted
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/books/"+book.ID+"/return", env.adminToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/books/"+book.ID, env.adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/books/"+book.ID, "", nil).Code)
}

func TestBooks_BadIDs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/books/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/books/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book not found", decode[ErrorResponse](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/books?page=two", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestRequests_SubmitApproveReturn(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Emma", 2)
	_, userToken := env.account("Rosa", "rosa@library.test", rental.RoleUser)

	// GIVEN: A pending request (stock is not reserved)
	req := env.submit(userToken, book.ID)
	assert.Equal(t, "Pending", req.Status)
	rec := env.do(http.MethodGet, "/api/books/"+book.ID, "", nil)
	assert.Equal(t, 2, decode[BookDTO](t, rec).Stock)

	// WHEN: An admin approves it
	rec = env.do(http.MethodPost, "/api/requests/"+req.ID+"/approve", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[RentalDTO](t, rec)
	assert.True(t, opened.Active)
	require.NotNil(t, opened.RequestID)
	assert.Equal(t, req.ID, *opened.RequestID)

	// THEN: Stock dropped and a second decision is refused
	rec = env.do(http.MethodGet, "/api/books/"+book.ID, "", nil)
	assert.Equal(t, 1, decode[BookDTO](t, rec).Stock)
	rec = env.do(http.MethodPost, "/api/requests/"+req.ID+"/reject", env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Only pending requests can be rejected", decode[ErrorResponse](t, rec).Error)

	// AND: The user sees the rental in their history
	rec = env.do(http.MethodGet, "/api/rentals/mine", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[PageDTO[RentalDTO]](t, rec).Total)

	// AND: A rental id from another book's path is not found and stays open
	other := env.createBook("Dune", 1)
	rec = env.do(http.MethodPost, "/api/books/"+other.ID+"/return", env.adminToken, ReturnBookRequest{RentalID: opened.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(http.MethodGet, "/api/books/"+book.ID, "", nil)
	assert.Equal(t, 1, decode[BookDTO](t, rec).Stock)

	// WHEN: The admin closes it by rental id
	rec = env.do(http.MethodPost, "/api/books/"+book.ID+"/return", env.adminToken, ReturnBookRequest{RentalID: opened.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decode[RentalDTO](t, rec)
	assert.False(t, returned.Active)
	assert.Equal(t, "0.00", returned.LateFee)

	rec = env.do(http.MethodGet, "/api/rentals/statistics", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatisticsDTO{TotalRentals: 1, ActiveRentals: 0, CompletedRentals: 1}, decode[StatisticsDTO](t, rec))

	// AND: A second return finds nothing open
	rec = env.do(http.MethodPost, "/api/books/"+book.ID+"/return", env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "No active rental found for this book", decode[ErrorResponse](t, rec).Error)
}

func TestRequests_LastCopyApprovedOnce(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("The Hobbit", 1)
	_, tokenA := env.account("A", "a@library.test", rental.RoleUser)
	_, tokenB := env.account("B", "b@library.test", rental.RoleUser)
	reqA := env.submit(tokenA, book.ID)
	reqB := env.submit(tokenB, book.ID)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/requests/"+reqA.ID+"/approve", env.adminToken, nil).Code)

	// THEN: The second approval fails and leaves the request pending
	rec := env.do(http.MethodPost, "/api/requests/"+reqB.ID+"/approve", env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Book is not available", decode[ErrorResponse](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/requests/"+reqB.ID, tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pending", decode[RequestDTO](t, rec).Status)

	// AND: New submissions see the empty shelf
	rec = env.do(http.MethodPost, "/api/requests", tokenB, SubmitRequestRequest{BookID: book.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequests_OwnershipRules(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Beloved", 1)
	_, ownerToken := env.account("Owner", "owner@library.test", rental.RoleUser)
	_, otherToken := env.account("Other", "other@library.test", rental.RoleUser)
	req := env.submit(ownerToken, book.ID)

	// Other users cannot see or cancel it
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/requests/"+req.ID, otherToken, nil).Code)
	rec := env.do(http.MethodDelete, "/api/requests/"+req.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You can only cancel your own requests", decode[ErrorResponse](t, rec).Error)

	// Users cannot decide requests
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/requests/"+req.ID+"/approve", otherToken, nil).Code)

	// Admin sees it; owner cancels it
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/requests/"+req.ID, env.adminToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/requests/"+req.ID, ownerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/requests/"+req.ID, ownerToken, nil).Code)
}

func TestRequests_ListFilters(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Middlemarch", 3)
	userID, userToken := env.account("Rosa", "rosa@library.test", rental.RoleUser)
	first := env.submit(userToken, book.ID)
	env.submit(userToken, book.ID)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/requests/"+first.ID+"/reject", env.adminToken, nil).Code)

	rec := env.do(http.MethodGet, "/api/requests?status=Pending&userId="+userID.String(), env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[PageDTO[RequestDTO]](t, rec).Total)

	rec = env.do(http.MethodGet, "/api/requests/mine?pageSize=1", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PageDTO[RequestDTO]](t, rec)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)

	rec = env.do(http.MethodGet, "/api/requests?status=Lost", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/requests?bookId=nope", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HISTORY AND AUDIT
// =============================================================================

func TestRentals_AdminViewsAndAudit(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Ulysses", 2)
	userID, _ := env.account("Tom", "tom@library.test", rental.RoleUser)

	rec := env.do(http.MethodPost, "/api/books/"+book.ID+"/rent", env.adminToken, RentBookRequest{UserID: userID.String()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/api/rentals/active", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[PageDTO[RentalDTO]](t, rec).Total)

	rec = env.do(http.MethodGet, "/api/rentals/user/"+userID.String(), env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[PageDTO[RentalDTO]](t, rec).Total)

	rec = env.do(http.MethodGet, "/api/rentals/user/"+uuid.NewString(), env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/audit?action=book_rented&bookId="+book.ID, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[[]AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, env.adminID.String(), entries[0].ActorID)
	assert.NotNil(t, entries[0].RentalID)

	rec = env.do(http.MethodGet, "/api/rentals", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconciliation_RunAndPersistentDrift(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook("Emma", 2)
	bookID := uuid.MustParse(book.ID)

	rec := env.do(http.MethodGet, "/api/admin/reconciliation", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[ReconciliationDTO](t, rec).Runs)

	// GIVEN: Stock changed behind the engine's back
	_, err := env.mem.AdjustStock(context.Background(), bookID, -1)
	require.NoError(t, err)

	// WHEN: One run sees it
	rec = env.do(http.MethodPost, "/api/admin/reconciliation/run", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[ReconciliationDTO](t, rec)
	assert.False(t, first.Healthy)
	require.Len(t, first.Discrepancies, 1)
	assert.Equal(t, 2, first.Discrepancies[0].Expected)
	assert.Empty(t, first.Persistent)

	// THEN: A second run marks it persistent
	rec = env.do(http.MethodPost, "/api/admin/reconciliation/run", env.adminToken, nil)
	second := decode[ReconciliationDTO](t, rec)
	require.Len(t, second.Persistent, 1)
	assert.Equal(t, book.ID, second.Persistent[0].BookID)
	assert.Equal(t, 2, second.Runs)

	// AND: Once repaired the streak ends
	_, err = env.mem.AdjustStock(context.Background(), bookID, 1)
	require.NoError(t, err)
	rec = env.do(http.MethodPost, "/api/admin/reconciliation/run", env.adminToken, nil)
	third := decode[ReconciliationDTO](t, rec)
	assert.True(t, third.Healthy)
	assert.Empty(t, third.Persistent)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_LoadAndReset(t *testing.T) {
	env := newTestEnv(t)
	bootstraps := 0
	env.h.Bootstrap = func(ctx context.Context) error {
		bootstraps++
		_, err := env.h.Accounts.CreateAccount(ctx, auth.Registration{FullName: "Root", Email: "root@library.test", Password: "root-pass-123"}, rental.RoleAdmin)
		return err
	}

	rec := env.do(http.MethodGet, "/api/scenarios", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarioCatalogs))

	for id := range scenarioCatalogs {
		t.Run(id, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/scenarios/load", env.adminToken, LoadScenarioRequest{ScenarioID: id})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = env.do(http.MethodGet, "/api/scenarios/current", env.adminToken, nil)
			assert.Equal(t, id, decode[ScenarioDTO](t, rec).ID)

			// Seeded history keeps the stock invariant
			state, err := env.h.Scheduler.RunNow(context.Background())
			require.NoError(t, err)
			assert.True(t, state.Last.Healthy())
		})
	}

	rec = env.do(http.MethodPost, "/api/scenarios/load", env.adminToken, LoadScenarioRequest{ScenarioID: "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/scenarios/reset", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, 0, decode[PageDTO[BookDTO]](t, rec).Total)
	assert.Equal(t, len(scenarioCatalogs)+1, bootstraps)

	_, err := env.h.Accounts.Login(context.Background(), "root@library.test", "root-pass-123")
	assert.NoError(t, err)
}

func TestScenarios_ClassicsContents(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.h.ApplyScenario(context.Background(), "classics"))

	login, err := env.h.Accounts.Login(context.Background(), "admin@library.test", "admin-pass")
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/rentals/statistics", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// approved emma + returned dune + rented beloved
	assert.Equal(t, StatisticsDTO{TotalRentals: 3, ActiveRentals: 2, CompletedRentals: 1}, decode[StatisticsDTO](t, rec))

	rec = env.do(http.MethodGet, "/api/requests?status=Pending", login.Token, nil)
	assert.Equal(t, 2, decode[PageDTO[RequestDTO]](t, rec).Total)

	rec = env.do(http.MethodGet, "/api/books?available=true", "", nil)
	assert.Equal(t, 4, decode[PageDTO[BookDTO]](t, rec).Total, "beloved is out")
}

// =============================================================================
// PLUMBING
// =============================================================================

func TestStatusFor(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		err    error
		status int
	}{
		{&rental.NotFoundError{Kind: rental.KindBook, ID: id}, http.StatusNotFound},
		{&rental.ValidationError{Field: "title", Message: "required"}, http.StatusBadRequest},
		{&rental.TransitionError{RequestID: id, From: rental.RequestApproved, Action: rental.ActionApprove}, http.StatusConflict},
		{&rental.UnavailableError{BookID: id}, http.StatusConflict},
		{&rental.ConflictError{Kind: rental.KindUser}, http.StatusConflict},
		{&rental.NoActiveRentalError{BookID: id}, http.StatusConflict},
		{&rental.ForbiddenError{RequestID: id}, http.StatusForbidden},
		{rental.ErrUnauthorized, http.StatusUnauthorized},
		{&rental.ContentionError{Attempts: 3, Last: rental.ErrConcurrentModification}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", rental.ErrInternalConsistencyFault), http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestErrorDetails_OnlyInDebug(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/books/" + uuid.NewString()

	assert.Empty(t, decode[ErrorResponse](t, env.do(http.MethodGet, path, "", nil)).Details)

	env.h.Debug = true
	assert.Contains(t, decode[ErrorResponse](t, env.do(http.MethodGet, path, "", nil)).Details, "not found")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = env.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
