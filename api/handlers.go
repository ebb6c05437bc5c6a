/*
handlers.go - HTTP API handlers for the book rental service

PURPOSE:
  Exposes the rental engine and the account service via REST API. Handles
  HTTP request/response, JSON serialization and authorization, and
  delegates everything else to domain logic.

ENDPOINTS:
  Accounts:
    POST   /api/auth/register          Create a User account
    POST   /api/auth/login             Issue a bearer token
    GET    /api/auth/me                Current profile
    PUT    /api/auth/me                Update name/email
    POST   /api/auth/me/password       Change password

  Catalog:
    GET    /api/books                  Search/list books (query, available, page, pageSize)
    GET    /api/books/{id}             Book details
    POST   /api/books                  Admin: create
    PUT    /api/books/{id}             Admin: update title/author/copies
    DELETE /api/books/{id}             Admin: delete (409 with open rentals)
    POST   /api/books/{id}/rent        Admin: direct rent to userId
    POST   /api/books/{id}/return      Admin: return (optional rentalId)

  Requests:
    POST   /api/requests               Submit for the caller
    GET    /api/requests/mine          Caller's requests
    GET    /api/requests/{id}          Owner or Admin
    DELETE /api/requests/{id}          Cancel (owner, Pending only)
    GET    /api/requests               Admin: list (status, userId, bookId)
    POST   /api/requests/{id}/approve  Admin
    POST   /api/requests/{id}/reject   Admin

  Rentals:
    GET    /api/rentals/mine           Caller's history
    GET    /api/rentals                Admin: all
    GET    /api/rentals/active         Admin: open rentals
    GET    /api/rentals/user/{id}      Admin: one user's history
    GET    /api/rentals/statistics     Admin: totals
    GET    /api/audit                  Admin: audit trail

  Admin:
    GET    /api/admin/reconciliation      Latest invariant check
    POST   /api/admin/reconciliation/run  Run a check now

ERROR HANDLING:
  Errors are returned as JSON {"error": rental.Message(err)} with a status
  chosen by statusFor. The raw error is added as "details" only when the
  server runs with -debug; 5xx errors are always logged.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Authenticate, RequireAdmin
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/factory"
	"github.com/warp/book-rental/rental"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *rental.Engine
	Accounts  *auth.Service
	Scheduler *ReconciliationScheduler
	Logger    *logrus.Logger

	// Debug adds raw error text to error responses.
	Debug bool

	// Bootstrap runs after every store reset (re-creates the configured admin).
	// Must be idempotent.
	Bootstrap func(ctx context.Context) error

	validate *validator.Validate
	catalogs *factory.CatalogFactory

	// Track currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(engine *rental.Engine, accounts *auth.Service, scheduler *ReconciliationScheduler, logger *logrus.Logger) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Engine:    engine,
		Accounts:  accounts,
		Scheduler: scheduler,
		Logger:    logger,
		validate:  v,
		catalogs:  factory.NewCatalogFactory(),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Register creates a User account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Register(r.Context(), auth.Registration{FullName: req.FullName, Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// Login issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

// GetProfile returns the caller's account.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.GetProfile(r.Context(), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// UpdateProfile changes the caller's name and/or email.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.UpdateProfile(r.Context(), caller(r).UserID, auth.ProfileUpdate{FullName: req.FullName, Email: req.Email})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// ChangePassword replaces the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), caller(r).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListBooks searches the catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	available, err := parseBool(r, "available")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	books, total, err := h.Engine.ListBooks(r.Context(), rental.BookFilter{
		Query:         r.URL.Query().Get("query"),
		AvailableOnly: available,
		Page:          page,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOf(books, total, page, toBookDTO))
}

// GetBook returns one book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Engine.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*b))
}

// CreateBook adds a title to the catalog.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Engine.CreateBook(r.Context(), rental.NewBook{Title: req.Title, Author: req.Author, Copies: req.Copies})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(*b))
}

// UpdateBook changes title, author or number of copies.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateBookRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Engine.UpdateBook(r.Context(), id, rental.BookUpdate{Title: req.Title, Author: req.Author, Copies: req.Copies})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*b))
}

// DeleteBook removes a book with no open rentals.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Engine.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RentBook rents a copy directly to a user, without a request.
func (h *Handler) RentBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req RentBookRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Engine.DirectRent(r.Context(), id, uuid.MustParse(req.UserID), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRentalDTO(*rec))
}

// ReturnBook closes a rental of the book. With rentalId that rental is
// closed; without it the book must have exactly one open rental.
func (h *Handler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReturnBookRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	var (
		rec *rental.RentalRecord
		err error
	)
	if req.RentalID == "" {
		rec, err = h.Engine.ReturnBook(r.Context(), id, caller(r).UserID)
	} else {
		rentalID := uuid.MustParse(req.RentalID)
		// A rental never changes book, so checking before the return is enough.
		found, lookupErr := h.Engine.GetRental(r.Context(), rentalID)
		switch {
		case lookupErr != nil:
			err = lookupErr
		case found.BookID != id:
			err = &rental.NotFoundError{Kind: rental.KindRental, ID: rentalID}
		default:
			rec, err = h.Engine.ReturnRental(r.Context(), rentalID, caller(r).UserID)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRentalDTO(*rec))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest files a rental request for the caller.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	br, err := h.Engine.SubmitRequest(r.Context(), uuid.MustParse(req.BookID), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*br))
}

// MyRequests lists the caller's requests.
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	userID := caller(r).UserID
	h.listRequests(w, r, &userID)
}

// ListRequests lists all requests (Admin).
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDQuery(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.listRequests(w, r, userID)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request, userID *uuid.UUID) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bookID, err := parseUUIDQuery(r, "bookId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f := rental.RequestFilter{UserID: userID, BookID: bookID, Page: page}
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := rental.ParseRequestStatus(s)
		if !ok {
			h.writeError(w, r, &rental.ValidationError{Field: "status", Message: "must be Pending, Approved or Rejected"})
			return
		}
		f.Status = status
	}
	requests, total, err := h.Engine.ListRequests(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOf(requests, total, page, toRequestDTO))
}

// GetRequest returns one request to its owner or an Admin.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	br, err := h.Engine.GetRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if p := caller(r); !p.IsAdmin() && br.UserID != p.UserID {
		// Other users' requests are indistinguishable from missing ones.
		h.writeError(w, r, &rental.NotFoundError{Kind: rental.KindRequest, ID: id})
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*br))
}

// CancelRequest withdraws the caller's own Pending request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Engine.CancelRequest(r.Context(), id, caller(r).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves a Pending request and opens the rental.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.Engine.ApproveRequest(r.Context(), id, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRentalDTO(*rec))
}

// RejectRequest rejects a Pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	br, err := h.Engine.RejectRequest(r.Context(), id, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*br))
}

// =============================================================================
// RENTAL HANDLERS
// =============================================================================

// MyRentals returns the caller's rental history.
func (h *Handler) MyRentals(w http.ResponseWriter, r *http.Request) {
	h.userHistory(w, r, caller(r).UserID)
}

// UserRentals returns one user's rental history (Admin).
func (h *Handler) UserRentals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	h.userHistory(w, r, id)
}

func (h *Handler) userHistory(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rentals, total, err := h.Engine.UserHistory(r.Context(), userID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOf(rentals, total, page, toRentalDTO))
}

// ListRentals returns all rental records (Admin).
func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	h.listRentals(w, r, h.Engine.AllRentals)
}

// ActiveRentals returns open rentals (Admin).
func (h *Handler) ActiveRentals(w http.ResponseWriter, r *http.Request) {
	h.listRentals(w, r, h.Engine.ActiveRentals)
}

func (h *Handler) listRentals(w http.ResponseWriter, r *http.Request, list func(context.Context, rental.Page) ([]rental.RentalRecord, int, error)) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rentals, total, err := list(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOf(rentals, total, page, toRentalDTO))
}

// RentalStatistics returns total/active/completed counts (Admin).
func (h *Handler) RentalStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.RentalStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsDTO(stats))
}

// AuditTrail returns audit entries, newest first (Admin).
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	var f rental.AuditFilter
	var err error
	if f.BookID, err = parseUUIDQuery(r, "bookId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.RequestID, err = parseUUIDQuery(r, "requestId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.ActorID, err = parseUUIDQuery(r, "actorId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.Limit, err = parseInt(r, "limit", 0); err != nil {
		h.writeError(w, r, err)
		return
	}
	f.Actions = lo.Map(r.URL.Query()["action"], func(a string, _ int) rental.AuditAction { return rental.AuditAction(a) })

	entries, err := h.Engine.AuditTrail(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(entries, func(e rental.AuditEntry, _ int) AuditEntryDTO { return toAuditEntryDTO(e) }))
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// GetReconciliation returns the latest invariant check.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toReconciliationDTO(h.Scheduler.State()))
}

// RunReconciliation runs an invariant check now.
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	state, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliationDTO(state))
}

func toReconciliationDTO(s ReconciliationState) ReconciliationDTO {
	dto := ReconciliationDTO{
		Healthy:       true,
		Discrepancies: []DiscrepancyDTO{},
		Persistent:    toDiscrepancyDTOs(s.Persistent),
		Runs:          s.Runs,
	}
	if s.Last != nil {
		dto.CheckedAt = formatTime(s.Last.CheckedAt)
		dto.BooksChecked = s.Last.BooksChecked
		dto.Healthy = s.Last.Healthy()
		dto.Discrepancies = toDiscrepancyDTOs(s.Last.Discrepancies)
	}
	return dto
}

// Healthz reports whether the store answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Engine.Store().(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck // client went away
}

// statusFor maps engine failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rental.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rental.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, rental.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, rental.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, rental.ErrInvalidTransition),
		errors.Is(err, rental.ErrBookUnavailable),
		errors.Is(err, rental.ErrConflict),
		errors.Is(err, rental.ErrNoActiveRental):
		return http.StatusConflict
	case errors.Is(err, rental.ErrContention):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: rental.Message(err)}
	if h.Debug {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.Logger.WithFields(logrus.Fields{
			"component": "api",
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    status,
		}).WithError(err).Error("request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return h.decodeBody(w, r, dst, false)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	return h.decodeBody(w, r, dst, true)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
			return false
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
			return false
		}
		h.writeError(w, r, err)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a UUID"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, r, &rental.ValidationError{Field: name, Message: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the authenticated principal. Routes using it are behind Authenticate.
func caller(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func parsePage(r *http.Request) (rental.Page, error) {
	number, err := parseInt(r, "page", 1)
	if err != nil {
		return rental.Page{}, err
	}
	size, err := parseInt(r, "pageSize", rental.DefaultPageSize)
	if err != nil {
		return rental.Page{}, err
	}
	return rental.Page{Number: number, Size: size}.Normalize(), nil
}

func parseInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &rental.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func parseBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &rental.ValidationError{Field: name, Message: "must be true or false"}
	}
	return b, nil
}

func parseUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &rental.ValidationError{Field: name, Message: "must be a UUID"}
	}
	return &id, nil
}
