/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:       Unique ID per request for tracing
  2. RealIP:          Client address from proxy headers
  3. RequestLogger:   Structured request logging (logrus)
  4. Recoverer:       Panic recovery (500 instead of crash)
  5. SecurityHeaders: nosniff, frame denial, CSP
  6. CORS:            Cross-origin requests for frontend
  7. RateLimiter:     Token bucket per client IP (optional)
  8. Instrument:      Prometheus HTTP metrics (optional)

ROUTE GROUPS:
  /api/auth/*           Registration, login, profile
  /api/books/*          Catalog (reads public, writes Admin)
  /api/requests/*       Rental requests
  /api/rentals/*        Rental history
  /api/audit            Audit trail (Admin)
  /api/admin/*          Reconciliation (Admin)
  /api/scenarios/*      Demo scenarios (Admin)
  /healthz              Liveness and store ping
  /metrics              Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authenticate, RequireAdmin, RateLimiter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/book-rental/metrics"
)

// RouterConfig holds the optional parts of the middleware stack.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimiter    *RateLimiter       // nil disables rate limiting
	Metrics        *metrics.Collector // nil disables /metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", h.Healthz)

	authn := Authenticate(h.Accounts.Tokens())

	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me", h.GetProfile)
				r.Put("/me", h.UpdateProfile)
				r.Post("/me/password", h.ChangePassword)
			})
		})

		// Catalog routes
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Get("/{id}", h.GetBook)
			r.Group(func(r chi.Router) {
				r.Use(authn, RequireAdmin)
				r.Post("/", h.CreateBook)
				r.Put("/{id}", h.UpdateBook)
				r.Delete("/{id}", h.DeleteBook)
				r.Post("/{id}/rent", h.RentBook)
				r.Post("/{id}/return", h.ReturnBook)
			})
		})

		// Request routes
		r.Route("/requests", func(r chi.Router) {
			r.Use(authn)
			r.Post("/", h.SubmitRequest)
			r.Get("/mine", h.MyRequests)
			r.Get("/{id}", h.GetRequest)
			r.Delete("/{id}", h.CancelRequest)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", h.ListRequests)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
			})
		})

		// Rental routes
		r.Route("/rentals", func(r chi.Router) {
			r.Use(authn)
			r.Get("/mine", h.MyRentals)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", h.ListRentals)
				r.Get("/active", h.ActiveRentals)
				r.Get("/statistics", h.RentalStatistics)
				r.Get("/user/{id}", h.UserRentals)
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authn, RequireAdmin)
			r.Get("/audit", h.AuditTrail)
			r.Route("/admin/reconciliation", func(r chi.Router) {
				r.Get("/", h.GetReconciliation)
				r.Post("/run", h.RunReconciliation)
			})
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	})

	return r
}
