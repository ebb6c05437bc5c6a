/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the book rental server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags (environment variables provide defaults)
  2. Open the store (memory, sqlite or postgres) and migrate
  3. Build engine, account service, scheduler and handler
  4. Seed the bootstrap admin, optionally load a scenario
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (environment variable in brackets):
  -port                HTTP server port [BOOKRENTAL_PORT] (default: 8080)
  -store               memory | sqlite | postgres [BOOKRENTAL_STORE] (default: sqlite)
  -db                  SQLite database path [BOOKRENTAL_DB] (default: rental.db)
  -dsn                 PostgreSQL connection string [BOOKRENTAL_DSN]
  -pg-driver           pgxpool | pgx | postgres [BOOKRENTAL_PG_DRIVER] (default: pgxpool)
  -serializable        SERIALIZABLE isolation on postgres [BOOKRENTAL_SERIALIZABLE]
  -lock-timeout        Row lock wait on postgres [BOOKRENTAL_LOCK_TIMEOUT] (default: 2s)
  -jwt-secret          HS256 signing secret [BOOKRENTAL_JWT_SECRET] (required)
  -token-ttl           Token lifetime [BOOKRENTAL_TOKEN_TTL] (default: 24h)
  -loan-days           Loan period in days [BOOKRENTAL_LOAN_DAYS] (default: 14)
  -late-fee            Fee per started late day [BOOKRENTAL_LATE_FEE] (default: 0.50)
  -retry-attempts      Attempts on concurrent modification [BOOKRENTAL_RETRY_ATTEMPTS] (default: 5)
  -retry-delay         Base backoff delay [BOOKRENTAL_RETRY_DELAY] (default: 5ms)
  -reconcile-interval  Invariant check interval, 0 disables [BOOKRENTAL_RECONCILE_INTERVAL] (default: 5m)
  -rate-limit          Requests per second per IP, 0 disables [BOOKRENTAL_RATE_LIMIT] (default: 20)
  -rate-burst          Burst per IP [BOOKRENTAL_RATE_BURST] (default: 40)
  -log-level           debug | info | warn | error [BOOKRENTAL_LOG_LEVEL] (default: info)
  -log-format          text | json [BOOKRENTAL_LOG_FORMAT] (default: text)
  -debug               Include raw errors in responses [BOOKRENTAL_DEBUG]
  -scenario            Load a demo scenario at startup [BOOKRENTAL_SCENARIO]
  -admin-email         Bootstrap admin email [BOOKRENTAL_ADMIN_EMAIL]
  -admin-password      Bootstrap admin password [BOOKRENTAL_ADMIN_PASSWORD]

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconciliation scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

EXAMPLES:
  # Run with file database
  ./server -jwt-secret=dev -db="./data/rental.db"

  # Run with in-memory store and demo data
  ./server -jwt-secret=dev -store=memory -scenario=classics

  # Run against PostgreSQL
  ./server -jwt-secret=dev -store=postgres -dsn="postgres://localhost/rental"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Database implementations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/book-rental/api"
	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/logging"
	"github.com/warp/book-rental/metrics"
	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/rental/store"
	"github.com/warp/book-rental/store/postgres"
	"github.com/warp/book-rental/store/sqlite"
)

type config struct {
	port              int
	store             string
	dbPath            string
	dsn               string
	pgDriver          string
	serializable      bool
	lockTimeout       time.Duration
	jwtSecret         string
	tokenTTL          time.Duration
	loanDays          int
	lateFee           string
	retryAttempts     int
	retryDelay        time.Duration
	reconcileInterval time.Duration
	rateLimit         float64
	rateBurst         int
	logLevel          string
	logFormat         string
	debug             bool
	scenario          string
	adminEmail        string
	adminPassword     string
}

func main() {
	cfg := parseFlags()

	logger, err := logging.New(os.Stderr, cfg.logLevel, cfg.logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func parseFlags() config {
	var cfg config
	flag.IntVar(&cfg.port, "port", envInt("BOOKRENTAL_PORT", 8080), "HTTP server port")
	flag.StringVar(&cfg.store, "store", envString("BOOKRENTAL_STORE", "sqlite"), "memory | sqlite | postgres")
	flag.StringVar(&cfg.dbPath, "db", envString("BOOKRENTAL_DB", "rental.db"), "SQLite database path")
	flag.StringVar(&cfg.dsn, "dsn", envString("BOOKRENTAL_DSN", ""), "PostgreSQL connection string")
	flag.StringVar(&cfg.pgDriver, "pg-driver", envString("BOOKRENTAL_PG_DRIVER", "pgxpool"), "pgxpool | pgx | postgres")
	flag.BoolVar(&cfg.serializable, "serializable", envBool("BOOKRENTAL_SERIALIZABLE", false), "SERIALIZABLE isolation on postgres")
	flag.DurationVar(&cfg.lockTimeout, "lock-timeout", envDuration("BOOKRENTAL_LOCK_TIMEOUT", postgres.DefaultLockTimeout), "row lock wait on postgres")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", envString("BOOKRENTAL_JWT_SECRET", ""), "HS256 signing secret")
	flag.DurationVar(&cfg.tokenTTL, "token-ttl", envDuration("BOOKRENTAL_TOKEN_TTL", auth.DefaultTokenTTL), "token lifetime")
	flag.IntVar(&cfg.loanDays, "loan-days", envInt("BOOKRENTAL_LOAN_DAYS", 14), "loan period in days")
	flag.StringVar(&cfg.lateFee, "late-fee", envString("BOOKRENTAL_LATE_FEE", "0.50"), "fee per started late day")
	flag.IntVar(&cfg.retryAttempts, "retry-attempts", envInt("BOOKRENTAL_RETRY_ATTEMPTS", 5), "attempts on concurrent modification")
	flag.DurationVar(&cfg.retryDelay, "retry-delay", envDuration("BOOKRENTAL_RETRY_DELAY", 5*time.Millisecond), "base backoff delay")
	flag.DurationVar(&cfg.reconcileInterval, "reconcile-interval", envDuration("BOOKRENTAL_RECONCILE_INTERVAL", 5*time.Minute), "invariant check interval, 0 disables")
	flag.Float64Var(&cfg.rateLimit, "rate-limit", envFloat("BOOKRENTAL_RATE_LIMIT", 20), "requests per second per IP, 0 disables")
	flag.IntVar(&cfg.rateBurst, "rate-burst", envInt("BOOKRENTAL_RATE_BURST", 40), "burst per IP")
	flag.StringVar(&cfg.logLevel, "log-level", envString("BOOKRENTAL_LOG_LEVEL", "info"), "debug | info | warn | error")
	flag.StringVar(&cfg.logFormat, "log-format", envString("BOOKRENTAL_LOG_FORMAT", "text"), "text | json")
	flag.BoolVar(&cfg.debug, "debug", envBool("BOOKRENTAL_DEBUG", false), "include raw errors in responses")
	flag.StringVar(&cfg.scenario, "scenario", envString("BOOKRENTAL_SCENARIO", ""), "load a demo scenario at startup")
	flag.StringVar(&cfg.adminEmail, "admin-email", envString("BOOKRENTAL_ADMIN_EMAIL", ""), "bootstrap admin email")
	flag.StringVar(&cfg.adminPassword, "admin-password", envString("BOOKRENTAL_ADMIN_PASSWORD", ""), "bootstrap admin password")
	flag.Parse()
	return cfg
}

func run(cfg config, logger *logrus.Logger) error {
	ctx := context.Background()

	// Initialize store
	txStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	fees := rental.LateFeePolicy{LoanPeriod: time.Duration(cfg.loanDays) * 24 * time.Hour}
	if fees.DailyFee, err = decimal.NewFromString(cfg.lateFee); err != nil {
		return fmt.Errorf("late fee: %w", err)
	}

	collector := metrics.NewCollector()
	engine, err := rental.NewEngine(txStore,
		rental.WithLogger(logging.For(logger, "engine")),
		rental.WithMetrics(collector),
		rental.WithLateFees(fees),
		rental.WithRetry(rental.WithMaxAttempts(cfg.retryAttempts), rental.WithBaseDelay(cfg.retryDelay)),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	tokens, err := auth.NewTokens(cfg.jwtSecret, cfg.tokenTTL)
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	accounts := auth.NewService(txStore, tokens)

	scheduler := api.NewReconciliationScheduler(engine, logging.For(logger, "reconcile"))
	scheduler.CheckInterval = cfg.reconcileInterval
	scheduler.Enabled = cfg.reconcileInterval > 0

	handler := api.NewHandler(engine, accounts, scheduler, logger)
	handler.Debug = cfg.debug
	handler.Bootstrap = func(ctx context.Context) error {
		return bootstrapAdmin(ctx, accounts, txStore, cfg, logger)
	}
	if err := handler.Bootstrap(ctx); err != nil {
		return err
	}
	if cfg.scenario != "" {
		if err := handler.ApplyScenario(ctx, cfg.scenario); err != nil {
			return err
		}
	}

	routerCfg := api.RouterConfig{Metrics: collector}
	if cfg.rateLimit > 0 {
		routerCfg.RateLimiter = api.NewRateLimiter(cfg.rateLimit, cfg.rateBurst)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.port),
		Handler:      api.NewRouter(handler, routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.port, "store": cfg.store}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return err
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore returns the configured store and its close function.
func openStore(ctx context.Context, cfg config) (rental.TxStore, func(), error) {
	switch cfg.store {
	case "memory":
		return store.NewMemory(), func() {}, nil

	case "sqlite":
		s, err := sqlite.New(cfg.dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, func() { s.Close() }, nil

	case "postgres":
		if cfg.dsn == "" {
			return nil, nil, errors.New("-dsn is required with -store=postgres")
		}
		options := []postgres.Option{postgres.WithLockTimeout(cfg.lockTimeout)}
		if cfg.serializable {
			options = append(options, postgres.WithSerializable())
		}

		var s *postgres.Store
		if cfg.pgDriver == "pgxpool" {
			pool, err := pgxpool.New(ctx, cfg.dsn)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create pool: %w", err)
			}
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to connect: %w", err)
			}
			s = postgres.NewFromPGXPool(pool, options...)
		} else {
			var err error
			if s, err = postgres.Open(ctx, cfg.pgDriver, cfg.dsn, options...); err != nil {
				return nil, nil, err
			}
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return s, func() { s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.store)
}

// bootstrapAdmin creates the configured admin unless the email is taken.
func bootstrapAdmin(ctx context.Context, accounts *auth.Service, users rental.UserDirectory, cfg config, logger *logrus.Logger) error {
	if cfg.adminEmail == "" {
		return nil
	}
	if _, err := users.GetUserByEmail(ctx, cfg.adminEmail); err == nil {
		return nil
	} else if !rental.IsNotFound(err) {
		return err
	}
	u, err := accounts.CreateAccount(ctx, auth.Registration{
		FullName: "Administrator",
		Email:    cfg.adminEmail,
		Password: cfg.adminPassword,
	}, rental.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.WithFields(logrus.Fields{"component": "main", "user_id": u.ID.String(), "email": u.Email}).Info("bootstrap admin created")
	return nil
}

// =============================================================================
// ENVIRONMENT DEFAULTS
// =============================================================================

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
