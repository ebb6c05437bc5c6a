package rental

import (
	"errors"
	"time"
)

// Logger interface for operation outcomes, retries and invariant warnings.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for engine instrumentation. Implementations
// must ignore metric names they do not know.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Metric names emitted by the engine.
const (
	MetricOperationDuration = "rental_operation_duration_seconds"
	MetricOperations        = "rental_operations_total"
	MetricRetries           = "rental_operation_retries_total"
	MetricContention        = "rental_contention_total"
	MetricInvariantDrift    = "rental_invariant_drift_books"
)

// Log attribute and label keys.
const (
	LogAttrOperation = "operation"
	LogAttrOutcome   = "outcome"
	LogAttrAttempt   = "attempt"
	LogAttrBookID    = "book_id"
	LogAttrRequestID = "request_id"
	LogAttrUserID    = "user_id"
	LogAttrError     = "error"
	LogAttrDuration  = "duration_ms"
)

var (
	// ErrNilStore is returned when NewEngine is given no store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrNilClock is returned when WithClock is given a nil function.
	ErrNilClock = errors.New("clock must not be nil")
)

// Option configures the Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
// Debug level: retries. Info level: completed transitions.
// Warn level: contention and invariant drift. Error level: store failures.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithClock replaces time.Now, for tests that need fixed rental and due dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return ErrNilClock
		}
		e.now = now
		return nil
	}
}

// WithLateFees sets the loan period and the fee charged per late day.
func WithLateFees(policy LateFeePolicy) Option {
	return func(e *Engine) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		e.fees = policy
		return nil
	}
}

// WithRetry configures the bounded retry applied to every transactional scope.
func WithRetry(options ...RetryOption) Option {
	return func(e *Engine) error {
		for _, option := range options {
			if err := option(&e.retryCfg); err != nil {
				return err
			}
		}
		return nil
	}
}
