package rental

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 5 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		config.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, ...
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		config.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the jitter added as a fraction of each backoff delay.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		config.jitterFactor = factor
		return nil
	}
}

// retry runs fn until it succeeds, fails with a non-retryable error, the
// context ends, or the attempt budget is spent. Only ErrConcurrentModification
// is retried; every business failure returns on the first attempt.
//
// Retry Schedule (default): 0, 5, 10, 20, 40 ms plus up to 30% jitter.
func (e *Engine) retry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	config := e.retryCfg
	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoff := delay + time.Duration(jitter)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt+1 == config.maxAttempts {
			break
		}

		e.incrementCounter(MetricRetries, map[string]string{LogAttrOperation: operation})
		e.logDebug("transient conflict, retrying",
			LogAttrOperation, operation,
			LogAttrAttempt, strconv.Itoa(attempt+1),
			LogAttrError, lastErr.Error())
	}

	e.incrementCounter(MetricContention, map[string]string{LogAttrOperation: operation})
	return &ContentionError{Operation: operation, Attempts: config.maxAttempts, Last: lastErr}
}
