package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/harborline/opswatch/pkg/errors"
	"github.com/harborline/opswatch/pkg/logging"
	"github.com/harborline/opswatch/pkg/metrics"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	// Name labels the operation in logs and metrics
	Name string
	// MaxRetries is the number of retries after the initial attempt;
	// total attempts = MaxRetries + 1
	MaxRetries int
	// Delay is the inter-attempt delay
	Delay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// BackoffMultiplier scales the delay per attempt; 1.0 keeps the
	// delay fixed
	BackoffMultiplier float64
	// Jitter adds randomness to delay to avoid thundering herd
	Jitter bool
	// ShouldRetry decides whether a given error is retryable
	ShouldRetry func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		Delay:             time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
		Jitter:            false,
		ShouldRetry:       DefaultShouldRetry,
	}
}

// DefaultShouldRetry treats transient infrastructure failures as
// retryable and caller-side problems as terminal.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	switch errors.GetType(err) {
	case errors.ErrorTypeTimeout, errors.ErrorTypeExternal, errors.ErrorTypeNotReady, errors.ErrorTypeDatabase:
		return true
	case errors.ErrorTypeValidation, errors.ErrorTypePermission,
		errors.ErrorTypeNotFound, errors.ErrorTypeConflict, errors.ErrorTypeRateLimit:
		return false
	}

	return true
}

// Retrier executes operations with retry and optional backoff
type Retrier struct {
	config  RetryConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(config RetryConfig) *Retrier {
	if config.Name == "" {
		config.Name = "operation"
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.Delay <= 0 {
		config.Delay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 1.0
	}
	if config.ShouldRetry == nil {
		config.ShouldRetry = DefaultShouldRetry
	}

	return &Retrier{
		config: config,
		logger: logging.GetLogger(),
	}
}

// WithMetrics attaches metrics recording of per-attempt outcomes
func (r *Retrier) WithMetrics(m *metrics.Metrics) *Retrier {
	r.metrics = m
	return r
}

func (r *Retrier) recordAttempt(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordRetryAttempt(r.config.Name, outcome)
	}
}

// Execute executes the given function with retry logic. The last
// encountered error propagates once retries are exhausted or
// ShouldRetry rejects it; no delay is spent after a terminal failure.
func (r *Retrier) Execute(ctx context.Context, operation func(context.Context) error) error {
	attempts := r.config.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation(ctx)
		if err == nil {
			r.recordAttempt("success")
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry",
					"attempt", attempt,
					"total_attempts", attempts,
				)
			}
			return nil
		}

		lastErr = err
		r.recordAttempt("failure")

		if !r.config.ShouldRetry(err) {
			r.logger.Debug("Error is not retryable, stopping",
				"error", err.Error(),
				"attempt", attempt,
			)
			return err
		}

		if attempt == attempts {
			break
		}

		delay := r.calculateDelay(attempt)

		r.logger.Debug("Operation failed, retrying",
			"error", err.Error(),
			"attempt", attempt,
			"total_attempts", attempts,
			"delay", delay,
		)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.logger.Error("Operation failed after all retry attempts",
		"error", lastErr.Error(),
		"attempts", attempts,
	)

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// ExecuteWithResult executes the given function with retry logic and returns a result
func (r *Retrier) ExecuteWithResult(ctx context.Context, operation func(context.Context) (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := r.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})
	return result, err
}

func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.Delay)
	if r.config.BackoffMultiplier > 1.0 {
		delay *= math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	}

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.Jitter {
		jitter := rand.Float64() * 0.1 * delay // 10% jitter
		delay += jitter
	}

	return time.Duration(delay)
}

// WithRetry is a convenience function to execute an operation with
// the given retry configuration
func WithRetry(ctx context.Context, config RetryConfig, operation func(context.Context) error) error {
	retrier := NewRetrier(config)
	return retrier.Execute(ctx, operation)
}

// Retry is a convenience function to execute an operation with default retry configuration
func Retry(ctx context.Context, operation func(context.Context) error) error {
	return WithRetry(ctx, DefaultRetryConfig(), operation)
}
