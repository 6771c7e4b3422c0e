package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus/testutil"

	appErrors "github.com/harborline/opswatch/pkg/errors"
	"github.com/harborline/opswatch/pkg/metrics"
)

func TestRetrier_SuccessOnFirstAttempt(t *testing.T) {
	retrier := NewRetrier(DefaultRetryConfig())

	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_SuccessAfterRetries(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 3
	config.Delay = 10 * time.Millisecond
	retrier := NewRetrier(config)

	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return appErrors.NewTimeoutError("test timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

// MaxRetries=3 means exactly 4 total attempts, and the final error
// propagates once they are exhausted.
func TestRetrier_FailureAfterMaxAttempts(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 3
	config.Delay = 10 * time.Millisecond
	retrier := NewRetrier(config)

	attempts := 0
	finalErr := appErrors.NewTimeoutError("test timeout")
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return finalErr
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "operation failed after 4 attempts")
	assert.ErrorIs(t, err, finalErr)
}

func TestRetrier_NonRetryableError(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 3
	config.Delay = 10 * time.Millisecond
	retrier := NewRetrier(config)

	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return appErrors.NewValidationError("validation failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts) // Should not retry validation errors
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRetrier_ShouldRetryRejectsImmediately(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 5
	config.Delay = 10 * time.Millisecond
	config.ShouldRetry = func(err error) bool { return false }
	retrier := NewRetrier(config)

	attempts := 0
	start := time.Now()
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	// No delay is spent after a terminal failure
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestRetrier_ContextCancellation(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 4
	config.Delay = 100 * time.Millisecond
	retrier := NewRetrier(config)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := retrier.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return appErrors.NewTimeoutError("test timeout")
	})

	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 1, attempts) // Should stop after context cancellation
}

func TestRetrier_CustomShouldRetry(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 2
	config.Delay = 10 * time.Millisecond
	config.ShouldRetry = func(err error) bool {
		return err.Error() == "retryable"
	}
	retrier := NewRetrier(config)

	// Test retryable error
	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("retryable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	// Test non-retryable error
	attempts = 0
	err = retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("not retryable")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_OnRetryCallback(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 2
	config.Delay = 10 * time.Millisecond

	var retryAttempts []int
	var retryDelays []time.Duration

	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		retryAttempts = append(retryAttempts, attempt)
		retryDelays = append(retryDelays, delay)
	}

	retrier := NewRetrier(config)

	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return appErrors.NewTimeoutError("test timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retryAttempts)
	assert.Len(t, retryDelays, 2)
}

// The default configuration keeps the delay fixed across attempts
func TestRetrier_FixedDelay(t *testing.T) {
	config := DefaultRetryConfig()
	config.MaxRetries = 3
	config.Delay = 10 * time.Millisecond

	var delays []time.Duration
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	retrier := NewRetrier(config)
	retrier.Execute(context.Background(), func(ctx context.Context) error {
		return appErrors.NewTimeoutError("test timeout")
	})

	require.Len(t, delays, 3)
	for _, delay := range delays {
		assert.Equal(t, 10*time.Millisecond, delay)
	}
}

func TestRetrier_ExponentialBackoff(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        3,
		Delay:             10 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false, // Disable jitter for predictable testing
		ShouldRetry:       DefaultShouldRetry,
	}

	var delays []time.Duration
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	retrier := NewRetrier(config)
	retrier.Execute(context.Background(), func(ctx context.Context) error {
		return appErrors.NewTimeoutError("test timeout")
	})

	require.Len(t, delays, 3)
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
	assert.Equal(t, 40*time.Millisecond, delays[2])
}

func TestRetrier_MaxDelayLimit(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        4,
		Delay:             100 * time.Millisecond,
		MaxDelay:          150 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            false,
		ShouldRetry:       DefaultShouldRetry,
	}

	var delays []time.Duration
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	retrier := NewRetrier(config)
	retrier.Execute(context.Background(), func(ctx context.Context) error {
		return appErrors.NewTimeoutError("test timeout")
	})

	// All delays should be capped at MaxDelay
	require.NotEmpty(t, delays)
	for _, delay := range delays {
		assert.LessOrEqual(t, delay, 150*time.Millisecond)
	}
}

func TestRetrier_ExecuteWithResult(t *testing.T) {
	retrier := NewRetrier(DefaultRetryConfig())

	// Test successful execution with result
	result, err := retrier.ExecuteWithResult(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	// Test failed execution
	_, err = retrier.ExecuteWithResult(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, appErrors.NewValidationError("validation failed")
	})
	require.Error(t, err)
}

func TestDefaultShouldRetry(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"timeout error", appErrors.NewTimeoutError("timeout"), true},
		{"external error", appErrors.NewExternalError("service", "error"), true},
		{"not ready error", appErrors.NewNotReadyError("gateway"), true},
		{"database error", appErrors.NewDatabaseError("query", errors.New("boom")), true},
		{"validation error", appErrors.NewValidationError("validation"), false},
		{"permission error", appErrors.NewPermissionError("denied"), false},
		{"not found error", appErrors.NewNotFoundError("resource"), false},
		{"conflict error", appErrors.NewConflictError("duplicate"), false},
		{"rate limit error", appErrors.NewRateLimitError("slow down"), false},
		{"internal error", appErrors.NewInternalError("internal"), true},
		{"plain error", errors.New("anything"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, DefaultShouldRetry(tt.err))
		})
	}
}

func TestRetryConvenienceFunctions(t *testing.T) {
	config := DefaultRetryConfig()
	config.Delay = 10 * time.Millisecond

	attempts := 0
	err := WithRetry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return appErrors.NewTimeoutError("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrier_RecordsAttemptOutcomes(t *testing.T) {
	m := metrics.NewMetrics(metrics.DefaultConfig())

	config := DefaultRetryConfig()
	config.Name = "flaky_op"
	config.MaxRetries = 2
	config.Delay = time.Millisecond
	retrier := NewRetrier(config).WithMetrics(m)

	attempts := 0
	err := retrier.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return appErrors.NewTimeoutError("test timeout")
		}
		return nil
	})
	require.NoError(t, err)

	failures := testutil.ToFloat64(m.RetryAttempts.WithLabelValues("flaky_op", "failure"))
	successes := testutil.ToFloat64(m.RetryAttempts.WithLabelValues("flaky_op", "success"))
	assert.Equal(t, float64(2), failures)
	assert.Equal(t, float64(1), successes)
}
