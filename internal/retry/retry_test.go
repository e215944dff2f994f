package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
)

func TestDo_Success(t *testing.T) {
	cfg := DefaultConfig()
	attempts := 0

	err := Do(context.Background(), cfg, func() error {
		attempts++
		return nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	cfg := Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	cfg := DefaultConfig()
	testErr := errors.New("non-retryable")
	attempts := 0

	err := Do(context.Background(), cfg, func() error {
		attempts++
		return testErr
	}, func(err error) bool {
		return false
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_MaxAttemptsExceeded(t *testing.T) {
	cfg := Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	testErr := errors.New("persistent error")
	attempts := 0

	err := Do(context.Background(), cfg, func() error {
		attempts++
		return testErr
	}, func(err error) bool {
		return true
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
	if attempts != cfg.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", cfg.MaxAttempts, attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	cfg := Config{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("retryable error")
	}, func(err error) bool {
		return true
	})

	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if attempts >= cfg.MaxAttempts {
		t.Errorf("expected fewer than %d attempts due to context cancellation, got %d", cfg.MaxAttempts, attempts)
	}
}

func TestDoWithResult_SuccessAfterRetries(t *testing.T) {
	cfg := Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	attempts := 0
	result, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("temporary error")
		}
		return 42, nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected result 42, got %d", result)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoWithResult_RateLimitedCatalog(t *testing.T) {
	cfg := RateLimitConfig(3)
	cfg.InitialBackoff = time.Millisecond
	cfg.JitterFraction = 0

	var waits []time.Duration
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	attempts := 0
	body, err := DoWithResult(context.Background(), cfg, func() ([]byte, error) {
		attempts++
		if attempts == 1 {
			return nil, apperrors.CatalogUnavailable(http.StatusTooManyRequests, "/movie/550")
		}
		return []byte(`{"id":550}`), nil
	}, RateLimited)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(body) != `{"id":550}` {
		t.Errorf("unexpected body %s", body)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if len(waits) != 1 || waits[0] != time.Millisecond {
		t.Errorf("expected one 1ms wait, got %v", waits)
	}
}

func TestDoWithResult_CatalogFailureNotRetried(t *testing.T) {
	cfg := RateLimitConfig(5)
	attempts := 0

	_, err := DoWithResult(context.Background(), cfg, func() (string, error) {
		attempts++
		return "", apperrors.CatalogUnavailable(http.StatusInternalServerError, "/movie/1")
	}, RateLimited)

	if apperrors.GetErrorCode(err) != apperrors.CodeCatalogUnavailable {
		t.Errorf("expected catalog error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(ctx, DefaultConfig(), func() error {
		called = true
		return nil
	}, RateLimited)

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("expected fn not to be called with a cancelled context")
	}
}

func TestRateLimitConfig_MinimumOneAttempt(t *testing.T) {
	if got := RateLimitConfig(0).MaxAttempts; got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	backoff := 100 * time.Millisecond

	t.Run("no jitter", func(t *testing.T) {
		result := calculateBackoff(backoff, 0)
		if result != backoff {
			t.Errorf("expected %v, got %v", backoff, result)
		}
	})

	t.Run("with jitter", func(t *testing.T) {
		jitterFraction := 0.1
		for i := 0; i < 100; i++ {
			result := calculateBackoff(backoff, jitterFraction)
			minExpected := time.Duration(float64(backoff) * (1 - jitterFraction))
			maxExpected := time.Duration(float64(backoff) * (1 + jitterFraction))

			if result < minExpected || result > maxExpected {
				t.Errorf("expected result between %v and %v, got %v", minExpected, maxExpected, result)
			}
		}
	})
}

func TestBackoff(t *testing.T) {
	cfg := Config{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second}, // capped at MaxBackoff
		{6, 1 * time.Second}, // capped at MaxBackoff
	}

	for _, tt := range tests {
		result := Backoff(tt.attempt, cfg)
		if result != tt.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("expected InitialBackoff 100ms, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("expected MaxBackoff 30s, got %v", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("expected BackoffMultiplier 2.0, got %f", cfg.BackoffMultiplier)
	}
	if cfg.JitterFraction != 0.1 {
		t.Errorf("expected JitterFraction 0.1, got %f", cfg.JitterFraction)
	}
}
