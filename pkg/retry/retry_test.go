package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first attempt", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("success after retries", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("last error after exhaustion", func(t *testing.T) {
		wantErr := errors.New("persistent")
		calls := 0
		err := Do(ctx, &Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}, func() error {
			calls++
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		// Initial attempt plus two retries.
		assert.Equal(t, 3, calls)
	})

	t.Run("context cancellation stops waiting", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		err := Do(cancelCtx, &Config{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}, func() error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		err := Do(ctx, nil, func() error { return nil })
		assert.NoError(t, err)
	})
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the result", func(t *testing.T) {
		result, err := DoWithResult(ctx, fastConfig(), func() (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})

	t.Run("keeps last result on failure", func(t *testing.T) {
		wantErr := errors.New("persistent")
		result, err := DoWithResult(ctx, &Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}, func() (string, error) {
			return "partial", wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, "partial", result)
	})
}

type scriptedRetryable struct{ retryable bool }

func (e scriptedRetryable) Error() string     { return "scripted" }
func (e scriptedRetryable) IsRetryable() bool { return e.retryable }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"uppercase match", errors.New("Connection Refused"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"deadline exceeded", errors.New("context deadline exceeded: timeout"), true},
		{"deadlock", errors.New("deadlock detected"), true},
		{"rate limited", errors.New("429 too many requests"), true},
		{"service unavailable", errors.New("503 service unavailable"), true},
		{"auth error", errors.New("authentication failed"), false},
		{"syntax error", errors.New("syntax error at position 10"), false},
		{"self-declared retryable", scriptedRetryable{retryable: true}, true},
		{"self-declared permanent", scriptedRetryable{retryable: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDoIfRetryable(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := DoIfRetryable(ctx, fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection timeout")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors return immediately", func(t *testing.T) {
		wantErr := errors.New("authentication failed")
		calls := 0
		err := DoIfRetryable(ctx, fastConfig(), func() error {
			calls++
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 1, calls)
	})
}
