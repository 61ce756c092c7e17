package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"
)

func instantRetry(cfg RetryConfig) (*RetryHandler, *[]time.Duration) {
	var waits []time.Duration
	h := NewRetryHandler(cfg)
	h.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return h, &waits
}

func TestNewRetryHandler(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		h := NewRetryHandler(RetryConfig{MaxRetries: -1, Multiplier: 0.5})
		require.Equal(t, 0, h.cfg.MaxRetries)
		require.Equal(t, defaultInitialBackoff, h.cfg.InitialBackoff)
		require.Equal(t, defaultMaxBackoff, h.cfg.MaxBackoff)
		require.Equal(t, defaultBackoffFactor, h.cfg.Multiplier)
		require.Equal(t, 1, h.Attempts())
	})

	t.Run("explicit", func(t *testing.T) {
		h := NewRetryHandler(RetryConfig{MaxRetries: 4, InitialBackoff: time.Second, MaxBackoff: 2 * time.Second, Multiplier: 3})
		require.Equal(t, 5, h.Attempts())
		require.Equal(t, 3.0, h.cfg.Multiplier)
	})
}

func TestRetryHandlerDo(t *testing.T) {
	t.Run("success on retry with capped backoff", func(t *testing.T) {
		h, waits := instantRetry(RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second})
		calls := 0
		err := h.Do(context.Background(), func() error {
			calls++
			if calls < 4 {
				return &openai.Error{StatusCode: http.StatusTooManyRequests}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 4, calls)
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *waits)
	})

	t.Run("exhausted retries", func(t *testing.T) {
		h, _ := instantRetry(RetryConfig{MaxRetries: 2})
		calls := 0
		err := h.Do(context.Background(), func() error {
			calls++
			return &openai.Error{StatusCode: http.StatusBadGateway}
		})
		require.Error(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("non-retryable error", func(t *testing.T) {
		h, waits := instantRetry(RetryConfig{MaxRetries: 3})
		calls := 0
		err := h.Do(context.Background(), func() error {
			calls++
			return &openai.Error{StatusCode: http.StatusUnauthorized}
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
		require.Empty(t, *waits)
	})

	t.Run("retry-after header", func(t *testing.T) {
		h, waits := instantRetry(RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 3 * time.Second})
		throttled := &openai.Error{
			StatusCode: http.StatusTooManyRequests,
			Response:   &http.Response{Header: http.Header{"Retry-After": []string{"2"}}},
		}
		calls := 0
		err := h.Do(context.Background(), func() error {
			calls++
			if calls == 1 {
				return throttled
			}
			if calls == 2 {
				throttled.Response.Header.Set("Retry-After", "60")
				return throttled
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, *waits)
	})

	t.Run("context canceled while waiting", func(t *testing.T) {
		h := NewRetryHandler(RetryConfig{MaxRetries: 3, InitialBackoff: time.Minute})
		ctx, cancel := context.WithCancel(context.Background())
		err := h.Do(ctx, func() error {
			cancel()
			return &openai.Error{StatusCode: http.StatusServiceUnavailable}
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryable(t *testing.T) {
	for _, code := range []int{429, 408, 500, 502, 503, 504} {
		require.Truef(t, IsRetryable(&openai.Error{StatusCode: code}), "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404} {
		require.Falsef(t, IsRetryable(&openai.Error{StatusCode: code}), "status %d", code)
	}

	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(context.Canceled))
	require.False(t, IsRetryable(errors.Join(errors.New("wrapper"), context.DeadlineExceeded)))
	require.False(t, IsRetryable(errors.New("generic")))
	require.True(t, IsRetryable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))
	require.True(t, IsRetryable(timeoutError{}))
	require.True(t, IsRetryable(errors.Join(errors.New("wrapper"), &openai.Error{StatusCode: 429})))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
