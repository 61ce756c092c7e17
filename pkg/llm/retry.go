package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
)

const (
	defaultInitialBackoff = 300 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
)

// RetryConfig is an exponential backoff budget. MaxRetries counts retries,
// not attempts.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// RetryHandler re-runs completion calls that failed transiently.
type RetryHandler struct {
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryHandler(cfg RetryConfig) *RetryHandler {
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaultBackoffFactor
	}
	return &RetryHandler{cfg: cfg, sleep: sleepContext}
}

// Attempts is the most calls Do will make.
func (r *RetryHandler) Attempts() int {
	return r.cfg.MaxRetries + 1
}

// Do calls fn until it succeeds, fails permanently or runs out of retries.
// A Retry-After header on a throttled response replaces the computed wait,
// bounded by MaxBackoff.
func (r *RetryHandler) Do(ctx context.Context, fn func() error) error {
	wait := r.cfg.InitialBackoff
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil || retries >= r.cfg.MaxRetries || !IsRetryable(err) {
			return err
		}
		d := wait
		if hinted, ok := retryAfter(err); ok {
			d = hinted
		}
		if err := r.sleep(ctx, min(d, r.cfg.MaxBackoff)); err != nil {
			return err
		}
		wait = min(time.Duration(float64(wait)*r.cfg.Multiplier), r.cfg.MaxBackoff)
	}
}

// IsRetryable reports whether err looks transient: throttling, a 5xx from a
// gateway or the model host, or a network fault. Cancellation never retries.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// retryAfter reads a seconds-valued Retry-After header from an API error.
func retryAfter(err error) (time.Duration, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		return 0, false
	}
	secs, convErr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After"))
	if convErr != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
