// Package retry runs an operation with exponential backoff and jitter.
// Used for provider HTTP calls, where rate limiting and brief outages are
// routine.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, the first try included.
	// 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-retry delay. Default: 15s.
	MaxBackoff time.Duration

	// ShouldRetry decides whether an error is worth retrying. If nil, only
	// network-level errors are retried.
	ShouldRetry func(err error) bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 15 * time.Second
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsNetworkError
	}
	return c
}

// Do runs fn until it succeeds, exhausts the attempt budget, or fails with an
// error ShouldRetry rejects. Context cancellation stops retrying immediately
// and returns the last error.
func Do[T any](ctx context.Context, cfg Config, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return zero, lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		zap.L().Debug("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// backoff is exponential with full ±25% jitter, capped at MaxBackoff.
func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	delay += (rand.Float64()*2 - 1) * delay * 0.25
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// IsNetworkError reports whether err is a connection-level failure (timeout,
// reset, refused) as opposed to an application response.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
