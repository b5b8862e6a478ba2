package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryConfig controls the rate-limit retry behavior.
type RetryConfig struct {
	MaxRetries int           // additional attempts after the first, default: 3
	BaseDelay  time.Duration // first backoff delay, default: 500ms
}

// WithRetry wraps a Provider so that rate-limited Embed calls are retried
// with exponential backoff. Other failures, including ErrProviderUnavailable,
// are returned immediately: retrying an unreachable backend only delays the
// caller's fallback decision.
type WithRetry struct {
	inner Provider
	cfg   RetryConfig

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Compile-time check that WithRetry implements Provider.
var _ Provider = (*WithRetry)(nil)

// NewWithRetry wraps the given provider with retry-on-rate-limit behavior.
func NewWithRetry(inner Provider, cfg RetryConfig) *WithRetry {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return &WithRetry{
		inner: inner,
		cfg:   cfg,
		sleep: sleepCtx,
	}
}

// Embed delegates to the wrapped provider, backing off and retrying when
// the provider reports rate limiting.
func (w *WithRetry) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	delay := w.cfg.BaseDelay

	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		vectors, err := w.inner.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}

		lastErr = err
		if attempt == w.cfg.MaxRetries {
			break
		}

		slog.Warn("embedding rate limited, backing off",
			"attempt", attempt+1, "delay", delay)
		if err := w.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, lastErr
}

// Dimensions returns the wrapped provider's dimensionality.
func (w *WithRetry) Dimensions() int {
	return w.inner.Dimensions()
}

// ModelTag returns the wrapped provider's model tag.
func (w *WithRetry) ModelTag() string {
	return w.inner.ModelTag()
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
