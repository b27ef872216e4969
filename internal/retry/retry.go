package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// Policy is a reusable bounded-retry policy: exponential backoff with ±30%
// jitter, Retry-After precedence for rate-limited calls, and no retries on
// context cancellation or permanent errors. Each call site carries its own
// Policy values instead of hand-rolling a loop.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry, doubled thereafter
}

// Do runs fn under the policy. The returned error is the last attempt's error.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == attempts {
			return lastErr
		}

		delay := p.backoffDelay(attempt, lastErr)
		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: retry cancelled: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoffDelay computes the delay after a given failed attempt. A Retry-After
// duration carried by the error (HTTP 429) takes precedence over the schedule.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// IsRetryable reports whether an error represents a transient failure worth
// retrying: network-level errors, HTTP 429, and HTTP 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are assumed transient.
	return true
}

// Adapter decorates a SourceAdapter with the retry policy.
type Adapter struct {
	inner  model.SourceAdapter
	policy Policy
	logger *slog.Logger
}

// WrapAdapter wraps a SourceAdapter so whole-source fetch failures are
// retried under policy before the source degrades to zero records.
func WrapAdapter(inner model.SourceAdapter, policy Policy, logger *slog.Logger) *Adapter {
	return &Adapter{inner: inner, policy: policy, logger: logger}
}

func (a *Adapter) Source() model.Source { return a.inner.Source() }

func (a *Adapter) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	var candidates []model.Candidate
	err := a.policy.Do(ctx, a.logger, "fetch "+string(a.inner.Source()), func(ctx context.Context) error {
		var err error
		candidates, err = a.inner.FetchCandidates(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
