package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// SourceLimiter enforces a minimum delay between requests to the same
// upstream source. All adapters for one source share a limiter instance.
type SourceLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	delayFor func(source string) time.Duration
}

// NewSourceLimiter creates a limiter. delayFor maps a source name to its
// minimum inter-request gap, so per-source overrides stay in config.
func NewSourceLimiter(delayFor func(source string) time.Duration) *SourceLimiter {
	return &SourceLimiter{
		lastCall: make(map[string]time.Time),
		delayFor: delayFor,
	}
}

// Wait blocks until enough time has passed since the last request to source.
// Returns an error if the context is cancelled while waiting.
func (l *SourceLimiter) Wait(ctx context.Context, source string) error {
	l.mu.Lock()
	last, ok := l.lastCall[source]
	now := time.Now()

	if !ok {
		l.lastCall[source] = now
		l.mu.Unlock()
		return nil
	}

	minDelay := l.delayFor(source)
	elapsed := now.Sub(last)
	if elapsed >= minDelay {
		l.lastCall[source] = now
		l.mu.Unlock()
		return nil
	}

	remaining := minDelay - elapsed
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
	case <-time.After(remaining):
	}

	l.mu.Lock()
	l.lastCall[source] = time.Now()
	l.mu.Unlock()

	return nil
}

// Adapter decorates a SourceAdapter with source-level rate limiting.
type Adapter struct {
	inner   model.SourceAdapter
	limiter *SourceLimiter
}

// WrapAdapter wraps a SourceAdapter so each whole-source fetch waits for the
// shared limiter first.
func WrapAdapter(inner model.SourceAdapter, limiter *SourceLimiter) *Adapter {
	return &Adapter{inner: inner, limiter: limiter}
}

func (a *Adapter) Source() model.Source { return a.inner.Source() }

func (a *Adapter) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	if err := a.limiter.Wait(ctx, string(a.inner.Source())); err != nil {
		return nil, err
	}
	return a.inner.FetchCandidates(ctx)
}
