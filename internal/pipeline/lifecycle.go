package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// Lifecycle applies the status transitions that do not come from observing a
// posting upstream: expiry by deadline, deactivation by absence, and the
// retention sweep.
type Lifecycle struct {
	store        Catalogue
	graceWindow  time.Duration
	retentionAge time.Duration
	logger       *slog.Logger
}

// NewLifecycle creates the lifecycle manager.
func NewLifecycle(store Catalogue, graceWindow, retentionAge time.Duration, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:        store,
		graceWindow:  graceWindow,
		retentionAge: retentionAge,
		logger:       logger,
	}
}

// ExpireOverdue marks every posting whose deadline has passed as EXPIRED.
// Expiry outranks re-observation, so it also covers entries that were just
// refreshed; it runs across all sources since it only depends on stored data.
func (l *Lifecycle) ExpireOverdue(now time.Time) (int64, error) {
	expired, err := l.store.ExpireOverdue(now)
	if err != nil {
		return 0, fmt.Errorf("expiring overdue postings: %w", err)
	}
	if expired > 0 {
		l.logger.Info("expired overdue postings", "count", expired)
	}
	return expired, nil
}

// DeactivateStale marks the source's ACTIVE postings not observed within the
// grace window as INACTIVE. Callers must invoke it only after the source's
// fetch succeeded, so a source outage never masquerades as mass removal.
func (l *Lifecycle) DeactivateStale(source model.Source, now time.Time) (int64, error) {
	deactivated, err := l.store.DeactivateStale(source, now.Add(-l.graceWindow))
	if err != nil {
		return 0, fmt.Errorf("deactivating stale %s postings: %w", source, err)
	}
	if deactivated > 0 {
		l.logger.Info("deactivated postings no longer observed", "source", source, "count", deactivated)
	}
	return deactivated, nil
}

// Sweep hard-deletes EXPIRED and INACTIVE postings that dropped out of
// observation longer than the retention age ago. Favorite and applied rows
// are never deleted.
func (l *Lifecycle) Sweep(now time.Time) (int64, error) {
	deleted, err := l.store.Sweep(now.Add(-l.retentionAge))
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	l.logger.Info("retention sweep complete", "deleted", deleted, "retention_age", l.retentionAge)
	return deleted, nil
}
