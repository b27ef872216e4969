package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/normalize"
)

// SourceRunner binds a decorated adapter chain to the undecorated adapter's
// cursor capability. Decorators hide optional interfaces, so the cursor-aware
// reference is carried separately when the source has one.
type SourceRunner struct {
	Adapter model.SourceAdapter
	Cursor  model.CursorAware // nil for sources without an incremental feed
}

// Runner orchestrates one full sync run: per source, fetch → normalize →
// reconcile → annotate → deactivate, with checkpoints around the whole path.
// Sources run concurrently and fail independently.
type Runner struct {
	sources    []SourceRunner
	store      Catalogue
	reconciler *Reconciler
	annotation *AnnotationStage
	lifecycle  *Lifecycle
	notifier   model.Notifier
	logger     *slog.Logger
	dryRun     bool

	// Per-source run lease. A scheduled run that overlaps a still-running
	// one skips the busy source instead of queueing behind it.
	leases map[model.Source]*sync.Mutex
}

// NewRunner wires the orchestrator.
func NewRunner(
	sources []SourceRunner,
	store Catalogue,
	reconciler *Reconciler,
	annotation *AnnotationStage,
	lifecycle *Lifecycle,
	notifier model.Notifier,
	logger *slog.Logger,
) *Runner {
	leases := make(map[model.Source]*sync.Mutex, len(sources))
	for _, src := range sources {
		leases[src.Adapter.Source()] = &sync.Mutex{}
	}
	return &Runner{
		sources:    sources,
		store:      store,
		reconciler: reconciler,
		annotation: annotation,
		lifecycle:  lifecycle,
		notifier:   notifier,
		logger:     logger,
		leases:     leases,
	}
}

// SetDryRun makes Run report what it would change without writing anything.
func (r *Runner) SetDryRun(dryRun bool) { r.dryRun = dryRun }

// RunStats aggregates one run across sources.
type RunStats struct {
	RunID       string
	Fetched     int
	New         int
	Reobserved  int
	Duplicates  int
	Irrelevant  int // skipped via cache plus rejected by the classifier
	Deactivated int64
	Expired     int64
	Warnings    int
	Skipped     []model.Source // lease busy
	Failed      []model.Source
}

// Run executes one sync run. Per-source failures are isolated: the failing
// source records a failed checkpoint and the others proceed. Run returns an
// error only when every source failed.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", stats.RunID)
	started := time.Now()
	logger.Info("sync run starting", "sources", len(r.sources), "dry_run", r.dryRun)

	var mu sync.Mutex
	var newPostings []model.Posting

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range r.sources {
		g.Go(func() error {
			source := src.Adapter.Source()
			lease := r.leases[source]
			if !lease.TryLock() {
				logger.Warn("previous run still holds the source lease, skipping", "source", source)
				mu.Lock()
				stats.Skipped = append(stats.Skipped, source)
				mu.Unlock()
				return nil
			}
			defer lease.Unlock()

			kept, result, err := r.runSource(gctx, logger, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("source run failed", "source", source, "error", err)
				stats.Failed = append(stats.Failed, source)
				return nil
			}
			stats.Fetched += result.fetched
			stats.New += len(result.reconciled.New)
			stats.Reobserved += result.reconciled.Reobserved
			stats.Duplicates += result.reconciled.Duplicates
			stats.Irrelevant += result.reconciled.Irrelevant + result.removed
			stats.Deactivated += result.deactivated
			stats.Warnings += result.reconciled.Warnings + result.warnings
			newPostings = append(newPostings, kept...)
			return nil
		})
	}
	_ = g.Wait()

	if !r.dryRun {
		expired, err := r.lifecycle.ExpireOverdue(time.Now())
		if err != nil {
			logger.Error("deadline expiry failed", "error", err)
			stats.Warnings++
		}
		stats.Expired = expired
	}

	if !r.dryRun && len(newPostings) > 0 && r.notifier != nil {
		if err := r.notifier.Notify(newPostings); err != nil {
			logger.Warn("notification failed", "error", err)
			stats.Warnings++
		}
	}

	logger.Info("sync run finished",
		"duration", time.Since(started).Round(time.Millisecond),
		"fetched", stats.Fetched,
		"new", stats.New,
		"reobserved", stats.Reobserved,
		"duplicates", stats.Duplicates,
		"irrelevant", stats.Irrelevant,
		"deactivated", stats.Deactivated,
		"expired", stats.Expired,
		"warnings", stats.Warnings,
		"failed_sources", len(stats.Failed),
	)

	if len(r.sources) > 0 && len(stats.Failed) == len(r.sources) {
		return stats, fmt.Errorf("all %d sources failed", len(r.sources))
	}
	return stats, nil
}

// sourceResult carries the per-source intermediate numbers into the shared
// stats under one lock acquisition.
type sourceResult struct {
	fetched     int
	reconciled  *ReconcileResult
	removed     int
	warnings    int
	deactivated int64
}

func (r *Runner) runSource(ctx context.Context, logger *slog.Logger, src SourceRunner) ([]model.Posting, *sourceResult, error) {
	source := src.Adapter.Source()
	now := time.Now()

	checkpoint, err := r.store.GetCheckpoint(source)
	if err != nil {
		return nil, nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	priorCursor := ""
	if checkpoint != nil {
		priorCursor = checkpoint.Cursor
	}
	if src.Cursor != nil {
		src.Cursor.SetCursor(priorCursor)
	}

	candidates, err := src.Adapter.FetchCandidates(ctx)
	if err != nil {
		// A failed fetch is recorded with the prior cursor so the next run
		// resumes from the last fully processed position.
		if !r.dryRun {
			saveErr := r.store.SaveCheckpoint(model.Checkpoint{
				Source:      source,
				LastSync:    now,
				Cursor:      priorCursor,
				LastOutcome: "failed",
			})
			if saveErr != nil {
				logger.Warn("recording failed checkpoint", "source", source, "error", saveErr)
			}
		}
		return nil, nil, fmt.Errorf("fetching candidates: %w", err)
	}

	records := make([]normalize.Record, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, normalize.Apply(c))
	}

	if r.dryRun {
		result, err := r.dryRunReconcile(logger, source, records)
		return nil, result, err
	}

	reconciled := r.reconciler.Reconcile(now, records)
	annotated := r.annotation.Run(ctx, reconciled.New)

	deactivated, err := r.lifecycle.DeactivateStale(source, now)
	if err != nil {
		logger.Warn("stale deactivation failed", "source", source, "error", err)
		annotated.Warnings++
	}

	cursor := priorCursor
	if src.Cursor != nil {
		cursor = src.Cursor.Cursor()
	}
	err = r.store.SaveCheckpoint(model.Checkpoint{
		Source:      source,
		LastSync:    now,
		Cursor:      cursor,
		LastOutcome: "ok",
		Added:       len(annotated.Kept),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("committing checkpoint: %w", err)
	}

	return annotated.Kept, &sourceResult{
		fetched:     len(candidates),
		reconciled:  reconciled,
		removed:     annotated.Removed,
		warnings:    annotated.Warnings,
		deactivated: deactivated,
	}, nil
}

// dryRunReconcile classifies the batch with read-only lookups and logs what a
// real run would do.
func (r *Runner) dryRunReconcile(logger *slog.Logger, source model.Source, records []normalize.Record) (*sourceResult, error) {
	reconciled := &ReconcileResult{}
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if seen[rec.Key] {
			reconciled.Duplicates++
			continue
		}
		seen[rec.Key] = true

		irrelevant, err := r.store.IsIrrelevant(rec.Key)
		if err != nil {
			return nil, fmt.Errorf("irrelevant-cache lookup: %w", err)
		}
		if irrelevant {
			reconciled.Irrelevant++
			continue
		}

		existing, err := r.store.GetByKey(rec.Key)
		if err != nil {
			return nil, fmt.Errorf("catalogue lookup: %w", err)
		}
		if existing != nil {
			reconciled.Reobserved++
			continue
		}

		reconciled.New = append(reconciled.New, newPosting(rec, time.Now()))
		logger.Info("would add posting", "source", source, "key", rec.Key, "title", rec.Title)
	}

	return &sourceResult{fetched: len(records), reconciled: reconciled}, nil
}
