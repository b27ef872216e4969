package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/normalize"
)

// Catalogue is the persistence surface the pipeline needs. *store.Store
// satisfies it.
type Catalogue interface {
	GetByKey(key string) (*model.Posting, error)
	Insert(p *model.Posting) error
	UpdateObserved(p *model.Posting) error
	SetSummary(key, summary string) error
	MoveToIrrelevant(key string, source model.Source, reason string) error
	IsIrrelevant(key string) (bool, error)
	DeactivateStale(source model.Source, cutoff time.Time) (int64, error)
	ExpireOverdue(now time.Time) (int64, error)
	Sweep(cutoff time.Time) (int64, error)
	GetCheckpoint(source model.Source) (*model.Checkpoint, error)
	SaveCheckpoint(cp model.Checkpoint) error
}

// Annotator decides whether a new posting is relevant and optionally produces
// a summary. Implementations must fail open: a broken annotation service
// yields a relevant verdict, never an error.
type Annotator interface {
	Annotate(ctx context.Context, c model.Candidate) model.Annotation
}

// Reconciler folds a batch of normalized records into the catalogue.
type Reconciler struct {
	store  Catalogue
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the catalogue.
func NewReconciler(store Catalogue, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	New        []model.Posting // inserted this pass, pending annotation
	Reobserved int
	Duplicates int // in-batch duplicates, first occurrence wins
	Irrelevant int // skipped via the irrelevant cache
	Warnings   int // per-record persistence failures
}

// Reconcile applies one batch. For each record: in-batch duplicates after the
// first are dropped, keys in the irrelevant cache are skipped, existing
// entries are refreshed (an INACTIVE entry seen again goes back to ACTIVE),
// and unknown keys are inserted as ACTIVE. A failure persisting one record is
// logged and counted, never fatal for the batch.
func (r *Reconciler) Reconcile(now time.Time, records []normalize.Record) *ReconcileResult {
	result := &ReconcileResult{}
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if seen[rec.Key] {
			result.Duplicates++
			continue
		}
		seen[rec.Key] = true

		irrelevant, err := r.store.IsIrrelevant(rec.Key)
		if err != nil {
			result.Warnings++
			r.logger.Warn("irrelevant-cache lookup failed", "key", rec.Key, "error", err)
			continue
		}
		if irrelevant {
			result.Irrelevant++
			continue
		}

		existing, err := r.store.GetByKey(rec.Key)
		if err != nil {
			result.Warnings++
			r.logger.Warn("catalogue lookup failed", "key", rec.Key, "error", err)
			continue
		}

		if existing != nil {
			if err := r.reobserve(existing, rec, now); err != nil {
				result.Warnings++
				r.logger.Warn("re-observation update failed", "key", rec.Key, "error", err)
				continue
			}
			result.Reobserved++
			continue
		}

		p := newPosting(rec, now)
		if err := r.store.Insert(&p); err != nil {
			result.Warnings++
			r.logger.Warn("insert failed", "key", rec.Key, "error", err)
			continue
		}
		result.New = append(result.New, p)
	}

	return result
}

// reobserve refreshes an existing entry with the latest upstream data. An
// INACTIVE entry is promoted back to ACTIVE; EXPIRED is terminal and keeps
// its status even when the ad is somehow still published.
func (r *Reconciler) reobserve(existing *model.Posting, rec normalize.Record, now time.Time) error {
	status := existing.Status
	if status == model.StatusInactive {
		status = model.StatusActive
	}

	updated := *existing
	updated.Title = rec.Title
	updated.Company = rec.Company
	updated.Location = rec.Location
	updated.URL = rec.URL
	updated.JobType = rec.JobType
	updated.Keyword = rec.Keyword
	updated.Description = rec.Description
	updated.Deadline = rec.Deadline
	updated.Published = rec.Published
	updated.LastChecked = now
	updated.Status = status

	return r.store.UpdateObserved(&updated)
}

func newPosting(rec normalize.Record, now time.Time) model.Posting {
	return model.Posting{
		Key:         rec.Key,
		Source:      rec.Source,
		Title:       rec.Title,
		Company:     rec.Company,
		Location:    rec.Location,
		URL:         rec.URL,
		JobType:     rec.JobType,
		Keyword:     rec.Keyword,
		Description: rec.Description,
		Deadline:    rec.Deadline,
		Published:   rec.Published,
		FirstSeen:   now,
		LastChecked: now,
		Status:      model.StatusActive,
	}
}
