package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// AnnotationStage drives the annotator over newly inserted postings with a
// bounded worker pool. Only new entries are annotated; re-observed ones keep
// their original verdict and summary.
type AnnotationStage struct {
	annotator   Annotator
	store       Catalogue
	concurrency int
	logger      *slog.Logger
}

// NewAnnotationStage creates the stage. Concurrency below 1 is clamped to 1.
func NewAnnotationStage(annotator Annotator, store Catalogue, concurrency int, logger *slog.Logger) *AnnotationStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AnnotationStage{
		annotator:   annotator,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// AnnotateResult summarizes one annotation pass.
type AnnotateResult struct {
	Kept     []model.Posting // still in the catalogue, summaries filled in
	Removed  int             // moved to the irrelevant cache
	Warnings int
}

// Run annotates postings and applies the verdicts: an irrelevant posting is
// moved to the irrelevant cache with its reason, a relevant one gets its
// summary stored. Store failures are logged and counted; the posting stays
// catalogued.
func (s *AnnotationStage) Run(ctx context.Context, postings []model.Posting) *AnnotateResult {
	result := &AnnotateResult{}
	if len(postings) == 0 {
		return result
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, p := range postings {
		g.Go(func() error {
			ann := s.annotator.Annotate(ctx, model.Candidate{
				Source:      p.Source,
				Title:       p.Title,
				Company:     p.Company,
				Keyword:     p.Keyword,
				Description: p.Description,
			})

			mu.Lock()
			defer mu.Unlock()

			if !ann.Relevant {
				if err := s.store.MoveToIrrelevant(p.Key, p.Source, ann.Reason); err != nil {
					result.Warnings++
					s.logger.Warn("irrelevant move failed, keeping posting", "key", p.Key, "error", err)
					result.Kept = append(result.Kept, p)
					return nil
				}
				result.Removed++
				s.logger.Info("posting rejected by classifier", "key", p.Key, "reason", ann.Reason)
				return nil
			}

			if ann.Summary != "" {
				if err := s.store.SetSummary(p.Key, ann.Summary); err != nil {
					result.Warnings++
					s.logger.Warn("storing summary failed", "key", p.Key, "error", err)
				} else {
					p.Summary = ann.Summary
				}
			}
			result.Kept = append(result.Kept, p)
			return nil
		})
	}

	// Workers never return errors; failures degrade to warnings above.
	_ = g.Wait()

	return result
}
