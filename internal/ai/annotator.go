package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/retry"
)

// Description excerpts sent to the LLM are capped so a single oversized ad
// cannot blow the token budget.
const (
	maxRelevanceChars = 1500
	maxSummaryChars   = 3000
)

// LLMAnnotator implements pipeline.Annotator using an LLM: a relevance check
// against the configured keywords and an optional Norwegian summary. Both
// stages fail open so an LLM outage never drops a posting.
type LLMAnnotator struct {
	provider      LLMProvider
	relevanceTmpl *template.Template
	summaryTmpl   *template.Template
	classify      bool
	summarize     bool
	policy        retry.Policy
	logger        *slog.Logger
}

// NewLLMAnnotator creates an annotator over provider. The classify and
// summarize toggles disable the corresponding stage without swapping the
// annotator out.
func NewLLMAnnotator(provider LLMProvider, classify, summarize bool, policy retry.Policy, logger *slog.Logger) *LLMAnnotator {
	return &LLMAnnotator{
		provider:      provider,
		relevanceTmpl: RelevanceTemplate,
		summaryTmpl:   SummaryTemplate,
		classify:      classify,
		summarize:     summarize,
		policy:        policy,
		logger:        logger,
	}
}

// rawRelevance is the JSON shape returned by the LLM (matches relevanceSchema).
type rawRelevance struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

// promptData carries the candidate fields the prompt templates reference.
type promptData struct {
	Title       string
	Keyword     string
	Company     string
	Description string
}

// Annotate classifies c and, when it passes, summarizes it. Every failure
// path returns a relevant annotation: an unreachable or misbehaving LLM must
// never cause a posting to be discarded or a run to fail.
func (a *LLMAnnotator) Annotate(ctx context.Context, c model.Candidate) model.Annotation {
	ann := model.Annotation{Relevant: true}

	if a.classify {
		verdict, err := a.checkRelevance(ctx, c)
		if err != nil {
			a.logger.Warn("relevance check failed, keeping posting", "title", c.Title, "error", err)
		} else {
			ann.Relevant = verdict.Relevant
			ann.Reason = verdict.Reason
		}
	}

	if !ann.Relevant {
		return ann
	}

	if a.summarize && c.Description != "" {
		summary, err := a.summarizeDescription(ctx, c)
		if err != nil {
			a.logger.Warn("summary generation failed", "title", c.Title, "error", err)
		} else {
			ann.Summary = summary
		}
	}

	return ann
}

func (a *LLMAnnotator) checkRelevance(ctx context.Context, c model.Candidate) (*rawRelevance, error) {
	var promptBuf bytes.Buffer
	err := a.relevanceTmpl.Execute(&promptBuf, promptData{
		Title:       c.Title,
		Keyword:     c.Keyword,
		Company:     c.Company,
		Description: truncate(c.Description, maxRelevanceChars),
	})
	if err != nil {
		return nil, fmt.Errorf("render relevance prompt: %w", err)
	}

	var raw string
	err = a.policy.Do(ctx, a.logger, "llm relevance", func(ctx context.Context) error {
		var err error
		raw, err = a.provider.CompleteStructured(ctx, promptBuf.String())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	// Structured outputs guarantee valid JSON conforming to relevanceSchema,
	// so no code-fence stripping or defensive trimming is needed.
	var verdict rawRelevance
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("unmarshal relevance JSON: %w", err)
	}
	return &verdict, nil
}

func (a *LLMAnnotator) summarizeDescription(ctx context.Context, c model.Candidate) (string, error) {
	var promptBuf bytes.Buffer
	err := a.summaryTmpl.Execute(&promptBuf, promptData{
		Title:       c.Title,
		Description: truncate(c.Description, maxSummaryChars),
	})
	if err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}

	var raw string
	err = a.policy.Do(ctx, a.logger, "llm summary", func(ctx context.Context) error {
		var err error
		raw, err = a.provider.Complete(ctx, promptBuf.String())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}

	return strings.TrimSpace(raw), nil
}

// truncate cuts s to at most n runes so multi-byte Norwegian characters are
// never split mid-sequence.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
