package ai

import (
	"context"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// NopAnnotator is a no-op annotator used when ai is disabled entirely.
// Every candidate is kept, unsummarized, with no LLM calls.
type NopAnnotator struct{}

// NewNopAnnotator returns a NopAnnotator.
func NewNopAnnotator() *NopAnnotator {
	return &NopAnnotator{}
}

// Annotate marks the candidate relevant without touching the LLM.
func (n *NopAnnotator) Annotate(_ context.Context, _ model.Candidate) model.Annotation {
	return model.Annotation{Relevant: true}
}
