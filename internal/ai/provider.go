package ai

import "context"

// LLMProvider sends a prompt to an LLM and returns the raw text response.
// Complete returns free-form text; CompleteStructured returns a JSON document
// conforming to the relevance schema. Used only by LLMAnnotator.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteStructured(ctx context.Context, prompt string) (string, error)
}
