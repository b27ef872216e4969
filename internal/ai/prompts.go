package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/relevance.md
var relevancePromptRaw string

//go:embed prompts/summary.md
var summaryPromptRaw string

// RelevanceTemplate is the parsed prompt template for the relevance check.
// Parsed once at package init; reused on every Annotate call.
var RelevanceTemplate = template.Must(template.New("relevance").Parse(relevancePromptRaw))

// SummaryTemplate is the parsed prompt template for the Norwegian summary.
var SummaryTemplate = template.Must(template.New("summary").Parse(summaryPromptRaw))
