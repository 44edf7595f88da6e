// Package analysis implements the probing core: fanning out concurrent
// model trials per prompt, scoring responses against the first-iteration
// baseline, and deduplicating citation sources across iterations.
package analysis

import (
	"context"

	"github.com/tkoide/kwprobe/internal/keyword"
)

// ControlIteration is the sentinel iteration number reserved for the
// no-context control trial.
const ControlIteration = 0

// PromptSpec is one user-entered prompt in a bounded list.
type PromptSpec struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Citation is one grounding source attached to a model response.
// IsUnique is assigned during the cross-iteration dedup pass and is nil
// until then.
type Citation struct {
	URI      string `json:"uri"`
	Title    string `json:"title"`
	IsUnique *bool  `json:"is_unique,omitempty"`
}

// IterationRecord is the result of one trial: the model response plus its
// derived status and scores.
type IterationRecord struct {
	// IterationNumber is 1..N for context-enabled trials;
	// ControlIteration marks the no-context control.
	IterationNumber int `json:"iteration_number"`

	// Response is nil when the trial's model call failed.
	Response *string `json:"response,omitempty"`

	// Status records the tri-state keyword outcome; a failed call is
	// distinguishable from a response that lacks the keyword.
	Status keyword.MatchStatus `json:"status"`

	// Error is present iff the model call failed.
	Error string `json:"error,omitempty"`

	// SimilarityScore compares the response body to the baseline
	// (iteration 1). Nil for the baseline itself and whenever either
	// side has no response.
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// CitationSimilarityScore is the same baseline comparison over
	// citation title sets; populated only for search-enabled runs.
	CitationSimilarityScore *float64 `json:"citation_similarity_score,omitempty"`

	Citations []Citation `json:"citations,omitempty"`
}

// StatusText returns the user-facing label for the record's status.
func (r *IterationRecord) StatusText() string {
	return r.Status.Text()
}

// HasResponse reports whether the trial produced a response body.
func (r *IterationRecord) HasResponse() bool {
	return r.Response != nil
}

// CitationTitles returns the titles of the record's citations in order.
func (r *IterationRecord) CitationTitles() []string {
	if len(r.Citations) == 0 {
		return nil
	}
	titles := make([]string, len(r.Citations))
	for i, c := range r.Citations {
		titles[i] = c.Title
	}
	return titles
}

// AnalysisResult aggregates all trials for one prompt.
type AnalysisResult struct {
	PromptNumber int               `json:"prompt_number"`
	Prompt       string            `json:"prompt"`
	Iterations   []IterationRecord `json:"iteration_results"`

	// SummaryFound is true iff at least one iteration found the keyword.
	SummaryFound bool   `json:"summary_status"`
	SummaryText  string `json:"summary_status_text"`

	// NoContext holds the control trial, present only when context was
	// enabled and non-empty for the run.
	NoContext *IterationRecord `json:"no_context_result,omitempty"`
}

// Request is the immutable configuration for one analysis run.
type Request struct {
	Keyword         string                  `json:"keyword"`
	Prompts         []PromptSpec            `json:"prompts"`
	Iterations      int                     `json:"iterations"`
	Context         string                  `json:"context,omitempty"`
	ContextEnabled  bool                    `json:"is_context_enabled"`
	UseSearch       bool                    `json:"use_search"`
	ExpandedSearch  bool                    `json:"is_expanded_search"`
	ExpandedOptions keyword.ExpandedOptions `json:"expanded_search_options"`

	TargetURLEnabled bool   `json:"is_target_url_enabled"`
	TargetURL        string `json:"target_url,omitempty"`

	// PersonaID records which persona supplied the context, if any.
	PersonaID string `json:"persona_id,omitempty"`
}

// ModelResult is the normalized payload returned by the model-call
// collaborator. Citations are only non-empty when search grounding was
// requested and the provider returned grounding data.
type ModelResult struct {
	Text      string
	Citations []Citation
}

// Caller is the model-call collaborator consumed by the trial runner.
// Retry and timeout policy live behind this interface, not in the core.
type Caller interface {
	Call(ctx context.Context, prompt, contextText string, useSearch bool) (*ModelResult, error)
}

// Limiter guards the rolling daily call budget. CheckAndIncrement must be
// safe for concurrent use: trials for all prompts run in parallel.
type Limiter interface {
	// CheckAndIncrement records one attempt and reports whether it is
	// within budget.
	CheckAndIncrement() (bool, error)

	// Remaining reports how many calls are left in the current window.
	Remaining() (int, error)

	// Limit reports the configured window budget.
	Limit() int
}
