package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/keyword"
	"github.com/tkoide/kwprobe/internal/similarity"
)

// targetURLRe accepts bare domains like "example.org" or "docs.example.co.uk".
// Schemes and paths are rejected; the report layer does substring containment
// over response bodies, so only the host form is meaningful.
var targetURLRe = regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate rejects requests that would waste quota: a blank keyword, no
// usable prompts, an out-of-range iteration count, or a malformed target URL.
func (req *Request) Validate() error {
	if strings.TrimSpace(req.Keyword) == "" {
		return errors.NewInvalidRequest("keyword is required")
	}
	if req.Iterations < 1 || req.Iterations > config.MaxIterations {
		return errors.NewInvalidRequest(fmt.Sprintf("iterations must be between 1 and %d", config.MaxIterations))
	}
	if len(req.Prompts) == 0 || len(req.Prompts) > config.MaxPrompts {
		return errors.NewInvalidRequest(fmt.Sprintf("between 1 and %d prompts are required", config.MaxPrompts))
	}
	usable := false
	for _, p := range req.Prompts {
		if strings.TrimSpace(p.Value) != "" {
			usable = true
			break
		}
	}
	if !usable {
		return errors.NewInvalidRequest("at least one prompt must be non-empty")
	}
	if req.TargetURLEnabled {
		u := strings.TrimSpace(req.TargetURL)
		if u != "" && !targetURLRe.MatchString(u) {
			return errors.NewInvalidRequest("target URL must be a bare domain like example.org")
		}
	}
	return nil
}

// Orchestrator fans analysis runs out across prompts and trials and folds
// the raw trial records into scored, deduplicated results.
type Orchestrator struct {
	runner  *TrialRunner
	limiter Limiter
	log     zerolog.Logger
}

// NewOrchestrator wires the analysis core over a model caller and a quota
// limiter.
func NewOrchestrator(caller Caller, limiter Limiter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		runner:  NewTrialRunner(caller, limiter, log),
		limiter: limiter,
		log:     log,
	}
}

// Analyze runs the full trial matrix for the request and returns one
// result per prompt, in prompt order. It fails up front on invalid input
// or an exhausted quota; past that point per-trial failures degrade to
// error-status records instead of aborting the run.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) ([]AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	remaining, err := o.limiter.Remaining()
	if err != nil {
		o.log.Warn().Err(err).Msg("usage lookup failed, proceeding")
	} else if remaining <= 0 {
		return nil, errors.NewQuotaExceeded(o.limiter.Limit())
	}

	o.log.Info().
		Str("keyword", req.Keyword).
		Int("prompts", len(req.Prompts)).
		Int("iterations", req.Iterations).
		Bool("search", req.UseSearch).
		Msg("starting analysis")

	results := make([]AnalysisResult, len(req.Prompts))

	// Prompts are independent; one prompt's trials failing must not
	// cancel another's, so every group func returns nil.
	var g errgroup.Group
	for i, p := range req.Prompts {
		i, p := i, p
		g.Go(func() error {
			results[i] = o.analyzePrompt(ctx, i+1, p.Value, &req)
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// analyzePrompt runs all trials for one prompt and post-processes them.
func (o *Orchestrator) analyzePrompt(ctx context.Context, promptNumber int, prompt string, req *Request) AnalysisResult {
	result := AnalysisResult{
		PromptNumber: promptNumber,
		Prompt:       prompt,
	}

	if strings.TrimSpace(prompt) == "" {
		result.Iterations = []IterationRecord{{
			IterationNumber: 1,
			Status:          keyword.StatusError,
			Error:           "empty prompt",
			Citations:       []Citation{},
		}}
		result.SummaryText = summaryText(0, req.Iterations)
		return result
	}

	contextText := ""
	if req.ContextEnabled {
		contextText = req.Context
	}
	runControl := req.ContextEnabled && strings.TrimSpace(req.Context) != ""

	iterations := make([]IterationRecord, req.Iterations)
	var control IterationRecord

	// WaitGroup rather than errgroup here: all trials for the prompt
	// must finish even when some fail, and results land in their slot
	// by iteration number regardless of completion order.
	var wg sync.WaitGroup
	for n := 1; n <= req.Iterations; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			iterations[n-1] = o.runner.Run(ctx, n, prompt, contextText, req.UseSearch)
		}(n)
	}
	if runControl {
		wg.Add(1)
		go func() {
			defer wg.Done()
			control = o.runner.Run(ctx, ControlIteration, prompt, "", req.UseSearch)
		}()
	}
	wg.Wait()

	if runControl {
		result.NoContext = &control
	}
	o.score(iterations, result.NoContext, req)

	found := 0
	for i := range iterations {
		if iterations[i].Status.Found() {
			found++
		}
	}
	result.Iterations = iterations
	result.SummaryFound = found > 0
	result.SummaryText = summaryText(found, req.Iterations)
	return result
}

// score applies keyword matching, similarity scores, and citation dedup
// across a prompt's trials. Iterations must be ordered ascending by
// iteration number before the call; dedup flags depend on it.
func (o *Orchestrator) score(iterations []IterationRecord, control *IterationRecord, req *Request) {
	match := func(rec *IterationRecord) {
		if !rec.HasResponse() {
			return
		}
		if keyword.Match(*rec.Response, req.Keyword, req.ExpandedSearch, req.ExpandedOptions) {
			rec.Status = keyword.StatusFound
		} else {
			rec.Status = keyword.StatusNotFound
		}
	}
	for i := range iterations {
		match(&iterations[i])
	}
	if control != nil {
		match(control)
	}

	baseline := &iterations[0]
	if !baseline.HasResponse() {
		return
	}

	seen := NewSeenSet()
	if req.UseSearch {
		seen = MarkUnique(baseline.Citations, seen, true)
	}
	for i := 1; i < len(iterations); i++ {
		rec := &iterations[i]
		if !rec.HasResponse() {
			continue
		}
		score := similarity.Cosine(*baseline.Response, *rec.Response)
		rec.SimilarityScore = &score
		if req.UseSearch {
			cscore := similarity.SetSimilarity(baseline.CitationTitles(), rec.CitationTitles())
			rec.CitationSimilarityScore = &cscore
			seen = MarkUnique(rec.Citations, seen, false)
		}
	}

	// The control trial is scored against the baseline but its sources
	// stay out of the seen set; it answers "does context change the
	// answer", not "which sources are new".
	if control != nil && control.HasResponse() {
		score := similarity.Cosine(*baseline.Response, *control.Response)
		control.SimilarityScore = &score
		if req.UseSearch {
			cscore := similarity.SetSimilarity(baseline.CitationTitles(), control.CitationTitles())
			control.CitationSimilarityScore = &cscore
		}
	}
}

func summaryText(found, total int) string {
	if found > 0 {
		return fmt.Sprintf("Found in %d/%d iterations", found, total)
	}
	return fmt.Sprintf("Not found in %d iterations", total)
}
