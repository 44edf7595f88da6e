package analysis

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/keyword"
)

// TrialRunner executes a single model trial: one quota debit, one call,
// one IterationRecord. It never returns an error; failures are folded
// into the record so a failed trial cannot abort its siblings.
type TrialRunner struct {
	caller  Caller
	limiter Limiter
	log     zerolog.Logger
}

// NewTrialRunner wires a runner over the model caller and quota limiter.
func NewTrialRunner(caller Caller, limiter Limiter, log zerolog.Logger) *TrialRunner {
	return &TrialRunner{caller: caller, limiter: limiter, log: log}
}

// Run performs one trial for the given prompt. iteration is recorded
// verbatim into the result; pass ControlIteration for the no-context
// control trial.
func (r *TrialRunner) Run(ctx context.Context, iteration int, prompt, contextText string, useSearch bool) IterationRecord {
	rec := IterationRecord{
		IterationNumber: iteration,
		Citations:       []Citation{},
	}

	ok, err := r.limiter.CheckAndIncrement()
	if err != nil {
		// A broken usage store should not block analysis. Log and
		// proceed; the persisted count self-corrects on the next
		// successful write.
		r.log.Warn().Err(err).Msg("usage tracking failed, proceeding")
	} else if !ok {
		rec.Status = keyword.StatusError
		rec.Error = errors.NewQuotaExceeded(0).Message
		return rec
	}

	res, err := r.caller.Call(ctx, prompt, contextText, useSearch)
	if err != nil {
		r.log.Debug().Err(err).Int("iteration", iteration).Msg("trial failed")
		rec.Status = keyword.StatusError
		rec.Error = err.Error()
		return rec
	}

	text := res.Text
	rec.Response = &text
	if len(res.Citations) > 0 {
		rec.Citations = res.Citations
	}
	return rec
}
