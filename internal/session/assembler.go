package session

import (
	"database/sql"
	"time"

	"github.com/tkoide/kwprobe/internal/analysis"
)

// timestampLayout matches the human-readable stamp shown in history
// listings and reports.
const timestampLayout = "1/2/2006, 3:04:05 PM"

// Build assembles a session from a request and its results, stamping a
// fresh id from the current time.
func Build(req analysis.Request, results []analysis.AnalysisResult, now time.Time) Session {
	return Session{
		ID:               now.UnixMilli(),
		Timestamp:        now.Format(timestampLayout),
		Keyword:          req.Keyword,
		Prompts:          req.Prompts,
		Results:          results,
		Iterations:       req.Iterations,
		Context:          req.Context,
		ContextEnabled:   req.ContextEnabled,
		UseSearch:        req.UseSearch,
		ExpandedSearch:   req.ExpandedSearch,
		ExpandedOptions:  req.ExpandedOptions,
		PersonaID:        req.PersonaID,
		TargetURLEnabled: req.TargetURLEnabled,
		TargetURL:        req.TargetURL,
	}
}

// BuildAndSave assembles a session and appends it to the history.
func BuildAndSave(database *sql.DB, req analysis.Request, results []analysis.AnalysisResult) (Session, error) {
	s := Build(req, results, time.Now())
	if err := AppendSession(database, s); err != nil {
		return Session{}, err
	}
	return s, nil
}
