package report

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/db"
	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/quota"
	"github.com/tkoide/kwprobe/internal/session"
)

type fixedCaller struct {
	text      string
	citations []analysis.Citation
}

func (c *fixedCaller) Call(_ context.Context, _, _ string, _ bool) (*analysis.ModelResult, error) {
	return &analysis.ModelResult{Text: c.text, Citations: c.citations}, nil
}

// TestFullWorkflow exercises the complete analysis lifecycle:
// analyze → save → history → fetch → report → delete → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	caller := &fixedCaller{
		text: "Solar farm output doubled last year.",
		citations: []analysis.Citation{
			{URI: "https://energy.example/report", Title: "Energy Report"},
		},
	}
	limiter := quota.New(database, 50, zerolog.Nop())
	orch := analysis.NewOrchestrator(caller, limiter, zerolog.Nop())

	req := analysis.Request{
		Keyword:    "solar farm",
		Prompts:    []analysis.PromptSpec{{ID: "p1", Value: "what happened to renewables?"}},
		Iterations: 2,
		UseSearch:  true,
	}

	// 1. Analyze
	results, err := orch.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].SummaryFound)

	// 2. Save
	saved, err := session.BuildAndSave(database, req, results)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	// 3. History contains the session
	history, err := session.LoadHistory(database)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, saved.ID, history[0].ID)

	// 4. Fetch by id
	fetched, err := session.GetSession(database, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "solar farm", fetched.Keyword)
	require.Len(t, fetched.Results[0].Iterations, 2)

	// 5. Report reflects the run
	md := Single(fetched)
	require.Contains(t, md, "# Keyword Analysis Report")
	require.Contains(t, md, "Found in 2/2 iterations")
	require.Contains(t, md, "[Energy Report](https://energy.example/report)")

	// 6. Quota was consumed, one call per trial
	used, err := limiter.Count()
	require.NoError(t, err)
	require.Equal(t, 2, used)

	// 7. Delete
	require.NoError(t, session.DeleteSession(database, saved.ID))

	// 8. Fetch - verify not found
	_, err = session.GetSession(database, saved.ID)
	require.Error(t, err)
	var probeErr *errors.ProbeError
	require.ErrorAs(t, err, &probeErr)
	require.Equal(t, errors.ErrNotFound, probeErr.Code)
}
