package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/keyword"
	"github.com/tkoide/kwprobe/internal/provider"
	"github.com/tkoide/kwprobe/internal/quota"
	"github.com/tkoide/kwprobe/internal/report"
	"github.com/tkoide/kwprobe/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	log zerolog.Logger

	// newCaller builds the model-call collaborator; swapped in tests.
	newCaller func() (analysis.Caller, error)
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, log zerolog.Logger) *Handlers {
	h := &Handlers{db: db, cfg: cfg, log: log}
	h.newCaller = func() (analysis.Caller, error) {
		return provider.New(cfg, log)
	}
	return h
}

// Request types for each tool

// AnalyzeRequest represents the arguments for probe_analyze.
type AnalyzeRequest struct {
	Keyword        string   `json:"keyword"`
	Prompts        []string `json:"prompts"`
	Iterations     int      `json:"iterations,omitempty"`
	Context        string   `json:"context,omitempty"`
	PersonaID      string   `json:"persona_id,omitempty"`
	UseSearch      bool     `json:"use_search,omitempty"`
	ExpandedSearch bool     `json:"expanded_search,omitempty"`
	TargetURL      string   `json:"target_url,omitempty"`
}

// HistoryRequest represents the arguments for probe_history.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SessionRequest represents the arguments for probe_session_get and
// probe_session_delete.
type SessionRequest struct {
	ID int64 `json:"id"`
}

// ReportRequest represents the arguments for probe_report.
type ReportRequest struct {
	SessionIDs []int64 `json:"session_ids"`
}

// SessionSummary is one probe_history entry.
type SessionSummary struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	Keyword    string `json:"keyword"`
	Prompts    int    `json:"prompts"`
	Iterations int    `json:"iterations"`
	UseSearch  bool   `json:"use_search"`
}

// Handler implementations

// HandleAnalyze handles the probe_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	analysisReq := analysis.Request{
		Keyword:         input.Keyword,
		Iterations:      input.Iterations,
		Context:         input.Context,
		UseSearch:       input.UseSearch,
		ExpandedSearch:  input.ExpandedSearch,
		ExpandedOptions: keyword.DefaultExpandedOptions(),
		PersonaID:       input.PersonaID,
	}
	if analysisReq.Iterations == 0 {
		analysisReq.Iterations = 3
	}
	for _, p := range input.Prompts {
		analysisReq.Prompts = append(analysisReq.Prompts, analysis.PromptSpec{
			ID:    session.NewID(),
			Value: p,
		})
	}
	if input.TargetURL != "" {
		analysisReq.TargetURLEnabled = true
		analysisReq.TargetURL = input.TargetURL
	}

	if input.PersonaID != "" && input.Context == "" {
		persona, err := session.GetPersona(h.db, input.PersonaID)
		if err != nil {
			return errorResult(err), nil
		}
		analysisReq.Context = persona.Content
	}
	analysisReq.ContextEnabled = analysisReq.Context != ""

	caller, err := h.newCaller()
	if err != nil {
		return errorResult(err), nil
	}
	limiter := quota.New(h.db, h.cfg.DailyLimit, h.log)
	orch := analysis.NewOrchestrator(caller, limiter, h.log)

	results, err := orch.Analyze(ctx, analysisReq)
	if err != nil {
		return errorResult(err), nil
	}

	saved, err := session.BuildAndSave(h.db, analysisReq, results)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(saved)
}

// HandleHistory handles the probe_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	sessions, err := session.LoadHistory(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:         s.ID,
			Timestamp:  s.Timestamp,
			Keyword:    s.Keyword,
			Prompts:    len(s.Prompts),
			Iterations: s.Iterations,
			UseSearch:  s.UseSearch,
		})
	}

	return successResult(map[string]any{"sessions": summaries})
}

// HandleSessionGet handles the probe_session_get tool call.
func (h *Handlers) HandleSessionGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := session.GetSession(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSessionDelete handles the probe_session_delete tool call.
func (h *Handlers) HandleSessionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := session.DeleteSession(h.db, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": input.ID})
}

// HandleReport handles the probe_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	switch {
	case len(input.SessionIDs) == 1:
		s, err := session.GetSession(h.db, input.SessionIDs[0])
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"markdown": report.Single(s)})
	case len(input.SessionIDs) >= 2:
		sessions, err := session.SelectForReport(h.db, input.SessionIDs)
		if err != nil {
			return errorResult(err), nil
		}
		if _, err := session.RecordMultiAnalysis(h.db, sessions); err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"markdown": report.Multi(sessions)})
	default:
		return errorResult(errors.NewInvalidRequest("session_ids is required")), nil
	}
}

// HandleUsage handles the probe_usage tool call.
func (h *Handlers) HandleUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limiter := quota.New(h.db, h.cfg.DailyLimit, h.log)
	count, err := limiter.Count()
	if err != nil {
		return errorResult(errors.NewStorage(err)), nil
	}
	remaining, err := limiter.Remaining()
	if err != nil {
		return errorResult(errors.NewStorage(err)), nil
	}

	return successResult(map[string]any{
		"used":      count,
		"remaining": remaining,
		"limit":     h.cfg.DailyLimit,
	})
}

// errorResult creates an MCP error result from any error.
// Internal error details are withheld to avoid leaking file paths or
// upstream payloads.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if pErr, ok := err.(*errors.ProbeError); ok {
		errorObj := map[string]any{
			"code":    pErr.Code,
			"message": pErr.Message,
			"status":  pErr.Status,
		}
		if pErr.Code != errors.ErrInternal && pErr.Details != nil {
			errorObj["details"] = pErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

