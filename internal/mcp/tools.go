package mcp

import "github.com/mark3labs/mcp-go/mcp"

var analyzeToolDef = mcp.NewTool("probe_analyze",
	mcp.WithDescription("Run a keyword analysis: probe the model with each prompt over several iterations and report whether the target keyword appears, how consistent responses are, and which sources were cited. The session is saved to history."),
	mcp.WithString("keyword", mcp.Required(),
		mcp.Description("Target keyword to look for in responses")),
	mcp.WithArray("prompts", mcp.Required(),
		mcp.Description("Prompts to probe with (1-5)"),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithNumber("iterations",
		mcp.Description("Trials per prompt (1-5, default 3)")),
	mcp.WithString("context",
		mcp.Description("Context sent as a system instruction with every prompt")),
	mcp.WithString("persona_id",
		mcp.Description("Use a saved persona's content as the context")),
	mcp.WithBoolean("use_search",
		mcp.Description("Enable Google Search grounding and citation analysis")),
	mcp.WithBoolean("expanded_search",
		mcp.Description("Match keyword variants (case, apostrophes, spacing, website forms)")),
	mcp.WithString("target_url",
		mcp.Description("Bare domain to track in responses and citation links, e.g. example.org")),
)

var historyToolDef = mcp.NewTool("probe_history",
	mcp.WithDescription("List saved analysis sessions, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum sessions to return (default 20)")),
)

var sessionGetToolDef = mcp.NewTool("probe_session_get",
	mcp.WithDescription("Fetch one saved session with its full results."),
	mcp.WithNumber("id", mcp.Required(),
		mcp.Description("Session id")),
)

var sessionDeleteToolDef = mcp.NewTool("probe_session_delete",
	mcp.WithDescription("Delete a saved session from history."),
	mcp.WithNumber("id", mcp.Required(),
		mcp.Description("Session id")),
)

var reportToolDef = mcp.NewTool("probe_report",
	mcp.WithDescription("Render a markdown report. One session id gives a detailed report; 2-3 ids sharing a keyword give a comparison report."),
	mcp.WithArray("session_ids", mcp.Required(),
		mcp.Description("Session ids (1 for a single report, 2-3 for a comparison)"),
		mcp.Items(map[string]any{"type": "number"})),
)

var usageToolDef = mcp.NewTool("probe_usage",
	mcp.WithDescription("Report model-call usage against the rolling daily limit."),
)
