package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"probe_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"probe_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"probe_session_get": {
		def:     sessionGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionGet },
	},
	"probe_session_delete": {
		def:     sessionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionDelete },
	},
	"probe_report": {
		def:     reportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReport },
	},
	"probe_usage": {
		def:     usageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsage },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with kwprobe tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, version string, log zerolog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"kwprobe",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, log)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string, log zerolog.Logger) error {
	s := NewServer(db, cfg, version, log)
	return server.ServeStdio(s)
}
