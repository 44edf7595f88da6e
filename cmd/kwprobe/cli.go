package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/keyword"
	"github.com/tkoide/kwprobe/internal/provider"
	"github.com/tkoide/kwprobe/internal/quota"
	"github.com/tkoide/kwprobe/internal/report"
	"github.com/tkoide/kwprobe/internal/session"
	"github.com/tkoide/kwprobe/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, log zerolog.Logger) *cli.App {
	app := &cli.App{
		Name:    "kwprobe",
		Usage:   "Keyword presence analyzer for model responses",
		Version: Version,
		Commands: []*cli.Command{
			analyzeCmd(db, cfg, log),
			historyCmd(db),
			sessionsCmd(db),
			personasCmd(db),
			reportCmd(db),
			usageCmd(db, cfg, log),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// analyzeCmd creates the analyze command.
func analyzeCmd(db *sql.DB, cfg *config.Config, log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Run a keyword analysis and save the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Required: true, Usage: "Target keyword to look for"},
			&cli.StringSliceFlag{Name: "prompt", Aliases: []string{"p"}, Required: true, Usage: "Prompt to probe with (repeatable, max 5)"},
			&cli.IntFlag{Name: "iterations", Aliases: []string{"i"}, Value: 3, Usage: "Trials per prompt (1-5)"},
			&cli.StringFlag{Name: "context", Aliases: []string{"c"}, Usage: "Context sent as a system instruction"},
			&cli.StringFlag{Name: "persona", Usage: "Persona id whose content is used as context"},
			&cli.BoolFlag{Name: "search", Aliases: []string{"s"}, Usage: "Enable Google Search grounding"},
			&cli.BoolFlag{Name: "expanded", Aliases: []string{"e"}, Usage: "Match keyword variants (case, apostrophes, spacing, website forms)"},
			&cli.StringFlag{Name: "target-url", Usage: "Bare domain to track, e.g. example.org"},
		},
		Action: func(c *cli.Context) error {
			req := analysis.Request{
				Keyword:         c.String("keyword"),
				Iterations:      c.Int("iterations"),
				Context:         c.String("context"),
				UseSearch:       c.Bool("search"),
				ExpandedSearch:  c.Bool("expanded"),
				ExpandedOptions: keyword.DefaultExpandedOptions(),
				PersonaID:       c.String("persona"),
			}
			for _, p := range c.StringSlice("prompt") {
				req.Prompts = append(req.Prompts, analysis.PromptSpec{
					ID:    session.NewID(),
					Value: p,
				})
			}
			if target := c.String("target-url"); target != "" {
				req.TargetURLEnabled = true
				req.TargetURL = target
			}

			if req.PersonaID != "" && req.Context == "" {
				persona, err := session.GetPersona(db, req.PersonaID)
				if err != nil {
					return outputError(err)
				}
				req.Context = persona.Content
			}
			req.ContextEnabled = req.Context != ""

			caller, err := provider.New(cfg, log)
			if err != nil {
				return outputError(err)
			}
			limiter := quota.New(db, cfg.DailyLimit, log)
			orch := analysis.NewOrchestrator(caller, limiter, log)

			results, err := orch.Analyze(c.Context, req)
			if err != nil {
				return outputError(err)
			}

			saved, err := session.BuildAndSave(db, req, results)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(saved)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List saved analysis sessions, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum sessions to show"},
		},
		Action: func(c *cli.Context) error {
			sessions, err := session.LoadHistory(db)
			if err != nil {
				return outputError(err)
			}
			if limit := c.Int("limit"); len(sessions) > limit {
				sessions = sessions[:limit]
			}

			type entry struct {
				ID         int64  `json:"id"`
				Timestamp  string `json:"timestamp"`
				Keyword    string `json:"keyword"`
				Prompts    int    `json:"prompts"`
				Iterations int    `json:"iterations"`
				UseSearch  bool   `json:"use_search"`
			}
			entries := make([]entry, 0, len(sessions))
			for _, s := range sessions {
				entries = append(entries, entry{
					ID:         s.ID,
					Timestamp:  s.Timestamp,
					Keyword:    s.Keyword,
					Prompts:    len(s.Prompts),
					Iterations: s.Iterations,
					UseSearch:  s.UseSearch,
				})
			}
			return outputJSON(entries)
		},
	}
}

// sessionsCmd creates the sessions command with show/delete subcommands.
func sessionsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect or delete saved sessions",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show one session with full results",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseSessionID(c)
					if err != nil {
						return outputError(err)
					}
					s, err := session.GetSession(db, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(s)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a session from history",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseSessionID(c)
					if err != nil {
						return outputError(err)
					}
					if err := session.DeleteSession(db, id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": id})
				},
			},
		},
	}
}

// personasCmd creates the personas command with list/save/delete subcommands.
func personasCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "personas",
		Usage: "Manage reusable context personas",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List default and custom personas",
				Action: func(c *cli.Context) error {
					personas, err := session.ListPersonas(db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(personas)
				},
			},
			{
				Name:  "save",
				Usage: "Create or update a custom persona",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Persona name"},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Required: true, Usage: "Persona content used as analysis context"},
				},
				Action: func(c *cli.Context) error {
					p, err := session.SavePersona(db, c.String("name"), c.String("content"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(p)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a custom persona",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("persona id is required"))
					}
					id := c.Args().First()
					if err := session.DeletePersona(db, id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": id})
				},
			},
		},
	}
}

// reportCmd creates the report command.
func reportCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Render a markdown report for 1 session or a comparison for 2-3",
		ArgsUsage: "<id> [id] [id]",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved comparison records",
				Action: func(c *cli.Context) error {
					records, err := session.LoadMultiAnalyses(db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(records)
				},
			},
			{
				Name:      "show",
				Usage:     "Re-render a saved comparison by record id",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseSessionID(c)
					if err != nil {
						return outputError(err)
					}
					_, sessions, err := session.GetMultiAnalysis(db, id)
					if err != nil {
						return outputError(err)
					}
					fmt.Fprintln(os.Stdout, report.Multi(sessions))
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved comparison record",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseSessionID(c)
					if err != nil {
						return outputError(err)
					}
					if err := session.DeleteMultiAnalysis(db, id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": id})
				},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("at least one session id is required"))
			}
			ids := make([]int64, 0, c.NArg())
			for _, arg := range c.Args().Slice() {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid session id %q", arg)))
				}
				ids = append(ids, id)
			}

			if len(ids) == 1 {
				s, err := session.GetSession(db, ids[0])
				if err != nil {
					return outputError(err)
				}
				fmt.Fprintln(os.Stdout, report.Single(s))
				return nil
			}

			sessions, err := session.SelectForReport(db, ids)
			if err != nil {
				return outputError(err)
			}
			if _, err := session.RecordMultiAnalysis(db, sessions); err != nil {
				return outputError(err)
			}
			fmt.Fprintln(os.Stdout, report.Multi(sessions))
			return nil
		},
	}
}

// usageCmd creates the usage command.
func usageCmd(db *sql.DB, cfg *config.Config, log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show model-call usage against the rolling daily limit",
		Action: func(c *cli.Context) error {
			limiter := quota.New(db, cfg.DailyLimit, log)
			count, err := limiter.Count()
			if err != nil {
				return outputError(errors.NewStorage(err))
			}
			remaining, err := limiter.Remaining()
			if err != nil {
				return outputError(errors.NewStorage(err))
			}
			return outputJSON(map[string]any{
				"used":      count,
				"remaining": remaining,
				"limit":     cfg.DailyLimit,
			})
		},
	}
}

// serveCmd creates the serve command for the web UI.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the session history web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			srv := web.NewServer(db, cfg, Version, bind, port)
			return web.Run(srv)
		},
	}
}

// Helper functions

// parseSessionID reads the positional session id argument.
func parseSessionID(c *cli.Context) (int64, error) {
	if c.NArg() < 1 {
		return 0, errors.NewInvalidRequest("session id is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid session id %q", c.Args().First()))
	}
	return id, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if pErr, ok := err.(*errors.ProbeError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", pErr.Code, pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
