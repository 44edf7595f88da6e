package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/errors"
	"github.com/tkoide/kwprobe/internal/report"
	"github.com/tkoide/kwprobe/internal/session"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleSessions handles GET /sessions, the analysis history.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := session.LoadHistory(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "sessions", SessionsPageData{
		PageData: PageData{
			Title:   "Sessions",
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Sessions: sessions,
	})
}

// HandleSessionDetail handles GET /sessions/{id}, one session with its
// report rendered inline.
func (h *Handlers) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := session.GetSession(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	found := 0
	for _, res := range s.Results {
		if res.SummaryFound {
			found++
		}
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Session %d", s.ID),
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Session:      s,
		ReportHTML:   renderMarkdown(report.Single(s)),
		PromptCount:  len(s.Prompts),
		ResultTotals: fmt.Sprintf("%d of %d prompts surfaced the keyword", found, len(s.Results)),
	})
}

// HandleSessionDelete handles DELETE /sessions/{id}.
func (h *Handlers) HandleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := session.DeleteSession(h.db, id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX callers swap the list; plain callers get a redirect.
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/sessions")
		w.WriteHeader(http.StatusOK)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// HandleSessionReport handles GET /sessions/{id}/report, serving the raw
// markdown report for download.
func (h *Handlers) HandleSessionReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := session.GetSession(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"kwprobe-session-%d.md\"", s.ID))
	_, _ = w.Write([]byte(report.Single(s)))
}

// HandleCompare handles GET /compare?ids=1,2,3, the multi-session
// comparison report.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	sessions, err := session.SelectForReport(h.db, ids)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if _, err := session.RecordMultiAnalysis(h.db, sessions); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "compare", ComparePageData{
		PageData: PageData{
			Title:   "Comparison",
			Version: h.renderer.version,
			Nav:     "compare",
		},
		Sessions:   sessions,
		ReportHTML: renderMarkdown(report.Multi(sessions)),
	})
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest("invalid session id")
	}
	return id, nil
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.NewInvalidRequest("ids query parameter is required")
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid session id %q", p))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
