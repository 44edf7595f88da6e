// Package report renders analysis sessions as markdown documents: a
// detailed report for one session and a comparison report for 2-3
// sessions sharing a keyword.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/session"
	"github.com/tkoide/kwprobe/internal/similarity"
)

// sessionStats aggregates iteration outcomes across all prompts of a
// session.
type sessionStats struct {
	totalIterations int
	foundIterations int
	uniqueCitations int
}

func statsFor(s *session.Session) sessionStats {
	var st sessionStats
	for _, r := range s.Results {
		for _, it := range r.Iterations {
			st.totalIterations++
			if it.Status.Found() {
				st.foundIterations++
			}
			for _, c := range it.Citations {
				if c.IsUnique != nil && *c.IsUnique {
					st.uniqueCitations++
				}
			}
		}
	}
	return st
}

func (st sessionStats) successRate() int {
	if st.totalIterations == 0 {
		return 0
	}
	return int(float64(st.foundIterations)/float64(st.totalIterations)*100 + 0.5)
}

// Single renders one session as a markdown report.
func Single(s *session.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Keyword Analysis Report\n\n")
	fmt.Fprintf(&b, "**Keyword:** %s  \n", s.Keyword)
	fmt.Fprintf(&b, "**Generated:** %s  \n", s.Timestamp)
	fmt.Fprintf(&b, "**Iterations per prompt:** %d  \n", s.Iterations)
	fmt.Fprintf(&b, "**Google Search grounding:** %s  \n", onOff(s.UseSearch))
	fmt.Fprintf(&b, "**Expanded keyword matching:** %s  \n", onOff(s.ExpandedSearch))
	if s.ContextEnabled && s.Context != "" {
		fmt.Fprintf(&b, "**Context:** %s  \n", s.Context)
	}
	if s.TargetURLEnabled && strings.TrimSpace(s.TargetURL) != "" {
		fmt.Fprintf(&b, "**Target URL:** %s  \n", s.TargetURL)
	}

	st := statsFor(s)
	fmt.Fprintf(&b, "\n**Overall:** keyword found in %d of %d iterations (%d%%)\n", st.foundIterations, st.totalIterations, st.successRate())

	for _, r := range s.Results {
		writePromptSection(&b, s, &r)
	}

	if s.TargetURLEnabled && strings.TrimSpace(s.TargetURL) != "" {
		writeTargetURLSection(&b, s)
	}

	return b.String()
}

func writePromptSection(b *strings.Builder, s *session.Session, r *analysis.AnalysisResult) {
	fmt.Fprintf(b, "\n## Prompt #%d\n\n", r.PromptNumber)
	fmt.Fprintf(b, "> %s\n\n", r.Prompt)
	fmt.Fprintf(b, "%s\n\n", r.SummaryText)

	fmt.Fprintf(b, "| Iteration | Status | Text Similarity | Citation Similarity |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for _, it := range r.Iterations {
		fmt.Fprintf(b, "| %d | %s | %s | %s |\n",
			it.IterationNumber, it.StatusText(), score(it.SimilarityScore), score(it.CitationSimilarityScore))
	}
	if r.NoContext != nil {
		fmt.Fprintf(b, "| no context | %s | %s | %s |\n",
			r.NoContext.StatusText(), score(r.NoContext.SimilarityScore), score(r.NoContext.CitationSimilarityScore))
	}

	if mean, ok := meanSimilarity(r.Iterations); ok {
		fmt.Fprintf(b, "\nMean text similarity to the first response: %.2f\n", mean)
	}

	if s.UseSearch {
		writeCitationTable(b, s, r)
	}
}

// meanSimilarity averages the text similarity of the scored iterations.
// The baseline carries no score and does not count.
func meanSimilarity(iterations []analysis.IterationRecord) (float64, bool) {
	var sum float64
	var n int
	for _, it := range iterations {
		if it.SimilarityScore != nil {
			sum += *it.SimilarityScore
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// writeCitationTable lists each prompt's first-seen sources with how
// often they recurred across iterations.
func writeCitationTable(b *strings.Builder, s *session.Session, r *analysis.AnalysisResult) {
	counts := make(map[string]int)
	for _, it := range r.Iterations {
		for _, c := range it.Citations {
			counts[similarity.Normalize(c.Title)]++
		}
	}

	type uniqueCitation struct {
		analysis.Citation
		iteration int
		total     int
	}
	var unique []uniqueCitation
	for _, it := range r.Iterations {
		for _, c := range it.Citations {
			if c.IsUnique != nil && *c.IsUnique {
				unique = append(unique, uniqueCitation{
					Citation:  c,
					iteration: it.IterationNumber,
					total:     counts[similarity.Normalize(c.Title)],
				})
			}
		}
	}

	if len(unique) == 0 {
		fmt.Fprintf(b, "\nNo new or unique citations were found for this prompt.\n")
		return
	}

	target := strings.ToLower(strings.TrimSpace(s.TargetURL))
	fmt.Fprintf(b, "\n### Sources\n\n")
	fmt.Fprintf(b, "| # | Source | Total Appearances | First Appearance |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for i, c := range unique {
		title := c.Title
		if s.TargetURLEnabled && target != "" && strings.Contains(strings.ToLower(c.URI), target) {
			title += " (target)"
		}
		fmt.Fprintf(b, "| %d | [%s](%s) | %d | Iteration #%d |\n", i+1, title, c.URI, c.total, c.iteration)
	}
}

// writeTargetURLSection reports how often the target domain surfaced in
// response bodies and citation links.
func writeTargetURLSection(b *strings.Builder, s *session.Session) {
	target := strings.ToLower(strings.TrimSpace(s.TargetURL))

	inResponses, inCitations := 0, 0
	for _, r := range s.Results {
		for _, it := range r.Iterations {
			if it.Response != nil && strings.Contains(strings.ToLower(*it.Response), target) {
				inResponses++
			}
			for _, c := range it.Citations {
				if strings.Contains(strings.ToLower(c.URI), target) {
					inCitations++
				}
			}
		}
	}

	fmt.Fprintf(b, "\n## Target URL\n\n")
	fmt.Fprintf(b, "`%s` appeared in %d response(s) and %d citation link(s).\n", s.TargetURL, inResponses, inCitations)
}

// Multi renders a comparison report for sessions sharing a keyword.
func Multi(sessions []session.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Multi-Session Comparison Report\n\n")
	if len(sessions) > 0 {
		fmt.Fprintf(&b, "**Keyword:** %s  \n", sessions[0].Keyword)
	}
	fmt.Fprintf(&b, "**Sessions compared:** %d\n\n", len(sessions))

	fmt.Fprintf(&b, "| Session | Run At | Success Rate | Found | Iterations | Unique Sources |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|\n")
	for i := range sessions {
		s := &sessions[i]
		st := statsFor(s)
		fmt.Fprintf(&b, "| %d | %s | %d%% | %d | %d | %d |\n",
			i+1, s.Timestamp, st.successRate(), st.foundIterations, st.totalIterations, st.uniqueCitations)
	}

	writeSharedSources(&b, sessions)
	return b.String()
}

// writeSharedSources lists citation titles that surfaced in every
// compared session.
func writeSharedSources(b *strings.Builder, sessions []session.Session) {
	if len(sessions) < 2 {
		return
	}

	perSession := make([]map[string]string, len(sessions))
	for i := range sessions {
		titles := make(map[string]string)
		for _, r := range sessions[i].Results {
			for _, it := range r.Iterations {
				for _, c := range it.Citations {
					titles[similarity.Normalize(c.Title)] = c.Title
				}
			}
		}
		perSession[i] = titles
	}

	var shared []string
	for key, display := range perSession[0] {
		inAll := true
		for _, titles := range perSession[1:] {
			if _, ok := titles[key]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, display)
		}
	}
	sort.Strings(shared)

	fmt.Fprintf(b, "\n## Sources Seen in Every Session\n\n")
	if len(shared) == 0 {
		fmt.Fprintf(b, "No source appeared in all compared sessions.\n")
		return
	}
	for _, title := range shared {
		fmt.Fprintf(b, "- %s\n", title)
	}
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
