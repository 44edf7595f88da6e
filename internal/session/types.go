// Package session persists analysis runs: assembling results into
// sessions, the session history, saved personas, and multi-session
// comparison records.
package session

import (
	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/keyword"
)

// Session is one completed analysis run: the full configuration snapshot
// plus all per-prompt results. Immutable once persisted except for
// deletion.
type Session struct {
	// ID is the creation time in unix milliseconds; it doubles as the
	// history sort key.
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`

	Keyword string                   `json:"keyword"`
	Prompts []analysis.PromptSpec    `json:"prompts"`
	Results []analysis.AnalysisResult `json:"results"`

	Iterations      int                     `json:"iterations"`
	Context         string                  `json:"context,omitempty"`
	ContextEnabled  bool                    `json:"is_context_enabled"`
	UseSearch       bool                    `json:"use_search"`
	ExpandedSearch  bool                    `json:"is_expanded_search"`
	ExpandedOptions keyword.ExpandedOptions `json:"expanded_search_options"`

	PersonaID string `json:"persona_id,omitempty"`

	TargetURLEnabled bool   `json:"is_target_url_enabled"`
	TargetURL        string `json:"target_url,omitempty"`
}

// Persona is a reusable context profile. Default personas ship with the
// tool and cannot be edited or deleted.
type Persona struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// MultiAnalysis records one multi-session comparison: which sessions were
// compared and for which keyword.
type MultiAnalysis struct {
	ID         int64   `json:"id"`
	Timestamp  string  `json:"timestamp"`
	SessionIDs []int64 `json:"session_ids"`
	Keyword    string  `json:"keyword"`
}

// DefaultPersonas returns the built-in persona profiles.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:        "default_ayesha",
			Name:      "Ayesha",
			Content:   "I am a 34-year old black woman living in Atlanta, Georgia starting my own fashion business. I have never started my own business before but have been able to sell some of my clothing as a vendor at small events. I am looking for grant opportunities to help me scale and mentorship to figure out where to go next to grow my business.",
			IsDefault: true,
		},
		{
			ID:        "default_karla",
			Name:      "Karla",
			Content:   "I am a 63-year old black woman living in Tulsa, Oklahoma running a small transportation business to help the elderly move around in my community. I have been able to operate this business for over a year, am making some money, and would now like help with scaling the business to add a new vehicle to our fleet. I am looking for grants to help with this.",
			IsDefault: true,
		},
		{
			ID:        "default_rodrigo",
			Name:      "Rodrigo",
			Content:   "I am a 2nd generation immigrant from Venezuela running my own life coaching business to help other children of immigrants figure out where to go in life. I have a few clients that I know personally but am looking for help to grow my business.",
			IsDefault: true,
		},
		{
			ID:        "default_eugene",
			Name:      "Eugene",
			Content:   "I am a member of the LGBT and AAPI communities in Cleveland, Ohio who wants to start my own accounting business for young people in my communities. I am looking for mentorship on how to launch this business, guidance on how to go about this, and grant funding opportunities would be a plus.",
			IsDefault: true,
		},
	}
}
