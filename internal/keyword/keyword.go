// Package keyword decides whether a keyword (optionally expanded into
// casing, spacing, apostrophe, and domain variants) occurs in a model
// response body.
package keyword

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MatchStatus is the tri-state outcome of a keyword check. A failed trial
// is distinguishable from a response that simply lacks the keyword.
type MatchStatus int

const (
	StatusNotFound MatchStatus = iota
	StatusFound
	StatusError
)

// Found reports whether the status is StatusFound.
func (s MatchStatus) Found() bool {
	return s == StatusFound
}

// Text returns the user-facing status label.
func (s MatchStatus) Text() string {
	switch s {
	case StatusFound:
		return "Found"
	case StatusError:
		return "N/A (Error)"
	default:
		return "Not Found"
	}
}

// MarshalJSON encodes the status as a stable string token.
func (s MatchStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusFound:
		return json.Marshal("found")
	case StatusError:
		return json.Marshal("error")
	default:
		return json.Marshal("not_found")
	}
}

// UnmarshalJSON decodes the string token form. Unknown tokens map to
// StatusNotFound so older persisted sessions with missing fields load.
func (s *MatchStatus) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("match status: %w", err)
	}
	switch token {
	case "found":
		*s = StatusFound
	case "error":
		*s = StatusError
	default:
		*s = StatusNotFound
	}
	return nil
}

// ExpandedOptions selects which keyword variants participate in an
// expanded search.
type ExpandedOptions struct {
	Lowercase         bool `json:"lowercase"`
	Capitalize        bool `json:"capitalize"`
	RemoveApostrophes bool `json:"removeApostrophes"`
	NoSpaces          bool `json:"noSpaces"`
	Website           bool `json:"website"`

	// Partial is reserved for future substring-tolerant matching.
	// It is carried through configuration but has no effect.
	Partial bool `json:"partial"`
}

// DefaultExpandedOptions returns the option set enabled by default when
// expanded search is turned on.
func DefaultExpandedOptions() ExpandedOptions {
	return ExpandedOptions{
		Lowercase:         true,
		Capitalize:        true,
		RemoveApostrophes: true,
		NoSpaces:          true,
		Website:           true,
	}
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Variants builds the deduplicated variant set for a keyword under the
// given options. The base keyword is always included.
func Variants(kw string, opts ExpandedOptions) []string {
	if kw == "" {
		return nil
	}

	variants := []string{kw}

	if opts.Lowercase {
		variants = append(variants, strings.ToLower(kw))
	}
	if opts.Capitalize {
		variants = append(variants, titleCase(kw))
	}
	if opts.RemoveApostrophes {
		variants = append(variants, strings.ReplaceAll(kw, "'", ""))
	}
	if opts.NoSpaces {
		variants = append(variants, whitespaceRegex.ReplaceAllString(kw, ""))
	}
	if opts.Website {
		domain := strings.ToLower(whitespaceRegex.ReplaceAllString(strings.ReplaceAll(kw, "'", ""), ""))
		variants = append(variants, domain+".org", domain+".com", domain+".net")
	}

	seen := make(map[string]bool, len(variants))
	unique := make([]string, 0, len(variants))
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	return unique
}

// titleCase capitalizes the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Match reports whether the keyword occurs in the response text. Base mode
// is case-insensitive substring containment; expanded mode matches any
// variant from Variants. Empty keyword or text never matches.
func Match(text, kw string, expanded bool, opts ExpandedOptions) bool {
	if text == "" || kw == "" {
		return false
	}

	if !expanded {
		return strings.Contains(strings.ToLower(text), strings.ToLower(kw))
	}

	lowerText := strings.ToLower(text)
	for _, v := range Variants(kw, opts) {
		if strings.Contains(lowerText, strings.ToLower(v)) {
			return true
		}
	}
	return false
}
