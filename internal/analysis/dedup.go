package analysis

import "github.com/tkoide/kwprobe/internal/similarity"

// NewSeenSet returns an empty citation dedup set. Keys are normalized
// citation titles.
func NewSeenSet() map[string]bool {
	return make(map[string]bool)
}

// MarkUnique annotates each citation as first-seen or repeat and returns
// the updated seen set. Identity is the trimmed, lowercased title; URIs
// are ignored because grounding redirect URLs differ per call even for
// the same source.
//
// When baseline is true every citation is marked unique unconditionally
// and seeds the set. Callers must process iterations in ascending order
// so "unique" means "first appearance in this prompt's run".
func MarkUnique(citations []Citation, seen map[string]bool, baseline bool) map[string]bool {
	for i := range citations {
		key := similarity.Normalize(citations[i].Title)
		unique := baseline || !seen[key]
		citations[i].IsUnique = &unique
		seen[key] = true
	}
	return seen
}
