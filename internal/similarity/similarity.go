// Package similarity provides pure text similarity scoring: stop-word
// filtered cosine similarity over word frequency vectors, and Jaccard
// similarity over normalized string sets.
package similarity

import (
	"math"
	"regexp"
	"strings"
)

// stopWords is a common list of English stop words excluded from
// cosine similarity vocabulary.
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"against": true, "all": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "arent": true, "as": true, "at": true,
	"be": true, "because": true, "been": true, "before": true, "being": true,
	"below": true, "between": true, "both": true, "but": true, "by": true,
	"cant": true, "cannot": true, "could": true, "couldnt": true,
	"did": true, "didnt": true, "do": true, "does": true, "doesnt": true,
	"doing": true, "dont": true, "down": true, "during": true,
	"each": true, "few": true, "for": true, "from": true, "further": true,
	"had": true, "hadnt": true, "has": true, "hasnt": true, "have": true,
	"havent": true, "having": true, "he": true, "hed": true, "hell": true,
	"hes": true, "her": true, "here": true, "heres": true, "hers": true,
	"herself": true, "him": true, "himself": true, "his": true, "how": true,
	"hows": true, "i": true, "id": true, "ill": true, "im": true, "ive": true,
	"if": true, "in": true, "into": true, "is": true, "isnt": true,
	"it": true, "its": true, "itself": true, "lets": true, "me": true,
	"more": true, "most": true, "mustnt": true, "my": true, "myself": true,
	"no": true, "nor": true, "not": true, "of": true, "off": true,
	"on": true, "once": true, "only": true, "or": true, "other": true,
	"ought": true, "our": true, "ours": true, "ourselves": true, "out": true,
	"over": true, "own": true, "same": true, "shant": true, "she": true,
	"shed": true, "shell": true, "shes": true, "should": true,
	"shouldnt": true, "so": true, "some": true, "such": true, "than": true,
	"that": true, "thats": true, "the": true, "their": true, "theirs": true,
	"them": true, "themselves": true, "then": true, "there": true,
	"theres": true, "these": true, "they": true, "theyd": true,
	"theyll": true, "theyre": true, "theyve": true, "this": true,
	"those": true, "through": true, "to": true, "too": true, "under": true,
	"until": true, "up": true, "very": true, "was": true, "wasnt": true,
	"we": true, "wed": true, "well": true, "were": true, "weve": true,
	"werent": true, "what": true, "whats": true, "when": true, "whens": true,
	"where": true, "wheres": true, "which": true, "while": true, "who": true,
	"whos": true, "whom": true, "why": true, "whys": true, "with": true,
	"wont": true, "would": true, "wouldnt": true, "you": true, "youd": true,
	"youll": true, "youre": true, "youve": true, "your": true, "yours": true,
	"yourself": true, "yourselves": true,
}

// punctRegex matches everything except word characters and whitespace.
var punctRegex = regexp.MustCompile(`[^\w\s]`)

// Normalize trims leading/trailing whitespace and lowercases a string.
// Used for set comparison and citation title dedup keys.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tokenize lowercases text, strips punctuation, splits on whitespace, and
// drops stop words and empty tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := punctRegex.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if !stopWords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// frequencyMap builds a word frequency vector from tokens.
func frequencyMap(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return freq
}

// Cosine calculates the cosine similarity between two texts over their
// stop-word-filtered word frequency vectors. Returns a score in [0, 1].
// Returns 0 if either text is empty or tokenizes to nothing.
func Cosine(textA, textB string) float64 {
	if textA == "" || textB == "" {
		return 0
	}

	tokensA := Tokenize(textA)
	tokensB := Tokenize(textB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	freqA := frequencyMap(tokensA)
	freqB := frequencyMap(tokensB)

	vocabulary := make(map[string]bool, len(freqA)+len(freqB))
	for tok := range freqA {
		vocabulary[tok] = true
	}
	for tok := range freqB {
		vocabulary[tok] = true
	}

	var dotProduct, magA, magB float64
	for tok := range vocabulary {
		fa := float64(freqA[tok])
		fb := float64(freqB[tok])
		dotProduct += fa * fb
		magA += fa * fa
		magB += fb * fb
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)
	if magA == 0 || magB == 0 {
		return 0
	}

	return dotProduct / (magA * magB)
}

// SetSimilarity calculates the Jaccard similarity between two lists of
// strings (e.g. citation titles). Elements are normalized before set
// construction, so comparison is insensitive to case and surrounding
// whitespace. Two empty lists are identical in their lack of members,
// so the result is 1.
func SetSimilarity(listA, listB []string) float64 {
	setA := toSet(listA)
	setB := toSet(listB)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// toSet builds a set of normalized, non-empty-insensitive members.
func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[Normalize(s)] = true
	}
	return set
}
