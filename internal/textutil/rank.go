package textutil

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// TitleDistance scores how well title matches query; lower is better.
// Exact matches score 0, prefixes 10, substrings 50 and anything else
// 100 plus the Levenshtein distance of the search forms.
func TitleDistance(query, title string) int {
	q := SearchForm(query)
	t := SearchForm(title)
	switch {
	case q == "" || t == "":
		return 1000
	case q == t:
		return 0
	case strings.HasPrefix(t, q):
		return 10
	case strings.Contains(t, q):
		return 50
	}
	return 100 + fuzzy.LevenshteinDistance(q, t)
}
