package textutil

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// FoldName returns the NFKC-normalised, case-folded form of s with runs of
// whitespace collapsed to one space.
func FoldName(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(folder.String(s)), " ")
}

// EqualNames reports whether two non-empty names fold to the same form.
func EqualNames(a, b string) bool {
	fa := FoldName(a)
	return fa != "" && fa == FoldName(b)
}

// SearchForm folds s, transliterates it to ASCII and keeps only letters,
// digits and single spaces.
func SearchForm(s string) string {
	folded := FoldName(s)
	if folded == "" {
		return ""
	}
	ascii := strings.ToLower(unidecode.Unidecode(folded))
	var b strings.Builder
	b.Grow(len(ascii))
	space := false
	for _, r := range ascii {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
