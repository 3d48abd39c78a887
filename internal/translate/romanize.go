package translate

import (
	"context"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"curator/internal/language"
)

// RomanizeEngine transliterates terms into ASCII offline. It only produces
// useful output for Latin-script targets and never fails.
type RomanizeEngine struct{}

// Name identifies the engine in cache entries.
func (RomanizeEngine) Name() string {
	return "unidecode"
}

// BatchTranslate romanizes every term that is not already ASCII.
func (RomanizeEngine) BatchTranslate(ctx context.Context, terms []string, _ string, _ string) (map[string]string, error) {
	out := make(map[string]string, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		romanized := strings.Join(strings.Fields(unidecode.Unidecode(term)), " ")
		if romanized != "" && romanized != term {
			out[term] = romanized
		}
	}
	return out, nil
}

func servesTarget(target string) bool {
	return language.Script(target) == "Latn"
}
