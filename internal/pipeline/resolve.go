package pipeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"curator/internal/host"
	"curator/internal/provider/tmdb"
	"curator/internal/services"
	"curator/internal/textutil"
)

// acceptDistance is the worst ranked score still taken as a search match:
// any prefix or substring hit, or a close Levenshtein match.
const acceptDistance = 110

var pathHints = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\{tmdb(?:id)?[=-](\d+)\}`),
	regexp.MustCompile(`(?i)\[tmdb(?:id)?[=-](\d+)\]`),
	regexp.MustCompile(`(?i)(?:^|[^a-z0-9])tmdb(?:id)?-(\d+)(?:[^0-9]|$)`),
}

// explicitID returns the TMDB id carried by the host item or the envelope.
func explicitID(item *host.Item, envelope map[string]string) int64 {
	if item != nil {
		if id := parseID(item.ProviderID("Tmdb")); id > 0 {
			return id
		}
	}
	for k, v := range envelope {
		if strings.EqualFold(k, "tmdb") {
			return parseID(v)
		}
	}
	return 0
}

// idFromPath extracts a TMDB id hint such as "{tmdbid=123}", "[tmdbid-123]"
// or "tmdb-123" from the deepest path segment carrying one.
func idFromPath(path string) int64 {
	path = filepath.ToSlash(strings.TrimSpace(path))
	if path == "" {
		return 0
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		for _, pattern := range pathHints {
			if m := pattern.FindStringSubmatch(segments[i]); m != nil {
				if id := parseID(m[1]); id > 0 {
					return id
				}
			}
		}
	}
	return 0
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// rankResult scores a search hit; lower is better.
func rankResult(title string, year int, result tmdb.Result) int {
	score := textutil.TitleDistance(title, result.DisplayTitle())
	if alt := firstNonEmpty(result.OriginalTitle, result.OriginalName); alt != "" {
		score = min(score, textutil.TitleDistance(title, alt))
	}
	if year > 0 {
		if got := result.Year(); got > 0 {
			switch diff := int(math.Abs(float64(got - year))); {
			case diff == 0:
			case diff == 1:
				score += 5
			default:
				score += 40
			}
		}
	}
	return score
}

// bestMatch picks the highest ranked acceptable result. Ties keep provider
// order.
func bestMatch(title string, year int, results []tmdb.Result) (tmdb.Result, bool) {
	best, bestScore := tmdb.Result{}, math.MaxInt
	for _, r := range results {
		if r.ID <= 0 {
			continue
		}
		if score := rankResult(title, year, r); score < bestScore {
			best, bestScore = r, score
		}
	}
	return best, bestScore <= acceptDistance
}

// searchID runs the title/year search. The year-restricted search is retried
// without the year before giving up.
func (o *Orchestrator) searchID(ctx context.Context, title, mediaType string, year int) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, services.Wrap(services.ErrUnitFatal, "resolve", "search", "no title to search for", nil)
	}
	years := []int{year}
	if year > 0 {
		years = append(years, 0)
	}
	for _, y := range years {
		resp, err := o.primary.Search(ctx, title, mediaType, y)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			if c := services.Cancelled(ctx.Err()); c != nil {
				return 0, c
			}
			return 0, services.Wrap(services.ErrProviderFetch, "resolve", "search", title, err)
		}
		if match, ok := bestMatch(title, year, resp.Results); ok {
			return match.ID, nil
		}
	}
	return 0, services.Wrap(services.ErrUnitFatal, "resolve", "search", "no resolvable external id for "+title, nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
