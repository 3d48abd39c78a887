package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/store"
	"curator/internal/textutil"
)

const maxScore = 10.0

// ReviewStore is the review queue persistence surface.
type ReviewStore interface {
	UpsertReview(ctx context.Context, entry store.ReviewEntry) (bool, error)
	ClearReview(ctx context.Context, key string) (bool, error)
}

// Input describes the unit being scored.
type Input struct {
	Key          store.Key
	DisplayName  string
	ExpectedCast int
	ActualCast   int
	Genres       []string
	// StreamInvalid marks a movie or episode whose own file never produced a
	// valid video stream.
	StreamInvalid bool
	// InvalidChildren lists owned episodes whose streams failed validation.
	InvalidChildren []string
	// Failure forces a zero score with this reason.
	Failure string
}

// Verdict is the gate's decision for one unit.
type Verdict struct {
	Score   float64
	Reason  string
	Review  bool
	Changed bool
}

// Gate scores units and routes low scores to the review queue.
type Gate struct {
	reviews   ReviewStore
	threshold float64
	relaxed   map[string]struct{}
	logger    *slog.Logger
}

// NewGate builds a gate from the quality configuration.
func NewGate(reviews ReviewStore, cfg config.Quality, logger *slog.Logger) *Gate {
	relaxed := make(map[string]struct{}, len(cfg.RelaxedGenres))
	for _, g := range cfg.RelaxedGenres {
		if folded := textutil.FoldName(g); folded != "" {
			relaxed[folded] = struct{}{}
		}
	}
	return &Gate{
		reviews:   reviews,
		threshold: cfg.Threshold,
		relaxed:   relaxed,
		logger:    logging.NewComponentLogger(logger, "quality"),
	}
}

// Threshold returns the minimum passing score.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Score computes the 0-10 confidence score and the reason it falls short, if
// it does. It has no side effects.
func (g *Gate) Score(in Input) (float64, string) {
	if in.Failure != "" {
		return 0, in.Failure
	}
	if in.StreamInvalid && in.Key.ItemType.HasOwnFile() {
		return 0, "no valid video stream"
	}
	expected := float64(in.ExpectedCast)
	relaxed := g.isRelaxed(in.Genres)
	if relaxed {
		expected /= 2
		if in.ActualCast == 0 {
			return maxScore, ""
		}
	}
	if expected <= 0 {
		if in.ActualCast > 0 {
			return maxScore, ""
		}
		return 5, "no cast information from any provider"
	}
	ratio := math.Min(float64(in.ActualCast)/expected, 1)
	score := math.Round(ratio*maxScore*10) / 10
	if score < g.threshold {
		return score, fmt.Sprintf("cast coverage %d of %d expected", in.ActualCast, in.ExpectedCast)
	}
	return score, ""
}

func (g *Gate) isRelaxed(genres []string) bool {
	for _, genre := range genres {
		if _, ok := g.relaxed[textutil.FoldName(genre)]; ok {
			return true
		}
	}
	return false
}

// Evaluate scores the unit and writes or clears its review entry. Writing an
// identical entry again leaves the queue untouched.
func (g *Gate) Evaluate(ctx context.Context, in Input) (Verdict, error) {
	score, reason := g.Score(in)
	v := Verdict{Score: score}
	reasons := make([]string, 0, 2)
	if score < g.threshold {
		if reason == "" {
			reason = fmt.Sprintf("score %.1f below threshold %.1f", score, g.threshold)
		}
		reasons = append(reasons, reason)
	}
	if n := len(in.InvalidChildren); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d episode(s) without a valid video stream", n))
		logging.WarnWithContext(g.logger, "episodes failed stream validation", "quality_child_streams",
			logging.MediaKey(string(in.Key.ItemType), in.Key.ExternalID),
			logging.String("series", in.DisplayName),
			logging.String("episodes", strings.Join(in.InvalidChildren, ",")),
			logging.String(logging.FieldErrorHint, "check the files were fully copied"),
			logging.String(logging.FieldImpact, "series routed to review"),
		)
	}
	key := in.Key.String()
	if len(reasons) > 0 {
		v.Review = true
		v.Reason = strings.Join(reasons, "; ")
		changed, err := g.reviews.UpsertReview(ctx, store.ReviewEntry{
			Key:         key,
			DisplayName: in.DisplayName,
			Reason:      v.Reason,
			Score:       score,
		})
		if err != nil {
			return v, fmt.Errorf("write review entry: %w", err)
		}
		v.Changed = changed
		if changed {
			g.logger.Info("routed to review",
				logging.MediaKey(string(in.Key.ItemType), in.Key.ExternalID),
				logging.Score(score),
				logging.String("reason", v.Reason),
			)
		}
		return v, nil
	}
	cleared, err := g.reviews.ClearReview(ctx, key)
	if err != nil {
		return v, fmt.Errorf("clear review entry: %w", err)
	}
	v.Changed = cleared
	return v, nil
}
