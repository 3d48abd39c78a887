package quality_test

import (
	"context"
	"strings"
	"testing"

	"curator/internal/config"
	"curator/internal/quality"
	"curator/internal/store"
	"curator/internal/testsupport"
)

func newGate(t *testing.T) (*quality.Gate, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return quality.NewGate(st, cfg.Quality, nil), st
}

func TestScoreRatio(t *testing.T) {
	gate := quality.NewGate(nil, config.Quality{Threshold: 6, RelaxedGenres: []string{"Animation"}}, nil)
	movie := store.Key{ExternalID: "1", ItemType: store.ItemMovie}

	cases := []struct {
		name string
		in   quality.Input
		want float64
	}{
		{"full", quality.Input{Key: movie, ExpectedCast: 10, ActualCast: 10}, 10},
		{"half", quality.Input{Key: movie, ExpectedCast: 10, ActualCast: 5}, 5},
		{"over", quality.Input{Key: movie, ExpectedCast: 4, ActualCast: 9}, 10},
		{"relaxed halves expectation", quality.Input{Key: movie, ExpectedCast: 10, ActualCast: 4, Genres: []string{"animation"}}, 8},
		{"relaxed zero cast", quality.Input{Key: movie, ExpectedCast: 10, Genres: []string{"ANIMATION"}}, 10},
		{"invalid stream", quality.Input{Key: movie, ExpectedCast: 10, ActualCast: 10, StreamInvalid: true}, 0},
		{"failure", quality.Input{Key: movie, ExpectedCast: 10, ActualCast: 10, Failure: "provider down"}, 0},
	}
	for _, tc := range cases {
		got, _ := gate.Score(tc.in)
		if got != tc.want {
			t.Fatalf("%s: score = %v, want %v", tc.name, got, tc.want)
		}
	}

	series := store.Key{ExternalID: "2", ItemType: store.ItemSeries}
	if got, _ := gate.Score(quality.Input{Key: series, ExpectedCast: 2, ActualCast: 2, StreamInvalid: true}); got != 10 {
		t.Fatalf("stream validity only zeroes leaf items, got %v", got)
	}
}

func TestEvaluateRoutesAndClears(t *testing.T) {
	gate, st := newGate(t)
	ctx := context.Background()
	key := store.Key{ExternalID: "42", ItemType: store.ItemMovie}

	v, err := gate.Evaluate(ctx, quality.Input{Key: key, DisplayName: "Movie (2020)", ExpectedCast: 10, ActualCast: 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Review || !v.Changed || v.Score != 2 {
		t.Fatalf("unexpected verdict %+v", v)
	}
	entry, err := st.GetReview(ctx, key.String())
	if err != nil || entry == nil {
		t.Fatalf("expected review entry, got %v / %v", entry, err)
	}
	if !strings.Contains(entry.Reason, "2 of 10") {
		t.Fatalf("unexpected reason %q", entry.Reason)
	}

	v, err = gate.Evaluate(ctx, quality.Input{Key: key, DisplayName: "Movie (2020)", ExpectedCast: 10, ActualCast: 2})
	if err != nil {
		t.Fatalf("Evaluate again: %v", err)
	}
	if !v.Review || v.Changed {
		t.Fatalf("re-running with the same score must not change the entry: %+v", v)
	}
	again, _ := st.GetReview(ctx, key.String())
	if !again.UpdatedAt.Equal(entry.UpdatedAt) {
		t.Fatalf("review entry was rewritten: %v -> %v", entry.UpdatedAt, again.UpdatedAt)
	}

	v, err = gate.Evaluate(ctx, quality.Input{Key: key, ExpectedCast: 10, ActualCast: 10})
	if err != nil {
		t.Fatalf("Evaluate passing: %v", err)
	}
	if v.Review || !v.Changed {
		t.Fatalf("expected the prior entry to be cleared: %+v", v)
	}
	if entry, _ := st.GetReview(ctx, key.String()); entry != nil {
		t.Fatalf("review entry should be gone, got %+v", entry)
	}
}

func TestInvalidChildrenEscalateToSeries(t *testing.T) {
	gate, st := newGate(t)
	ctx := context.Background()
	key := store.Key{ExternalID: "555", ItemType: store.ItemSeries}

	v, err := gate.Evaluate(ctx, quality.Input{Key: key, ExpectedCast: 4, ActualCast: 4, InvalidChildren: []string{"ep1"}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Score != 10 || !v.Review {
		t.Fatalf("expected full score routed to review, got %+v", v)
	}
	if entry, _ := st.GetReview(ctx, key.String()); entry == nil || !strings.Contains(entry.Reason, "1 episode") {
		t.Fatalf("expected series-level review entry, got %+v", entry)
	}
}
