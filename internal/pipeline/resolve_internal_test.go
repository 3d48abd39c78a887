package pipeline

import (
	"testing"

	"curator/internal/host"
	"curator/internal/provider/tmdb"
)

func TestIDFromPath(t *testing.T) {
	tests := map[string]int64{
		"/media/Movies/Heat (1995) {tmdbid=949}/Heat.mkv":   949,
		"/media/Movies/Heat (1995) [tmdbid-949]/Heat.mkv":   949,
		"/media/Shows/Show tmdb-1399/Season 01/S01E01.mkv":  1399,
		"/media/Movies/{tmdb=1}/Inner {tmdbid=2}/Movie.mkv": 2,
		"/media/Movies/Heat (1995)/Heat.mkv":                0,
		"/media/Movies/notmdb-12/Heat.mkv":                  0,
		"":                                                  0,
	}
	for path, want := range tests {
		if got := idFromPath(path); got != want {
			t.Errorf("idFromPath(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestExplicitIDPrefersHostItem(t *testing.T) {
	item := &host.Item{ProviderIDs: map[string]string{"Tmdb": "12"}}
	if got := explicitID(item, map[string]string{"tmdb": "99"}); got != 12 {
		t.Fatalf("expected host id 12, got %d", got)
	}
	if got := explicitID(&host.Item{}, map[string]string{"TMDB": "99"}); got != 99 {
		t.Fatalf("expected envelope id 99, got %d", got)
	}
	if got := explicitID(nil, map[string]string{"tmdb": "abc"}); got != 0 {
		t.Fatalf("expected 0 for garbage id, got %d", got)
	}
}

func TestBestMatch(t *testing.T) {
	results := []tmdb.Result{
		{ID: 1, Title: "Heat Wave", ReleaseDate: "1995-01-01"},
		{ID: 2, Title: "Heat", ReleaseDate: "1986-01-01"},
		{ID: 3, Title: "Heat", ReleaseDate: "1995-12-15"},
	}
	got, ok := bestMatch("Heat", 1995, results)
	if !ok || got.ID != 3 {
		t.Fatalf("expected exact title and year, got %+v ok=%v", got, ok)
	}

	got, ok = bestMatch("Heat", 0, results[:2])
	if !ok || got.ID != 2 {
		t.Fatalf("expected exact title without year, got %+v", got)
	}

	if _, ok := bestMatch("Heat", 1995, []tmdb.Result{{ID: 4, Title: "Something Else Entirely"}}); ok {
		t.Fatal("expected distant title rejected")
	}
}
