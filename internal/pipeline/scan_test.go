package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/services"
)

func scanHost() *fakeHost {
	h := newFakeHost()
	h.library = []host.Item{
		{ID: "m1", Type: host.TypeMovie, Name: "One", ProviderIDs: map[string]string{"Tmdb": "1"}},
		{ID: "s1", Type: host.TypeSeries, Name: "Two"},
		{ID: "m2", Type: host.TypeMovie, Name: "Three"},
	}
	return h
}

func TestScanDispatchesEveryPage(t *testing.T) {
	h := newHarness(t, scanHost(), nil)
	var got []intake.WorkItem
	n, err := h.orch.Scan(context.Background(), true, func(w intake.WorkItem) { got = append(got, w) })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 || len(got) != 3 {
		t.Fatalf("expected 3 dispatched across pages, got n=%d items=%d", n, len(got))
	}
	if !got[0].DeepRefresh || got[0].ExternalIDs["tmdb"] != "1" {
		t.Fatalf("unexpected first work item %+v", got[0])
	}
	if got[1].ParentType != host.TypeSeries {
		t.Fatalf("expected series parent type, got %q", got[1].ParentType)
	}
}

func TestScanStopsOnCancel(t *testing.T) {
	h := newHarness(t, scanHost(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	n, err := h.orch.Scan(ctx, false, func(intake.WorkItem) {
		count++
		cancel()
	})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if n != 1 || count != 1 {
		t.Fatalf("expected scan to stop after first item, got n=%d", n)
	}
}
