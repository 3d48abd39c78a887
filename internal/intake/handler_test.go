package intake_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/intake"
)

type fakeRemover struct {
	mu     sync.Mutex
	events []intake.Event
}

func (f *fakeRemover) MarkRemoved(_ context.Context, ev intake.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func post(t *testing.T, handler http.Handler, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestWebhookAcknowledgesAndRoutes(t *testing.T) {
	col := newCollector()
	coalescer := intake.NewCoalescer(20*time.Millisecond, nil, col.dispatch, nil)
	defer coalescer.Stop()
	remover := &fakeRemover{}
	in := intake.New(context.Background(), coalescer, nil, remover, nil)

	if code := post(t, in, `{"Event":"library.new","Item":{"Id":"s1","Type":"Series","Name":"Show","ProviderIds":{"Tmdb":"555"}}}`); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	item := col.next(t, time.Second)
	if item.ParentID != "s1" || !item.IsNewParent || item.ExternalIDs["tmdb"] != "555" || item.Name != "Show" {
		t.Fatalf("unexpected work item %+v", item)
	}

	if code := post(t, in, `{"kind":"item-removed","item":{"id":"m9","type":"Movie","externalIds":{"tmdb":"42"}}}`); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	in.Wait()
	if len(remover.events) != 1 || remover.events[0].ExternalIDs["tmdb"] != "42" {
		t.Fatalf("expected removal routed, got %+v", remover.events)
	}

	if code := post(t, in, `{"kind":"playback.start","item":{"id":"x"}}`); code != http.StatusAccepted {
		t.Fatalf("unknown kinds are still acknowledged, got %d", code)
	}
	if code := post(t, in, `{not json`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", code)
	}
}

func TestAddedMovieIsPolledAndFlaggedOnTimeout(t *testing.T) {
	col := newCollector()
	coalescer := intake.NewCoalescer(10*time.Millisecond, nil, col.dispatch, nil)
	defer coalescer.Stop()
	poller := intake.NewPoller(&scriptedSource{}, config.Poller{MaxRetries: 2, Concurrency: 1}, nil).WithInterval(time.Millisecond)
	in := intake.New(context.Background(), coalescer, poller, nil, nil)

	in.Handle(intake.Event{ItemID: "m1", ItemType: "Movie", Kind: intake.KindItemAdded})
	item := col.next(t, time.Second)
	if _, ok := item.InvalidStreams["m1"]; !ok {
		t.Fatalf("expected poll timeout to flag the stream, got %+v", item)
	}
	if !item.IsNewParent {
		t.Fatal("added movie should be a new parent")
	}
}

func TestDecodePrefersSeriesIDForLeaves(t *testing.T) {
	ev, ok, err := intake.Decode(strings.NewReader(`{"Event":"library.new","Item":{"Id":"e1","Type":"Episode","ParentId":"season1","SeriesId":"555"}}`))
	if err != nil || !ok {
		t.Fatalf("Decode: %v %v", ok, err)
	}
	if ev.ParentID != "555" || !ev.IsLeaf() {
		t.Fatalf("unexpected event %+v", ev)
	}
}
