package intake_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/services"
)

type collector struct {
	mu    sync.Mutex
	items []intake.WorkItem
	ch    chan intake.WorkItem
}

func newCollector() *collector {
	return &collector{ch: make(chan intake.WorkItem, 16)}
}

func (c *collector) dispatch(item intake.WorkItem) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
	c.ch <- item
}

func (c *collector) next(t *testing.T, timeout time.Duration) intake.WorkItem {
	t.Helper()
	select {
	case item := <-c.ch:
		return item
	case <-time.After(timeout):
		t.Fatal("timed out waiting for work item")
		return intake.WorkItem{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type fakeResolver struct {
	items map[string]*host.Item
	calls int
	mu    sync.Mutex
}

func (f *fakeResolver) GetItemDetails(_ context.Context, id string, _ ...string) (*host.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, services.ErrNotFound
}

func TestEpisodesWithinWindowProduceOneWorkItem(t *testing.T) {
	col := newCollector()
	c := intake.NewCoalescer(80*time.Millisecond, nil, col.dispatch, nil)
	defer c.Stop()

	c.Enqueue(context.Background(), intake.Event{ItemID: "e1", ItemType: host.TypeEpisode, Kind: intake.KindItemAdded, ParentID: "555"})
	time.Sleep(50 * time.Millisecond)
	c.Enqueue(context.Background(), intake.Event{ItemID: "e2", ItemType: host.TypeEpisode, Kind: intake.KindItemAdded, ParentID: "555"})

	item := col.next(t, time.Second)
	if item.ParentID != "555" || item.ParentType != host.TypeSeries {
		t.Fatalf("unexpected parent %+v", item)
	}
	if ids := item.ChildIDs(); len(ids) != 2 || ids[0] != "e1" || ids[1] != "e2" {
		t.Fatalf("expected both children, got %v", ids)
	}
	if item.IsNewParent {
		t.Fatal("episode additions do not make the series new")
	}
	time.Sleep(150 * time.Millisecond)
	if col.count() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", col.count())
	}
}

func TestEachEventRestartsTheWindow(t *testing.T) {
	col := newCollector()
	c := intake.NewCoalescer(60*time.Millisecond, nil, col.dispatch, nil)
	defer c.Stop()

	start := time.Now()
	for i := 0; i < 4; i++ {
		c.Enqueue(context.Background(), intake.Event{ItemID: "m1", ItemType: host.TypeMovie, Kind: intake.KindMetadataChanged})
		time.Sleep(30 * time.Millisecond)
	}
	item := col.next(t, time.Second)
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("dispatched after %v; the window should restart on every event", elapsed)
	}
	if item.Events != 4 || len(item.ChildLeafIDs) != 0 {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestDistinctKeysDispatchSeparately(t *testing.T) {
	col := newCollector()
	c := intake.NewCoalescer(20*time.Millisecond, nil, col.dispatch, nil)
	defer c.Stop()

	c.Enqueue(context.Background(), intake.Event{ItemID: "m1", ItemType: host.TypeMovie, Kind: intake.KindItemAdded})
	c.Enqueue(context.Background(), intake.Event{ItemID: "s1", ItemType: host.TypeSeries, Kind: intake.KindMetadataChanged})

	seen := map[string]intake.WorkItem{}
	for i := 0; i < 2; i++ {
		item := col.next(t, time.Second)
		seen[item.ParentID] = item
	}
	if !seen["m1"].IsNewParent || seen["s1"].IsNewParent {
		t.Fatalf("unexpected new-parent flags %+v", seen)
	}
}

func TestLeafParentIsResolvedThroughHost(t *testing.T) {
	col := newCollector()
	resolver := &fakeResolver{items: map[string]*host.Item{
		"e1": {ID: "e1", Type: host.TypeEpisode, SeriesID: "555"},
	}}
	c := intake.NewCoalescer(20*time.Millisecond, resolver, col.dispatch, nil)

	c.Enqueue(context.Background(), intake.Event{ItemID: "e1", ItemType: host.TypeEpisode, Kind: intake.KindItemAdded})
	c.Enqueue(context.Background(), intake.Event{ItemID: "gone", ItemType: host.TypeEpisode, Kind: intake.KindItemAdded})

	item := col.next(t, time.Second)
	if item.ParentID != "555" {
		t.Fatalf("expected series 555, got %+v", item)
	}
	time.Sleep(60 * time.Millisecond)
	c.Stop()
	if col.count() != 1 {
		t.Fatalf("unresolvable leaf must be dropped, got %d items", col.count())
	}
}

func TestStopDiscardsPending(t *testing.T) {
	col := newCollector()
	c := intake.NewCoalescer(time.Hour, nil, col.dispatch, nil)
	c.Enqueue(context.Background(), intake.Event{ItemID: "m1", ItemType: host.TypeMovie, Kind: intake.KindItemAdded})
	if c.Pending() != 1 {
		t.Fatalf("expected one pending key, got %d", c.Pending())
	}
	if dropped := c.Stop(); dropped != 1 {
		t.Fatalf("expected 1 dropped key, got %d", dropped)
	}
	c.Enqueue(context.Background(), intake.Event{ItemID: "m2", ItemType: host.TypeMovie, Kind: intake.KindItemAdded})
	if c.Pending() != 0 {
		t.Fatal("stopped coalescer must ignore new events")
	}
}

func TestParseKindAliases(t *testing.T) {
	for raw, want := range map[string]intake.Kind{
		"library.new":     intake.KindItemAdded,
		"Library.Deleted": intake.KindItemRemoved,
		"item.update":     intake.KindMetadataChanged,
		"image-changed":   intake.KindImageChanged,
	} {
		got, ok := intake.ParseKind(raw)
		if !ok || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := intake.ParseKind("playback.start"); ok {
		t.Fatal("playback events are not recognized")
	}
}
