package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"curator/internal/cast"
	"curator/internal/host"
	"curator/internal/overrides"
	"curator/internal/pipeline"
	"curator/internal/provider/tmdb"
	"curator/internal/quality"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/testsupport"
)

type fakeHost struct {
	mu        sync.Mutex
	items     map[string]*host.Item
	library   []host.Item
	refreshed []string
}

func newFakeHost(items ...*host.Item) *fakeHost {
	h := &fakeHost{items: make(map[string]*host.Item)}
	for _, item := range items {
		h.items[item.ID] = item
	}
	return h
}

func (h *fakeHost) GetItemDetails(_ context.Context, id string, _ ...string) (*host.Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	item, ok := h.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: host item %s", services.ErrNotFound, id)
	}
	copied := *item
	return &copied, nil
}

func (h *fakeHost) GetItemsByIDs(_ context.Context, ids []string, _ ...string) ([]host.Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []host.Item
	for _, id := range ids {
		if item, ok := h.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (h *fakeHost) ListItems(_ context.Context, _ []string, start, limit int) ([]host.Item, int, error) {
	if start >= len(h.library) {
		return nil, len(h.library), nil
	}
	end := min(start+limit, len(h.library))
	return h.library[start:end], len(h.library), nil
}

func (h *fakeHost) RefreshByID(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshed = append(h.refreshed, id)
	return nil
}

func (h *fakeHost) refreshCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.refreshed)
}

type fakePrimary struct {
	calls   atomic.Int32
	movies  map[int64]*tmdb.Details
	series  map[int64]*tmdb.SeriesAggregate
	results []tmdb.Result
	err     error
}

func (p *fakePrimary) GetDetails(_ context.Context, id int64, _, _ string) (*tmdb.Details, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	if d, ok := p.movies[id]; ok {
		return d, nil
	}
	return nil, services.ErrNotFound
}

func (p *fakePrimary) Search(_ context.Context, _ string, _ string, _ int) (*tmdb.Response, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &tmdb.Response{Results: p.results}, nil
}

func (p *fakePrimary) AggregateSeriesData(_ context.Context, id int64) (*tmdb.SeriesAggregate, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	if agg, ok := p.series[id]; ok {
		return agg, nil
	}
	return nil, services.ErrNotFound
}

type harness struct {
	orch    *pipeline.Orchestrator
	store   *store.Store
	files   *overrides.Cache
	host    *fakeHost
	primary *fakePrimary
}

func newHarness(t *testing.T, h *fakeHost, p *fakePrimary) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCastCap(5))
	st := testsupport.MustOpenStore(t, cfg)
	files := overrides.New(afero.NewMemMapFs(), "/override")
	if p == nil {
		p = &fakePrimary{}
	}
	orch, err := pipeline.NewOrchestrator(pipeline.Dependencies{
		Host:     h,
		Primary:  p,
		Cast:     cast.NewEngine(st, cast.Limits{MaxMembers: 5}, nil),
		Store:    st,
		Writer:   pipeline.NewDualWriter(st, files, nil),
		Gate:     quality.NewGate(st, cfg.Quality, nil),
		Language: "zh-CN",
		CastCap:  5,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return &harness{orch: orch, store: st, files: files, host: h, primary: p}
}

func movieItem(hostID, tmdbID string) *host.Item {
	item := &host.Item{ID: hostID, Name: "Sample", Type: host.TypeMovie, ProductionYear: 2020}
	if tmdbID != "" {
		item.ProviderIDs = map[string]string{"Tmdb": tmdbID}
	}
	return item
}

func movieRecord(id string, inLibrary bool) *store.Record {
	return &store.Record{
		Key:          store.Key{ExternalID: id, ItemType: store.ItemMovie},
		Title:        "Sample",
		Year:         2020,
		InLibrary:    inLibrary,
		ExpectedCast: 2,
		Cast: []store.CastEntry{
			{ID: 101, Name: "甲", OriginalName: "Alpha", Order: 0, ProfilePath: "/a.jpg"},
			{ID: 102, Name: "乙", OriginalName: "Beta", Order: 1, ProfilePath: "/b.jpg"},
		},
	}
}
