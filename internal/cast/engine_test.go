package cast_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"curator/internal/cast"
	"curator/internal/provider/tmdb"
	"curator/internal/services"
	"curator/internal/store"
)

type fakeActors struct {
	mu       sync.Mutex
	xref     map[string]int64
	cached   map[int64]store.Actor
	upserted []string
	failName string
}

func newFakeActors() *fakeActors {
	return &fakeActors{xref: map[string]int64{}, cached: map[int64]store.Actor{}}
}

func (f *fakeActors) ActorByTMDB(_ context.Context, id int64) (*store.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.cached[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeActors) UpsertActor(_ context.Context, actor store.Actor) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if actor.Name == f.failName {
		return 0, errors.New("database is locked")
	}
	f.upserted = append(f.upserted, actor.Name)
	return int64(len(f.upserted)), nil
}

func (f *fakeActors) LookupXref(_ context.Context, source, id string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.xref[source+"/"+id]
	return v, ok, nil
}

func (f *fakeActors) SaveXref(_ context.Context, source, id string, tmdbID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.xref[source+"/"+id] = tmdbID
	return nil
}

type fakePeople struct {
	found   map[string]int64
	persons map[int64]tmdb.Person
	calls   int
}

func (f *fakePeople) FindByExternalID(_ context.Context, _ string, id string) (*tmdb.FindResult, error) {
	f.calls++
	res := &tmdb.FindResult{}
	if tmdbID, ok := f.found[id]; ok {
		res.PersonResults = []tmdb.PersonResult{{ID: tmdbID, ProfilePath: "/found.jpg"}}
	}
	return res, nil
}

func (f *fakePeople) GetPerson(_ context.Context, id int64) (*tmdb.Person, error) {
	f.calls++
	if p, ok := f.persons[id]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("%w: person", services.ErrNotFound)
}

type fakeSecondary struct {
	imdb  map[string]string
	calls int
}

func (f *fakeSecondary) PersonExternalID(_ context.Context, id string) (string, error) {
	f.calls++
	return f.imdb[id], nil
}

type fakeTranslator struct {
	forward map[string]string
	reverse map[string]string
}

func (f *fakeTranslator) Translate(_ context.Context, terms []string, _ string) (map[string]string, error) {
	out := map[string]string{}
	for _, t := range terms {
		if v, ok := f.forward[t]; ok {
			out[t] = v
		}
	}
	return out, nil
}

func (f *fakeTranslator) ReverseLookup(display string) (string, bool) {
	v, ok := f.reverse[display]
	return v, ok
}

func (f *fakeTranslator) IsLocal(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}

func TestReconcileDiscardsSecondaryWhenCapReached(t *testing.T) {
	actors := newFakeActors()
	secondary := &fakeSecondary{}
	engine := cast.NewEngine(actors, cast.Limits{MaxMembers: 1}, nil, cast.WithSecondary(secondary))

	res, err := engine.Reconcile(context.Background(), cast.Input{
		Host:    []cast.HostActor{{HostID: "h1", Name: "Someone Else", ExternalIDs: map[string]string{"Tmdb": "10"}}},
		Primary: []cast.Candidate{{SourceID: "10", ExternalIDs: map[string]string{"tmdb": "10"}, Name: "Actor Ten", Order: 0, ProfilePath: "/ten.jpg"}},
		Secondary: []cast.SecondaryList{{Source: "douban", Candidates: []cast.Candidate{
			{SourceID: "d9", Name: "Extra"},
		}}},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Members) != 1 {
		t.Fatalf("expected 1 member, got %+v", res.Members)
	}
	m := res.Members[0]
	if m.HostID != "h1" || m.TMDBID() != 10 || m.ProfilePath != "/ten.jpg" || m.Provenance != cast.ProvenanceHost {
		t.Fatalf("unexpected member %+v", m)
	}
	if res.Discarded != 1 {
		t.Fatalf("expected Extra to be discarded, got %d", res.Discarded)
	}
	if secondary.calls != 0 {
		t.Fatalf("no remote lookup expected once the cap is reached, got %d", secondary.calls)
	}
}

func TestExternalIDMatchTakesPrecedenceOverName(t *testing.T) {
	engine := cast.NewEngine(newFakeActors(), cast.Limits{}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Host: []cast.HostActor{
			{HostID: "h1", Name: "Bob", ExternalIDs: map[string]string{"Tmdb": "2"}},
			{HostID: "h2", Name: "bob"},
		},
		Primary: []cast.Candidate{
			{Name: "Bob", ExternalIDs: map[string]string{"tmdb": "1"}, Order: 0},
			{Name: "Robert", ExternalIDs: map[string]string{"tmdb": "2"}, Order: 1},
		},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Members[0].HostID != "h2" || res.Members[1].HostID != "h1" {
		t.Fatalf("unexpected bindings: %+v", res.Members)
	}
}

func TestReverseLookupBindsTranslatedHostName(t *testing.T) {
	translator := &fakeTranslator{reverse: map[string]string{"汤姆·汉克斯": "Tom Hanks"}}
	engine := cast.NewEngine(newFakeActors(), cast.Limits{}, nil, cast.WithTranslator(translator))
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Host:    []cast.HostActor{{HostID: "h7", Name: "汤姆·汉克斯"}},
		Primary: []cast.Candidate{{Name: "Tom Hanks", ExternalIDs: map[string]string{"tmdb": "31"}, Order: 0}},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	m := res.Members[0]
	if m.HostID != "h7" {
		t.Fatalf("expected reverse lookup binding, got %+v", m)
	}
	if m.Name != "汤姆·汉克斯" || m.OriginalName != "Tom Hanks" {
		t.Fatalf("expected localized host name with original kept, got %+v", m)
	}
}

func TestPreCleanKeepsLowestOrder(t *testing.T) {
	engine := cast.NewEngine(newFakeActors(), cast.Limits{}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Primary: []cast.Candidate{
			{Name: "Jane Doe", Character: "Wrong", Order: 5},
			{Name: "John Roe", Order: 3},
			{Name: "jane  doe", Character: "Right", Order: 2},
		},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Members) != 2 {
		t.Fatalf("expected duplicates collapsed, got %+v", res.Members)
	}
	if res.Members[0].Character != "Right" {
		t.Fatalf("expected the lower order entry to survive, got %+v", res.Members[0])
	}
}

func TestSecondaryMergePrefersLongerRole(t *testing.T) {
	actors := newFakeActors()
	engine := cast.NewEngine(actors, cast.Limits{}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Primary: []cast.Candidate{{Name: "Jane Doe", Character: "Ann", ExternalIDs: map[string]string{"tmdb": "5"}, Order: 0}},
		Secondary: []cast.SecondaryList{{Source: "douban", Candidates: []cast.Candidate{
			{SourceID: "d1", Name: "简·多伊", OriginalName: "Jane Doe", Character: "Ann Smith"},
		}}},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	m := res.Members[0]
	if m.Character != "Ann Smith" || m.ExternalIDs["douban"] != "d1" {
		t.Fatalf("unexpected merge %+v", m)
	}
	if actors.xref["douban/d1"] != 5 {
		t.Fatalf("expected xref to be recorded, got %v", actors.xref)
	}
}

func TestSupplementationFallbackChain(t *testing.T) {
	actors := newFakeActors()
	actors.xref["douban/a"] = 77
	secondary := &fakeSecondary{imdb: map[string]string{"b": "nm2", "d": "nm4"}}
	people := &fakePeople{found: map[string]int64{"nm2": 88}}
	engine := cast.NewEngine(actors, cast.Limits{MaxMembers: 10}, nil,
		cast.WithSecondary(secondary), cast.WithPeople(people))

	res, err := engine.Reconcile(context.Background(), cast.Input{
		Secondary: []cast.SecondaryList{{Source: "douban", Candidates: []cast.Candidate{
			{SourceID: "a", Name: "Alpha", ProfilePath: "/a.jpg"},
			{SourceID: "b", Name: "Beta"},
			{SourceID: "c", Name: "Gamma"},
			{SourceID: "d", Name: "Delta"},
		}}},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	byName := map[string]cast.Member{}
	for _, m := range res.Members {
		byName[m.Name] = m
	}
	if byName["Alpha"].TMDBID() != 77 {
		t.Fatalf("Alpha should resolve through the xref, got %+v", byName["Alpha"])
	}
	if byName["Beta"].TMDBID() != 88 || byName["Beta"].ProfilePath != "/found.jpg" {
		t.Fatalf("Beta should resolve through the provider search, got %+v", byName["Beta"])
	}
	if _, ok := byName["Gamma"]; ok {
		t.Fatal("Gamma has no external id and must be discarded")
	}
	if d, ok := byName["Delta"]; !ok || d.TMDBID() != 0 || d.ExternalIDs["imdb"] != "nm4" {
		t.Fatalf("Delta should be kept as a bare entry, got %+v", d)
	}
	if secondary.calls != 3 {
		t.Fatalf("expected one remote lookup per unresolved candidate, got %d", secondary.calls)
	}
	if actors.xref["imdb/nm2"] != 88 || actors.xref["douban/b"] != 88 {
		t.Fatalf("expected resolved ids cached, got %v", actors.xref)
	}
}

func TestTruncationIsDeterministic(t *testing.T) {
	primary := []cast.Candidate{
		{Name: "NoImageFirst", Order: 0},
		{Name: "ImageSecond", Order: 3, ProfilePath: "/3.jpg"},
		{Name: "NoImageMissing", Order: cast.NoOrder},
		{Name: "ImageFirst", Order: 1, ProfilePath: "/1.jpg"},
		{Name: "NoImageLast", Order: 2},
	}
	engine := cast.NewEngine(newFakeActors(), cast.Limits{MaxMembers: 3}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{Primary: primary})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got := make([]string, 0, len(res.Members))
	for i, m := range res.Members {
		if m.Order != i {
			t.Fatalf("expected renumbered order, got %d at %d", m.Order, i)
		}
		got = append(got, m.Name)
	}
	if strings.Join(got, ",") != "ImageFirst,ImageSecond,NoImageFirst" {
		t.Fatalf("unexpected truncation %v", got)
	}
}

func TestDropWithoutImage(t *testing.T) {
	actors := newFakeActors()
	actors.cached[9] = store.Actor{TMDBID: 9, Name: "Cached", ProfilePath: "/cached.jpg"}
	engine := cast.NewEngine(actors, cast.Limits{DropWithoutImage: true}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Primary: []cast.Candidate{
			{Name: "Cached", ExternalIDs: map[string]string{"tmdb": "9"}, Order: 0},
			{Name: "Bare", Order: 1},
		},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Members) != 1 || res.Members[0].ProfilePath != "/cached.jpg" {
		t.Fatalf("expected cached image backfill and drop of Bare, got %+v", res.Members)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	actors := newFakeActors()
	translator := &fakeTranslator{forward: map[string]string{"Tom Hanks": "汤姆·汉克斯", "Woody": "胡迪"}}
	engine := cast.NewEngine(actors, cast.Limits{MaxMembers: 3}, nil, cast.WithTranslator(translator))
	in := cast.Input{
		Host: []cast.HostActor{{HostID: "h1", Name: "Tom Hanks"}},
		Primary: []cast.Candidate{
			{Name: "Tom Hanks", Character: "Woody", ExternalIDs: map[string]string{"tmdb": "31"}, Order: 0, ProfilePath: "/t.jpg"},
			{Name: "Tim Allen", Character: "Buzz", ExternalIDs: map[string]string{"tmdb": "12898"}, Order: 1},
		},
		Secondary: []cast.SecondaryList{{Source: "douban", Candidates: []cast.Candidate{{SourceID: "x", Name: "Tim Allen", Character: "Buzz Lightyear"}}}},
	}

	first, err := engine.Reconcile(context.Background(), in)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	second, err := engine.Reconcile(context.Background(), in)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	a, _ := store.EncodeCast(cast.Entries(first.Members))
	b, _ := store.EncodeCast(cast.Entries(second.Members))
	if !bytes.Equal(a, b) {
		t.Fatalf("runs differ:\n%s\n%s", a, b)
	}
	if first.Members[0].Name != "汤姆·汉克斯" || first.Members[0].Character != "胡迪" {
		t.Fatalf("expected localized member, got %+v", first.Members[0])
	}
}

func TestRowFailureDoesNotAbortRemainingRows(t *testing.T) {
	actors := newFakeActors()
	actors.failName = "B"
	engine := cast.NewEngine(actors, cast.Limits{}, nil)
	res, err := engine.Reconcile(context.Background(), cast.Input{
		Primary: []cast.Candidate{{Name: "A", Order: 0}, {Name: "B", Order: 1}, {Name: "C", Order: 2}, {Name: "D", Order: 3}},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.RowErrors != 1 || res.Persisted != 3 {
		t.Fatalf("expected 1 row error and 3 persisted, got %+v", res)
	}
	if strings.Join(actors.upserted, ",") != "A,C,D" {
		t.Fatalf("unexpected persisted rows %v", actors.upserted)
	}
	if len(res.Members) != 4 {
		t.Fatalf("failed rows stay in the cast, got %d members", len(res.Members))
	}
}

func TestReconcileHonoursCancellation(t *testing.T) {
	actors := newFakeActors()
	engine := cast.NewEngine(actors, cast.Limits{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Reconcile(ctx, cast.Input{Primary: []cast.Candidate{{Name: "A"}}})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(actors.upserted) != 0 {
		t.Fatalf("nothing should be persisted after cancellation, got %v", actors.upserted)
	}
}
