package host_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/host"
	"curator/internal/services"
)

func newClient(t *testing.T, srv *httptest.Server, userID string) *host.Client {
	t.Helper()
	client, err := host.New(config.Host{URL: srv.URL + "/", APIKey: "secret", UserID: userID, MaxRetries: 2, PageSize: 50},
		host.WithHTTPClient(srv.Client()), host.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestGetItemDetailsDecodesStreams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Emby-Token"); got != "secret" {
			t.Errorf("token header = %q", got)
		}
		if r.URL.Path != "/Users/u1/Items/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("Fields") != "MediaStreams" {
			t.Errorf("fields = %q", r.URL.Query().Get("Fields"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Id":           "42",
			"Name":         "Pilot",
			"Type":         "Episode",
			"SeriesId":     "7",
			"ProviderIds":  map[string]string{"tmdb": "99"},
			"MediaStreams": []map[string]any{{"Type": "Audio", "Codec": "aac"}, {"Type": "Video", "Codec": "h264", "Width": 1920}},
		})
	}))
	defer srv.Close()

	item, err := newClient(t, srv, "u1").GetItemDetails(context.Background(), "42", "MediaStreams")
	if err != nil {
		t.Fatalf("GetItemDetails: %v", err)
	}
	if !item.HasValidVideo() {
		t.Fatal("expected valid video stream")
	}
	if item.ContainerID() != "7" {
		t.Fatalf("container id = %q, want 7", item.ContainerID())
	}
	if item.ProviderID("Tmdb") != "99" {
		t.Fatalf("provider lookup should ignore case, got %q", item.ProviderID("Tmdb"))
	}
}

func TestGetItemDetailsNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "").GetItemDetails(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Id": "1", "Type": "Movie"})
	}))
	defer srv.Close()

	item, err := newClient(t, srv, "").GetItemDetails(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetItemDetails: %v", err)
	}
	if item.HasValidVideo() {
		t.Fatal("item without streams should not be ready")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientErrorsFailFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newClient(t, srv, "").RefreshByID(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, services.ErrTransient) {
		t.Fatalf("401 should not be transient: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestRefreshByPathPostsUpdate(t *testing.T) {
	t.Parallel()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Library/Media/Updated" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newClient(t, srv, "").RefreshByPath(context.Background(), "/media/tv/Show"); err != nil {
		t.Fatalf("RefreshByPath: %v", err)
	}
	var payload struct {
		Updates []struct{ Path, UpdateType string }
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Updates) != 1 || payload.Updates[0].Path != "/media/tv/Show" {
		t.Fatalf("unexpected payload %s", body)
	}
}

func TestFindNearestKnownAncestorPrefersDeepestLocation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"Name": "All", "ItemId": "root", "Locations": []string{"/media"}},
			{"Name": "Shows", "ItemId": "tv", "Locations": []string{"/media/tv"}},
			{"Name": "Other", "ItemId": "x", "Locations": []string{"/media/tvx"}},
		})
	}))
	defer srv.Close()

	client := newClient(t, srv, "")
	id, name, ok, err := client.FindNearestKnownAncestor(context.Background(), "/media/tv/Show/S01E01.mkv")
	if err != nil {
		t.Fatalf("FindNearestKnownAncestor: %v", err)
	}
	if !ok || id != "tv" || name != "Shows" {
		t.Fatalf("got (%q, %q, %v)", id, name, ok)
	}
	if _, _, ok, _ := client.FindNearestKnownAncestor(context.Background(), "/srv/other"); ok {
		t.Fatal("expected no ancestor outside library roots")
	}
}

func TestListItemsPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("IncludeItemTypes") != "Movie,Series" || q.Get("StartIndex") != "50" || q.Get("Limit") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Items":            []map[string]any{{"Id": "a", "Type": "Movie"}},
			"TotalRecordCount": 51,
		})
	}))
	defer srv.Close()

	items, total, err := newClient(t, srv, "").ListItems(context.Background(), []string{"Movie", "Series"}, 50, 0)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if total != 51 || len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := host.New(config.Host{URL: "http://x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
