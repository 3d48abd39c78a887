package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curator/internal/api"
	"curator/internal/store"
)

func serve(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t, "secret")
	h := f.daemon.Handler()

	if w := serve(t, h, http.MethodGet, "/api/status", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodGet, "/api/status", "wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := serve(t, h, http.MethodGet, "/api/status", "secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Running {
		t.Fatal("expected stopped daemon")
	}
}

func TestAPIReviewListAndClear(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	if _, err := f.store.UpsertReview(ctx, store.ReviewEntry{Key: "Movie/7", DisplayName: "Seven (1995)", Reason: "cast coverage", Score: 2}); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}
	h := f.daemon.Handler()

	w := serve(t, h, http.MethodGet, "/api/review", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var list api.ReviewListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].DisplayName != "Seven (1995)" {
		t.Fatalf("unexpected review list: %+v", list.Items)
	}

	if w := serve(t, h, http.MethodDelete, "/api/review/Movie/7", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on clear, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodDelete, "/api/review/Movie/7", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second clear, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodDelete, "/api/review/Album/7", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodPost, "/api/review", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIWebhookAndReprocess(t *testing.T) {
	f := newFixture(t, "secret")
	h := f.daemon.Handler()
	envelope := `{"kind":"item-added","item":{"id":"s1","type":"Series","name":"Show"}}`

	if w := serve(t, h, http.MethodPost, "/webhook", "", envelope); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before start, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodPost, "/api/reprocess/s1", "secret", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 reprocess before start, got %d", w.Code)
	}

	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if w := serve(t, h, http.MethodPost, "/webhook", "", envelope); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for webhook without token, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodPost, "/webhook", "", "{not json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed envelope, got %d", w.Code)
	}

	w := serve(t, h, http.MethodPost, "/api/reprocess/e1?deep=1", "secret", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.ReprocessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.HostItemID != "s1" || !resp.Deep {
		t.Fatalf("unexpected reprocess response: %+v", resp)
	}

	if w := serve(t, h, http.MethodPost, "/api/reprocess/missing", "secret", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", w.Code)
	}

	w = serve(t, h, http.MethodPost, "/api/scan", "secret", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for scan, got %d", w.Code)
	}
	var scan api.ScanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &scan); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if scan.Message == "" {
		t.Fatalf("unexpected scan response: %+v", scan)
	}
}
