package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curator/internal/api"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		gotMethod = r.Method
		_ = json.NewEncoder(w).Encode(api.ReprocessResponse{HostItemID: "abc", Deep: true})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Reprocess(context.Background(), "abc", true)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/reprocess/abc?deep=1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if resp.HostItemID != "abc" || !resp.Deep {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "host item not found"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	_, err := client.Reprocess(context.Background(), "missing", false)
	if err == nil || !strings.Contains(err.Error(), "host item not found") {
		t.Fatalf("expected api error message, got %v", err)
	}
}

func TestClientReportsUnavailableDaemon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, err := api.NewClient(addr, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, api.ErrDaemonUnavailable) {
		t.Fatalf("expected ErrDaemonUnavailable, got %v", err)
	}
}

func TestNewClientRejectsEmptyBind(t *testing.T) {
	if _, err := api.NewClient("  ", ""); err == nil {
		t.Fatal("expected error for empty bind")
	}
}
