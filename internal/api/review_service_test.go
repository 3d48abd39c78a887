package api_test

import (
	"context"
	"errors"
	"testing"

	"curator/internal/api"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/testsupport"
)

func TestReviewServiceListAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if _, err := st.UpsertReview(ctx, store.ReviewEntry{Key: "Movie/7", DisplayName: "Seven (1995)", Reason: "cast coverage 1 of 5 expected", Score: 2}); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}
	if _, err := st.UpsertReview(ctx, store.ReviewEntry{Key: "Series/host:abc", Reason: "unit fatal"}); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}

	svc := api.NewReviewService(st)
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
	if items[0].Key != "Series/host:abc" || items[0].ItemType != "Series" || items[0].ExternalID != "host:abc" {
		t.Fatalf("expected lowest score first, got %+v", items[0])
	}

	resp, err := svc.Clear(ctx, "movie", "7")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !resp.Removed || resp.Key != "Movie/7" {
		t.Fatalf("unexpected clear response %+v", resp)
	}
	resp, _ = svc.Clear(ctx, "Movie", "7")
	if resp.Removed {
		t.Fatal("second clear should report nothing removed")
	}
}

func TestReviewKeyValidation(t *testing.T) {
	if _, err := api.ReviewKey("album", "1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := api.ReviewKey("Movie", " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
