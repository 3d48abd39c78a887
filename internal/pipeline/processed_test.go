package pipeline_test

import (
	"context"
	"testing"

	"curator/internal/pipeline"
	"curator/internal/store"
	"curator/internal/testsupport"
)

func TestProcessedSetWarmKeepsNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	for _, key := range []string{"Movie/1", "Movie/2", "Movie/3"} {
		if err := st.MarkProcessed(ctx, store.LogEntry{Key: key, Score: 10}); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	}

	set, err := pipeline.NewProcessedSet(2)
	if err != nil {
		t.Fatalf("NewProcessedSet: %v", err)
	}
	n, err := set.Warm(ctx, st)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if n != 2 || set.Len() != 2 {
		t.Fatalf("expected 2 keys warmed, got n=%d len=%d", n, set.Len())
	}
	set.Add("Series/9")
	if set.Len() != 2 {
		t.Fatalf("expected set bounded at 2, got %d", set.Len())
	}
	if !set.Contains("Series/9") {
		t.Fatal("expected newest key present")
	}
	set.Remove("Series/9")
	if set.Contains("Series/9") {
		t.Fatal("expected key removed")
	}
}
