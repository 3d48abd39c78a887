package translate_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/config"
	"curator/internal/services"
	"curator/internal/translate"
)

type fakeEngine struct {
	name    string
	answers map[string]string
	err     error
	calls   [][]string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) BatchTranslate(_ context.Context, terms []string, _ string, _ string) (map[string]string, error) {
	f.calls = append(f.calls, append([]string(nil), terms...))
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, term := range terms {
		if v, ok := f.answers[term]; ok {
			out[term] = v
		}
	}
	return out, nil
}

func openCache(t *testing.T) *translate.Cache {
	t.Helper()
	cache, err := translate.OpenCache(filepath.Join(t.TempDir(), "translations.db"), "zh-CN")
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestTranslateEscalatesToTransliterationAndCaches(t *testing.T) {
	cache := openCache(t)
	fast := &fakeEngine{name: "fast-engine", answers: map[string]string{"Tom": "Tom"}}
	translit := &fakeEngine{name: "translit-engine", answers: map[string]string{"Tom": "汤姆"}}
	contextual := &fakeEngine{name: "ctx-engine"}

	tr := translate.NewTranslator(cache, "zh-CN", []translate.Tier{
		{Mode: config.ModeFast, Engine: fast},
		{Mode: config.ModeTransliterate, Engine: translit},
		{Mode: config.ModeContextual, Engine: contextual},
	}, nil)

	got, err := tr.Translate(context.Background(), []string{"Tom"}, "")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got["Tom"] != "汤姆" {
		t.Fatalf("expected transliterated value, got %q", got["Tom"])
	}
	if len(contextual.calls) != 0 {
		t.Fatalf("contextual tier should not run, got %v", contextual.calls)
	}

	entry, ok, err := cache.Get("Tom")
	if err != nil || !ok {
		t.Fatalf("expected cached entry, ok=%v err=%v", ok, err)
	}
	if entry.Translation != "汤姆" || entry.Engine != "translit-engine" || entry.Mode != config.ModeTransliterate {
		t.Fatalf("unexpected cache entry %+v", entry)
	}

	if _, err := tr.Translate(context.Background(), []string{"Tom"}, ""); err != nil {
		t.Fatalf("second Translate failed: %v", err)
	}
	if len(fast.calls) != 1 || len(translit.calls) != 1 {
		t.Fatalf("expected cached second run, fast=%d translit=%d", len(fast.calls), len(translit.calls))
	}
}

func TestTranslateOnlyForwardsFailures(t *testing.T) {
	fast := &fakeEngine{name: "fast", answers: map[string]string{"Alice": "爱丽丝", "Bob": "Bob"}}
	translit := &fakeEngine{name: "translit", answers: map[string]string{"Bob": "鲍勃"}}
	tr := translate.NewTranslator(nil, "zh-CN", []translate.Tier{
		{Mode: config.ModeFast, Engine: fast},
		{Mode: config.ModeTransliterate, Engine: translit},
	}, nil)

	got, err := tr.Translate(context.Background(), []string{"Alice", "Bob", "Alice", "张三"}, "")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got["Alice"] != "爱丽丝" || got["Bob"] != "鲍勃" || got["张三"] != "张三" {
		t.Fatalf("unexpected translations %v", got)
	}
	if len(translit.calls) != 1 || strings.Join(translit.calls[0], ",") != "Bob" {
		t.Fatalf("transliteration tier should only see Bob, got %v", translit.calls)
	}
	if strings.Join(fast.calls[0], ",") != "Alice,Bob" {
		t.Fatalf("fast tier should see deduplicated foreign terms, got %v", fast.calls)
	}
}

func TestTranslateReportsProviderFailureWhenAllTiersError(t *testing.T) {
	boom := errors.New("quota exceeded")
	tr := translate.NewTranslator(nil, "zh-CN", []translate.Tier{
		{Mode: config.ModeFast, Engine: &fakeEngine{name: "a", err: boom}},
		{Mode: config.ModeContextual, Engine: &fakeEngine{name: "b", err: boom}},
	}, nil)
	got, err := tr.Translate(context.Background(), []string{"Tom"}, "")
	if !errors.Is(err, services.ErrProviderFetch) {
		t.Fatalf("expected provider fetch error, got %v", err)
	}
	if _, ok := got["Tom"]; ok {
		t.Fatalf("expected Tom untranslated, got %v", got)
	}
}

func TestTranslateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := translate.NewTranslator(nil, "zh-CN", []translate.Tier{
		{Mode: config.ModeFast, Engine: &fakeEngine{name: "a"}},
	}, nil)
	if _, err := tr.Translate(ctx, []string{"Tom"}, ""); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestReverseLookup(t *testing.T) {
	cache := openCache(t)
	if err := cache.Put(translate.Entry{Term: "Tom Hanks", Translation: "汤姆·汉克斯", Engine: "seed", Mode: config.ModeFast}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	tr := translate.NewTranslator(cache, "zh-CN", nil, nil)
	original, ok := tr.ReverseLookup("汤姆·汉克斯")
	if !ok || original != "Tom Hanks" {
		t.Fatalf("unexpected reverse lookup %q %v", original, ok)
	}
	if n, _ := cache.Len(); n != 1 {
		t.Fatalf("expected 1 cached term, got %d", n)
	}
}
