package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/testsupport"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := readLog(t, logPath); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndWorkKey(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithWorkKey(context.Background(), "series-555")
	component := logging.NewComponentLogger(logger, "pipeline")
	logging.WithContext(ctx, component).Info("unit processed", logging.Int("children", 2))

	content := readLog(t, logPath)
	if !strings.Contains(content, "[pipeline] series-555") {
		t.Fatalf("expected component and work key in header, got %q", content)
	}
	if !strings.Contains(content, "- Children: 2") {
		t.Fatalf("expected attribute line, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkKey(ctx, "movie-42")
	ctx = services.WithStage(ctx, "reconcile")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	out := buf.String()
	for _, want := range []string{`"work_key":"movie-42"`, `"stage":"reconcile"`, `"correlation_id":"req-xyz"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestCleanupOldLogsRemovesExpiredBackups(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, logging.LogFileName)
	backup := filepath.Join(dir, "curator-2020-01-01T00-00-00.000.log")
	for _, path := range []string{active, backup} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	old := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(backup, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(active, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 3, logging.RotatedLogs(dir))

	if _, err := os.Stat(backup); !os.IsNotExist(err) {
		t.Fatalf("expected backup removed, stat err=%v", err)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("expected active log kept: %v", err)
	}
}

func TestJSONFormatRendersDurationsAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.json")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("unit processed",
		logging.Duration("latency", 1500*time.Millisecond),
		logging.Error(services.ErrPersistence),
	)

	var entry map[string]any
	if err := json.Unmarshal([]byte(readLog(t, path)), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "info" || entry["msg"] != "unit processed" {
		t.Fatalf("unexpected header fields %+v", entry)
	}
	if entry["latency_ms"] != 1500.0 {
		t.Fatalf("expected latency_ms 1500, got %v", entry["latency_ms"])
	}
	if entry["error"] != "persistence failure" {
		t.Fatalf("expected error string, got %v", entry["error"])
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC millisecond timestamp, got %q", ts)
	}
}
