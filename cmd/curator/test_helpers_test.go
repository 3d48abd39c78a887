package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"curator/internal/cast"
	"curator/internal/config"
	"curator/internal/daemon"
	"curator/internal/host"
	"curator/internal/overrides"
	"curator/internal/pipeline"
	"curator/internal/provider/tmdb"
	"curator/internal/quality"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/testsupport"
)

type stubHost struct {
	items map[string]host.Item
}

func (h stubHost) GetItemDetails(_ context.Context, id string, _ ...string) (*host.Item, error) {
	item, ok := h.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", services.ErrNotFound, id)
	}
	return &item, nil
}

func (h stubHost) GetItemsByIDs(context.Context, []string, ...string) ([]host.Item, error) {
	return nil, nil
}

func (h stubHost) ListItems(context.Context, []string, int, int) ([]host.Item, int, error) {
	return nil, 0, nil
}

func (h stubHost) RefreshByID(context.Context, string) error { return nil }

type stubPrimary struct{}

func (stubPrimary) GetDetails(context.Context, int64, string, string) (*tmdb.Details, error) {
	return nil, errors.New("offline")
}

func (stubPrimary) Search(context.Context, string, string, int) (*tmdb.Response, error) {
	return nil, errors.New("offline")
}

func (stubPrimary) AggregateSeriesData(context.Context, int64) (*tmdb.SeriesAggregate, error) {
	return nil, errors.New("offline")
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv writes a config file pointing at an unused port. Call
// startDaemon to bring the API up on a live address.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = unusedAddr(t)
	cfg.Paths.APIToken = "cli-token"
	env := &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
	}
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	h := stubHost{items: map[string]host.Item{
		"s1": {ID: "s1", Name: "Show", Type: host.TypeSeries, ProviderIDs: map[string]string{"Tmdb": "55"}},
	}}
	files := overrides.New(afero.NewMemMapFs(), "/override")
	orch, err := pipeline.NewOrchestrator(pipeline.Dependencies{
		Host:    h,
		Primary: stubPrimary{},
		Cast:    cast.NewEngine(env.store, cast.Limits{MaxMembers: 5}, nil),
		Store:   env.store,
		Writer:  pipeline.NewDualWriter(env.store, files, nil),
		Gate:    quality.NewGate(env.store, env.cfg.Quality, nil),
		CastCap: 5,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	live := *env.cfg
	live.Paths.APIBind = "127.0.0.1:0"
	d, err := daemon.New(&live, daemon.Options{Store: env.store, Host: h, Orchestrator: orch, OverrideRoot: files.Root()})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	env.daemon = d
	env.cfg.Paths.APIBind = d.Addr()
	writeTestConfig(t, env.configPath, env.cfg)
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got %q", needle, haystack)
	}
}
