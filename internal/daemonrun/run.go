package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"curator/internal/cast"
	"curator/internal/config"
	"curator/internal/daemon"
	"curator/internal/host"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/overrides"
	"curator/internal/pipeline"
	"curator/internal/provider/douban"
	"curator/internal/provider/tmdb"
	"curator/internal/quality"
	"curator/internal/store"
	"curator/internal/translate"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the curator daemon runtime loop and blocks until a signal or
// cmdCtx ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RotatedLogs(cfg.Paths.LogDir))
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open record store", logging.Error(err))
		return err
	}
	defer st.Close()

	var translator *translate.Translator
	if cfg.Translation.Enabled {
		cache, err := translate.OpenCache(cfg.Translation.CachePath, cfg.Translation.TargetLanguage)
		if err != nil {
			return fmt.Errorf("open translation cache: %w", err)
		}
		defer cache.Close()
		tiers := translate.TiersFromConfig(cfg, translate.NewLLMEngineFromConfig(cfg))
		translator = translate.NewTranslator(cache, cfg.Translation.TargetLanguage, tiers, logger)
	}

	notifier := notifications.NewService(cfg)
	orch, hostClient, files, err := buildOrchestrator(cfg, st, translator, notifier, logger)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, daemon.Options{
		Store:        st,
		Host:         hostClient,
		Orchestrator: orch,
		Notifier:     notifier,
		OverrideRoot: files.Root(),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind, the lock file and database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("curator daemon shutting down")
	return nil
}

// newLogger builds the rotating file plus stdout logger, honouring a
// command-line level override.
func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	tuned := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		tuned.Logging.Level = level
	}
	if opts.Development {
		tuned.Logging.Level = "debug"
	}
	return logging.NewFromConfig(&tuned)
}

// buildOrchestrator wires the providers, cast engine and both stores. The
// secondary provider is attached only when enabled.
func buildOrchestrator(cfg *config.Config, st *store.Store, translator *translate.Translator, notifier notifications.Service, logger *slog.Logger) (*pipeline.Orchestrator, *host.Client, *overrides.Cache, error) {
	hostClient, err := host.New(cfg.Host)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("host client: %w", err)
	}
	primary, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithHTTPClient(&http.Client{Timeout: seconds(cfg.TMDB.TimeoutSeconds, 15)}))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tmdb client: %w", err)
	}

	castOpts := []cast.Option{cast.WithPeople(primary)}
	if translator != nil {
		castOpts = append(castOpts, cast.WithTranslator(translator))
	}
	var secondary pipeline.SecondaryProvider
	if cfg.Douban.Enabled {
		client, err := douban.New(cfg.Douban)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("douban client: %w", err)
		}
		secondary = client
		castOpts = append(castOpts, cast.WithSecondary(client))
	}

	processed, err := pipeline.NewProcessedSet(cfg.Workflow.ProcessedCacheSize)
	if err != nil {
		return nil, nil, nil, err
	}
	files := overrides.NewOS(cfg.Paths.OverrideCacheDir)
	engine := cast.NewEngine(st, cast.Limits{
		MaxMembers:       cfg.Cast.MaxMembers,
		DropWithoutImage: cfg.Cast.DropWithoutImage,
	}, logger, castOpts...)

	orch, err := pipeline.NewOrchestrator(pipeline.Dependencies{
		Host:      hostClient,
		Primary:   primary,
		Secondary: secondary,
		Cast:      engine,
		Store:     st,
		Writer:    pipeline.NewDualWriter(st, files, logger),
		Gate:      quality.NewGate(st, cfg.Quality, logger),
		Notifier:  notifier,
		Processed: processed,
		Language:  cfg.TMDB.Language,
		CastCap:   cfg.Cast.MaxMembers,
		PageSize:  hostClient.PageSize(),
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return orch, hostClient, files, nil
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("host_url", cfg.Host.URL),
		logging.Bool("host_key_present", strings.TrimSpace(cfg.Host.APIKey) != ""),
		logging.Bool("tmdb_key_present", strings.TrimSpace(cfg.TMDB.APIKey) != ""),
		logging.Bool("douban_enabled", cfg.Douban.Enabled),
		logging.Bool("translation_enabled", cfg.Translation.Enabled),
		logging.String("translation_target", cfg.Translation.TargetLanguage),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("override_root", cfg.Paths.OverrideCacheDir),
	)
}
