package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir          string `toml:"data_dir"`
	LogDir           string `toml:"log_dir"`
	OverrideCacheDir string `toml:"override_cache_dir"`
	APIBind          string `toml:"api_bind"`
	APIToken         string `toml:"api_token"`
}

// Host contains the library host (Emby/Jellyfin) connection settings.
type Host struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	UserID         string `toml:"user_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	PageSize       int    `toml:"page_size"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Douban contains configuration for the secondary crowd-sourced provider.
type Douban struct {
	Enabled           bool    `toml:"enabled"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// LLM contains the chat completion settings used by the contextual translator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation controls cast name and role localisation.
type Translation struct {
	Enabled        bool     `toml:"enabled"`
	TargetLanguage string   `toml:"target_language"`
	Modes          []string `toml:"modes"`
	CachePath      string   `toml:"cache_path"`
}

// Intake contains the webhook coalescing settings.
type Intake struct {
	DebounceSeconds int `toml:"debounce_seconds"`
}

// Poller contains stream-validity polling settings.
type Poller struct {
	IntervalSeconds int `toml:"interval_seconds"`
	MaxRetries      int `toml:"max_retries"`
	Concurrency     int `toml:"concurrency"`
}

// Cast contains cast reconciliation limits.
type Cast struct {
	MaxMembers       int  `toml:"max_members"`
	DropWithoutImage bool `toml:"drop_without_image"`
}

// Quality contains review routing thresholds.
type Quality struct {
	Threshold     float64  `toml:"threshold"`
	RelaxedGenres []string `toml:"relaxed_genres"`
}

// Workflow contains dispatcher sizing.
type Workflow struct {
	MaxConcurrentUnits int `toml:"max_concurrent_units"`
	ProcessedCacheSize int `toml:"processed_cache_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Review             bool   `toml:"review"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for curator.
//
// Configuration sections by subsystem:
//   - Paths: data, log and override cache directories plus API bind address
//   - Host: library host the webhooks come from
//   - TMDB: primary metadata provider
//   - Douban: secondary crowd-sourced cast provider
//   - LLM and Translation: cast name localisation
//   - Intake and Poller: webhook debounce and stream readiness polling
//   - Cast and Quality: reconciliation cap and review threshold
//   - Workflow: dispatcher concurrency
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, rotation and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Host          Host          `toml:"host"`
	TMDB          TMDB          `toml:"tmdb"`
	Douban        Douban        `toml:"douban"`
	LLM           LLM           `toml:"llm"`
	Translation   Translation   `toml:"translation"`
	Intake        Intake        `toml:"intake"`
	Poller        Poller        `toml:"poller"`
	Cast          Cast          `toml:"cast"`
	Quality       Quality       `toml:"quality"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.OverrideCacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Translation.CachePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create translation cache directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "curator.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "curator.lock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "curator.pid")
}

// DebounceWindow returns the coalescer quiet period.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Intake.DebounceSeconds) * time.Second
}

// PollInterval returns the stream-validity poll spacing.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with secrets masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	masked.Host.APIKey = maskSecret(masked.Host.APIKey)
	masked.TMDB.APIKey = maskSecret(masked.TMDB.APIKey)
	masked.Douban.APIKey = maskSecret(masked.Douban.APIKey)
	masked.LLM.APIKey = maskSecret(masked.LLM.APIKey)
	masked.Paths.APIToken = maskSecret(masked.Paths.APIToken)
	return toml.Marshal(masked)
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}
