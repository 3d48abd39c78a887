package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if err := c.validateDouban(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'curator config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateHost() error {
	if strings.TrimSpace(c.Host.URL) == "" {
		return errors.New("host.url must be set")
	}
	if strings.TrimSpace(c.Host.APIKey) == "" {
		return errors.New("host.api_key must be set (or set CURATOR_HOST_API_KEY)")
	}
	return nil
}

func (c *Config) validateDouban() error {
	if !c.Douban.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Douban.APIKey) == "" {
		return errors.New("douban.api_key must be set when douban.enabled is true")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !c.Translation.Enabled {
		return nil
	}
	for _, mode := range c.Translation.Modes {
		switch mode {
		case ModeFast, ModeTransliterate, ModeContextual:
		default:
			return fmt.Errorf("translation.modes: unsupported mode %q", mode)
		}
	}
	if len(c.Translation.Modes) > 0 && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key must be set when translation is enabled (or set OPENROUTER_API_KEY)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"intake.debounce_seconds":       c.Intake.DebounceSeconds,
		"poller.interval_seconds":       c.Poller.IntervalSeconds,
		"poller.max_retries":            c.Poller.MaxRetries,
		"poller.concurrency":            c.Poller.Concurrency,
		"cast.max_members":              c.Cast.MaxMembers,
		"workflow.max_concurrent_units": c.Workflow.MaxConcurrentUnits,
		"workflow.processed_cache_size": c.Workflow.ProcessedCacheSize,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 10 {
		return errors.New("quality.threshold must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
