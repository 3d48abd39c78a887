package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHost()
	c.normalizeTMDB()
	c.normalizeDouban()
	c.normalizeLLM()
	if err := c.normalizeTranslation(); err != nil {
		return err
	}
	c.normalizeQuality()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OverrideCacheDir, err = expandPath(c.Paths.OverrideCacheDir); err != nil {
		return fmt.Errorf("paths.override_cache_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CURATOR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeHost() {
	c.Host.URL = strings.TrimRight(strings.TrimSpace(c.Host.URL), "/")
	c.Host.APIKey = strings.TrimSpace(c.Host.APIKey)
	if c.Host.APIKey == "" {
		if value, ok := os.LookupEnv("CURATOR_HOST_API_KEY"); ok {
			c.Host.APIKey = strings.TrimSpace(value)
		}
	}
	c.Host.UserID = strings.TrimSpace(c.Host.UserID)
	if c.Host.TimeoutSeconds <= 0 {
		c.Host.TimeoutSeconds = defaultHostTimeoutSeconds
	}
	if c.Host.MaxRetries <= 0 {
		c.Host.MaxRetries = defaultHostMaxRetries
	}
	if c.Host.PageSize <= 0 {
		c.Host.PageSize = defaultHostPageSize
	}
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeoutSeconds
	}
}

func (c *Config) normalizeDouban() {
	c.Douban.BaseURL = strings.TrimSpace(c.Douban.BaseURL)
	if c.Douban.BaseURL == "" {
		c.Douban.BaseURL = defaultDoubanBaseURL
	}
	c.Douban.APIKey = strings.TrimSpace(c.Douban.APIKey)
	if c.Douban.APIKey == "" {
		if value, ok := os.LookupEnv("DOUBAN_API_KEY"); ok {
			c.Douban.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Douban.RequestsPerSecond <= 0 {
		c.Douban.RequestsPerSecond = defaultDoubanRequestsPerSec
	}
	if c.Douban.Burst <= 0 {
		c.Douban.Burst = defaultDoubanBurst
	}
	if c.Douban.TimeoutSeconds <= 0 {
		c.Douban.TimeoutSeconds = defaultDoubanTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTranslation() error {
	c.Translation.TargetLanguage = strings.TrimSpace(c.Translation.TargetLanguage)
	if c.Translation.TargetLanguage == "" {
		c.Translation.TargetLanguage = defaultTargetLanguage
	}
	modes := make([]string, 0, len(c.Translation.Modes))
	seen := make(map[string]struct{}, len(c.Translation.Modes))
	for _, mode := range c.Translation.Modes {
		normalized := strings.ToLower(strings.TrimSpace(mode))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		modes = append(modes, normalized)
	}
	c.Translation.Modes = modes
	if strings.TrimSpace(c.Translation.CachePath) == "" {
		c.Translation.CachePath = defaultTranslationCachePath
	}
	var err error
	if c.Translation.CachePath, err = expandPath(c.Translation.CachePath); err != nil {
		return fmt.Errorf("translation.cache_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeQuality() {
	genres := make([]string, 0, len(c.Quality.RelaxedGenres))
	for _, genre := range c.Quality.RelaxedGenres {
		if normalized := strings.ToLower(strings.TrimSpace(genre)); normalized != "" {
			genres = append(genres, normalized)
		}
	}
	c.Quality.RelaxedGenres = genres
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
}
