package config

const (
	defaultConfigPath            = "~/.config/curator/config.toml"
	defaultDataDir               = "~/.local/share/curator"
	defaultLogDir                = "~/.local/share/curator/logs"
	defaultOverrideCacheDir      = "~/.local/share/curator/override"
	defaultTranslationCachePath  = "~/.local/share/curator/translations.db"
	defaultAPIBind               = "127.0.0.1:7588"
	defaultHostTimeoutSeconds    = 15
	defaultHostMaxRetries        = 3
	defaultHostPageSize          = 200
	defaultTMDBLanguage          = "zh-CN"
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBTimeoutSeconds    = 10
	defaultDoubanBaseURL         = "https://frodo.douban.com/api/v2"
	defaultDoubanRequestsPerSec  = 1.0
	defaultDoubanBurst           = 1
	defaultDoubanTimeoutSeconds  = 10
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/curator-media/curator"
	defaultLLMTitle              = "Curator Translator"
	defaultLLMTimeoutSeconds     = 60
	defaultTargetLanguage        = "zh-CN"
	defaultDebounceSeconds       = 5
	defaultPollIntervalSeconds   = 10
	defaultPollMaxRetries        = 30
	defaultPollConcurrency       = 5
	defaultCastMaxMembers        = 50
	defaultQualityThreshold      = 6.0
	defaultMaxConcurrentUnits    = 3
	defaultProcessedCacheSize    = 4096
	defaultNotifyRequestTimeout  = 10
	defaultNotifyDedupWindowSecs = 600
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultLogMaxSizeMB          = 50
	defaultLogMaxBackups         = 5
)

// Translation tiers in escalation order.
const (
	ModeFast          = "fast"
	ModeTransliterate = "transliterate"
	ModeContextual    = "contextual"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:          defaultDataDir,
			LogDir:           defaultLogDir,
			OverrideCacheDir: defaultOverrideCacheDir,
			APIBind:          defaultAPIBind,
		},
		Host: Host{
			TimeoutSeconds: defaultHostTimeoutSeconds,
			MaxRetries:     defaultHostMaxRetries,
			PageSize:       defaultHostPageSize,
		},
		TMDB: TMDB{
			Language:       defaultTMDBLanguage,
			BaseURL:        defaultTMDBBaseURL,
			TimeoutSeconds: defaultTMDBTimeoutSeconds,
		},
		Douban: Douban{
			BaseURL:           defaultDoubanBaseURL,
			RequestsPerSecond: defaultDoubanRequestsPerSec,
			Burst:             defaultDoubanBurst,
			TimeoutSeconds:    defaultDoubanTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Translation: Translation{
			Enabled:        true,
			TargetLanguage: defaultTargetLanguage,
			Modes:          []string{ModeFast, ModeTransliterate, ModeContextual},
			CachePath:      defaultTranslationCachePath,
		},
		Intake: Intake{
			DebounceSeconds: defaultDebounceSeconds,
		},
		Poller: Poller{
			IntervalSeconds: defaultPollIntervalSeconds,
			MaxRetries:      defaultPollMaxRetries,
			Concurrency:     defaultPollConcurrency,
		},
		Cast: Cast{
			MaxMembers: defaultCastMaxMembers,
		},
		Quality: Quality{
			Threshold:     defaultQualityThreshold,
			RelaxedGenres: []string{"animation", "documentary"},
		},
		Workflow: Workflow{
			MaxConcurrentUnits: defaultMaxConcurrentUnits,
			ProcessedCacheSize: defaultProcessedCacheSize,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Review:             true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSecs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}
