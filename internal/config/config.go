// Package config loads the orchestrator's flat, dotted-key configuration
// from environment variables, an optional YAML file, and built-in
// defaults, in that priority order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every configuration value the orchestrator's components
// are wired from at startup.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Import    ImportConfig    `mapstructure:"import"`
	Naming    NamingConfig    `mapstructure:"naming"`
	Blocklist BlocklistConfig `mapstructure:"blocklist"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Download  DownloadConfig  `mapstructure:"download"`
	Indexers  []IndexerConfig `mapstructure:"indexers"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// ServerConfig is the HTTP bind address for internal/httpapi.
type ServerConfig struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.ListenHost, s.ListenPort)
}

// DatabaseConfig is the Mongo connection string and target database.
type DatabaseConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// LoggingConfig controls zerolog's level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// WorkersConfig is the queue processor's per-kind concurrency caps.
type WorkersConfig struct {
	Search       int `mapstructure:"search"`
	Import       int `mapstructure:"import"`
	DownloadPoll int `mapstructure:"download_poll"`
	Evaluate     int `mapstructure:"evaluate"`
	Refresh      int `mapstructure:"refresh"`
}

// RetryConfig is the queue processor's exponential-backoff-with-jitter
// parameters.
type RetryConfig struct {
	BaseMs      int `mapstructure:"base_ms"`
	CapMs       int `mapstructure:"cap_ms"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

func (r RetryConfig) Base() time.Duration { return time.Duration(r.BaseMs) * time.Millisecond }
func (r RetryConfig) Cap() time.Duration  { return time.Duration(r.CapMs) * time.Millisecond }

// BreakerConfig is the per-adapter circuit breaker default thresholds.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	CooldownMs       int `mapstructure:"cooldown_ms"`
	SuccessThreshold int `mapstructure:"success_threshold"`
}

func (b BreakerConfig) Cooldown() time.Duration { return time.Duration(b.CooldownMs) * time.Millisecond }

// ImportConfig controls file placement and sample filtering in
// internal/importpipeline.
type ImportConfig struct {
	StrategyPreference []string `mapstructure:"strategy_preference"`
	SampleMaxBytes     int64    `mapstructure:"sample_max_bytes"`
	LibraryRoot        string   `mapstructure:"library_root"`
}

// NamingConfig is the user-configurable template pair for internal/naming.
type NamingConfig struct {
	Movie  string `mapstructure:"movie"`
	Folder string `mapstructure:"folder"`
}

// BlocklistConfig is the expiry window for blocklist entries.
type BlocklistConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

func (b BlocklistConfig) TTL() time.Duration { return time.Duration(b.TTLHours) * time.Hour }

// RefreshConfig is the scheduler cadence for per-movie refresh jobs.
type RefreshConfig struct {
	RSSIntervalMinutes       int `mapstructure:"rss_interval_minutes"`
	SearchIntervalHours      int `mapstructure:"search_interval_hours"`
	ReconcileIntervalMinutes int `mapstructure:"reconcile_interval_minutes"`
}

func (r RefreshConfig) RSSInterval() time.Duration {
	return time.Duration(r.RSSIntervalMinutes) * time.Minute
}

func (r RefreshConfig) SearchInterval() time.Duration {
	return time.Duration(r.SearchIntervalHours) * time.Hour
}

// ReconcileInterval is how often the monitored-movie refresh sweep
// runs as a safety net alongside each movie's own self-chaining jobs.
func (r RefreshConfig) ReconcileInterval() time.Duration {
	return time.Duration(r.ReconcileIntervalMinutes) * time.Minute
}

// MetadataConfig is the TMDB adapter's credentials and cache policy.
type MetadataConfig struct {
	TMDB TMDBConfig `mapstructure:"tmdb"`
}

type TMDBConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours"`
}

func (t TMDBConfig) CacheTTL() time.Duration { return time.Duration(t.CacheTTLHours) * time.Hour }

// DownloadConfig is the qBittorrent adapter's connection settings.
type DownloadConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Category      string `mapstructure:"category"`
	TimeoutSecond int    `mapstructure:"timeout_seconds"`
}

func (d DownloadConfig) Timeout() time.Duration { return time.Duration(d.TimeoutSecond) * time.Second }

// IndexerConfig is one configured Torznab endpoint.
type IndexerConfig struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// CacheConfig is the Redis connection used by the TMDB adapter's
// response cache.
type CacheConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

// Default returns a Config populated with the orchestrator's built-in
// defaults; Load overlays a config file and environment on top of these.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenHost: "0.0.0.0", ListenPort: 8090},
		Database: DatabaseConfig{URL: "mongodb://localhost:27017", Name: "reelwatch"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Workers: WorkersConfig{
			Search:       4,
			Import:       2,
			DownloadPoll: 1,
			Evaluate:     4,
			Refresh:      2,
		},
		Retry: RetryConfig{BaseMs: 500, CapMs: 60_000, MaxAttempts: 8},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CooldownMs:       30_000,
			SuccessThreshold: 2,
		},
		Import: ImportConfig{
			StrategyPreference: []string{"hardlink", "reflink", "copy"},
			SampleMaxBytes:     50 * 1024 * 1024,
			LibraryRoot:        "./library",
		},
		Naming: NamingConfig{
			Movie:  "{title} ({year})/{title} ({year}) - {resolution} {source}{edition}",
			Folder: "{title} ({year})",
		},
		Blocklist: BlocklistConfig{TTLHours: 24 * 14},
		Refresh: RefreshConfig{
			RSSIntervalMinutes:       15,
			SearchIntervalHours:      6,
			ReconcileIntervalMinutes: 60,
		},
		Metadata: MetadataConfig{
			TMDB: TMDBConfig{
				BaseURL:       "https://api.themoviedb.org/3",
				CacheTTLHours: 24 * 7,
			},
		},
		Download: DownloadConfig{
			BaseURL:       "http://localhost:8080",
			Category:      "reelwatch",
			TimeoutSecond: 30,
		},
		Cache: CacheConfig{RedisAddr: "localhost:6379"},
	}
}

// Load reads configuration from an optional file path, environment
// variables, and defaults, in that priority: environment > file >
// defaults. envFile, if it exists, is loaded into the process
// environment first (secrets go there, never in the checked-in config
// file).
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("REELWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the codebase assumes hold
// (non-zero worker counts, a resolvable database URL) so a malformed
// configuration fails fast at startup rather than surfacing as a
// confusing runtime error later.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Workers.Search <= 0 || c.Workers.Import <= 0 || c.Workers.DownloadPoll <= 0 {
		return fmt.Errorf("workers.search, workers.import, and workers.download_poll must all be positive")
	}
	if c.Server.ListenPort <= 0 || c.Server.ListenPort > 65535 {
		return fmt.Errorf("server.listen_port %d is out of range", c.Server.ListenPort)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.listen_host", d.Server.ListenHost)
	v.SetDefault("server.listen_port", d.Server.ListenPort)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.name", d.Database.Name)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("workers.search", d.Workers.Search)
	v.SetDefault("workers.import", d.Workers.Import)
	v.SetDefault("workers.download_poll", d.Workers.DownloadPoll)
	v.SetDefault("workers.evaluate", d.Workers.Evaluate)
	v.SetDefault("workers.refresh", d.Workers.Refresh)

	v.SetDefault("retry.base_ms", d.Retry.BaseMs)
	v.SetDefault("retry.cap_ms", d.Retry.CapMs)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)

	v.SetDefault("breaker.failure_threshold", d.Breaker.FailureThreshold)
	v.SetDefault("breaker.cooldown_ms", d.Breaker.CooldownMs)
	v.SetDefault("breaker.success_threshold", d.Breaker.SuccessThreshold)

	v.SetDefault("import.strategy_preference", d.Import.StrategyPreference)
	v.SetDefault("import.sample_max_bytes", d.Import.SampleMaxBytes)
	v.SetDefault("import.library_root", d.Import.LibraryRoot)

	v.SetDefault("naming.movie", d.Naming.Movie)
	v.SetDefault("naming.folder", d.Naming.Folder)

	v.SetDefault("blocklist.ttl_hours", d.Blocklist.TTLHours)

	v.SetDefault("refresh.rss_interval_minutes", d.Refresh.RSSIntervalMinutes)
	v.SetDefault("refresh.search_interval_hours", d.Refresh.SearchIntervalHours)
	v.SetDefault("refresh.reconcile_interval_minutes", d.Refresh.ReconcileIntervalMinutes)

	v.SetDefault("metadata.tmdb.base_url", d.Metadata.TMDB.BaseURL)
	v.SetDefault("metadata.tmdb.cache_ttl_hours", d.Metadata.TMDB.CacheTTLHours)

	v.SetDefault("download.base_url", d.Download.BaseURL)
	v.SetDefault("download.category", d.Download.Category)
	v.SetDefault("download.timeout_seconds", d.Download.TimeoutSecond)

	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
}
