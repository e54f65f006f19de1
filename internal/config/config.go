// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUserAgent mimics desktop Chrome; eBay serves challenge pages to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	DB       DBConfig       `mapstructure:"db"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig locates the listing catalog.
type InputConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig sets where images and the summary go.
type OutputConfig struct {
	SummaryPath   string `mapstructure:"summary_path"`
	ImageRoot     string `mapstructure:"image_root"`
	DefaultFolder string `mapstructure:"default_folder"`
}

// BrowserConfig configures page loading.
type BrowserConfig struct {
	// Enabled selects headless Chrome; false falls back to a static HTTP fetch.
	Enabled           bool   `mapstructure:"enabled"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleMillis      int    `mapstructure:"settle_millis"`
	Headless          bool   `mapstructure:"headless"`
}

// DownloadConfig configures the image client.
type DownloadConfig struct {
	TimeoutSeconds   int   `mapstructure:"timeout_seconds"`
	MaxBytes         int64 `mapstructure:"max_bytes"`
	CloudflareBypass bool  `mapstructure:"cloudflare_bypass"`
}

// StorageConfig selects the image backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Overwrite bool   `mapstructure:"overwrite"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// RetryConfig bounds per-stage retries. MaxAttempts of 1 disables retrying.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// ResolverConfig tunes image resolution.
type ResolverConfig struct {
	MinDimension int `mapstructure:"min_dimension"`
}

// DBConfig controls the optional results table.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig controls the end-of-run Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"input":    "input.path",
	"output":   "output.summary_path",
	"img-root": "output.image_root",
}

// Load builds a Config from defaults, an optional file, HARVESTER_* environment
// variables and, highest priority, any flags that were set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "gallery.json")
	v.SetDefault("output.summary_path", "gallery_summary.json")
	v.SetDefault("output.image_root", "ebay_by_title")
	v.SetDefault("output.default_folder", "Unknown")
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.settle_millis", 2500)
	v.SetDefault("browser.headless", true)
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("download.max_bytes", 25<<20)
	v.SetDefault("download.cloudflare_bypass", true)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.overwrite", true)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.base_delay_ms", 250)
	v.SetDefault("retry.max_delay_ms", 5000)
	v.SetDefault("resolver.min_dimension", 100)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "harvested_images")
	v.SetDefault("db.max_conns", 2)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "listing_image_harvester")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		return fmt.Errorf("input.path is required")
	}
	if strings.TrimSpace(c.Output.SummaryPath) == "" {
		return fmt.Errorf("output.summary_path is required")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.SettleMillis < 0 {
		return fmt.Errorf("browser.settle_millis must be >= 0")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be > 0")
	}
	if c.Download.MaxBytes <= 0 {
		return fmt.Errorf("download.max_bytes must be > 0")
	}
	switch c.Storage.Backend {
	case "local":
		if strings.TrimSpace(c.Output.ImageRoot) == "" {
			return fmt.Errorf("output.image_root is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelayMs < 0 || c.Retry.MaxDelayMs < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if c.Resolver.MinDimension < 0 {
		return fmt.Errorf("resolver.min_dimension must be >= 0")
	}
	return nil
}

// NavTimeout returns the page navigation bound.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// SettleDelay returns the pause after the page body is ready.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Browser.SettleMillis) * time.Millisecond
}

// DownloadTimeout returns the per-image request timeout.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// RetryDelays returns the base and maximum backoff.
func (c Config) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}
