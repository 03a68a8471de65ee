package config

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Geocoder   GeocoderConfig   `yaml:"geocoder" mapstructure:"geocoder"`
	Quota      QuotaConfig      `yaml:"quota" mapstructure:"quota"`
	RateWindow RateWindowConfig `yaml:"rate_window" mapstructure:"rate_window"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DatasetConfig names the columns the pipeline reads and writes.
type DatasetConfig struct {
	AddressColumn    string `yaml:"address_column" mapstructure:"address_column"`
	CoordinateColumn string `yaml:"coordinate_column" mapstructure:"coordinate_column"`
	CSVCharset       string `yaml:"csv_charset" mapstructure:"csv_charset"` // e.g. "windows-1251"; empty means UTF-8
}

// GeocoderConfig holds geocoding provider settings.
type GeocoderConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	APIKeyFile   string  `yaml:"api_key_file" mapstructure:"api_key_file"`
	Language     string  `yaml:"lang" mapstructure:"lang"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// QuotaConfig bounds the number of outbound lookups. Zero disables a ceiling.
type QuotaConfig struct {
	MaxRequestsPerRun int    `yaml:"max_requests_per_run" mapstructure:"max_requests_per_run"`
	DailyLimit        int    `yaml:"daily_limit" mapstructure:"daily_limit"`
	Timezone          string `yaml:"timezone" mapstructure:"timezone"`
}

// RateWindowConfig configures the window-then-pause limiter.
type RateWindowConfig struct {
	MaxRequests  int `yaml:"max_requests" mapstructure:"max_requests"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// RetryConfig configures per-row retries of transient lookup failures.
// MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CheckpointConfig controls intermediate persistence during a run.
type CheckpointConfig struct {
	Every int `yaml:"every" mapstructure:"every"`
}

// StoreConfig configures the SQLite database used for the quota ledger and run history.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	TTLDays int  `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// ServerConfig configures the HTTP upload/process/download service.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	UploadDir         string   `yaml:"upload_dir" mapstructure:"upload_dir"`
	CredentialDir     string   `yaml:"credential_dir" mapstructure:"credential_dir"`
	MaxUploadMB       int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run-health alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DailyUsageWarnRatio  float64 `yaml:"daily_usage_warn_ratio" mapstructure:"daily_usage_warn_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-lookup timeout.
func (g GeocoderConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// Cooldown returns the pause applied after a full rate window.
func (r RateWindowConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownSecs) * time.Second
}

// Location resolves the quota timezone, falling back to UTC.
func (q QuotaConfig) Location() *time.Location {
	if q.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		zap.L().Warn("config: unknown quota timezone, using UTC", zap.String("timezone", q.Timezone))
		return time.UTC
	}
	return loc
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.address_column", "Адрес")
	v.SetDefault("dataset.coordinate_column", "Координаты")
	v.SetDefault("dataset.csv_charset", "")
	v.SetDefault("geocoder.base_url", "https://geocode-maps.yandex.ru/1.x/")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.api_key_file", "apikey.txt")
	v.SetDefault("geocoder.lang", "")
	v.SetDefault("geocoder.timeout_secs", 10)
	v.SetDefault("geocoder.rate_limit_rps", 0)
	v.SetDefault("quota.max_requests_per_run", 900)
	v.SetDefault("quota.daily_limit", 900)
	v.SetDefault("quota.timezone", "UTC")
	v.SetDefault("rate_window.max_requests", 100)
	v.SetDefault("rate_window.cooldown_secs", 60)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("checkpoint.every", 0)
	v.SetDefault("store.database_url", "geo-enrich.db")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.credential_dir", ".")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_extensions", []string{".xlsx", ".csv"})
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.daily_usage_warn_ratio", 0.9)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
