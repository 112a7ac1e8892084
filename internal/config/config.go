package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	NASS  NASSConfig  `yaml:"nass" mapstructure:"nass"`
	Match MatchConfig `yaml:"match" mapstructure:"match"`
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	ETL   ETLConfig   `yaml:"etl" mapstructure:"etl"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// NASSConfig configures access to the USDA NASS QuickStats API.
type NASSConfig struct {
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	State          string   `yaml:"state" mapstructure:"state"`
	Year           int      `yaml:"year" mapstructure:"year"`
	Statistics     []string `yaml:"statistics" mapstructure:"statistics"`
	AggLevel       string   `yaml:"agg_level" mapstructure:"agg_level"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int      `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// MatchConfig holds the fuzzy-matching thresholds.
type MatchConfig struct {
	AutoThreshold   float64 `yaml:"auto_threshold" mapstructure:"auto_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	MaxCandidates   int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// CacheConfig configures the local JSON snapshot cache.
type CacheConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MaxAgeHours int    `yaml:"max_age_hours" mapstructure:"max_age_hours"`
	AllowStale  bool   `yaml:"allow_stale" mapstructure:"allow_stale"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ETLConfig configures the extract-transform-load run.
type ETLConfig struct {
	DatasetName string `yaml:"dataset_name" mapstructure:"dataset_name"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AGSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The empty-string entries register the key with viper so
	// AutomaticEnv can populate it even when no config file mentions it.
	v.SetDefault("nass.api_key", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("nass.base_url", "https://quickstats.nass.usda.gov/api/api_GET")
	v.SetDefault("nass.state", "CA")
	v.SetDefault("nass.year", 2022)
	v.SetDefault("nass.statistics", []string{"AREA HARVESTED", "YIELD", "PRODUCTION"})
	v.SetDefault("nass.agg_level", "COUNTY")
	v.SetDefault("nass.timeout_secs", 30)
	v.SetDefault("nass.max_retries", 3)
	v.SetDefault("nass.requests_per_sec", 2.0)
	v.SetDefault("match.auto_threshold", 0.90)
	v.SetDefault("match.review_threshold", 0.60)
	v.SetDefault("match.max_candidates", 5)
	v.SetDefault("cache.dir", ".cache")
	v.SetDefault("cache.max_age_hours", 168)
	v.SetDefault("cache.allow_stale", false)
	v.SetDefault("etl.dataset_name", "USDA_NASS_QUICKSTATS")
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

// ErrMissingAPIKey is returned when the NASS credential is absent. Nothing
// useful can proceed without it, so callers abort before any network call.
var ErrMissingAPIKey = eris.New("config: nass.api_key is not set (get a free key at https://quickstats.nass.usda.gov/api)")

// ErrMissingDatabaseURL is returned when no database DSN is configured.
var ErrMissingDatabaseURL = eris.New("config: store.database_url is not set")

// RequireAPIKey validates that the NASS credential is present.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.NASS.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RequireDatabaseURL validates that a database DSN is present.
func (c *Config) RequireDatabaseURL() error {
	if strings.TrimSpace(c.Store.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	return nil
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
