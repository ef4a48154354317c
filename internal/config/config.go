package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	Environment   string `toml:"environment"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	AutoMigrate    bool   `toml:"auto_migrate"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// models
	ModelsDir                 string `toml:"models_dir"`
	PredictionCacheSizeMB     int    `toml:"prediction_cache_size_mb"`
	PredictionCacheTTLSeconds int    `toml:"prediction_cache_ttl_seconds"`
	DefaultHorizonDays        int    `toml:"default_horizon_days"`

	// auth
	LoginRateLimitAllowedPerMin int  `toml:"login_rate_limit_allowed_per_min"`
	RequireSessionToken         bool `toml:"require_session_token"`

	AllowedOrigins []string `toml:"allowed_origins"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", env)
	}
	cfg.setDefaults()
	return cfg, cfg.validate()
}

// Load reads the TOML config file and returns the section for the given env.
func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}
	return tomlConfig.Get(env)
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.DefaultHorizonDays == 0 {
		c.DefaultHorizonDays = 30
	}
	if c.PredictionCacheSizeMB == 0 {
		c.PredictionCacheSizeMB = 16
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 10
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	if c.DefaultHorizonDays < 0 {
		return errors.New("default horizon days must not be negative")
	}
	if c.PredictionCacheTTLSeconds < 0 {
		return errors.New("prediction cache ttl must not be negative")
	}
	return nil
}
