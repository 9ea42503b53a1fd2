package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Landing LandingConfig `mapstructure:"landing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"` // "debug" or "release"
	APIKey          string `mapstructure:"api_key"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours"`
	MaxSessions     int    `mapstructure:"max_sessions"`
	TemplatesDir    string `mapstructure:"templates_dir"` // empty uses embedded templates
}

// BackendConfig points at the remote backtest service.
type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  int           `mapstructure:"requests_per_sec"`
	MaxRetries      int           `mapstructure:"max_retries"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries"`
}

// LandingConfig holds the leaderboard parameters of the landing page.
type LandingConfig struct {
	RankDays  int `mapstructure:"rank_days"`
	RankLimit int `mapstructure:"rank_limit"`
	RankK     int `mapstructure:"rank_k"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SessionTTL returns the session lifetime.
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLHours) * time.Hour
}

// Load reads configuration from file on top of the defaults. A .env file
// next to the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("ZHUNLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			SessionTTLHours: 12,
			MaxSessions:     10000,
		},
		Backend: BackendConfig{
			BaseURL:         "http://localhost:8000/api",
			Timeout:         10 * time.Second,
			RequestsPerSec:  5,
			MaxRetries:      2,
			CacheTTL:        30 * time.Second,
			CacheMaxEntries: 500,
		},
		Landing: LandingConfig{
			RankDays:  10,
			RankLimit: 20,
			RankK:     5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.session_ttl_hours", d.Server.SessionTTLHours)
	v.SetDefault("server.max_sessions", d.Server.MaxSessions)
	v.SetDefault("server.templates_dir", "")
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.requests_per_sec", d.Backend.RequestsPerSec)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("backend.cache_ttl", d.Backend.CacheTTL)
	v.SetDefault("backend.cache_max_entries", d.Backend.CacheMaxEntries)
	v.SetDefault("landing.rank_days", d.Landing.RankDays)
	v.SetDefault("landing.rank_limit", d.Landing.RankLimit)
	v.SetDefault("landing.rank_k", d.Landing.RankK)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("mode must be debug or release, got %q", c.Server.Mode))
	}
	if c.Server.MaxSessions < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_sessions must be positive, got %d", c.Server.MaxSessions))
	}
	if c.Server.SessionTTLHours < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session_ttl_hours cannot be negative, got %d", c.Server.SessionTTLHours))
	}

	// Backend validation
	if c.Backend.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("backend base_url required"))
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backend base_url must be an http(s) URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.MaxRetries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_retries cannot be negative, got %d", c.Backend.MaxRetries))
	}
	if c.Backend.CacheTTL < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache_ttl cannot be negative, got %s", c.Backend.CacheTTL))
	}

	// Landing validation
	if c.Landing.RankDays < 1 || c.Landing.RankLimit < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rank_days and rank_limit must be positive"))
	}

	// Metrics validation
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path))
	}

	return nil
}
