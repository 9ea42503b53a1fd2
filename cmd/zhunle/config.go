package main

import (
	"fmt"

	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/config"
	"go.uber.org/zap"
)

// loadConfig reads --config, or falls back to defaults. --backend is
// applied before validation so a bad URL is still rejected.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, err
		}
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config, log *zap.Logger, opts ...client.Option) *client.Client {
	b := cfg.Backend
	opts = append([]client.Option{
		client.WithTimeout(b.Timeout),
		client.WithRateLimit(b.RequestsPerSec),
		client.WithMaxRetries(b.MaxRetries),
		client.WithCache(b.CacheTTL, b.CacheMaxEntries),
		client.WithLogger(log),
	}, opts...)
	return client.New(b.BaseURL, opts...)
}
