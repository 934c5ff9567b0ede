package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type IngestConfig struct {
	URL     string        `env:"INGEST_URL"`
	Timeout time.Duration `env:"INGEST_TIMEOUT, default=30s"`
}

func NewIngestConfigFromEnv() (*IngestConfig, error) {
	var cfg IngestConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Enabled reports whether finished analyses are sent to the ingestion API.
func (c *IngestConfig) Enabled() bool {
	return c.URL != ""
}
