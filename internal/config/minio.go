package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type MinioConfig struct {
	Endpoint string `env:"MINIO_ENDPOINT"`
	Username string `env:"MINIO_USERNAME"`
	Password string `env:"MINIO_PASSWORD"`
	Bucket   string `env:"MINIO_BUCKET, default=clutch"`
	Secure   bool   `env:"MINIO_SECURE, default=false"`

	Retention     time.Duration `env:"RECORDING_RETENTION, default=720h"`
	RetentionCron string        `env:"RECORDING_RETENTION_CRON, default=0 4 * * *"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	var cfg MinioConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Enabled() && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("MINIO_USERNAME and MINIO_PASSWORD are required when MINIO_ENDPOINT is set")
	}

	return &cfg, nil
}

// Enabled reports whether recordings should be archived.
func (c *MinioConfig) Enabled() bool {
	return c.Endpoint != ""
}
