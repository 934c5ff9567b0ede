package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type CaptureConfig struct {
	ReadyTimeout time.Duration `env:"CAPTURE_READY_TIMEOUT, default=5s"`
	OpenAttempts int           `env:"CAPTURE_OPEN_ATTEMPTS, default=3"`
	OpenBackoff  time.Duration `env:"CAPTURE_OPEN_BACKOFF, default=1s"`
	DrainGrace   time.Duration `env:"CAPTURE_DRAIN_GRACE, default=2s"`
	// MaxDuration caps how much audio is kept per participant. Zero disables the cap.
	MaxDuration time.Duration `env:"CAPTURE_MAX_DURATION, default=30m"`
}

func NewCaptureConfigFromEnv() (*CaptureConfig, error) {
	var cfg CaptureConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.OpenAttempts < 1 {
		return nil, fmt.Errorf("CAPTURE_OPEN_ATTEMPTS must be at least 1, got %d", cfg.OpenAttempts)
	}
	if cfg.MaxDuration < 0 {
		return nil, fmt.Errorf("CAPTURE_MAX_DURATION must not be negative")
	}
	return &cfg, nil
}

// MaxBytes converts MaxDuration into a PCM byte ceiling at the given byte rate.
func (c *CaptureConfig) MaxBytes(bytesPerSecond int) int {
	if c.MaxDuration <= 0 {
		return 0
	}
	return int(c.MaxDuration / time.Second * time.Duration(bytesPerSecond))
}
