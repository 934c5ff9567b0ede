package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

const (
	TTSProviderElevenLabs = "elevenlabs"
	TTSProviderGoogle     = "google"
)

type TTSConfig struct {
	Provider              string `env:"TTS_PROVIDER, default=elevenlabs"`
	ElevenLabsAPIKey      string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel       string `env:"ELEVENLABS_MODEL, default=eleven_turbo_v2"`
	GoogleCredentialsFile string `env:"GOOGLE_TTS_CREDENTIALS_FILE"`
	GoogleLanguage        string `env:"GOOGLE_TTS_LANGUAGE, default=es-ES"`
}

func NewTTSConfigFromEnv() (*TTSConfig, error) {
	var cfg TTSConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case TTSProviderElevenLabs, TTSProviderGoogle:
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.Provider)
	}
	return &cfg, nil
}

// Enabled reports whether the selected provider has credentials.
func (c *TTSConfig) Enabled() bool {
	switch c.Provider {
	case TTSProviderElevenLabs:
		return c.ElevenLabsAPIKey != ""
	case TTSProviderGoogle:
		return c.GoogleCredentialsFile != ""
	default:
		return false
	}
}
