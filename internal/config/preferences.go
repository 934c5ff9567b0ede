package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	PreferencesBackendJSON     = "json"
	PreferencesBackendPostgres = "postgres"
	PreferencesBackendScript   = "script"
)

type PreferencesConfig struct {
	Backend string        `env:"PREFERENCES_BACKEND, default=json"`
	File    string        `env:"PREFERENCES_FILE, default=./user_preferences.json"`
	Command string        `env:"PREFERENCES_COMMAND, default=python ./preferences_manager.py"`
	Timeout time.Duration `env:"PREFERENCES_TIMEOUT, default=5m"`
	// AlwaysAsk runs the wizard even for users with stored preferences.
	AlwaysAsk bool `env:"PREFERENCES_ALWAYS_ASK, default=false"`
	// PersonalityTest adds the agreement questionnaire to the wizard.
	PersonalityTest bool `env:"PREFERENCES_PERSONALITY_TEST, default=true"`
}

func NewPreferencesConfigFromEnv() (*PreferencesConfig, error) {
	var cfg PreferencesConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case PreferencesBackendJSON, PreferencesBackendPostgres, PreferencesBackendScript:
	default:
		return nil, fmt.Errorf("unknown PREFERENCES_BACKEND %q", cfg.Backend)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("PREFERENCES_TIMEOUT must be positive")
	}
	return &cfg, nil
}
