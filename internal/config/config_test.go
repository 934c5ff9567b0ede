package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/glizzus/clutch/internal/config"
	"github.com/google/go-cmp/cmp"
)

func TestNewCaptureConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.NewCaptureConfigFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := &config.CaptureConfig{
			ReadyTimeout: 5 * time.Second,
			OpenAttempts: 3,
			OpenBackoff:  time.Second,
			DrainGrace:   2 * time.Second,
			MaxDuration:  30 * time.Minute,
		}
		if diff := cmp.Diff(want, cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
		if got := cfg.MaxBytes(192000); got != 1800*192000 {
			t.Errorf("expected %d max bytes, got %d", 1800*192000, got)
		}
	})

	t.Run("no cap", func(t *testing.T) {
		t.Setenv("CAPTURE_MAX_DURATION", "0s")
		cfg, err := config.NewCaptureConfigFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.MaxBytes(192000); got != 0 {
			t.Errorf("expected no cap, got %d", got)
		}
	})

	t.Run("invalid attempts", func(t *testing.T) {
		t.Setenv("CAPTURE_OPEN_ATTEMPTS", "0")
		if _, err := config.NewCaptureConfigFromEnv(); err == nil {
			t.Fatal("expected error for zero attempts")
		}
	})
}

func TestNewPreferencesConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "json", backend: "json"},
		{name: "postgres", backend: "postgres"},
		{name: "script", backend: "script"},
		{name: "unknown", backend: "mongo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PREFERENCES_BACKEND", tt.backend)
			cfg, err := config.NewPreferencesConfigFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Timeout != 5*time.Minute {
				t.Errorf("expected 5m timeout, got %v", cfg.Timeout)
			}
			if !cfg.PersonalityTest {
				t.Error("expected the personality test to be enabled by default")
			}
		})
	}
}

func TestPreferencesConfigDisablesPersonalityTest(t *testing.T) {
	t.Setenv("PREFERENCES_PERSONALITY_TEST", "false")
	cfg, err := config.NewPreferencesConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PersonalityTest {
		t.Error("expected the personality test to be disabled")
	}
}

func TestTTSConfigEnabled(t *testing.T) {
	t.Setenv("TTS_PROVIDER", "google")
	cfg, err := config.NewTTSConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled() {
		t.Error("expected google provider without credentials to be disabled")
	}

	cfg.GoogleCredentialsFile = "/tmp/creds.json"
	if !cfg.Enabled() {
		t.Error("expected google provider with credentials to be enabled")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USERNAME", "clutch")
	t.Setenv("POSTGRES_PASSWORD", "p@ss:word")

	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "postgres://clutch:p%40ss%3Aword@db:5432/clutch?pool_max_conns=4&sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("expected DSN %q, got %q", want, got)
	}

	t.Setenv("POSTGRES_MAX_CONNS", "0")
	if _, err := config.NewPostgresConfigFromEnv(); err == nil {
		t.Error("expected error for zero max connections")
	}
}
