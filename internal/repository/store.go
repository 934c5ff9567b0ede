package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/glizzus/clutch/internal/config"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/script"
)

// scriptTimeout bounds one call to the external preferences manager.
const scriptTimeout = 10 * time.Second

// NewPreferenceStore opens the store selected by PREFERENCES_BACKEND. The returned
// close function releases the store's resources and is never nil.
func NewPreferenceStore(ctx context.Context, cfg *config.PreferencesConfig) (preferences.Store, func(), error) {
	switch cfg.Backend {
	case config.PreferencesBackendJSON:
		return preferences.NewJSONFileStore(cfg.File), func() {}, nil
	case config.PreferencesBackendPostgres:
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return NewPostgresPreferencesRepository(pool), pool.Close, nil
	case config.PreferencesBackendScript:
		cmd, err := script.Parse(cfg.Command, scriptTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid PREFERENCES_COMMAND: %w", err)
		}
		return preferences.NewSubprocessStore(cmd), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown preferences backend %q", cfg.Backend)
	}
}
