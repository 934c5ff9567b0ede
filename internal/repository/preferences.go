package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/glizzus/clutch/internal/preferences"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresPreferencesRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPreferencesRepository(db *pgxpool.Pool) *PostgresPreferencesRepository {
	return &PostgresPreferencesRepository{db: db}
}

func PreferencesToRowParams(userID string, prefs preferences.Preferences) []any {
	return []any{
		userID,
		prefs.Game,
		prefs.CoachType,
		prefs.Personality,
		prefs.Voice,
		string(prefs.Speed),
		personalityTest(prefs),
	}
}

// personalityTest keeps the column non-null for users who skipped the questionnaire.
func personalityTest(prefs preferences.Preferences) []int {
	if prefs.PersonalityTest == nil {
		return []int{}
	}
	return prefs.PersonalityTest
}

func (r *PostgresPreferencesRepository) Save(ctx context.Context, userID string, prefs preferences.Preferences) error {
	const query = `
	INSERT INTO user_preferences (user_id, game, coach_type, personality, tts_voice, tts_speed, personality_test)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		game = EXCLUDED.game,
		coach_type = EXCLUDED.coach_type,
		personality = EXCLUDED.personality,
		tts_voice = EXCLUDED.tts_voice,
		tts_speed = EXCLUDED.tts_speed,
		personality_test = EXCLUDED.personality_test,
		updated_at = now()
	`

	if _, err := r.db.Exec(ctx, query, PreferencesToRowParams(userID, prefs)...); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (r *PostgresPreferencesRepository) Get(ctx context.Context, userID string) (preferences.Preferences, error) {
	const query = `
	SELECT game, coach_type, personality, tts_voice, tts_speed, personality_test
	FROM user_preferences
	WHERE user_id = $1
	`

	var prefs preferences.Preferences
	var speed string
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.Game,
		&prefs.CoachType,
		&prefs.Personality,
		&prefs.Voice,
		&speed,
		&prefs.PersonalityTest,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return preferences.Preferences{}, preferences.ErrNotFound
	}
	if err != nil {
		return preferences.Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	prefs.Speed = preferences.Speed(speed)
	if len(prefs.PersonalityTest) == 0 {
		prefs.PersonalityTest = nil
	}
	return prefs, nil
}

var _ preferences.Store = (*PostgresPreferencesRepository)(nil)
