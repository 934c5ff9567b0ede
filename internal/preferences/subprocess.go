package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glizzus/clutch/internal/script"
)

// notFoundMessage is what the preferences manager reports for an unknown user.
const notFoundMessage = "Usuario no encontrado"

// TTSPreferences is the object kept under tts_preferences by the preferences
// manager and posted to the ingestion API.
type TTSPreferences struct {
	Game        string `json:"game,omitempty"`
	CoachType   string `json:"coach_type,omitempty"`
	Personality string `json:"personality,omitempty"`
	Voice       string `json:"tts_voice,omitempty"`
	Speed       Speed  `json:"tts_speed,omitempty"`
	// ElevenLabsVoice is only read, from records that predate provider
	// neutral voices.
	ElevenLabsVoice string `json:"elevenlabs_voice,omitempty"`
}

// TTS returns every answer except the questionnaire.
func (p Preferences) TTS() TTSPreferences {
	return TTSPreferences{
		Game:        p.Game,
		CoachType:   p.CoachType,
		Personality: p.Personality,
		Voice:       p.Voice,
		Speed:       p.Speed,
	}
}

type managerRecord struct {
	TTS             TTSPreferences `json:"tts_preferences"`
	PersonalityTest []*int         `json:"user_personality_test"`
}

func (r managerRecord) preferences() Preferences {
	p := Preferences{
		Game:        r.TTS.Game,
		CoachType:   r.TTS.CoachType,
		Personality: r.TTS.Personality,
		Voice:       r.TTS.Voice,
		Speed:       r.TTS.Speed,
	}
	if p.Voice == "" {
		p.Voice = r.TTS.ElevenLabsVoice
	}
	if len(r.PersonalityTest) > 0 {
		p.PersonalityTest = make([]int, len(r.PersonalityTest))
		for i, v := range r.PersonalityTest {
			if v != nil {
				p.PersonalityTest[i] = *v
			}
		}
	}
	return p
}

func (r managerRecord) empty() bool {
	return r.TTS == (TTSPreferences{}) && len(r.PersonalityTest) == 0
}

type managerResponse struct {
	Success     bool           `json:"success"`
	Preferences *managerRecord `json:"preferences"`
	Error       string         `json:"error"`
}

// SubprocessStore delegates to an external preferences manager invoked as
// `<command> get <user_id>` and
// `<command> save <user_id> <tts_preferences json> <user_personality_test json>`.
type SubprocessStore struct {
	cmd script.Command
}

func NewSubprocessStore(cmd script.Command) *SubprocessStore {
	return &SubprocessStore{cmd: cmd}
}

func (s *SubprocessStore) run(ctx context.Context, args ...string) (managerResponse, error) {
	var resp managerResponse
	out, err := s.cmd.Run(ctx, nil, args...)
	if err != nil {
		return resp, fmt.Errorf("preferences manager failed: %w", err)
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return resp, fmt.Errorf("unable to parse preferences manager output: %w", err)
	}
	return resp, nil
}

// Get returns ErrNotFound for unknown users and for records without any answer.
func (s *SubprocessStore) Get(ctx context.Context, userID string) (Preferences, error) {
	resp, err := s.run(ctx, "get", userID)
	if err != nil {
		return Preferences{}, err
	}
	if !resp.Success {
		if resp.Error == notFoundMessage || resp.Error == "" {
			return Preferences{}, ErrNotFound
		}
		return Preferences{}, errors.New(resp.Error)
	}
	if resp.Preferences == nil || resp.Preferences.empty() {
		return Preferences{}, ErrNotFound
	}
	return resp.Preferences.preferences(), nil
}

func (s *SubprocessStore) Save(ctx context.Context, userID string, prefs Preferences) error {
	tts, err := json.Marshal(prefs.TTS())
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	test, err := json.Marshal(prefs.PersonalityAnswers())
	if err != nil {
		return fmt.Errorf("failed to encode personality test: %w", err)
	}
	resp, err := s.run(ctx, "save", userID, string(tts), string(test))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("preferences manager rejected save: %s", resp.Error)
	}
	return nil
}

var _ Store = (*SubprocessStore)(nil)
