// Package preferences models how a player wants to be coached and where
// those choices are stored.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound     = errors.New("preferences not found")
	ErrUnknownStep  = errors.New("unknown preference step")
	ErrUnknownValue = errors.New("value is not an option of this step")
)

// Speed is the pace of the synthesized feedback.
type Speed string

const (
	SpeedSlow   Speed = "Lenta"
	SpeedNormal Speed = "Normal"
	SpeedFast   Speed = "Rapida"
)

// Preferences are the answers of the preference wizard.
type Preferences struct {
	Game        string `json:"game"`
	CoachType   string `json:"coach_type"`
	Personality string `json:"personality"`
	Voice       string `json:"tts_voice"`
	Speed       Speed  `json:"tts_speed"`
	// PersonalityTest holds the questionnaire answers by statement. Zero means
	// unanswered.
	PersonalityTest []int `json:"personality_test,omitempty"`
}

const (
	DefaultGame        = "Call of Duty"
	DefaultCoachType   = "Directo"
	DefaultPersonality = "Competitivo"
)

// Defaults returns the preferences used when a player does not answer in time.
func Defaults(voice string) Preferences {
	return Preferences{
		Game:        DefaultGame,
		CoachType:   DefaultCoachType,
		Personality: DefaultPersonality,
		Voice:       voice,
		Speed:       SpeedNormal,
	}
}

// WithDefaults fills every empty field from d.
func (p Preferences) WithDefaults(d Preferences) Preferences {
	if p.Game == "" {
		p.Game = d.Game
	}
	if p.CoachType == "" {
		p.CoachType = d.CoachType
	}
	if p.Personality == "" {
		p.Personality = d.Personality
	}
	if p.Voice == "" {
		p.Voice = d.Voice
	}
	if p.Speed == "" {
		p.Speed = d.Speed
	}
	if len(p.PersonalityTest) == 0 {
		p.PersonalityTest = d.PersonalityTest
	}
	return p
}

// Set assigns the answer of a wizard step.
func (p *Preferences) Set(stepID, value string) error {
	switch stepID {
	case StepGame:
		p.Game = value
	case StepCoachType:
		p.CoachType = value
	case StepPersonality:
		p.Personality = value
	case StepVoice:
		p.Voice = value
	case StepSpeed:
		p.Speed = Speed(value)
	default:
		i, ok := scaleIndex(stepID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
		}
		if err := p.setScale(i, value); err != nil {
			return fmt.Errorf("%w: %s=%q", err, stepID, value)
		}
	}
	return nil
}

// Value returns the answer of a wizard step, or false for an unknown step.
func (p Preferences) Value(stepID string) (string, bool) {
	switch stepID {
	case StepGame:
		return p.Game, true
	case StepCoachType:
		return p.CoachType, true
	case StepPersonality:
		return p.Personality, true
	case StepVoice:
		return p.Voice, true
	case StepSpeed:
		return string(p.Speed), true
	}
	i, ok := scaleIndex(stepID)
	if !ok {
		return "", false
	}
	if i < len(p.PersonalityTest) && p.PersonalityTest[i] != 0 {
		return strconv.Itoa(p.PersonalityTest[i]), true
	}
	return "", true
}

// Store persists preferences per user.
type Store interface {
	// Get returns ErrNotFound when the user never saved preferences.
	Get(ctx context.Context, userID string) (Preferences, error)
	Save(ctx context.Context, userID string, prefs Preferences) error
}
