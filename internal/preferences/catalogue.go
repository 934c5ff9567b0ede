package preferences

import (
	"fmt"

	"github.com/glizzus/clutch/internal/util"
)

const (
	StepGame        = "game"
	StepCoachType   = "coach_type"
	StepPersonality = "personality"
	StepVoice       = "tts_voice"
	StepSpeed       = "tts_speed"
)

type Option struct {
	Label       string
	Value       string
	Description string
}

// Step is one question of the preference wizard.
type Step struct {
	ID          string
	Title       string
	Placeholder string
	Options     []Option
	// Scale steps are answered with one button per option.
	Scale bool
}

// Has reports whether value is one of the step's options.
func (s Step) Has(value string) bool {
	_, ok := s.option(value)
	return ok
}

func (s Step) option(value string) (Option, bool) {
	return util.FindFirst(s.Options, func(o Option) bool { return o.Value == value })
}

// Label returns the label of value, or value itself when unknown.
func (s Step) Label(value string) string {
	if o, ok := s.option(value); ok {
		return o.Label
	}
	return value
}

var (
	gameStep = Step{
		ID:          StepGame,
		Title:       "🎮 ¿Qué juego estabas jugando?",
		Placeholder: "Elige el juego que analizaremos",
		Options: []Option{
			{Label: "Call of Duty", Value: "Call of Duty"},
			{Label: "Valorant", Value: "Valorant"},
			{Label: "Counter-Strike 2", Value: "Counter-Strike 2"},
			{Label: "Apex Legends", Value: "Apex Legends"},
			{Label: "Overwatch 2", Value: "Overwatch 2"},
		},
	}
	coachStep = Step{
		ID:          StepCoachType,
		Title:       "🎯 ¿Qué tipo de coach prefieres?",
		Placeholder: "Elige tu tipo de coach",
		Options: []Option{
			{Label: "Directo", Value: "Directo", Description: "Feedback específico y directo al grano"},
			{Label: "Motivacional", Value: "Motivacional", Description: "Enfoque positivo y motivador"},
			{Label: "Analítico", Value: "Analitico", Description: "Datos y observaciones detalladas"},
			{Label: "Amigable", Value: "Amigable", Description: "Feedback relajado y cercano"},
		},
	}
	personalityStep = Step{
		ID:          StepPersonality,
		Title:       "🧠 ¿Cómo describirías tu personalidad al jugar?",
		Placeholder: "Elige tu tipo de personalidad",
		Options: []Option{
			{Label: "Introvertido", Value: "Introvertido", Description: "Feedback constructivo y no agresivo"},
			{Label: "Extrovertido", Value: "Extrovertido", Description: "Feedback directo y energético"},
			{Label: "No suele decir muchas palabras", Value: "No suele decir muchas palabras"},
			{Label: "Introvertido y Extrovertido", Value: "Introvertido y Extrovertido"},
		},
	}
	speedStep = Step{
		ID:          StepSpeed,
		Title:       "⏩ ¿A qué velocidad quieres escuchar a tu coach?",
		Placeholder: "Elige la velocidad de la voz",
		Options: []Option{
			{Label: "Lenta (0.85x)", Value: string(SpeedSlow)},
			{Label: "Normal (1.0x)", Value: string(SpeedNormal)},
			{Label: "Rápida (1.15x)", Value: string(SpeedFast)},
		},
	}
)

// Steps returns the wizard steps in the order they are asked. voices are the
// options of the configured speech provider; without voices the voice step is
// left out.
func Steps(voices []Option) []Step {
	if len(voices) == 0 {
		return []Step{gameStep, coachStep, personalityStep, speedStep}
	}
	voiceStep := Step{
		ID:          StepVoice,
		Title:       "🗣️ ¿Qué voz quieres para tu coach?",
		Placeholder: "Elige la voz del coach",
		Options:     voices,
	}
	return []Step{gameStep, coachStep, personalityStep, voiceStep, speedStep}
}

// Validate checks every answer against the option catalogue.
func (p Preferences) Validate(steps []Step) error {
	for _, step := range steps {
		v, ok := p.Value(step.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStep, step.ID)
		}
		if !step.Has(v) {
			return fmt.Errorf("%w: %s=%q", ErrUnknownValue, step.ID, v)
		}
	}
	return nil
}
