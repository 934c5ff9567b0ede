// Package tts synthesizes the spoken version of an analysis.
package tts

import (
	"context"
	"errors"

	"github.com/glizzus/clutch/internal/config"
	"github.com/glizzus/clutch/internal/preferences"
)

var ErrEmptyText = errors.New("nothing to synthesize")

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed preferences.Speed) ([]byte, error)
	// Voices lists the selectable voices, shown in the preference wizard.
	Voices() []preferences.Option
	DefaultVoice() string
}

// speakingRate maps a pace to a playback rate.
func speakingRate(speed preferences.Speed) float64 {
	switch speed {
	case preferences.SpeedSlow:
		return 0.85
	case preferences.SpeedFast:
		return 1.15
	default:
		return 1.0
	}
}

// ProviderVoices returns the voice catalogue of a provider without connecting to it.
func ProviderVoices(provider string) []preferences.Option {
	switch provider {
	case config.TTSProviderElevenLabs:
		return elevenLabsVoices
	case config.TTSProviderGoogle:
		return googleVoices
	default:
		return nil
	}
}
