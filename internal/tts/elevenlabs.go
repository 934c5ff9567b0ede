package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glizzus/clutch/internal/preferences"
	"github.com/haguro/elevenlabs-go"
)

const (
	ElevenLabsDefaultVoice = "gU0LNdkMOQCOrPrwtbee"

	elevenLabsTimeout = 60 * time.Second
)

var elevenLabsVoices = []preferences.Option{
	{Label: "Voz predeterminada", Value: ElevenLabsDefaultVoice},
	{Label: "Coach Tierna", Value: "pPdl9cQBQq4p6mRkZy2Z"},
	{Label: "Historiador Antiguo", Value: "5egO01tkUjEzu7xSSE8M"},
	{Label: "Coach Chileno", Value: "0cheeVA5B3Cv6DGq65cT"},
	{Label: "Coach Villana", Value: "flHkNRp1BlvT73UL6gyz"},
	{Label: "Sargento WWII", Value: "DGzg6RaUqxGRTHSBjfgF"},
}

// ElevenLabs synthesizes speech with the ElevenLabs API. It has no speaking
// rate control, so pace is approximated through the voice settings.
type ElevenLabs struct {
	apiKey string
	model  string
}

func NewElevenLabs(apiKey, model string) *ElevenLabs {
	return &ElevenLabs{apiKey: apiKey, model: model}
}

func (e *ElevenLabs) Voices() []preferences.Option {
	return elevenLabsVoices
}

func (e *ElevenLabs) DefaultVoice() string {
	return ElevenLabsDefaultVoice
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice string, speed preferences.Speed) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if voice == "" {
		voice = ElevenLabsDefaultVoice
	}

	client := elevenlabs.NewClient(ctx, e.apiKey, elevenLabsTimeout)
	audio, err := client.TextToSpeech(voice, e.request(text, speed))
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	return audio, nil
}

func (e *ElevenLabs) request(text string, speed preferences.Speed) elevenlabs.TextToSpeechRequest {
	return elevenlabs.TextToSpeechRequest{
		Text:          text,
		ModelID:       e.model,
		VoiceSettings: voiceSettings(speed),
	}
}

// voiceSettings trades stability for liveliness as the pace goes up.
func voiceSettings(speed preferences.Speed) *elevenlabs.VoiceSettings {
	switch speed {
	case preferences.SpeedSlow:
		return &elevenlabs.VoiceSettings{Stability: 0.7, SimilarityBoost: 0.9}
	case preferences.SpeedFast:
		return &elevenlabs.VoiceSettings{Stability: 0.3, SimilarityBoost: 0.7}
	default:
		return &elevenlabs.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.8}
	}
}

var _ Synthesizer = (*ElevenLabs)(nil)
