package tts

import (
	"bytes"
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/util"
	"google.golang.org/api/option"
)

// googleMaxInput stays below the 5000 byte request limit.
const googleMaxInput = 4500

const GoogleDefaultVoice = "es-ES-Standard-B"

var googleVoices = []preferences.Option{
	{Label: "Masculina (Estándar)", Value: "es-ES-Standard-B"},
	{Label: "Femenina (Estándar)", Value: "es-ES-Standard-A"},
	{Label: "Masculina (Wavenet)", Value: "es-ES-Wavenet-B"},
	{Label: "Femenina (Wavenet)", Value: "es-ES-Wavenet-C"},
}

// Google synthesizes speech with Google Cloud Text-to-Speech.
type Google struct {
	client   *texttospeech.Client
	language string
}

func NewGoogle(ctx context.Context, credentialsFile, language string) (*Google, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create text-to-speech client: %w", err)
	}
	return &Google{client: client, language: language}, nil
}

func (g *Google) Close() error {
	return g.client.Close()
}

func (g *Google) Voices() []preferences.Option {
	return googleVoices
}

func (g *Google) DefaultVoice() string {
	return GoogleDefaultVoice
}

// Synthesize splits long text into several requests and concatenates the
// resulting MP3 streams.
func (g *Google) Synthesize(ctx context.Context, text, voice string, speed preferences.Speed) ([]byte, error) {
	chunks := util.SplitText(text, googleMaxInput)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		resp, err := g.client.SynthesizeSpeech(ctx, g.request(chunk, voice, speed))
		if err != nil {
			return nil, fmt.Errorf("text-to-speech failed on chunk %d of %d: %w", i+1, len(chunks), err)
		}
		audio.Write(resp.AudioContent)
	}
	return audio.Bytes(), nil
}

func (g *Google) request(text, voice string, speed preferences.Speed) *texttospeechpb.SynthesizeSpeechRequest {
	if voice == "" {
		voice = GoogleDefaultVoice
	}
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.language,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  speakingRate(speed),
		},
	}
}

var _ Synthesizer = (*Google)(nil)
