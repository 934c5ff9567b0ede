// Package ingest uploads finished analyses to the ingestion API.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/glizzus/clutch/internal/preferences"
)

var ErrRejected = errors.New("ingestion rejected")

// Submission is one analysed recording.
type Submission struct {
	UserID        string
	Username      string
	AnalysisText  string
	Transcription string
	Preferences   preferences.Preferences
	RecordedAt    time.Time

	PlayerAudio []byte
	// CoachAudio is the synthesized feedback. It is omitted when empty.
	CoachAudio []byte
}

// PlayerFilename and CoachFilename name the uploaded audio parts.
func (s Submission) PlayerFilename() string {
	return fmt.Sprintf("player_%s_%d.mp3", s.Username, s.RecordedAt.UnixMilli())
}

func (s Submission) CoachFilename() string {
	return fmt.Sprintf("coach_%s_%d.mp3", s.Username, s.RecordedAt.UnixMilli())
}

type Response struct {
	Success    bool   `json:"success"`
	AnalysisID string `json:"analysis_id"`
	Error      string `json:"error"`
}

// Client posts submissions as multipart forms.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Submit(ctx context.Context, s Submission) (Response, error) {
	body, contentType, err := encode(s)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("ingestion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read ingestion response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("unexpected ingestion response (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		return out, fmt.Errorf("%w (status %d): %s", ErrRejected, resp.StatusCode, out.Error)
	}
	return out, nil
}

func encode(s Submission) (*bytes.Buffer, string, error) {
	tts, err := json.Marshal(s.Preferences.TTS())
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode tts preferences: %w", err)
	}
	test, err := json.Marshal(s.Preferences.PersonalityAnswers())
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode personality test: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"user_id", s.UserID},
		{"analysis_text", s.AnalysisText},
		{"transcription", s.Transcription},
		{"game", s.Preferences.Game},
		{"coach_type", s.Preferences.CoachType},
		{"personality", s.Preferences.Personality},
		{"tts_voice", s.Preferences.Voice},
		{"tts_speed", string(s.Preferences.Speed)},
		{"tts_preferences", string(tts)},
		{"user_personality_test", string(test)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := writeAudio(w, "player_audio", s.PlayerFilename(), s.PlayerAudio); err != nil {
		return nil, "", err
	}
	if len(s.CoachAudio) > 0 {
		if err := writeAudio(w, "coach_audio", s.CoachFilename(), s.CoachAudio); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeAudio(w *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "audio/mpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
