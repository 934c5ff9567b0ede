// Package analysis talks to the external programs that analyse a recording
// and render the resulting report.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/script"
)

var ErrMalformedOutput = errors.New("malformed analysis output")

// ReportedError is a failure described by the analysis program itself.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return "analysis failed: " + e.Message
}

// Request is one recording to analyse.
type Request struct {
	UserID      string
	Username    string
	RecordedAt  time.Time
	Audio       []byte
	Preferences *preferences.Preferences
}

// Result is the analysis of one recording.
type Result struct {
	Analysis      string          `json:"analysis"`
	Transcription string          `json:"transcription"`
	Structured    json.RawMessage `json:"structured_analysis,omitempty"`
	WPM           float64         `json:"wpm,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// StructuredText returns the structured analysis as display text. The program
// emits either a JSON string or an object.
func (r Result) StructuredText() string {
	raw := bytes.TrimSpace(r.Structured)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// Analyzer runs the analysis program with the recording on stdin and
// user ID, username, timestamp and optional preferences JSON as arguments.
type Analyzer struct {
	cmd script.Command
}

func NewAnalyzer(cmd script.Command) *Analyzer {
	return &Analyzer{cmd: cmd}
}

func (a *Analyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	args := []string{req.UserID, req.Username, strconv.FormatInt(req.RecordedAt.UnixMilli(), 10)}
	if req.Preferences != nil {
		prefs, err := json.Marshal(req.Preferences)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode preferences: %w", err)
		}
		args = append(args, string(prefs))
	}

	out, runErr := a.cmd.Run(ctx, req.Audio, args...)

	var result Result
	parseErr := json.Unmarshal(bytes.TrimSpace(out), &result)
	if parseErr == nil && result.Error != "" {
		return Result{}, &ReportedError{Message: result.Error}
	}
	if runErr != nil {
		return Result{}, fmt.Errorf("analysis program failed: %w", runErr)
	}
	if parseErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, parseErr)
	}
	if result.Analysis == "" {
		return Result{}, fmt.Errorf("%w: missing analysis", ErrMalformedOutput)
	}
	return result, nil
}
