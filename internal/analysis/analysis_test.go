package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/script"
	"github.com/google/go-cmp/cmp"
)

func shell(body string) script.Command {
	return script.Command{Path: "sh", Args: []string{"-c", body, "sh"}}
}

func TestAnalyze(t *testing.T) {
	recordedAt := time.UnixMilli(1700000000123)
	prefs := preferences.Defaults("voice")

	tc := []struct {
		name     string
		program  string
		prefs    *preferences.Preferences
		expected analysis.Result
		errIs    error
		reported string
	}{
		{
			name:    "successful analysis with structured string",
			program: `cat >/dev/null; printf '%s' '{"success": true, "analysis": "Buen trabajo", "transcription": "hola", "structured_analysis": "\"Aspectos a mejorar\": - x", "wpm": 120.5}'`,
			expected: analysis.Result{
				Analysis:      "Buen trabajo",
				Transcription: "hola",
				Structured:    json.RawMessage(`"\"Aspectos a mejorar\": - x"`),
				WPM:           120.5,
			},
		},
		{
			name:     "program reports an error",
			program:  `cat >/dev/null; echo '{"error": "Transcripción muy corta o vacía"}'`,
			reported: "Transcripción muy corta o vacía",
		},
		{
			name:     "program reports an error and exits non-zero",
			program:  `cat >/dev/null; echo '{"error": "Error fatal en main"}'; exit 1`,
			reported: "Error fatal en main",
		},
		{
			name:    "unparsable output",
			program: `cat >/dev/null; echo 'Traceback (most recent call last)'`,
			errIs:   analysis.ErrMalformedOutput,
		},
		{
			name:    "missing analysis field",
			program: `cat >/dev/null; echo '{"transcription": "hola"}'`,
			errIs:   analysis.ErrMalformedOutput,
		},
		{
			name:    "non-zero exit without output",
			program: `cat >/dev/null; exit 2`,
			errIs:   &script.ExitError{},
		},
		{
			name:    "arguments and stdin are passed through",
			prefs:   &prefs,
			program: `audio=$(cat); printf '{"analysis": "%s|%s|%s|%s", "transcription": "%s"}' "$1" "$2" "$3" "$(echo "$4" | grep -c '"game":"Call of Duty"')" "$audio"`,
			expected: analysis.Result{
				Analysis:      "42|alice|1700000000123|1",
				Transcription: "mp3-bytes",
			},
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			a := analysis.NewAnalyzer(shell(test.program))
			got, err := a.Analyze(context.Background(), analysis.Request{
				UserID:      "42",
				Username:    "alice",
				RecordedAt:  recordedAt,
				Audio:       []byte("mp3-bytes"),
				Preferences: test.prefs,
			})

			switch {
			case test.reported != "":
				var reported *analysis.ReportedError
				if !errors.As(err, &reported) {
					t.Fatalf("expected ReportedError, got %v", err)
				}
				if reported.Message != test.reported {
					t.Errorf("expected message %q, got %q", test.reported, reported.Message)
				}
			case test.errIs != nil:
				if exitErr, ok := test.errIs.(*script.ExitError); ok {
					if !errors.As(err, &exitErr) {
						t.Errorf("expected ExitError, got %v", err)
					}
					return
				}
				if !errors.Is(err, test.errIs) {
					t.Errorf("expected %v, got %v", test.errIs, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if diff := cmp.Diff(test.expected, got); diff != "" {
					t.Errorf("result mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestStructuredText(t *testing.T) {
	tc := []struct {
		name       string
		structured string
		expected   string
	}{
		{name: "absent", structured: "", expected: ""},
		{name: "null", structured: "null", expected: ""},
		{name: "string", structured: `"Aspectos a mejorar"`, expected: "Aspectos a mejorar"},
		{name: "object", structured: `{ "metricas": [1, 2] }`, expected: `{"metricas":[1,2]}`},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			r := analysis.Result{Structured: json.RawMessage(test.structured)}
			if got := r.StructuredText(); got != test.expected {
				t.Errorf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestRender(t *testing.T) {
	at := time.Date(2025, 7, 27, 20, 3, 0, 0, time.UTC)
	result := analysis.Result{Analysis: "Buen trabajo", Structured: json.RawMessage(`{"metricas": []}`)}

	t.Run("payload is written to stdin and PDF read from stdout", func(t *testing.T) {
		// Echo the payload back so it can be inspected.
		r := analysis.NewReporter(shell(`cat`))
		out, err := r.Render(context.Background(), result, "42", "alice", at)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(out, &payload); err != nil {
			t.Fatalf("failed to parse payload: %v", err)
		}
		want := map[string]any{
			"analysis_text":       "Buen trabajo",
			"structured_analysis": map[string]any{"metricas": []any{}},
			"username":            "alice",
			"user_id":             "42",
			"fecha_analisis":      "27/07/2025 - 20:03",
		}
		if diff := cmp.Diff(want, payload); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty output is an error", func(t *testing.T) {
		r := analysis.NewReporter(shell(`cat >/dev/null`))
		if _, err := r.Render(context.Background(), result, "42", "alice", at); !errors.Is(err, analysis.ErrEmptyReport) {
			t.Errorf("expected ErrEmptyReport, got %v", err)
		}
	})
}
