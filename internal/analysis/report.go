package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/clutch/internal/script"
)

var ErrEmptyReport = errors.New("report program produced no output")

const reportDateLayout = "02/01/2006 - 15:04"

type reportPayload struct {
	AnalysisText       string          `json:"analysis_text"`
	StructuredAnalysis json.RawMessage `json:"structured_analysis"`
	Username           string          `json:"username"`
	UserID             string          `json:"user_id"`
	Date               string          `json:"fecha_analisis"`
}

// Reporter renders an analysis as a PDF through an external program reading
// JSON on stdin.
type Reporter struct {
	cmd script.Command
}

func NewReporter(cmd script.Command) *Reporter {
	return &Reporter{cmd: cmd}
}

func (r *Reporter) Render(ctx context.Context, result Result, userID, username string, at time.Time) ([]byte, error) {
	structured := result.Structured
	if len(structured) == 0 {
		structured = json.RawMessage(`""`)
	}
	payload, err := json.Marshal(reportPayload{
		AnalysisText:       result.Analysis,
		StructuredAnalysis: structured,
		Username:           username,
		UserID:             userID,
		Date:               at.Format(reportDateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report payload: %w", err)
	}

	pdf, err := r.cmd.Run(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("report program failed: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyReport
	}
	return pdf, nil
}
