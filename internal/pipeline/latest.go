package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/preferences"
)

var (
	ErrArchiveDisabled = errors.New("recording archive is not configured")
	ErrNoRecording     = errors.New("no archived recording")
)

// LatestRecording returns the most recent archived recording of a user.
func (p *Pipeline) LatestRecording(ctx context.Context, userID string) (datalayer.BlobInfo, error) {
	if p.deps.Blobs == nil {
		return datalayer.BlobInfo{}, ErrArchiveDisabled
	}
	blobs, err := p.deps.Blobs.List(ctx, datalayer.RecordingsPrefix+userID+"/")
	if err != nil {
		return datalayer.BlobInfo{}, fmt.Errorf("failed to list recordings: %w", err)
	}
	if len(blobs) == 0 {
		return datalayer.BlobInfo{}, ErrNoRecording
	}

	latest := blobs[0]
	for _, b := range blobs[1:] {
		if b.LastModified.After(latest.LastModified) {
			latest = b
		}
	}
	return latest, nil
}

// AnalyzeLatest runs the analysis again over the user's most recent archived
// recording. prefs may be nil.
func (p *Pipeline) AnalyzeLatest(ctx context.Context, participant Participant, prefs *preferences.Preferences) (string, analysis.Result, error) {
	latest, err := p.LatestRecording(ctx, participant.ID)
	if err != nil {
		return "", analysis.Result{}, err
	}

	audio, err := p.deps.Blobs.Get(ctx, latest.Key)
	if err != nil {
		return latest.Key, analysis.Result{}, fmt.Errorf("failed to load %s: %w", latest.Key, err)
	}

	recordedAt := latest.LastModified
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	result, err := p.deps.Analyzer.Analyze(ctx, analysis.Request{
		UserID:      participant.ID,
		Username:    participant.Username,
		RecordedAt:  recordedAt,
		Audio:       audio,
		Preferences: prefs,
	})
	if err != nil {
		return latest.Key, analysis.Result{}, err
	}
	return latest.Key, result, nil
}
