package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
)

// Submitter uploads one analysis.
type Submitter interface {
	Submit(ctx context.Context, s ingest.Submission) (ingest.Response, error)
}

// IngestProcessor resolves the audio of a job and submits it.
type IngestProcessor struct {
	blobs     datalayer.BlobStorage
	submitter Submitter
}

func NewIngestProcessor(blobs datalayer.BlobStorage, submitter Submitter) *IngestProcessor {
	return &IngestProcessor{blobs: blobs, submitter: submitter}
}

func (p *IngestProcessor) Process(ctx context.Context, job IngestJob) (ingest.Response, error) {
	player, err := p.blobs.Get(ctx, job.PlayerAudioKey)
	if err != nil {
		return ingest.Response{}, fmt.Errorf("failed to load player audio %s: %w", job.PlayerAudioKey, err)
	}

	var coach []byte
	if job.CoachAudioKey != "" {
		coach, err = p.blobs.Get(ctx, job.CoachAudioKey)
		if err != nil {
			return ingest.Response{}, fmt.Errorf("failed to load coach audio %s: %w", job.CoachAudioKey, err)
		}
	}

	return p.submitter.Submit(ctx, ingest.Submission{
		UserID:        job.UserID,
		Username:      job.Username,
		AnalysisText:  job.AnalysisText,
		Transcription: job.Transcription,
		Preferences:   job.Preferences,
		RecordedAt:    job.RecordedAt,
		PlayerAudio:   player,
		CoachAudio:    coach,
	})
}

// Permanent reports whether a failed job cannot succeed on retry: the API refused
// it or its audio is gone.
func Permanent(err error) bool {
	return errors.Is(err, ingest.ErrRejected) || errors.Is(err, datalayer.ErrBlobNotFound)
}
