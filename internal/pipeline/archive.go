package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/worker"
)

func RecordingKey(userID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%d.mp3", datalayer.RecordingsPrefix, userID, at.UnixMilli())
}

func ReportKey(userID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%d.pdf", datalayer.ReportsPrefix, userID, at.UnixMilli())
}

func CoachKey(userID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%d.mp3", datalayer.CoachPrefix, userID, at.UnixMilli())
}

// Record is a finished analysis ready to be sent to the ingestion API.
type Record struct {
	Submission ingest.Submission
	// PlayerAudioKey is where the player audio was archived, if it was.
	PlayerAudioKey string
}

type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

// DirectArchiver posts records to the ingestion API right away.
type DirectArchiver struct {
	submitter worker.Submitter
}

func NewDirectArchiver(submitter worker.Submitter) *DirectArchiver {
	return &DirectArchiver{submitter: submitter}
}

func (a *DirectArchiver) Archive(ctx context.Context, rec Record) error {
	resp, err := a.submitter.Submit(ctx, rec.Submission)
	if err != nil {
		return err
	}
	slog.Info("Analysis ingested", "userID", rec.Submission.UserID, "analysisID", resp.AnalysisID)
	return nil
}

var _ Archiver = (*DirectArchiver)(nil)

// QueueArchiver stores the audio in blob storage and enqueues an ingestion job
// for the worker.
type QueueArchiver struct {
	blobs datalayer.BlobStorage
	jobs  worker.JobHandler
}

func NewQueueArchiver(blobs datalayer.BlobStorage, jobs worker.JobHandler) *QueueArchiver {
	return &QueueArchiver{blobs: blobs, jobs: jobs}
}

func (a *QueueArchiver) Archive(ctx context.Context, rec Record) error {
	s := rec.Submission

	playerKey := rec.PlayerAudioKey
	if playerKey == "" {
		playerKey = RecordingKey(s.UserID, s.RecordedAt)
		if err := datalayer.PutBytes(ctx, a.blobs, playerKey, s.PlayerAudio, "audio/mpeg"); err != nil {
			return fmt.Errorf("failed to store player audio: %w", err)
		}
	}

	var coachKey string
	if len(s.CoachAudio) > 0 {
		coachKey = CoachKey(s.UserID, s.RecordedAt)
		if err := datalayer.PutBytes(ctx, a.blobs, coachKey, s.CoachAudio, "audio/mpeg"); err != nil {
			return fmt.Errorf("failed to store coach audio: %w", err)
		}
	}

	job := worker.IngestJob{
		UserID:         s.UserID,
		Username:       s.Username,
		AnalysisText:   s.AnalysisText,
		Transcription:  s.Transcription,
		Preferences:    s.Preferences,
		RecordedAt:     s.RecordedAt,
		PlayerAudioKey: playerKey,
		CoachAudioKey:  coachKey,
	}
	if err := a.jobs.HandleJobs(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue ingestion job: %w", err)
	}
	slog.Info("Ingestion job enqueued", job.LogAttrs()...)
	return nil
}

var _ Archiver = (*QueueArchiver)(nil)
