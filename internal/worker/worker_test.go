package worker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/worker"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func testJob() worker.IngestJob {
	return worker.IngestJob{
		UserID:         "42",
		Username:       "alice",
		AnalysisText:   "Buen trabajo",
		Transcription:  "hola",
		Preferences:    preferences.Defaults("voice"),
		RecordedAt:     time.Date(2025, 7, 27, 20, 3, 0, 0, time.UTC),
		PlayerAudioKey: "recordings/42/1753646580000.mp3",
		CoachAudioKey:  "coach/42/1753646580000.mp3",
	}
}

func TestRedisQueue(t *testing.T) {
	ctx := t.Context()
	redisContainer, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	defer func() {
		if err := redisContainer.Terminate(context.Background()); err != nil {
			t.Fatalf("failed to terminate redis container: %v", err)
		}
	}()

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	opts, err := redis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	producer, err := worker.NewRedisJobHandler(ctx, client)
	if err != nil {
		t.Fatalf("failed to create job handler: %v", err)
	}
	receiver := worker.NewRedisJobReceiver(client, "test-consumer")
	receiver.Block = 500 * time.Millisecond
	receiver.RetryInterval = time.Hour

	if err := producer.HandleJobs(ctx, testJob()); err != nil {
		t.Fatalf("failed to enqueue job: %v", err)
	}

	var entryID string
	t.Run("Enqueued jobs should be received intact", func(t *testing.T) {
		jobs, err := receiver.ReceiveJobs(ctx)
		if err != nil {
			t.Fatalf("failed to receive jobs: %v", err)
		}
		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
		entryID = jobs[0].EntryID
		want := testJob()
		want.EntryID = entryID
		if diff := cmp.Diff(want, jobs[0]); diff != "" {
			t.Errorf("job mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Unacknowledged jobs should be retried", func(t *testing.T) {
		receiver.RetryInterval = 0
		jobs, err := receiver.ReceiveJobs(ctx)
		if err != nil {
			t.Fatalf("failed to receive jobs: %v", err)
		}
		if len(jobs) != 1 || jobs[0].EntryID != entryID {
			t.Fatalf("expected pending job %s, got %+v", entryID, jobs)
		}
	})

	t.Run("Acknowledged jobs should not be received again", func(t *testing.T) {
		if err := receiver.Ack(ctx, entryID); err != nil {
			t.Fatalf("failed to ack: %v", err)
		}
		jobs, err := receiver.ReceiveJobs(ctx)
		if err != nil {
			t.Fatalf("failed to receive jobs: %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("expected no jobs, got %d", len(jobs))
		}
	})

	t.Run("Malformed entries should be discarded", func(t *testing.T) {
		if err := client.XAdd(ctx, &redis.XAddArgs{
			Stream: worker.IngestStream,
			Values: map[string]any{"username": "nobody"},
		}).Err(); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		jobs, err := receiver.ReceiveJobs(ctx)
		if err != nil {
			t.Fatalf("failed to receive jobs: %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("expected no jobs, got %d", len(jobs))
		}
		pending, err := client.XPending(ctx, worker.IngestStream, worker.IngestGroup).Result()
		if err != nil {
			t.Fatalf("failed to read pending: %v", err)
		}
		if pending.Count != 0 {
			t.Errorf("expected no pending entries, got %d", pending.Count)
		}
	})
}

type recordingSubmitter struct {
	got ingest.Submission
	err error
}

func (s *recordingSubmitter) Submit(_ context.Context, sub ingest.Submission) (ingest.Response, error) {
	s.got = sub
	if s.err != nil {
		return ingest.Response{}, s.err
	}
	return ingest.Response{Success: true, AnalysisID: "abc"}, nil
}

func TestIngestProcessor(t *testing.T) {
	ctx := context.Background()
	blobs := datalayer.NewMemoryStorage()
	job := testJob()
	if err := datalayer.PutBytes(ctx, blobs, job.PlayerAudioKey, []byte("player"), "audio/mpeg"); err != nil {
		t.Fatalf("failed to store blob: %v", err)
	}

	t.Run("missing coach audio fails the job", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		_, err := worker.NewIngestProcessor(blobs, submitter).Process(ctx, job)
		if !errors.Is(err, datalayer.ErrBlobNotFound) {
			t.Errorf("expected ErrBlobNotFound, got %v", err)
		}
	})

	if err := datalayer.PutBytes(ctx, blobs, job.CoachAudioKey, []byte("coach"), "audio/mpeg"); err != nil {
		t.Fatalf("failed to store blob: %v", err)
	}

	t.Run("audio is loaded and submitted", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		resp, err := worker.NewIngestProcessor(blobs, submitter).Process(ctx, job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.AnalysisID != "abc" {
			t.Errorf("expected analysis ID %q, got %q", "abc", resp.AnalysisID)
		}
		if string(submitter.got.PlayerAudio) != "player" || string(submitter.got.CoachAudio) != "coach" {
			t.Errorf("unexpected audio: %q %q", submitter.got.PlayerAudio, submitter.got.CoachAudio)
		}
		if submitter.got.Preferences != job.Preferences {
			t.Errorf("expected preferences %+v, got %+v", job.Preferences, submitter.got.Preferences)
		}
	})
}

func TestPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rejected", err: fmt.Errorf("%w (status 400): bad audio", ingest.ErrRejected), want: true},
		{name: "missing audio", err: fmt.Errorf("failed to load player audio: %w", datalayer.ErrBlobNotFound), want: true},
		{name: "network", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := worker.Permanent(tt.err); got != tt.want {
				t.Errorf("Permanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
