package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glizzus/clutch/internal/preferences"
	"github.com/redis/go-redis/v9"
)

const (
	IngestStream = "clutch:ingest"
	IngestGroup  = "ingest_workers"
)

// IngestJob asks a worker to upload an archived analysis to the ingestion API.
// Audio is referenced by blob storage key.
type IngestJob struct {
	// EntryID is the stream entry ID, set when a job is received.
	EntryID string

	UserID        string
	Username      string
	AnalysisText  string
	Transcription string
	Preferences   preferences.Preferences
	RecordedAt    time.Time

	PlayerAudioKey string
	CoachAudioKey  string
}

func (j IngestJob) LogAttrs() []any {
	return []any{
		"entryID", j.EntryID,
		"userID", j.UserID,
		"recordedAt", j.RecordedAt.Format(time.RFC3339),
		"playerAudioKey", j.PlayerAudioKey,
	}
}

func (j IngestJob) values() (map[string]any, error) {
	prefs, err := json.Marshal(j.Preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return map[string]any{
		"userID":         j.UserID,
		"username":       j.Username,
		"analysisText":   j.AnalysisText,
		"transcription":  j.Transcription,
		"preferences":    string(prefs),
		"recordedAt":     j.RecordedAt.Format(time.RFC3339Nano),
		"playerAudioKey": j.PlayerAudioKey,
		"coachAudioKey":  j.CoachAudioKey,
	}, nil
}

func jobFromMessage(msg redis.XMessage) (IngestJob, error) {
	str := func(key string) string {
		s, _ := msg.Values[key].(string)
		return s
	}

	job := IngestJob{
		EntryID:        msg.ID,
		UserID:         str("userID"),
		Username:       str("username"),
		AnalysisText:   str("analysisText"),
		Transcription:  str("transcription"),
		PlayerAudioKey: str("playerAudioKey"),
		CoachAudioKey:  str("coachAudioKey"),
	}
	if job.UserID == "" || job.PlayerAudioKey == "" {
		return job, fmt.Errorf("entry %s is missing required fields", msg.ID)
	}
	if raw := str("preferences"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Preferences); err != nil {
			return job, fmt.Errorf("entry %s has invalid preferences: %w", msg.ID, err)
		}
	}
	if raw := str("recordedAt"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return job, fmt.Errorf("entry %s has invalid timestamp: %w", msg.ID, err)
		}
		job.RecordedAt = at
	}
	return job, nil
}

type JobHandler interface {
	HandleJobs(ctx context.Context, jobs ...IngestJob) error
}

type PrintingJobHandler struct{}

func (h *PrintingJobHandler) HandleJobs(ctx context.Context, jobs ...IngestJob) error {
	for _, job := range jobs {
		slog.InfoContext(ctx, "Handling ingest job", job.LogAttrs()...)
	}
	return nil
}

// EnsureGroup creates the ingest stream and consumer group if needed.
func EnsureGroup(ctx context.Context, client *redis.Client) error {
	err := client.XGroupCreateMkStream(ctx, IngestStream, IngestGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// RedisJobHandler enqueues jobs on the ingest stream.
type RedisJobHandler struct {
	client *redis.Client
}

func NewRedisJobHandler(ctx context.Context, client *redis.Client) (*RedisJobHandler, error) {
	if err := EnsureGroup(ctx, client); err != nil {
		return nil, err
	}
	return &RedisJobHandler{client: client}, nil
}

func (h *RedisJobHandler) HandleJobs(ctx context.Context, jobs ...IngestJob) error {
	_, err := h.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			values, err := job.values()
			if err != nil {
				return err
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: IngestStream,
				Values: values,
			})
		}
		return nil
	})
	return err
}

var (
	_ JobHandler = (*PrintingJobHandler)(nil)
	_ JobHandler = (*RedisJobHandler)(nil)
)
