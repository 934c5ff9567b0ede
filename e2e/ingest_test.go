package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/clutch/e2e"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/worker"
	"github.com/google/go-cmp/cmp"
)

type ingestedForm struct {
	UserID       string
	AnalysisText string
	Game         string
	PlayerAudio  string
	CoachAudio   string
}

func ingestServer(t *testing.T) (*httptest.Server, func() []ingestedForm) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []ingestedForm
	)

	readFile := func(r *http.Request, field string) string {
		f, _, err := r.FormFile(field)
		if err != nil {
			return ""
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		return string(data)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ingest.Response{Error: err.Error()})
			return
		}
		mu.Lock()
		seen = append(seen, ingestedForm{
			UserID:       r.FormValue("user_id"),
			AnalysisText: r.FormValue("analysis_text"),
			Game:         r.FormValue("game"),
			PlayerAudio:  readFile(r, "player_audio"),
			CoachAudio:   readFile(r, "coach_audio"),
		})
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(ingest.Response{Success: true, AnalysisID: "analysis-1"})
	}))
	t.Cleanup(srv.Close)

	return srv, func() []ingestedForm {
		mu.Lock()
		defer mu.Unlock()
		return append([]ingestedForm(nil), seen...)
	}
}

func TestQueuedIngestion(t *testing.T) {
	ctx := t.Context()
	client := e2e.UseRedis(t)
	blobs := datalayer.NewMemoryStorage()
	srv, ingested := ingestServer(t)

	jobs, err := worker.NewRedisJobHandler(ctx, client)
	if err != nil {
		t.Fatalf("failed to create job handler: %v", err)
	}
	archiver := pipeline.NewQueueArchiver(blobs, jobs)

	recordedAt := time.Date(2025, 7, 27, 20, 3, 0, 0, time.UTC)
	rec := pipeline.Record{
		Submission: ingest.Submission{
			UserID:       "42",
			Username:     "ana",
			AnalysisText: "Buen trabajo",
			Preferences:  preferences.Defaults("voice"),
			RecordedAt:   recordedAt,
			PlayerAudio:  []byte("player-mp3"),
			CoachAudio:   []byte("coach-mp3"),
		},
	}
	if err := archiver.Archive(ctx, rec); err != nil {
		t.Fatalf("failed to archive: %v", err)
	}

	if _, err := blobs.Get(ctx, pipeline.RecordingKey("42", recordedAt)); err != nil {
		t.Errorf("expected player audio to be archived: %v", err)
	}

	receiver := worker.NewRedisJobReceiver(client, "e2e-consumer")
	receiver.Block = 500 * time.Millisecond
	processor := worker.NewIngestProcessor(blobs, ingest.NewClient(srv.URL, 5*time.Second))

	deadline := time.Now().Add(10 * time.Second)
	var received []worker.IngestJob
	for len(received) == 0 && time.Now().Before(deadline) {
		received, err = receiver.ReceiveJobs(ctx)
		if err != nil {
			t.Fatalf("failed to receive jobs: %v", err)
		}
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 job, got %d", len(received))
	}

	resp, err := processor.Process(ctx, received[0])
	if err != nil {
		t.Fatalf("failed to process job: %v", err)
	}
	if resp.AnalysisID != "analysis-1" {
		t.Errorf("expected analysis ID %q, got %q", "analysis-1", resp.AnalysisID)
	}
	if err := receiver.Ack(ctx, received[0].EntryID); err != nil {
		t.Fatalf("failed to ack: %v", err)
	}

	want := []ingestedForm{{
		UserID:       "42",
		AnalysisText: "Buen trabajo",
		Game:         preferences.DefaultGame,
		PlayerAudio:  "player-mp3",
		CoachAudio:   "coach-mp3",
	}}
	if diff := cmp.Diff(want, ingested()); diff != "" {
		t.Errorf("ingested form mismatch (-want +got):\n%s", diff)
	}

	pending, err := client.XPending(context.Background(), worker.IngestStream, worker.IngestGroup).Result()
	if err != nil {
		t.Fatalf("failed to read pending jobs: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected no pending jobs, got %d", pending.Count)
	}
}
