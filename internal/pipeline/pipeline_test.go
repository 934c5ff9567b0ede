package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/presenters"
	"github.com/glizzus/clutch/internal/worker"
	"github.com/google/go-cmp/cmp"
)

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (t *fakeTranscoder) ToMP3(_ context.Context, pcm []byte) ([]byte, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return append([]byte("mp3:"), pcm...), nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	requests []analysis.Request
	failFor  map[string]error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (analysis.Result, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	if err := a.failFor[req.UserID]; err != nil {
		return analysis.Result{}, err
	}
	return analysis.Result{
		Analysis:      "Análisis de " + req.Username,
		Transcription: "hola",
	}, nil
}

type fakeReporter struct {
	err error
}

func (r *fakeReporter) Render(_ context.Context, _ analysis.Result, _, _ string, _ time.Time) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4"), nil
}

type fakeSynthesizer struct {
	err error
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text, voice string, _ preferences.Speed) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("speech:" + voice), nil
}

func (s *fakeSynthesizer) Voices() []preferences.Option { return nil }
func (s *fakeSynthesizer) DefaultVoice() string         { return "voice-1" }

type defaultResolver struct{}

func (defaultResolver) Resolve(context.Context, pipeline.Participant) preferences.Preferences {
	return preferences.Defaults("voice-1")
}

type sentMessage struct {
	Content string
	Files   []string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent map[string][]sentMessage
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[string][]sentMessage)}
}

func (m *fakeMessenger) DirectMessage(userID, content string, files ...pipeline.File) error {
	msg := sentMessage{Content: content}
	for _, f := range files {
		msg.Files = append(msg.Files, f.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[userID] = append(m.sent[userID], msg)
	return nil
}

func (m *fakeMessenger) messages(userID string) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[userID]
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []pipeline.Record
}

func (a *recordingArchiver) Archive(_ context.Context, rec pipeline.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

type fixture struct {
	transcoder *fakeTranscoder
	analyzer   *fakeAnalyzer
	reporter   *fakeReporter
	synth      *fakeSynthesizer
	messenger  *fakeMessenger
	blobs      *datalayer.MemoryStorage
	archiver   *recordingArchiver
}

func newFixture() *fixture {
	return &fixture{
		transcoder: &fakeTranscoder{},
		analyzer:   &fakeAnalyzer{failFor: map[string]error{}},
		reporter:   &fakeReporter{},
		synth:      &fakeSynthesizer{},
		messenger:  newFakeMessenger(),
		blobs:      datalayer.NewMemoryStorage(),
		archiver:   &recordingArchiver{},
	}
}

func (f *fixture) pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Transcoder:  f.transcoder,
		Analyzer:    f.analyzer,
		Reporter:    f.reporter,
		Synthesizer: f.synth,
		Preferences: defaultResolver{},
		Messenger:   f.messenger,
		Blobs:       f.blobs,
		Archiver:    f.archiver,
	})
}

var (
	ana       = pipeline.Participant{ID: "u1", Username: "ana"}
	startedAt = time.UnixMilli(1700000000000)
)

func outcome(audio string) capture.Outcome {
	return capture.Outcome{ParticipantID: ana.ID, Audio: []byte(audio), StartedAt: startedAt}
}

func TestProcessDeliversFeedback(t *testing.T) {
	f := newFixture()
	result := f.pipeline().Process(context.Background(), ana, outcome("pcm"))

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Skipped {
		t.Fatal("expected participant to be processed")
	}

	want := []sentMessage{
		{Content: "🎮 **Tu Análisis Completo de Clutch**\n\nAnálisis de ana"},
		{Content: presenters.AudioFeedbackMessage, Files: []string{"Clutch Analysis.mp3"}},
		{Content: presenters.ReportMessage, Files: []string{"Clutch Analysis.pdf"}},
	}
	if diff := cmp.Diff(want, f.messenger.messages(ana.ID)); diff != "" {
		t.Errorf("direct messages mismatch (-want +got):\n%s", diff)
	}

	req := f.analyzer.requests[0]
	if string(req.Audio) != "mp3:pcm" {
		t.Errorf("expected analyzer to receive the MP3, got %q", req.Audio)
	}
	if diff := cmp.Diff(preferences.Defaults("voice-1"), *req.Preferences); diff != "" {
		t.Errorf("preferences mismatch (-want +got):\n%s", diff)
	}
	if !req.RecordedAt.Equal(startedAt) {
		t.Errorf("expected recording time %v, got %v", startedAt, req.RecordedAt)
	}

	if _, err := f.blobs.Get(context.Background(), "recordings/u1/1700000000000.mp3"); err != nil {
		t.Errorf("expected recording to be archived: %v", err)
	}
	if _, err := f.blobs.Get(context.Background(), "reports/u1/1700000000000.pdf"); err != nil {
		t.Errorf("expected report to be archived: %v", err)
	}

	if len(f.archiver.records) != 1 {
		t.Fatalf("expected 1 archived record, got %d", len(f.archiver.records))
	}
	rec := f.archiver.records[0]
	if rec.PlayerAudioKey != "recordings/u1/1700000000000.mp3" {
		t.Errorf("unexpected player audio key %q", rec.PlayerAudioKey)
	}
	if string(rec.Submission.CoachAudio) != "speech:voice-1" {
		t.Errorf("unexpected coach audio %q", rec.Submission.CoachAudio)
	}
	if rec.Submission.Transcription != "hola" {
		t.Errorf("unexpected transcription %q", rec.Submission.Transcription)
	}
}

func TestProcessSkipsEmptyAudio(t *testing.T) {
	f := newFixture()
	result := f.pipeline().Process(context.Background(), ana, outcome(""))

	if !result.Skipped || result.Err != nil {
		t.Fatalf("expected a skipped result without error, got %+v", result)
	}
	if f.transcoder.calls != 0 {
		t.Errorf("expected transcoder not to run, got %d calls", f.transcoder.calls)
	}
	if msgs := f.messenger.messages(ana.ID); len(msgs) != 0 {
		t.Errorf("expected no direct messages, got %v", msgs)
	}
}

func TestProcessReportsFailedCaptureWithoutAudio(t *testing.T) {
	f := newFixture()
	captureErr := errors.New("stream reset")
	o := outcome("")
	o.Err = captureErr

	result := f.pipeline().Process(context.Background(), ana, o)
	if result.Skipped {
		t.Error("expected a failed capture not to count as skipped")
	}
	if !errors.Is(result.Err, captureErr) {
		t.Fatalf("expected the capture error, got %v", result.Err)
	}
	if f.transcoder.calls != 0 {
		t.Errorf("expected transcoder not to run, got %d calls", f.transcoder.calls)
	}
	if diff := cmp.Diff([]sentMessage{{Content: presenters.ProcessingFailedMessage}}, f.messenger.messages(ana.ID)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessUsesPartialAudio(t *testing.T) {
	f := newFixture()
	o := outcome("partial")
	o.Err = errors.New("stream reset")

	result := f.pipeline().Process(context.Background(), ana, o)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if string(f.analyzer.requests[0].Audio) != "mp3:partial" {
		t.Errorf("expected partial audio to be analysed, got %q", f.analyzer.requests[0].Audio)
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*fixture)
		wantAnalyzed  bool
		wantDelivered bool
	}{
		{
			name:  "transcoding fails",
			setup: func(f *fixture) { f.transcoder.err = errors.New("ffmpeg exploded") },
		},
		{
			name:         "analysis fails",
			setup:        func(f *fixture) { f.analyzer.failFor[ana.ID] = &analysis.ReportedError{Message: "sin voz"} },
			wantAnalyzed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			result := f.pipeline().Process(context.Background(), ana, outcome("pcm"))
			if result.Err == nil {
				t.Fatal("expected an error")
			}
			if got := len(f.analyzer.requests) > 0; got != tt.wantAnalyzed {
				t.Errorf("analyzed = %v, want %v", got, tt.wantAnalyzed)
			}
			want := []sentMessage{{Content: presenters.ProcessingFailedMessage}}
			if diff := cmp.Diff(want, f.messenger.messages(ana.ID)); diff != "" {
				t.Errorf("direct messages mismatch (-want +got):\n%s", diff)
			}
			if len(f.archiver.records) != 0 {
				t.Errorf("expected nothing archived, got %d records", len(f.archiver.records))
			}
		})
	}
}

func TestProcessWithoutSpeech(t *testing.T) {
	f := newFixture()
	f.synth.err = errors.New("quota exceeded")
	f.reporter.err = errors.New("no pdf")

	result := f.pipeline().Process(context.Background(), ana, outcome("pcm"))
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	want := []sentMessage{{Content: "🎮 **Tu Análisis Completo de Clutch**\n\nAnálisis de ana"}}
	if diff := cmp.Diff(want, f.messenger.messages(ana.ID)); diff != "" {
		t.Errorf("direct messages mismatch (-want +got):\n%s", diff)
	}
	if coach := f.archiver.records[0].Submission.CoachAudio; coach != nil {
		t.Errorf("expected no coach audio, got %q", coach)
	}
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	f := newFixture()
	f.analyzer.failFor["u2"] = errors.New("boom")

	jobs := []pipeline.Job{
		{Participant: ana, Outcome: outcome("a")},
		{Participant: pipeline.Participant{ID: "u2", Username: "bo"}, Outcome: capture.Outcome{ParticipantID: "u2", Audio: []byte("b")}},
		{Participant: pipeline.Participant{ID: "u3", Username: "cy"}, Outcome: capture.Outcome{ParticipantID: "u3"}},
	}
	results := f.pipeline().ProcessAll(context.Background(), jobs)

	type summary struct {
		ID      string
		Skipped bool
		Failed  bool
	}
	var got []summary
	for _, r := range results {
		got = append(got, summary{ID: r.Participant.ID, Skipped: r.Skipped, Failed: r.Err != nil})
	}
	want := []summary{
		{ID: "u1"},
		{ID: "u2", Failed: true},
		{ID: "u3", Skipped: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if len(f.archiver.records) != 1 {
		t.Errorf("expected 1 archived record, got %d", len(f.archiver.records))
	}
}

type recordingJobHandler struct {
	jobs []worker.IngestJob
}

func (h *recordingJobHandler) HandleJobs(_ context.Context, jobs ...worker.IngestJob) error {
	h.jobs = append(h.jobs, jobs...)
	return nil
}

func TestQueueArchiver(t *testing.T) {
	ctx := context.Background()
	blobs := datalayer.NewMemoryStorage()
	jobs := &recordingJobHandler{}
	archiver := pipeline.NewQueueArchiver(blobs, jobs)

	rec := pipeline.Record{}
	rec.Submission.UserID = "u1"
	rec.Submission.Username = "ana"
	rec.Submission.RecordedAt = startedAt
	rec.Submission.PlayerAudio = []byte("player")
	rec.Submission.CoachAudio = []byte("coach")

	if err := archiver.Archive(ctx, rec); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.PlayerAudioKey != "recordings/u1/1700000000000.mp3" || job.CoachAudioKey != "coach/u1/1700000000000.mp3" {
		t.Errorf("unexpected keys %q and %q", job.PlayerAudioKey, job.CoachAudioKey)
	}
	coach, err := blobs.Get(ctx, job.CoachAudioKey)
	if err != nil || string(coach) != "coach" {
		t.Errorf("expected coach audio to be stored, got %q, %v", coach, err)
	}
	if _, err := blobs.Get(ctx, job.PlayerAudioKey); err != nil {
		t.Errorf("expected player audio to be stored: %v", err)
	}
}

func TestAnalyzeLatest(t *testing.T) {
	ctx := context.Background()

	t.Run("archive disabled", func(t *testing.T) {
		p := pipeline.New(pipeline.Deps{Analyzer: &fakeAnalyzer{}})
		_, _, err := p.AnalyzeLatest(ctx, ana, nil)
		if !errors.Is(err, pipeline.ErrArchiveDisabled) {
			t.Errorf("expected ErrArchiveDisabled, got %v", err)
		}
	})

	t.Run("no recording", func(t *testing.T) {
		f := newFixture()
		_, _, err := f.pipeline().AnalyzeLatest(ctx, ana, nil)
		if !errors.Is(err, pipeline.ErrNoRecording) {
			t.Errorf("expected ErrNoRecording, got %v", err)
		}
	})

	t.Run("uses the newest recording", func(t *testing.T) {
		f := newFixture()
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		for i, key := range []string{"recordings/u1/b.mp3", "recordings/u1/a.mp3", "recordings/u2/c.mp3"} {
			f.blobs.SetClock(func() time.Time { return base.Add(time.Duration(i) * time.Hour) })
			if err := datalayer.PutBytes(ctx, f.blobs, key, []byte(key), "audio/mpeg"); err != nil {
				t.Fatal(err)
			}
		}

		key, result, err := f.pipeline().AnalyzeLatest(ctx, ana, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "recordings/u1/a.mp3" {
			t.Errorf("expected newest recording, got %q", key)
		}
		if !strings.Contains(result.Analysis, "ana") {
			t.Errorf("unexpected analysis %q", result.Analysis)
		}
		if got := string(f.analyzer.requests[0].Audio); got != "recordings/u1/a.mp3" {
			t.Errorf("expected archived audio to be analysed, got %q", got)
		}
	})
}
