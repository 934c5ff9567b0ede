package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/presenters"
	"github.com/glizzus/clutch/internal/tts"
	"golang.org/x/sync/errgroup"
)

const (
	AudioFeedbackFilename = "Clutch Analysis.mp3"
	ReportFilename        = "Clutch Analysis.pdf"
)

type Transcoder interface {
	ToMP3(ctx context.Context, pcm []byte) ([]byte, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

type Reporter interface {
	Render(ctx context.Context, result analysis.Result, userID, username string, at time.Time) ([]byte, error)
}

// PreferenceResolver returns the preferences to analyse with. It never fails:
// when nothing can be collected it falls back to defaults.
type PreferenceResolver interface {
	Resolve(ctx context.Context, p Participant) preferences.Preferences
}

// File is an attachment of a direct message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Messenger sends direct messages to users.
type Messenger interface {
	DirectMessage(userID, content string, files ...File) error
}

// Participant is a recorded user.
type Participant struct {
	ID       string
	Username string
}

// Job pairs a participant with the outcome of their capture session.
type Job struct {
	Participant Participant
	Outcome     capture.Outcome
}

// Result is what happened to one participant.
type Result struct {
	Participant Participant
	// Skipped is set when there was no audio to process.
	Skipped  bool
	Analysis analysis.Result
	Err      error
}

// Deps are the collaborators of a Pipeline. Reporter, Synthesizer, Blobs and
// Archiver are optional.
type Deps struct {
	Transcoder  Transcoder
	Analyzer    Analyzer
	Reporter    Reporter
	Synthesizer tts.Synthesizer
	Preferences PreferenceResolver
	Messenger   Messenger
	Blobs       datalayer.BlobStorage
	Archiver    Archiver
	// Concurrency bounds how many participants are processed at once. Zero means no limit.
	Concurrency int
	Logger      *slog.Logger
}

type Pipeline struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{deps: deps, logger: logger, now: time.Now}
}

// ProcessAll processes every job concurrently and returns the results in job order.
func (p *Pipeline) ProcessAll(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	if p.deps.Concurrency > 0 {
		g.SetLimit(p.deps.Concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.Process(ctx, job.Participant, job.Outcome)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Process runs the whole pipeline for one participant.
func (p *Pipeline) Process(ctx context.Context, participant Participant, outcome capture.Outcome) Result {
	logger := p.logger.With("userID", participant.ID, "username", participant.Username)
	result := Result{Participant: participant}

	fail := func(err error) Result {
		logger.Error("Failed to process recording", "error", err)
		if derr := p.deps.Messenger.DirectMessage(participant.ID, presenters.ProcessingFailedMessage); derr != nil {
			logger.Warn("Failed to notify user of the failure", "error", derr)
		}
		result.Err = err
		return result
	}

	if outcome.Err != nil {
		if outcome.Empty() {
			return fail(fmt.Errorf("capture failed without audio: %w", outcome.Err))
		}
		logger.Warn("Capture ended with an error, using partial audio", "bytes", len(outcome.Audio), "error", outcome.Err)
	}
	if outcome.Empty() {
		logger.Info("No audio captured, skipping")
		result.Skipped = true
		return result
	}

	recordedAt := outcome.StartedAt
	if recordedAt.IsZero() {
		recordedAt = p.now()
	}

	mp3, err := p.deps.Transcoder.ToMP3(ctx, outcome.Audio)
	if err != nil {
		return fail(fmt.Errorf("failed to transcode audio: %w", err))
	}
	logger.Info("Transcoded recording", "pcmBytes", len(outcome.Audio), "mp3Bytes", len(mp3))

	playerKey := p.store(ctx, logger, RecordingKey(participant.ID, recordedAt), mp3, "audio/mpeg")

	prefs := p.deps.Preferences.Resolve(ctx, participant)

	analysed, err := p.deps.Analyzer.Analyze(ctx, analysis.Request{
		UserID:      participant.ID,
		Username:    participant.Username,
		RecordedAt:  recordedAt,
		Audio:       mp3,
		Preferences: &prefs,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to analyse recording: %w", err))
	}
	result.Analysis = analysed

	coach, err := p.deliver(ctx, logger, participant, analysed, prefs, recordedAt)
	if err != nil {
		logger.Error("Failed to deliver feedback", "error", err)
		result.Err = err
	}

	if p.deps.Archiver != nil {
		err := p.deps.Archiver.Archive(ctx, Record{
			Submission: ingest.Submission{
				UserID:        participant.ID,
				Username:      participant.Username,
				AnalysisText:  analysed.Analysis,
				Transcription: analysed.Transcription,
				Preferences:   prefs,
				RecordedAt:    recordedAt,
				PlayerAudio:   mp3,
				CoachAudio:    coach,
			},
			PlayerAudioKey: playerKey,
		})
		if err != nil {
			logger.Error("Failed to archive analysis", "error", err)
		}
	}

	return result
}

// deliver sends the analysis, its spoken version and the PDF report. It returns
// the synthesized audio, if any.
func (p *Pipeline) deliver(
	ctx context.Context,
	logger *slog.Logger,
	participant Participant,
	result analysis.Result,
	prefs preferences.Preferences,
	at time.Time,
) ([]byte, error) {
	for _, msg := range presenters.AnalysisMessages(result) {
		if err := p.deps.Messenger.DirectMessage(participant.ID, msg); err != nil {
			return nil, fmt.Errorf("failed to send analysis: %w", err)
		}
	}

	var errs []error
	coach := p.synthesize(ctx, logger, result.Analysis, prefs)
	if coach != nil {
		err := p.deps.Messenger.DirectMessage(participant.ID, presenters.AudioFeedbackMessage, File{
			Name:        AudioFeedbackFilename,
			ContentType: "audio/mpeg",
			Data:        coach,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to send audio feedback: %w", err))
		}
	}

	if p.deps.Reporter != nil {
		pdf, err := p.deps.Reporter.Render(ctx, result, participant.ID, participant.Username, at)
		if err != nil {
			logger.Warn("Failed to render report", "error", err)
		} else {
			p.store(ctx, logger, ReportKey(participant.ID, at), pdf, "application/pdf")
			err := p.deps.Messenger.DirectMessage(participant.ID, presenters.ReportMessage, File{
				Name:        ReportFilename,
				ContentType: "application/pdf",
				Data:        pdf,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to send report: %w", err))
			}
		}
	}

	logger.Info("Delivered feedback", "audio", coach != nil)
	return coach, errors.Join(errs...)
}

// synthesize returns nil when speech is disabled or fails; the text feedback stands alone.
func (p *Pipeline) synthesize(ctx context.Context, logger *slog.Logger, text string, prefs preferences.Preferences) []byte {
	if p.deps.Synthesizer == nil {
		return nil
	}
	audio, err := p.deps.Synthesizer.Synthesize(ctx, text, prefs.Voice, prefs.Speed)
	if err != nil {
		logger.Warn("Failed to synthesize feedback, sending text only", "error", err)
		return nil
	}
	return audio
}

// store archives data when blob storage is configured and returns its key.
// Failures are logged and yield an empty key.
func (p *Pipeline) store(ctx context.Context, logger *slog.Logger, key string, data []byte, contentType string) string {
	if p.deps.Blobs == nil {
		return ""
	}
	if err := datalayer.PutBytes(ctx, p.deps.Blobs, key, data, contentType); err != nil {
		logger.Warn("Failed to archive blob", "key", key, "error", err)
		return ""
	}
	return key
}
