package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/config"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/handler"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/opus"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/repository"
	"github.com/glizzus/clutch/internal/schedule"
	"github.com/glizzus/clutch/internal/script"
	"github.com/glizzus/clutch/internal/transcode"
	"github.com/glizzus/clutch/internal/tts"
	"github.com/glizzus/clutch/internal/worker"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func newDecoder() (capture.Decoder, error) {
	return opus.NewDecoder()
}

func newSynthesizer(ctx context.Context, cfg *config.TTSConfig) (tts.Synthesizer, func(), error) {
	if !cfg.Enabled() {
		slog.Warn("No speech provider credentials, audio feedback is disabled", "provider", cfg.Provider)
		return nil, func() {}, nil
	}
	switch cfg.Provider {
	case config.TTSProviderGoogle:
		g, err := tts.NewGoogle(ctx, cfg.GoogleCredentialsFile, cfg.GoogleLanguage)
		if err != nil {
			return nil, nil, err
		}
		return g, func() {
			if err := g.Close(); err != nil {
				slog.Warn("failed to close text-to-speech client", "error", err)
			}
		}, nil
	default:
		return tts.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel), func() {}, nil
	}
}

func newBlobStorage(ctx context.Context, cfg *config.MinioConfig) (datalayer.BlobStorage, error) {
	if !cfg.Enabled() {
		slog.Warn("MINIO_ENDPOINT is not set, recordings will not be archived")
		return nil, nil
	}
	storage, err := datalayer.NewMinioStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	return storage, nil
}

// newArchiver queues ingestion through Redis when it is configured, and
// otherwise submits to the ingestion API directly.
func newArchiver(ctx context.Context, blobs datalayer.BlobStorage, redisConfig *config.RedisConfig, ingestConfig *config.IngestConfig) (pipeline.Archiver, func(), error) {
	if redisConfig.Enabled() {
		if blobs == nil {
			return nil, nil, fmt.Errorf("REDIS_ADDR requires MINIO_ENDPOINT, queued jobs reference archived audio")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisConfig.Addr,
			Password: redisConfig.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		jobs, err := worker.NewRedisJobHandler(ctx, rdb)
		if err != nil {
			return nil, nil, err
		}
		return pipeline.NewQueueArchiver(blobs, jobs), func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}, nil
	}
	if ingestConfig.Enabled() {
		return pipeline.NewDirectArchiver(ingest.NewClient(ingestConfig.URL, ingestConfig.Timeout)), func() {}, nil
	}
	slog.Info("No ingestion target configured, analyses are not archived")
	return nil, func() {}, nil
}

// purgeDelay postpones the catch-up purge run at startup.
const purgeDelay = time.Minute

func scheduleRetention(ctx context.Context, blobs datalayer.BlobStorage, cfg *config.MinioConfig) error {
	if blobs == nil || cfg.Retention <= 0 {
		return nil
	}
	cron, err := schedule.ParseCron(cfg.RetentionCron)
	if err != nil {
		return fmt.Errorf("invalid RECORDING_RETENTION_CRON: %w", err)
	}

	purge := func(ctx context.Context) {
		cutoff := time.Now().Add(-cfg.Retention)
		removed, err := datalayer.PurgeOlderThan(ctx, blobs, cutoff,
			datalayer.RecordingsPrefix, datalayer.ReportsPrefix, datalayer.CoachPrefix)
		if err != nil {
			slog.Error("failed to purge archived recordings", "removed", removed, "error", err)
			return
		}
		slog.Info("Purged archived recordings", "removed", removed, "cutoff", cutoff)
	}

	schedule.RunAt(ctx, time.Now().Add(purgeDelay), purge)
	go func() {
		if err := schedule.Every(ctx, cron, purge); err != nil && ctx.Err() == nil {
			slog.Error("recording retention stopped", "error", err)
		}
	}()
	slog.Info("Recording retention scheduled", "retention", cfg.Retention, "cron", cron.String(), "nextRuns", cron.Upcoming(time.Now(), 3))
	return nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	level, err := config.ParseLogLevel(discordConfig.LogLevel)
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(level)

	captureConfig, err := config.NewCaptureConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load capture config: %w", err)
	}
	analysisConfig, err := config.NewAnalysisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load analysis config: %w", err)
	}
	prefsConfig, err := config.NewPreferencesConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load preferences config: %w", err)
	}
	ttsConfig, err := config.NewTTSConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load tts config: %w", err)
	}
	minioConfig, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load minio config: %w", err)
	}
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	ingestConfig, err := config.NewIngestConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load ingest config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := repository.NewPreferenceStore(ctx, prefsConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	synth, closeSynth, err := newSynthesizer(ctx, ttsConfig)
	if err != nil {
		return fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	defer closeSynth()

	blobs, err := newBlobStorage(ctx, minioConfig)
	if err != nil {
		return err
	}

	archiver, closeArchiver, err := newArchiver(ctx, blobs, redisConfig, ingestConfig)
	if err != nil {
		return err
	}
	defer closeArchiver()

	analyzeCmd, err := script.Parse(analysisConfig.Command, analysisConfig.Timeout)
	if err != nil {
		return fmt.Errorf("invalid ANALYSIS_COMMAND: %w", err)
	}

	var voices []preferences.Option
	defaults := preferences.Defaults("")
	if synth != nil {
		voices = synth.Voices()
		defaults = preferences.Defaults(synth.DefaultVoice())
	}

	flows := handler.NewFlowManager(nil)
	var router *handler.CommandRouter

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
		MessageCreate: func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			router.Handle(ctx, m)
		},
		InteractionCreate: flows.InteractionCreateHandler(),
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	steps := preferences.Steps(voices)
	if prefsConfig.PersonalityTest {
		steps = preferences.WithQuestionnaire(steps)
	}
	wizard := handler.NewWizard(flows, session, store, steps, defaults, handler.WizardOptions{
		Timeout:   prefsConfig.Timeout,
		AlwaysAsk: prefsConfig.AlwaysAsk,
	})

	deps := pipeline.Deps{
		Transcoder:  transcode.New(analysisConfig.FFmpegPath),
		Analyzer:    analysis.NewAnalyzer(analyzeCmd),
		Synthesizer: synth,
		Preferences: wizard,
		Messenger:   handler.NewDirectMessenger(session),
		Blobs:       blobs,
		Archiver:    archiver,
	}
	if analysisConfig.ReportCommand != "" {
		reportCmd, err := script.Parse(analysisConfig.ReportCommand, analysisConfig.ReportTimeout)
		if err != nil {
			return fmt.Errorf("invalid REPORT_COMMAND: %w", err)
		}
		deps.Reporter = analysis.NewReporter(reportCmd)
	}

	bot := handler.NewBot(handler.BotDeps{
		Session:    session,
		Voice:      handler.NewDiscordVoice(session),
		Processor:  pipeline.New(deps),
		NewDecoder: newDecoder,
		Capture: capture.Options{
			ReadyTimeout: captureConfig.ReadyTimeout,
			OpenAttempts: captureConfig.OpenAttempts,
			OpenBackoff:  captureConfig.OpenBackoff,
			DrainGrace:   captureConfig.DrainGrace,
			MaxBytes:     captureConfig.MaxBytes(opus.BytesPerSecond),
		},
		Preferences: store,
	})
	router = handler.NewCommandRouter(session)
	bot.Register(router)

	if err := scheduleRetention(ctx, blobs, minioConfig); err != nil {
		return err
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	bot.Shutdown(shutdownCtx)
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
