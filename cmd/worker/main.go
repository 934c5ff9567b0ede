package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glizzus/clutch/internal/config"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/ingest"
	"github.com/glizzus/clutch/internal/worker"
	"github.com/redis/go-redis/v9"
)

var dryRun = flag.Bool("dry-run", false, "Do not call the ingestion API, just print job info to terminal")

// handle submits one job. It reports whether the job is done, either because it
// succeeded or because retrying cannot help.
func handle(ctx context.Context, processor *worker.IngestProcessor, job worker.IngestJob) bool {
	resp, err := processor.Process(ctx, job)
	switch {
	case err == nil:
		attrs := append(job.LogAttrs(), "analysisID", resp.AnalysisID)
		slog.Info("Analysis ingested", attrs...)
		return true
	case worker.Permanent(err):
		attrs := append(job.LogAttrs(), "error", err)
		slog.Error("Dropping ingest job", attrs...)
		return true
	default:
		attrs := append(job.LogAttrs(), "error", err)
		slog.Warn("Ingest job failed, it will be retried", attrs...)
		return false
	}
}

func runWorkerForever() error {
	flag.Parse()
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	level, err := config.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(level)

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	if !redisConfig.Enabled() {
		return fmt.Errorf("REDIS_ADDR is not set")
	}
	minioConfig, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load minio config: %w", err)
	}
	if !minioConfig.Enabled() {
		return fmt.Errorf("MINIO_ENDPOINT is not set")
	}
	ingestConfig, err := config.NewIngestConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load ingest config: %w", err)
	}
	if !ingestConfig.Enabled() && !*dryRun {
		return fmt.Errorf("INGEST_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if err := worker.EnsureGroup(ctx, rdb); err != nil {
		return err
	}

	blobs, err := datalayer.NewMinioStorage(minioConfig)
	if err != nil {
		return fmt.Errorf("failed to create minio storage: %w", err)
	}

	consumer, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	processor := worker.NewIngestProcessor(blobs, ingest.NewClient(ingestConfig.URL, ingestConfig.Timeout))
	printer := &worker.PrintingJobHandler{}
	jobReceiver := worker.NewRedisJobReceiver(rdb, consumer)
	slog.Info("Worker started", "consumer", consumer, "dryRun", *dryRun)

	for {
		jobs, err := jobReceiver.ReceiveJobs(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive jobs: %w", err)
		}

		if *dryRun {
			if err := printer.HandleJobs(ctx, jobs...); err != nil {
				return err
			}
			continue
		}

		var done []string
		for _, job := range jobs {
			if handle(ctx, processor, job) {
				done = append(done, job.EntryID)
			}
		}
		if err := jobReceiver.Ack(ctx, done...); err != nil {
			slog.Error("failed to acknowledge jobs", "count", len(done), "error", err)
		}
	}
}

func main() {
	if err := runWorkerForever(); err != nil {
		slog.Error("Worker encountered an error", slog.Any("error", err))
		os.Exit(1)
	}
}
