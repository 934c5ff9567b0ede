package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBlock         = 5 * time.Second
	defaultCount         = 10
	defaultRetryInterval = time.Minute
)

// RedisJobReceiver reads ingest jobs as one consumer of the ingest group.
// Jobs that are not acknowledged stay pending and are read again on the next
// retry pass.
type RedisJobReceiver struct {
	client   *redis.Client
	consumer string

	Block         time.Duration
	Count         int64
	RetryInterval time.Duration

	mu          sync.Mutex
	lastPending time.Time
}

func NewRedisJobReceiver(client *redis.Client, consumer string) *RedisJobReceiver {
	return &RedisJobReceiver{
		client:        client,
		consumer:      consumer,
		Block:         defaultBlock,
		Count:         defaultCount,
		RetryInterval: defaultRetryInterval,
	}
}

// ReceiveJobs returns this consumer's pending jobs when a retry pass is due,
// and otherwise blocks for new jobs. It returns no jobs when the block expires.
func (r *RedisJobReceiver) ReceiveJobs(ctx context.Context) ([]IngestJob, error) {
	if r.pendingDue() {
		jobs, err := r.read(ctx, "0", -1)
		if err != nil {
			return nil, err
		}
		if len(jobs) > 0 {
			return jobs, nil
		}
	}
	return r.read(ctx, ">", r.Block)
}

func (r *RedisJobReceiver) pendingDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastPending) < r.RetryInterval {
		return false
	}
	r.lastPending = time.Now()
	return true
}

func (r *RedisJobReceiver) read(ctx context.Context, id string, block time.Duration) ([]IngestJob, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    IngestGroup,
		Consumer: r.consumer,
		Streams:  []string{IngestStream, id},
		Count:    r.Count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ingest stream: %w", err)
	}

	var jobs []IngestJob
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if len(msg.Values) == 0 {
				// Deleted while pending.
				if err := r.Ack(ctx, msg.ID); err != nil {
					return nil, err
				}
				continue
			}
			job, err := jobFromMessage(msg)
			if err != nil {
				slog.Error("discarding malformed ingest job", "entryID", msg.ID, "error", err)
				if err := r.Ack(ctx, msg.ID); err != nil {
					return nil, err
				}
				continue
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Ack marks jobs as done.
func (r *RedisJobReceiver) Ack(ctx context.Context, entryIDs ...string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, IngestStream, IngestGroup, entryIDs...).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge ingest jobs: %w", err)
	}
	return nil
}
