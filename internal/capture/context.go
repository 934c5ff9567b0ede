package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultReadyTimeout = 5 * time.Second
	DefaultOpenAttempts = 3
	DefaultOpenBackoff  = time.Second
	DefaultDrainGrace   = 2 * time.Second

	maxReadyPollInterval = 50 * time.Millisecond
)

// Options tune how sessions are opened and drained.
type Options struct {
	// ReadyTimeout bounds the wait for the connection to become ready per open attempt.
	ReadyTimeout time.Duration
	// OpenAttempts is the number of subscription attempts made while the
	// connection is not ready.
	OpenAttempts int
	// OpenBackoff is the fixed pause between attempts.
	OpenBackoff time.Duration
	// DrainGrace bounds the wait for a decode stage to end after Finalize.
	DrainGrace time.Duration
	// MaxBytes caps the PCM buffered per session. Zero means unbounded.
	MaxBytes int
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.OpenAttempts <= 0 {
		o.OpenAttempts = DefaultOpenAttempts
	}
	if o.OpenBackoff < 0 {
		o.OpenBackoff = 0
	}
	if o.DrainGrace <= 0 {
		o.DrainGrace = DefaultDrainGrace
	}
	return o
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Outcome is the result of finalizing one session.
type Outcome struct {
	ParticipantID string
	Audio         []byte
	Err           error
	StartedAt     time.Time
	Truncated     bool
	Dropped       int
}

// Empty reports whether no audio was captured.
func (o Outcome) Empty() bool {
	return len(o.Audio) == 0
}

// RecordingContext owns the capture sessions of one voice connection.
type RecordingContext struct {
	GuildID   string
	StartedAt time.Time

	receiver   Receiver
	newDecoder DecoderFactory
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	pending  map[string]struct{}
	draining bool
}

func NewRecordingContext(guildID string, receiver Receiver, newDecoder DecoderFactory, opts Options) *RecordingContext {
	opts = opts.withDefaults()
	return &RecordingContext{
		GuildID:    guildID,
		StartedAt:  time.Now(),
		receiver:   receiver,
		newDecoder: newDecoder,
		opts:       opts,
		logger:     opts.logger().With("guildID", guildID),
		sessions:   make(map[string]*Session),
		pending:    make(map[string]struct{}),
	}
}

// Open subscribes to a participant and starts capturing their audio.
func (rc *RecordingContext) Open(ctx context.Context, participantID string) (*Session, error) {
	rc.mu.Lock()
	if rc.draining {
		rc.mu.Unlock()
		return nil, ErrContextDraining
	}
	_, exists := rc.sessions[participantID]
	_, opening := rc.pending[participantID]
	if exists || opening {
		rc.mu.Unlock()
		return nil, ErrDuplicateParticipant
	}
	rc.pending[participantID] = struct{}{}
	rc.mu.Unlock()

	release := func() {
		rc.mu.Lock()
		delete(rc.pending, participantID)
		rc.mu.Unlock()
	}

	stream, attempts, err := rc.subscribe(ctx, participantID)
	if err != nil {
		release()
		return nil, &OpenError{ParticipantID: participantID, Attempts: attempts, Err: err}
	}

	decoder, err := rc.newDecoder()
	if err != nil {
		release()
		_ = stream.Close()
		return nil, fmt.Errorf("failed to create decoder for %s: %w", participantID, err)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.pending, participantID)
	if rc.draining {
		_ = stream.Close()
		return nil, ErrContextDraining
	}

	session := newSession(participantID, stream, decoder, rc.opts)
	rc.sessions[participantID] = session
	rc.order = append(rc.order, participantID)
	rc.logger.Info("capture session opened", "participantID", participantID, "attempts", attempts)
	return session, nil
}

func (rc *RecordingContext) subscribe(ctx context.Context, participantID string) (Stream, int, error) {
	var lastErr error
	for attempt := 1; attempt <= rc.opts.OpenAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(rc.opts.OpenBackoff):
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			}
		}

		stream, err := rc.trySubscribe(ctx, participantID)
		if err == nil {
			return stream, attempt, nil
		}
		lastErr = err
		if !errors.Is(err, ErrConnectionNotReady) {
			return nil, attempt, err
		}
		rc.logger.Warn(
			"voice connection not ready for subscription",
			"participantID", participantID,
			"attempt", attempt,
			"maxAttempts", rc.opts.OpenAttempts,
		)
	}
	return nil, rc.opts.OpenAttempts, lastErr
}

func (rc *RecordingContext) trySubscribe(ctx context.Context, participantID string) (Stream, error) {
	if err := waitReady(ctx, rc.receiver, rc.opts.ReadyTimeout); err != nil {
		return nil, err
	}
	return rc.receiver.Subscribe(participantID)
}

func waitReady(ctx context.Context, r Receiver, timeout time.Duration) error {
	if r.Ready() {
		return nil
	}

	interval := min(timeout/4, maxReadyPollInterval)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			if r.Ready() {
				return nil
			}
		case <-deadline.C:
			return ErrConnectionNotReady
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Session returns the session of a participant.
func (rc *RecordingContext) Session(participantID string) (*Session, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	s, ok := rc.sessions[participantID]
	return s, ok
}

// Sessions returns every session in the order it was opened.
func (rc *RecordingContext) Sessions() []*Session {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	sessions := make([]*Session, 0, len(rc.order))
	for _, id := range rc.order {
		sessions = append(sessions, rc.sessions[id])
	}
	return sessions
}

// Stats returns a snapshot of every session in open order.
func (rc *RecordingContext) Stats() []Stats {
	sessions := rc.Sessions()
	stats := make([]Stats, 0, len(sessions))
	for _, s := range sessions {
		stats = append(stats, s.Stats())
	}
	return stats
}

// Len returns the number of open sessions.
func (rc *RecordingContext) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.sessions)
}

// Draining reports whether FinalizeAll has been called.
func (rc *RecordingContext) Draining() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.draining
}

// FinalizeAll stops the context from accepting new sessions and finalizes every
// session independently. A failing session never prevents the others from
// completing; its failure is reported in its own Outcome.
func (rc *RecordingContext) FinalizeAll(ctx context.Context) []Outcome {
	rc.mu.Lock()
	rc.draining = true
	rc.mu.Unlock()

	sessions := rc.Sessions()
	outcomes := make([]Outcome, len(sessions))

	var g errgroup.Group
	for i, s := range sessions {
		g.Go(func() error {
			audio, err := s.Finalize(ctx)
			stats := s.Stats()
			outcomes[i] = Outcome{
				ParticipantID: s.ParticipantID,
				Audio:         audio,
				Err:           err,
				StartedAt:     s.StartedAt,
				Truncated:     stats.Truncated,
				Dropped:       stats.Dropped,
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			rc.logger.Error("capture session failed", "participantID", o.ParticipantID, "bytes", len(o.Audio), "error", o.Err)
			continue
		}
		rc.logger.Info("capture session finalized", "participantID", o.ParticipantID, "bytes", len(o.Audio))
	}
	return outcomes
}
