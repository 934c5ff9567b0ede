package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the life cycle position of a capture session.
type State int

const (
	Capturing State = iota
	Draining
	Finalized
	Failed
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Draining:
		return "draining"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stream is one participant's incoming audio subscription.
type Stream interface {
	// Packets yields encoded packets in arrival order. The channel is closed
	// when the stream ends.
	Packets() <-chan []byte
	// Err reports why the stream ended. It is only meaningful once Packets is closed:
	// nil for a requested end, ErrPrematureClose for a deliberate transport teardown.
	Err() error
	// Close asks the stream to end. No packet is queued after Close returns and
	// Packets is closed once the packets already queued have been read.
	Close() error
}

// Lossy is implemented by streams that discard packets they could not queue.
type Lossy interface {
	Dropped() int
}

// Receiver subscribes to participants of a voice connection.
type Receiver interface {
	Ready() bool
	Subscribe(participantID string) (Stream, error)
}

// Decoder turns one encoded packet into interleaved PCM bytes. The returned slice
// is owned by the caller.
type Decoder interface {
	Decode(packet []byte) ([]byte, error)
}

// DecoderFactory builds the decode stage for a new session.
type DecoderFactory func() (Decoder, error)

// Stats is a point-in-time view of a session.
type Stats struct {
	ParticipantID string
	State         State
	Frames        int
	Bytes         int
	Dropped       int
	Truncated     bool
	StartedAt     time.Time
}

// Session captures the audio of a single participant.
type Session struct {
	ParticipantID string
	StartedAt     time.Time

	stream   Stream
	decoder  Decoder
	maxBytes int
	grace    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	frames    [][]byte
	count     int
	size      int
	dropped   int
	truncated bool
	result    []byte
	err       error

	settled chan struct{}
}

func newSession(participantID string, stream Stream, decoder Decoder, opts Options) *Session {
	s := &Session{
		ParticipantID: participantID,
		StartedAt:     time.Now(),
		stream:        stream,
		decoder:       decoder,
		maxBytes:      opts.MaxBytes,
		grace:         opts.DrainGrace,
		logger:        opts.logger().With("participantID", participantID),
		state:         Capturing,
		settled:       make(chan struct{}),
	}
	go s.decodeLoop()
	return s
}

func (s *Session) decodeLoop() {
	for packet := range s.stream.Packets() {
		frame, err := s.decoder.Decode(packet)
		if err != nil {
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			s.logger.Debug("dropping undecodable packet", "error", err)
			continue
		}
		s.onFrame(frame)
	}

	endErr := s.stream.Err()
	if !isExpectedEnd(endErr) {
		s.logger.Error("audio stream ended with error", "error", endErr)
	}
	s.settle(endErr)
}

// onFrame appends a decoded frame. While draining, frames still come from packets
// queued before Finalize. Frames are discarded once the session settled or the
// byte ceiling has been reached.
func (s *Session) onFrame(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.state != Capturing && s.state != Draining) || s.truncated || len(frame) == 0 {
		return false
	}
	if s.maxBytes > 0 && s.size+len(frame) > s.maxBytes {
		s.truncated = true
		s.logger.Warn("capture limit reached, ignoring further audio", "limitBytes", s.maxBytes)
		return false
	}

	s.frames = append(s.frames, frame)
	s.count++
	s.size += len(frame)
	return true
}

// settle moves the session to its terminal state. Only the first call has an effect.
func (s *Session) settle(endErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Finalized || s.state == Failed {
		return
	}

	s.result = bytes.Join(s.frames, nil)
	s.frames = nil
	if isExpectedEnd(endErr) {
		s.state = Finalized
	} else {
		s.state = Failed
		s.err = endErr
	}
	close(s.settled)
}

// Finalize ends the subscription and waits for the decode stage to consume the
// packets already queued, at most for the drain grace period. It returns the buffered audio
// in arrival order. When the stream failed, the partial audio is returned together
// with the error.
func (s *Session) Finalize(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	startDrain := s.state == Capturing
	if startDrain {
		s.state = Draining
	}
	s.mu.Unlock()

	if startDrain {
		if err := s.stream.Close(); err != nil {
			s.logger.Debug("failed to close audio stream", "error", err)
		}
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-s.settled:
	case <-timer.C:
		s.logger.Warn("decode stage did not end in time, keeping buffered audio", "grace", s.grace)
		s.settle(nil)
	case <-ctx.Done():
		s.settle(ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.result, fmt.Errorf("capture for %s failed: %w", s.ParticipantID, s.err)
	}
	return s.result, nil
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters. Dropped counts undecodable
// packets plus the packets the stream discarded.
func (s *Session) Stats() Stats {
	lost := 0
	if l, ok := s.stream.(Lossy); ok {
		lost = l.Dropped()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ParticipantID: s.ParticipantID,
		State:         s.state,
		Frames:        s.count,
		Bytes:         s.size,
		Dropped:       s.dropped + lost,
		Truncated:     s.truncated,
		StartedAt:     s.StartedAt,
	}
}
