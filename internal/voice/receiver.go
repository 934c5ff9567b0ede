package voice

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/capture"
)

const streamBuffer = 256

var (
	// ErrVoiceDisconnected ends streams when the voice connection stopped delivering
	// audio without the receiver being closed.
	ErrVoiceDisconnected = errors.New("voice connection closed unexpectedly")

	ErrReceiverClosed    = errors.New("receiver is closed")
	ErrAlreadySubscribed = errors.New("user is already subscribed")
)

// Receiver splits the packets of a voice connection into one stream per user.
type Receiver struct {
	packets <-chan *discordgo.Packet
	ready   func() bool
	logger  *slog.Logger

	mu      sync.Mutex
	users   map[uint32]string
	streams map[string]*stream
	closed  bool
	done    chan struct{}
}

// NewReceiver starts demultiplexing the audio of vc.
func NewReceiver(vc *discordgo.VoiceConnection, logger *slog.Logger) *Receiver {
	r := newReceiver(vc.OpusRecv, func() bool {
		vc.RLock()
		defer vc.RUnlock()
		return vc.Ready
	}, logger)

	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		r.MapSSRC(uint32(vs.SSRC), vs.UserID)
	})
	return r
}

func newReceiver(packets <-chan *discordgo.Packet, ready func() bool, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Receiver{
		packets: packets,
		ready:   ready,
		logger:  logger,
		users:   make(map[uint32]string),
		streams: make(map[string]*stream),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Receiver) run() {
	for {
		select {
		case <-r.done:
			return
		case p, ok := <-r.packets:
			if !ok {
				r.endAll(ErrVoiceDisconnected)
				return
			}
			r.dispatch(p)
		}
	}
}

func (r *Receiver) dispatch(p *discordgo.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[p.SSRC]
	if !ok {
		return
	}
	s, ok := r.streams[userID]
	if !ok {
		return
	}

	select {
	case s.ch <- p.Opus:
	default:
		s.dropped++
		if s.dropped == 1 {
			r.logger.Warn("audio stream buffer full, dropping packets", "userID", userID)
		}
	}
}

// MapSSRC records which user is sending on ssrc.
func (r *Receiver) MapSSRC(ssrc uint32, userID string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[ssrc] != userID {
		r.logger.Debug("mapped ssrc to user", "ssrc", ssrc, "userID", userID)
	}
	r.users[ssrc] = userID
}

func (r *Receiver) Ready() bool {
	return r.ready()
}

// Subscribe starts buffering the audio of userID.
func (r *Receiver) Subscribe(userID string) (capture.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrReceiverClosed
	}
	if _, ok := r.streams[userID]; ok {
		return nil, ErrAlreadySubscribed
	}

	s := &stream{
		userID:   userID,
		receiver: r,
		ch:       make(chan []byte, streamBuffer),
	}
	r.streams[userID] = s
	return s, nil
}

// Close ends every stream with capture.ErrPrematureClose and stops the receiver.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.endLocked(capture.ErrPrematureClose)
	close(r.done)
}

func (r *Receiver) endAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.endLocked(err)
}

func (r *Receiver) endLocked(err error) {
	for id, s := range r.streams {
		s.finish(err)
		delete(r.streams, id)
	}
}

func (r *Receiver) unsubscribe(s *stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streams[s.userID] == s {
		delete(r.streams, s.userID)
	}
	s.finish(nil)
}

// stream is guarded by its receiver's mutex.
type stream struct {
	userID   string
	receiver *Receiver
	ch       chan []byte
	err      error
	errMu    sync.Mutex
	ended    bool
	dropped  int
}

func (s *stream) Packets() <-chan []byte {
	return s.ch
}

func (s *stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Dropped returns how many packets were lost to a full buffer.
func (s *stream) Dropped() int {
	s.receiver.mu.Lock()
	defer s.receiver.mu.Unlock()
	return s.dropped
}

func (s *stream) Close() error {
	s.receiver.unsubscribe(s)
	return nil
}

func (s *stream) finish(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	close(s.ch)
}

var (
	_ capture.Receiver = (*Receiver)(nil)
	_ capture.Lossy    = (*stream)(nil)
)
