package handler

import (
	"sync"

	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/pipeline"
)

// Recording is an active recording of one guild.
type Recording struct {
	GuildID   string
	ChannelID string
	Context   *capture.RecordingContext
	Conn      VoiceConnection

	participants map[string]pipeline.Participant
}

// Participant returns the recorded participant with the given ID. Unknown IDs
// are returned with the ID as their name.
func (r *Recording) Participant(id string) pipeline.Participant {
	if p, ok := r.participants[id]; ok {
		return p
	}
	return pipeline.Participant{ID: id, Username: id}
}

// Registry tracks the recording of each guild. A guild is reserved while its
// recording is being set up, so concurrent starts are rejected.
type Registry struct {
	mu       sync.Mutex
	active   map[string]*Recording
	reserved map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		active:   make(map[string]*Recording),
		reserved: make(map[string]struct{}),
	}
}

// Reserve claims a guild for a new recording.
func (r *Registry) Reserve(guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, active := r.active[guildID]
	_, reserved := r.reserved[guildID]
	if active || reserved {
		return ErrAlreadyRecording
	}
	r.reserved[guildID] = struct{}{}
	return nil
}

// Release drops a reservation that did not become a recording.
func (r *Registry) Release(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, guildID)
}

// Activate turns a reservation into an active recording.
func (r *Registry) Activate(rec *Recording) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, rec.GuildID)
	r.active[rec.GuildID] = rec
}

// Get returns the active recording of a guild.
func (r *Registry) Get(guildID string) (*Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active[guildID]
	return rec, ok
}

// Take removes and returns the active recording of a guild.
func (r *Registry) Take(guildID string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active[guildID]
	if !ok {
		return nil, ErrNotRecording
	}
	delete(r.active, guildID)
	return rec, nil
}

// All returns every active recording.
func (r *Registry) All() []*Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := make([]*Recording, 0, len(r.active))
	for _, rec := range r.active {
		recs = append(recs, rec)
	}
	return recs
}
