package handler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/generator"
	"github.com/glizzus/clutch/internal/handler"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/voice"
)

type sentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

type mockSession struct {
	mu        sync.Mutex
	sent      []sentMessage
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.MessageEdit
	nextID    int

	sentCh chan sentMessage
}

func newMockSession() *mockSession {
	return &mockSession{sentCh: make(chan sentMessage, 64)}
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	sent := sentMessage{ChannelID: channelID, Data: data}
	m.sent = append(m.sent, sent)
	m.mu.Unlock()

	select {
	case m.sentCh <- sent:
	default:
	}
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (m *mockSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit)
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

func (m *mockSession) UserChannelCreate(recipientID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

// contents returns the content of every message sent to a channel.
func (m *mockSession) contents(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Data.Content)
		}
	}
	return out
}

func (m *mockSession) lastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

func (m *mockSession) responseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses)
}

type fixedIDGenerator struct {
	id string
}

func (g *fixedIDGenerator) Next() (string, error) {
	return g.id, nil
}

var _ generator.Generator[string] = (*fixedIDGenerator)(nil)

type fakeStream struct {
	packets chan []byte
	once    sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{packets: make(chan []byte)}
}

func (s *fakeStream) Packets() <-chan []byte { return s.packets }
func (s *fakeStream) Err() error             { return nil }
func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.packets) })
	return nil
}

type fakeReceiver struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	failFor map[string]bool
}

func (r *fakeReceiver) Ready() bool { return true }

func (r *fakeReceiver) Subscribe(id string) (capture.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[id] {
		return nil, errors.New("subscription refused")
	}
	s := newFakeStream()
	r.streams[id] = s
	return s, nil
}

func (r *fakeReceiver) stream(id string) *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[id]
}

type fakeConn struct {
	receiver     *fakeReceiver
	disconnected atomic.Bool
}

func (c *fakeConn) Receiver() capture.Receiver { return c.receiver }
func (c *fakeConn) Disconnect() error {
	c.disconnected.Store(true)
	return nil
}

type fakeVoice struct {
	channels     map[string]string
	participants []pipeline.Participant
	joinErr      error
	failFor      map[string]bool

	mu    sync.Mutex
	conns []*fakeConn
}

func (v *fakeVoice) UserVoiceChannel(_, userID string) (string, error) {
	if ch, ok := v.channels[userID]; ok {
		return ch, nil
	}
	return "", voice.ErrNotInVoice
}

func (v *fakeVoice) Participants(_, _ string) ([]pipeline.Participant, error) {
	return v.participants, nil
}

func (v *fakeVoice) Join(_, _ string) (handler.VoiceConnection, error) {
	if v.joinErr != nil {
		return nil, v.joinErr
	}
	conn := &fakeConn{receiver: &fakeReceiver{streams: map[string]*fakeStream{}, failFor: v.failFor}}
	v.mu.Lock()
	v.conns = append(v.conns, conn)
	v.mu.Unlock()
	return conn, nil
}

func (v *fakeVoice) lastConn() *fakeConn {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.conns) == 0 {
		return nil
	}
	return v.conns[len(v.conns)-1]
}

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(packet []byte) ([]byte, error) {
	return append([]byte(nil), packet...), nil
}

func newPassthroughDecoder() (capture.Decoder, error) {
	return passthroughDecoder{}, nil
}

type fakeProcessor struct {
	mu   sync.Mutex
	jobs []pipeline.Job

	latestKey   string
	latestErr   error
	latestPrefs *preferences.Preferences
	result      analysis.Result
}

func (p *fakeProcessor) ProcessAll(_ context.Context, jobs []pipeline.Job) []pipeline.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, jobs...)
	results := make([]pipeline.Result, len(jobs))
	for i, j := range jobs {
		results[i] = pipeline.Result{Participant: j.Participant, Skipped: j.Outcome.Empty()}
	}
	return results
}

func (p *fakeProcessor) AnalyzeLatest(_ context.Context, _ pipeline.Participant, prefs *preferences.Preferences) (string, analysis.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latestPrefs = prefs
	if p.latestErr != nil {
		return p.latestKey, analysis.Result{}, p.latestErr
	}
	return p.latestKey, p.result, nil
}

type memStore struct {
	mu    sync.Mutex
	prefs map[string]preferences.Preferences
}

func newMemStore() *memStore {
	return &memStore{prefs: map[string]preferences.Preferences{}}
}

func (s *memStore) Get(_ context.Context, userID string) (preferences.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return preferences.Preferences{}, preferences.ErrNotFound
	}
	return p, nil
}

func (s *memStore) Save(_ context.Context, userID string, prefs preferences.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
	return nil
}

func message(guildID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "m1",
			ChannelID: "text-1",
			GuildID:   guildID,
			Content:   content,
			Author:    &discordgo.User{ID: "author", Username: "ana"},
		},
	}
}

func componentInteraction(customID, value string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "interaction-" + customID,
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.SelectMenuComponent,
				Values:        []string{value},
			},
		},
	}
}

func buttonInteraction(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "interaction-" + customID,
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}
