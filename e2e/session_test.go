package e2e_test

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/generator"
	"github.com/glizzus/clutch/internal/handler"
)

type mockSession struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	sent      chan *discordgo.MessageSend
	count     int
}

func newMockSession() *mockSession {
	return &mockSession{sent: make(chan *discordgo.MessageSend, 16)}
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	m.count++
	id := fmt.Sprintf("msg-%d", m.count)
	m.mu.Unlock()
	m.sent <- data
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (m *mockSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

func (m *mockSession) UserChannelCreate(recipientID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

type determinsticIDGenerator struct{}

func (d *determinsticIDGenerator) Next() (string, error) {
	return "determinism", nil
}

var _ generator.Generator[string] = (*determinsticIDGenerator)(nil)
