package handler

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/voice"
)

// VoiceGateway finds and joins voice channels.
type VoiceGateway interface {
	// UserVoiceChannel returns voice.ErrNotInVoice when the user is not connected.
	UserVoiceChannel(guildID, userID string) (string, error)
	// Participants returns the non-bot users of a voice channel.
	Participants(guildID, channelID string) ([]pipeline.Participant, error)
	Join(guildID, channelID string) (VoiceConnection, error)
}

// VoiceConnection is a joined voice channel.
type VoiceConnection interface {
	Receiver() capture.Receiver
	Disconnect() error
}

// DiscordVoice resolves voice channels from the session state.
type DiscordVoice struct {
	s *discordgo.Session
}

func NewDiscordVoice(s *discordgo.Session) *DiscordVoice {
	return &DiscordVoice{s: s}
}

func (v *DiscordVoice) UserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := v.s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("unable to find guild %s: %w", guildID, err)
	}
	return voice.UserVoiceChannel(guild, userID)
}

func (v *DiscordVoice) Participants(guildID, channelID string) ([]pipeline.Participant, error) {
	guild, err := v.s.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("unable to find guild %s: %w", guildID, err)
	}

	ids := voice.Participants(guild, channelID, voice.StateBotLookup(v.s, guildID))
	participants := make([]pipeline.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, pipeline.Participant{ID: id, Username: v.username(guildID, id)})
	}
	return participants, nil
}

func (v *DiscordVoice) username(guildID, userID string) string {
	if m, err := v.s.State.Member(guildID, userID); err == nil && m.User != nil {
		return m.User.Username
	}
	u, err := v.s.User(userID)
	if err != nil {
		slog.Warn("unable to look up username", "userID", userID, "error", err)
		return userID
	}
	return u.Username
}

func (v *DiscordVoice) Join(guildID, channelID string) (VoiceConnection, error) {
	conn, err := voice.Join(v.s, guildID, channelID)
	if err != nil {
		return nil, err
	}
	return &discordConnection{conn: conn}, nil
}

var _ VoiceGateway = (*DiscordVoice)(nil)

type discordConnection struct {
	conn *voice.Connection
}

func (c *discordConnection) Receiver() capture.Receiver {
	return c.conn.Receiver
}

func (c *discordConnection) Disconnect() error {
	return c.conn.Disconnect()
}
