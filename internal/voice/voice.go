package voice

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var ErrNotInVoice = errors.New("user is not in a voice channel")

// Connection is a joined voice channel together with its audio receiver.
type Connection struct {
	GuildID   string
	ChannelID string
	Receiver  *Receiver

	vc *discordgo.VoiceConnection
}

// Join connects to a voice channel self-muted, so the bot can hear but never speaks.
func Join(s *discordgo.Session, guildID, channelID string) (*Connection, error) {
	vc, err := s.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, fmt.Errorf("unable to join the voice channel: %w", err)
	}

	return &Connection{
		GuildID:   guildID,
		ChannelID: channelID,
		Receiver:  NewReceiver(vc, slog.Default().With("guildID", guildID)),
		vc:        vc,
	}, nil
}

// Disconnect ends every audio stream and leaves the voice channel.
func (c *Connection) Disconnect() error {
	c.Receiver.Close()
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("unable to disconnect from voice: %w", err)
	}
	return nil
}

// UserVoiceChannel returns the voice channel the user is connected to in guild.
func UserVoiceChannel(guild *discordgo.Guild, userID string) (string, error) {
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}

// BotLookup reports whether a user is a bot.
type BotLookup func(userID string) bool

// Participants returns the IDs of the non-bot users connected to channelID,
// in the order the guild reports them.
func Participants(guild *discordgo.Guild, channelID string, isBot BotLookup) []string {
	var ids []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil {
			if vs.Member.User.Bot {
				continue
			}
		} else if isBot != nil && isBot(vs.UserID) {
			continue
		}
		ids = append(ids, vs.UserID)
	}
	return ids
}

// StateBotLookup resolves users through the session state, then the REST API.
// Unknown users are treated as humans.
func StateBotLookup(s *discordgo.Session, guildID string) BotLookup {
	return func(userID string) bool {
		if m, err := s.State.Member(guildID, userID); err == nil && m.User != nil {
			return m.User.Bot
		}
		u, err := s.User(userID)
		if err != nil {
			slog.Warn("unable to look up user", "userID", userID, "error", err)
			return false
		}
		return u.Bot
	}
}
