package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/presenters"
)

const CommandPrefix = "!"

// CommandFunc runs a chat command. A returned *UserError is shown to the author.
type CommandFunc func(ctx context.Context, m *discordgo.MessageCreate) error

// ParseCommand extracts the command name from a message, without its prefix.
func ParseCommand(content string) (string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], CommandPrefix) {
		return "", false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], CommandPrefix))
	if name == "" {
		return "", false
	}
	return name, true
}

// CommandRouter dispatches prefixed chat messages to commands.
type CommandRouter struct {
	session DiscordSession

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

func NewCommandRouter(session DiscordSession) *CommandRouter {
	return &CommandRouter{
		session:  session,
		commands: make(map[string]CommandFunc),
	}
}

// Register binds fn to every name.
func (r *CommandRouter) Register(fn CommandFunc, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, exists := r.commands[name]; exists {
			panic("command already registered: " + name)
		}
		r.commands[name] = fn
	}
}

// Handle runs the command a message invokes, if any. Messages from bots are ignored.
func (r *CommandRouter) Handle(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, ok := ParseCommand(m.Content)
	if !ok {
		return
	}

	r.mu.RLock()
	fn, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	logger := slog.With("command", name, "guildID", m.GuildID, "userID", m.Author.ID)
	logger.Info("Running command")

	err := fn(ctx, m)
	if err == nil {
		return
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		if userErr.Err != nil {
			logger.Warn("Command rejected", "error", userErr.Err)
		}
		reply(r.session, m, userErr.Message)
		return
	}
	logger.Error("Command failed", "error", err)
	reply(r.session, m, presenters.InternalErrorMessage)
}

// MessageCreateHandler adapts the router to a discordgo event handler.
func (r *CommandRouter) MessageCreateHandler(ctx context.Context) MessageCreateHandler {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		r.Handle(ctx, m)
	}
}

func reply(s DiscordSession, m *discordgo.MessageCreate, content string) {
	send(s, m.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Reference: m.Reference(),
	})
}

func send(s DiscordSession, channelID string, msg *discordgo.MessageSend) {
	if _, err := s.ChannelMessageSendComplex(channelID, msg); err != nil {
		slog.Warn("Failed to send message", "channelID", channelID, "error", err)
	}
}
