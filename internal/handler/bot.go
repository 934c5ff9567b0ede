package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/capture"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/presenters"
	"github.com/glizzus/clutch/internal/voice"
	"github.com/shirou/gopsutil/v3/process"
)

// Processor runs the post-recording pipeline.
type Processor interface {
	ProcessAll(ctx context.Context, jobs []pipeline.Job) []pipeline.Result
	AnalyzeLatest(ctx context.Context, p pipeline.Participant, prefs *preferences.Preferences) (string, analysis.Result, error)
}

// MemoryFunc reports the resident memory of the process in bytes.
type MemoryFunc func() (uint64, error)

// ProcessRSS reports the resident memory of the running process.
func ProcessRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

type BotDeps struct {
	Session    DiscordSession
	Voice      VoiceGateway
	Registry   *Registry
	Processor  Processor
	NewDecoder capture.DecoderFactory
	Capture    capture.Options
	// Preferences is read by !test-analysis. It may be nil.
	Preferences preferences.Store
	Memory      MemoryFunc
}

// Bot implements the chat commands.
type Bot struct {
	deps BotDeps
	now  func() time.Time
}

func NewBot(deps BotDeps) *Bot {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Memory == nil {
		deps.Memory = ProcessRSS
	}
	return &Bot{deps: deps, now: time.Now}
}

// Register binds every command of the bot to the router.
func (b *Bot) Register(r *CommandRouter) {
	r.Register(b.Record, "record")
	r.Register(b.Stop, "stop")
	r.Register(b.Status, "status")
	r.Register(b.Help, "help", "ayuda")
	r.Register(b.TestAnalysis, "test-analysis")
}

func guildOnly(m *discordgo.MessageCreate) error {
	if m.GuildID == "" {
		return &UserError{Message: presenters.GuildOnlyMessage}
	}
	return nil
}

// Record joins the author's voice channel and opens a capture session for every
// human in it.
func (b *Bot) Record(ctx context.Context, m *discordgo.MessageCreate) error {
	if err := guildOnly(m); err != nil {
		return err
	}

	channelID, err := b.deps.Voice.UserVoiceChannel(m.GuildID, m.Author.ID)
	if err != nil {
		if errors.Is(err, voice.ErrNotInVoice) {
			return &UserError{Message: presenters.NotInVoiceMessage}
		}
		return err
	}

	if err := b.deps.Registry.Reserve(m.GuildID); err != nil {
		return &UserError{Message: presenters.AlreadyRecordingMessage, Err: err}
	}
	activated := false
	defer func() {
		if !activated {
			b.deps.Registry.Release(m.GuildID)
		}
	}()

	participants, err := b.deps.Voice.Participants(m.GuildID, channelID)
	if err != nil {
		return err
	}
	if len(participants) == 0 {
		return &UserError{Message: presenters.NoParticipantsMessage}
	}

	conn, err := b.deps.Voice.Join(m.GuildID, channelID)
	if err != nil {
		return &UserError{Message: presenters.JoinFailedMessage, Err: err}
	}

	opts := b.deps.Capture
	opts.Logger = slog.Default()
	rc := capture.NewRecordingContext(m.GuildID, conn.Receiver(), b.deps.NewDecoder, opts)
	rec := &Recording{
		GuildID:      m.GuildID,
		ChannelID:    channelID,
		Context:      rc,
		Conn:         conn,
		participants: make(map[string]pipeline.Participant, len(participants)),
	}

	for _, p := range participants {
		if _, err := rc.Open(ctx, p.ID); err != nil {
			slog.Warn("Failed to start capturing participant", "guildID", m.GuildID, "userID", p.ID, "error", err)
			continue
		}
		rec.participants[p.ID] = p
	}

	if rc.Len() == 0 {
		rc.FinalizeAll(ctx)
		if err := conn.Disconnect(); err != nil {
			slog.Warn("Failed to leave voice channel", "guildID", m.GuildID, "error", err)
		}
		return &UserError{Message: presenters.RecordFailedMessage}
	}

	b.deps.Registry.Activate(rec)
	activated = true
	slog.Info("Recording started", "guildID", m.GuildID, "channelID", channelID, "participants", rc.Len())
	reply(b.deps.Session, m, presenters.RecordingStartedMessage(rc.Len()))
	return nil
}

// Stop finalizes the recording of the guild and processes every participant.
func (b *Bot) Stop(ctx context.Context, m *discordgo.MessageCreate) error {
	if err := guildOnly(m); err != nil {
		return err
	}

	rec, err := b.deps.Registry.Take(m.GuildID)
	if err != nil {
		return &UserError{Message: presenters.NotRecordingMessage}
	}
	reply(b.deps.Session, m, presenters.StoppingMessage)

	outcomes := rec.Context.FinalizeAll(ctx)
	if err := rec.Conn.Disconnect(); err != nil {
		slog.Warn("Failed to leave voice channel", "guildID", m.GuildID, "error", err)
	}

	jobs := make([]pipeline.Job, 0, len(outcomes))
	for _, o := range outcomes {
		jobs = append(jobs, pipeline.Job{Participant: rec.Participant(o.ParticipantID), Outcome: o})
	}
	if len(jobs) == 0 {
		reply(b.deps.Session, m, presenters.NoActiveRecordingMessage)
		return nil
	}

	results := b.deps.Processor.ProcessAll(ctx, jobs)
	var failed, skipped int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		}
	}
	slog.Info("Recording processed", "guildID", m.GuildID, "participants", len(results), "failed", failed, "skipped", skipped)

	send(b.deps.Session, m.ChannelID, &discordgo.MessageSend{Content: presenters.CompletedMessage})
	return nil
}

// Status reports the sessions of the guild's recording and the bot's memory use.
func (b *Bot) Status(_ context.Context, m *discordgo.MessageCreate) error {
	var participants []presenters.ParticipantStatus
	if rec, ok := b.deps.Registry.Get(m.GuildID); ok {
		for _, stats := range rec.Context.Stats() {
			participants = append(participants, presenters.ParticipantStatus{
				Username: rec.Participant(stats.ParticipantID).Username,
				Stats:    stats,
			})
		}
	}

	rss, err := b.deps.Memory()
	if err != nil {
		slog.Warn("Failed to read process memory", "error", err)
		rss = 0
	}
	reply(b.deps.Session, m, presenters.StatusMessage(participants, b.now(), rss))
	return nil
}

func (b *Bot) Help(_ context.Context, m *discordgo.MessageCreate) error {
	send(b.deps.Session, m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{presenters.HelpEmbed()},
		Reference: m.Reference(),
	})
	return nil
}

// TestAnalysis runs the analysis again over the author's latest archived recording.
func (b *Bot) TestAnalysis(ctx context.Context, m *discordgo.MessageCreate) error {
	participant := pipeline.Participant{ID: m.Author.ID, Username: m.Author.Username}

	var prefs *preferences.Preferences
	if b.deps.Preferences != nil {
		stored, err := b.deps.Preferences.Get(ctx, participant.ID)
		if err == nil {
			prefs = &stored
		} else if !errors.Is(err, preferences.ErrNotFound) {
			slog.Warn("Failed to load stored preferences", "userID", participant.ID, "error", err)
		}
	}

	key, result, err := b.deps.Processor.AnalyzeLatest(ctx, participant, prefs)
	switch {
	case errors.Is(err, pipeline.ErrArchiveDisabled):
		return &UserError{Message: presenters.ArchiveDisabledMessage}
	case errors.Is(err, pipeline.ErrNoRecording):
		return &UserError{Message: presenters.NoRecordingFoundMessage}
	case err != nil:
		return &UserError{Message: presenters.TestAnalysisFailedMessage(err), Err: fmt.Errorf("analysis of %s failed: %w", key, err)}
	}

	slog.Info("Test analysis completed", "userID", participant.ID, "key", key)
	reply(b.deps.Session, m, presenters.TestAnalysisMessage(participant.Username, result))
	return nil
}

// Shutdown disconnects every active recording without processing it.
func (b *Bot) Shutdown(ctx context.Context) {
	for _, rec := range b.deps.Registry.All() {
		if _, err := b.deps.Registry.Take(rec.GuildID); err != nil {
			continue
		}
		rec.Context.FinalizeAll(ctx)
		if err := rec.Conn.Disconnect(); err != nil {
			slog.Warn("Failed to leave voice channel", "guildID", rec.GuildID, "error", err)
		}
	}
}
