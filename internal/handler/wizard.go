package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/pipeline"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/presenters"
)

const (
	PreferencesFlowID = "preferences"

	DefaultWizardTimeout = 5 * time.Minute

	wizardStateKey = "wizard"
)

type wizardState struct {
	prefs preferences.Preferences
	done  chan preferences.Preferences
}

// Wizard collects preferences through a direct message with one select menu per
// step. Each answer replaces the message with the next step.
type Wizard struct {
	flows    *FlowManager
	session  DiscordSession
	store    preferences.Store
	steps    []preferences.Step
	defaults preferences.Preferences
	timeout  time.Duration
	// alwaysAsk runs the wizard even when preferences are stored.
	alwaysAsk bool
}

type WizardOptions struct {
	Timeout   time.Duration
	AlwaysAsk bool
}

func NewWizard(
	flows *FlowManager,
	session DiscordSession,
	store preferences.Store,
	steps []preferences.Step,
	defaults preferences.Preferences,
	opts WizardOptions,
) *Wizard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWizardTimeout
	}
	w := &Wizard{
		flows:     flows,
		session:   session,
		store:     store,
		steps:     steps,
		defaults:  defaults,
		timeout:   opts.Timeout,
		alwaysAsk: opts.AlwaysAsk,
	}
	flows.RegisterFlow(w.flow())
	return w
}

// flow chains one node per step below a root the wizard starts itself.
func (w *Wizard) flow() *Flow {
	root := &Node{ID: "start"}
	parent := root
	for idx, step := range w.steps {
		node := &Node{
			ID: step.ID,
			Matcher: func(i *discordgo.InteractionCreate) bool {
				if i.Type != discordgo.InteractionMessageComponent {
					return false
				}
				stepID, _ := wizardAnswer(i)
				return stepID == step.ID
			},
			Handler: w.answerHandler(idx),
		}
		parent.Next = []*Node{node}
		parent = node
	}
	return &Flow{ID: PreferencesFlowID, Root: root}
}

func (w *Wizard) answerHandler(index int) func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error {
	step := w.steps[index]
	return func(s DiscordSession, i *discordgo.InteractionCreate, fctx *FlowContext) error {
		state, ok := fctx.State[wizardStateKey].(*wizardState)
		if !ok {
			return fmt.Errorf("flow %s has no wizard state", fctx.InstanceID)
		}

		_, values := wizardAnswer(i)
		if len(values) != 1 || !step.Has(values[0]) {
			return fmt.Errorf("%w: %s=%v", preferences.ErrUnknownValue, step.ID, values)
		}
		if err := state.prefs.Set(step.ID, values[0]); err != nil {
			return err
		}

		if next := index + 1; next < len(w.steps) {
			return s.InteractionRespond(i.Interaction, presenters.WizardStepResponse(w.steps[next], next, len(w.steps), fctx.InstanceID))
		}

		err := s.InteractionRespond(i.Interaction, presenters.WizardSummaryResponse(state.prefs, w.steps))
		select {
		case state.done <- state.prefs:
		default:
		}
		return err
	}
}

// wizardAnswer returns the step a component answers and the chosen values.
// Buttons carry their value in the custom ID.
func wizardAnswer(i *discordgo.InteractionCreate) (string, []string) {
	data := i.MessageComponentData()
	component := ComponentIDFromCustomID(data.CustomID)
	if stepID, value, ok := strings.Cut(component, "."); ok {
		return stepID, []string{value}
	}
	return component, data.Values
}

// Resolve returns the stored preferences of a participant, asking for them when
// there are none. It falls back to defaults when the wizard cannot complete.
func (w *Wizard) Resolve(ctx context.Context, p pipeline.Participant) preferences.Preferences {
	logger := slog.With("userID", p.ID)

	if !w.alwaysAsk && w.store != nil {
		stored, err := w.store.Get(ctx, p.ID)
		switch {
		case err == nil:
			logger.Info("Using stored preferences")
			return stored.WithDefaults(w.defaults)
		case errors.Is(err, preferences.ErrNotFound):
		default:
			logger.Warn("Failed to load stored preferences", "error", err)
		}
	}

	prefs, err := w.Ask(ctx, p.ID)
	if err != nil {
		logger.Warn("Preference wizard did not complete, using defaults", "error", err)
		return w.defaults
	}
	return prefs
}

// Ask runs the wizard for a user and saves the answers. It returns ErrWizardTimeout
// when the user does not finish in time.
func (w *Wizard) Ask(ctx context.Context, userID string) (preferences.Preferences, error) {
	if len(w.steps) == 0 {
		return w.defaults, nil
	}

	state := &wizardState{
		prefs: w.defaults,
		done:  make(chan preferences.Preferences, 1),
	}
	fctx, err := w.flows.Start(PreferencesFlowID, map[string]any{wizardStateKey: state})
	if err != nil {
		return preferences.Preferences{}, err
	}
	defer w.flows.Cancel(fctx.InstanceID)

	channel, err := w.session.UserChannelCreate(userID)
	if err != nil {
		return preferences.Preferences{}, fmt.Errorf("failed to open DM channel: %w", err)
	}
	msg, err := w.session.ChannelMessageSendComplex(channel.ID, presenters.WizardStartMessage(w.steps[0], len(w.steps), fctx.InstanceID))
	if err != nil {
		return preferences.Preferences{}, fmt.Errorf("failed to send preference wizard: %w", err)
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case prefs := <-state.done:
		if w.store != nil {
			if err := w.store.Save(ctx, userID, prefs); err != nil {
				slog.Warn("Failed to save preferences", "userID", userID, "error", err)
			}
		}
		return prefs, nil
	case <-timer.C:
		w.flows.Cancel(fctx.InstanceID)
		w.expire(channel.ID, msg.ID)
		return preferences.Preferences{}, ErrWizardTimeout
	case <-ctx.Done():
		return preferences.Preferences{}, ctx.Err()
	}
}

// expire replaces the wizard with the defaults that will be used.
func (w *Wizard) expire(channelID, messageID string) {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.SetEmbed(presenters.WizardTimeoutEmbed(w.defaults, w.steps))
	edit.Components = &[]discordgo.MessageComponent{}
	if _, err := w.session.ChannelMessageEditComplex(edit); err != nil {
		slog.Warn("Failed to expire preference wizard", "channelID", channelID, "error", err)
	}
}

var _ pipeline.PreferenceResolver = (*Wizard)(nil)
