package handler

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clutch/internal/generator"
)

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	customID := customIDFromInteraction(i)
	if customID == "" {
		return ""
	}
	return InstanceIDFromCustomID(customID)
}

func customIDFromInteraction(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		return i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return i.ModalSubmitData().CustomID
	default:
		return ""
	}
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

// ComponentIDFromCustomID returns the part of a custom ID before the instance ID.
func ComponentIDFromCustomID(customID string) string {
	id, _, _ := strings.Cut(customID, ":")
	return id
}

type FlowContext struct {
	InstanceID string
	State      map[string]any
}

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

type session struct {
	mu   sync.Mutex
	flow *Flow
	node *Node
	ctx  *FlowContext
}

// FlowManager drives multi-step component interactions. Each running flow is
// identified by an instance ID carried in the custom IDs of its components.
type FlowManager struct {
	flowsMu *sync.RWMutex
	flows   map[string]*Flow

	sessionsMu *sync.RWMutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
}

func NewFlowManager(idGenerator generator.Generator[string]) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDGenerator{Compact: true}
	}
	return &FlowManager{
		flowsMu:     &sync.RWMutex{},
		flows:       make(map[string]*Flow),
		sessionsMu:  &sync.RWMutex{},
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	if _, exists := fm.flows[flow.ID]; exists {
		panic("flow already registered")
	}
	fm.flows[flow.ID] = flow
}

// Start opens an instance of a registered flow positioned at its root, without
// running the root handler. It is used for flows the bot initiates itself.
func (fm *FlowManager) Start(flowID string, state map[string]any) (*FlowContext, error) {
	fm.flowsMu.RLock()
	f, ok := fm.flows[flowID]
	fm.flowsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("flow %q is not registered", flowID)
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate instance ID: %w", err)
	}
	if state == nil {
		state = make(map[string]any)
	}

	ctx := &FlowContext{InstanceID: instanceID, State: state}
	fm.sessionsMu.Lock()
	fm.sessions[instanceID] = &session{flow: f, node: f.Root, ctx: ctx}
	fm.sessionsMu.Unlock()
	return ctx, nil
}

// Cancel ends a flow instance. Later interactions for it are ignored.
func (fm *FlowManager) Cancel(instanceID string) {
	fm.sessionsMu.Lock()
	delete(fm.sessions, instanceID)
	fm.sessionsMu.Unlock()
}

// Active reports whether a flow instance is still running.
func (fm *FlowManager) Active(instanceID string) bool {
	fm.sessionsMu.RLock()
	defer fm.sessionsMu.RUnlock()
	_, ok := fm.sessions[instanceID]
	return ok
}

func (fm *FlowManager) Router(s DiscordSession, i *discordgo.InteractionCreate) error {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.RLock()
		session, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.RUnlock()
		if inFlow {
			return fm.advance(s, i, session)
		}
	}

	return fm.initializeFlow(s, i)
}

// InteractionCreateHandler adapts the router to a discordgo event handler.
func (fm *FlowManager) InteractionCreateHandler() InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if err := fm.Router(s, i); err != nil {
			slog.Error("Failed to handle interaction", "interactionID", i.ID, "error", err)
		}
	}
}

func (fm *FlowManager) advance(
	s DiscordSession,
	i *discordgo.InteractionCreate,
	sess *session,
) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	finishFlow := func() {
		fm.Cancel(sess.ctx.InstanceID)
	}

	// The flow may have been cancelled while waiting for the lock.
	if !fm.Active(sess.ctx.InstanceID) {
		return nil
	}

	if len(sess.node.Next) == 0 {
		finishFlow()
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		return nil
	}

	// A rejected answer leaves the flow on the same node.
	prev := sess.node
	sess.node = nextNode
	if err := runHandler(s, i, sess); err != nil {
		sess.node = prev
		return err
	}

	if len(nextNode.Next) == 0 {
		finishFlow()
	}
	return nil
}

func (fm *FlowManager) initializeFlow(s DiscordSession, i *discordgo.InteractionCreate) error {
	// Find the first matching flow
	var f *Flow
	fm.flowsMu.RLock()
	for _, flow := range fm.flows {
		if flow.Root.Matcher != nil && flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}

	ctx := &FlowContext{
		InstanceID: instanceID,
		State:      make(map[string]any),
	}
	newSess := &session{flow: f, node: f.Root, ctx: ctx}

	fm.sessionsMu.Lock()
	fm.sessions[instanceID] = newSess
	fm.sessionsMu.Unlock()

	return runHandler(s, i, newSess)
}

func runHandler(s DiscordSession, i *discordgo.InteractionCreate, sess *session) error {
	return sess.node.Handler(s, i, sess.ctx)
}
