package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/ctxwindow"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/msgqueue"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/orchestrator"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "engine"

// Engine is the Conversation Engine: it owns no storage of its own,
// composing the Contact/Conversation registries, the Message Queue, the
// Agent Orchestrator and the event bus into the four operations the core
// spec names.
type Engine struct {
	bus           *Bus
	contacts      *contactreg.Registry
	conversations *convoreg.Registry
	queue         *msgqueue.Queue
	router        *orchestrator.Router
	catalog       *persona.Catalog
	knowledge     *knowledge.Index
	llmClient     llm.Client
	companyName   string
	toneOfVoice   string
	maxCtxTokens  int
}

type Config struct {
	Contacts      *contactreg.Registry
	Conversations *convoreg.Registry
	Router        *orchestrator.Router
	Catalog       *persona.Catalog
	Knowledge     *knowledge.Index
	LLMClient     llm.Client
	CompanyName   string
	ToneOfVoice   string
	MaxCtxTokens  int
}

func New(cfg Config) *Engine {
	e := &Engine{
		bus:           NewBus(),
		contacts:      cfg.Contacts,
		conversations: cfg.Conversations,
		router:        cfg.Router,
		catalog:       cfg.Catalog,
		knowledge:     cfg.Knowledge,
		llmClient:     cfg.LLMClient,
		companyName:   cfg.CompanyName,
		toneOfVoice:   cfg.ToneOfVoice,
		maxCtxTokens:  cfg.MaxCtxTokens,
	}
	e.queue = msgqueue.New(e.processTurn)
	return e
}

// Bus exposes the event bus so the Trigger Manager and dashboard can
// subscribe.
func (e *Engine) Bus() *Bus { return e.bus }

type inboundJob struct {
	contact types.Contact
	raw     types.RawInboundEvent
	convID  string
}

// HandleIncoming is the single entry point transport adapters call: it
// resolves the contact, finds or opens the active conversation, and
// enqueues the turn on that conversation's key so turns for one
// conversation are strictly ordered (O1) while distinct conversations
// process concurrently.
func (e *Engine) HandleIncoming(ctx context.Context, raw types.RawInboundEvent) (types.Conversation, error) {
	contact, err := e.contacts.GetOrCreate(ctx, raw.Channel, raw.ChannelUserID, raw.SenderName)
	if err != nil {
		return types.Conversation{}, err
	}

	conv, found, err := e.conversations.GetActive(ctx, contact.ID)
	if err != nil {
		return types.Conversation{}, err
	}
	if !found {
		conv, err = e.conversations.Start(ctx, contact.ID, raw.Channel)
		if err != nil {
			return types.Conversation{}, err
		}
		if _, err := e.contacts.IncrementConversationCount(ctx, contact.ID); err != nil {
			obslog.WarnCF(component, "failed to increment conversation count", map[string]interface{}{"error": err.Error()})
		}
		e.bus.Publish(Event{Kind: EventConversationStarted, ConversationID: conv.ID, ContactID: contact.ID, Channel: string(raw.Channel)})
	}

	future := e.queue.Enqueue(ctx, conv.ID, inboundJob{contact: contact, raw: raw, convID: conv.ID})
	if err := future.Wait(ctx); err != nil {
		return types.Conversation{}, err
	}
	return e.conversations.Get(ctx, conv.ID)
}

// processTurn runs on the message queue's worker for one conversation key.
// It is never called concurrently for the same conversation.
func (e *Engine) processTurn(ctx context.Context, key string, item interface{}) error {
	job := item.(inboundJob)

	conv, err := e.conversations.Get(ctx, job.convID)
	if err != nil {
		return err
	}

	inboundMsg := types.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		ContactID:      job.contact.ID,
		Direction:      types.DirectionInbound,
		Type:           types.MessageText,
		Content:        job.raw.Content,
		Channel:        job.raw.Channel,
		Metadata:       job.raw.Metadata,
		Timestamp:      time.Now().UTC(),
	}
	conv, err = e.conversations.AppendMessage(ctx, conv.ID, inboundMsg)
	if err != nil {
		return err
	}
	e.bus.Publish(Event{Kind: EventMessageIncoming, ConversationID: conv.ID, ContactID: conv.ContactID, Channel: string(conv.Channel), Payload: inboundMsg})

	// A human is already driving the conversation; the AI stays silent
	// until ResumeAI is called.
	if conv.Status == types.StatusHumanActive || conv.Status == types.StatusPaused {
		return nil
	}

	windowed := ctxwindow.Build(conv, e.maxCtxTokens)
	windowedConv := conv
	windowedConv.Messages = windowed.Messages

	// Route only when no persona is yet assigned (spec §4.8 step 1); once a
	// current agent is set, only a mid-conversation transfer-check may
	// switch it, never a full re-route.
	route := orchestrator.RouteResult{Intent: conv.CurrentAgent, Language: conv.Context.Language, Sentiment: conv.Context.Sentiment}
	if conv.CurrentAgent == "" {
		route = e.router.Route(ctx, windowedConv, job.raw.Content)
	} else if proposed, ok := e.router.TransferCheck(conv.CurrentAgent, job.raw.Content); ok {
		route.Intent = proposed
	}

	conv, err = e.conversations.UpdateContext(ctx, conv.ID, func(c types.ConversationContext) types.ConversationContext {
		c.Intent = route.Intent
		if route.Language != "" {
			c.Language = route.Language
		}
		if route.Sentiment != "" {
			c.Sentiment = route.Sentiment
		}
		if route.Intent == string(persona.KeySales) {
			c.LeadScore = persona.LeadScore(conv)
		}
		return c
	})
	if err != nil {
		return err
	}

	outcome := orchestrator.Run(ctx, orchestrator.RunInput{
		Client:         e.llmClient,
		Catalog:        e.catalog,
		Knowledge:      e.knowledge,
		PersonaKey:     route.Intent,
		CompanyName:    e.companyName,
		ToneOfVoice:    e.toneOfVoice,
		Conversation:   windowedConv,
		Contact:        job.contact,
		CurrentInbound: job.raw.Content,
	})

	if _, err := e.conversations.UpdateAgent(ctx, conv.ID, outcome.PersonaUsed, ""); err != nil {
		obslog.WarnCF(component, "failed to record current agent", map[string]interface{}{"error": err.Error()})
	}

	if outcome.Action == types.ActionCloseConversation {
		_, err := e.Close(ctx, conv.ID, "persona flagged conversation complete")
		return err
	}

	if outcome.Reply != "" {
		outboundMsg := types.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			ContactID:      conv.ContactID,
			Direction:      types.DirectionOutbound,
			Type:           types.MessageText,
			Content:        outcome.Reply,
			Channel:        conv.Channel,
			Metadata:       types.Metadata{"agent": outcome.PersonaUsed},
			Timestamp:      time.Now().UTC(),
		}
		conv, err = e.conversations.AppendMessage(ctx, conv.ID, outboundMsg)
		if err != nil {
			return err
		}
		e.bus.Publish(Event{Kind: EventMessageOutgoing, ConversationID: conv.ID, ContactID: conv.ContactID, Channel: string(conv.Channel), Payload: outboundMsg})
	}

	if outcome.Handoff {
		return e.handoff(ctx, conv.ID, outcome.HandoffReason)
	}
	return nil
}

// HandleHumanReply appends a human agent's reply and puts the conversation
// into human-active (invariant I1: the human-agent-id must be set first).
func (e *Engine) HandleHumanReply(ctx context.Context, convID, humanAgentID, content string) (types.Conversation, error) {
	conv, err := e.conversations.Get(ctx, convID)
	if err != nil {
		return types.Conversation{}, err
	}

	if _, err := e.conversations.UpdateAgent(ctx, convID, "", humanAgentID); err != nil {
		return types.Conversation{}, err
	}
	if conv.Status != types.StatusHumanActive {
		if _, err := e.conversations.UpdateStatus(ctx, convID, types.StatusHumanActive); err != nil {
			return types.Conversation{}, err
		}
	}

	msg := types.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		ContactID:      conv.ContactID,
		Direction:      types.DirectionOutbound,
		Type:           types.MessageText,
		Content:        content,
		Channel:        conv.Channel,
		Metadata:       types.Metadata{"human-agent": humanAgentID},
		Timestamp:      time.Now().UTC(),
	}
	conv, err = e.conversations.AppendMessage(ctx, convID, msg)
	if err != nil {
		return types.Conversation{}, err
	}
	e.bus.Publish(Event{Kind: EventMessageOutgoing, ConversationID: convID, ContactID: conv.ContactID, Channel: string(conv.Channel), Payload: msg})
	return conv, nil
}

// HandleHandoff is the externally-triggered form (operator- or
// flow-initiated) of the same transition processTurn applies internally.
func (e *Engine) HandleHandoff(ctx context.Context, convID, reason string) (types.Conversation, error) {
	if err := e.handoff(ctx, convID, reason); err != nil {
		return types.Conversation{}, err
	}
	return e.conversations.Get(ctx, convID)
}

func (e *Engine) handoff(ctx context.Context, convID, reason string) error {
	conv, err := e.conversations.UpdateStatus(ctx, convID, types.StatusHandoff)
	if err != nil {
		return err
	}
	e.bus.Publish(Event{Kind: EventConversationHandoff, ConversationID: convID, ContactID: conv.ContactID, Channel: string(conv.Channel), Payload: reason})
	return nil
}

// ResumeAI reverses a handoff: the conversation returns to active and the
// AI resumes responding to new inbound messages.
func (e *Engine) ResumeAI(ctx context.Context, convID string) (types.Conversation, error) {
	return e.conversations.UpdateStatus(ctx, convID, types.StatusActive)
}

// Close ends the conversation and publishes conversation:closed.
func (e *Engine) Close(ctx context.Context, convID, reason string) (types.Conversation, error) {
	conv, err := e.conversations.Close(ctx, convID, reason)
	if err != nil {
		return types.Conversation{}, err
	}
	e.bus.Publish(Event{Kind: EventConversationClosed, ConversationID: convID, ContactID: conv.ContactID, Channel: string(conv.Channel), Payload: reason})
	return conv, nil
}
