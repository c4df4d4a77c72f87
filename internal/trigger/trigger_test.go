package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/engine"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/flow"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type fakeFlowProvider struct {
	flows []types.Flow
}

func (f *fakeFlowProvider) ActiveFlows(ctx context.Context) ([]types.Flow, error) {
	return f.flows, nil
}

type noopSender struct{ sent []string }

func (n *noopSender) SendMessage(ctx context.Context, channel types.Channel, channelUserID, content string) error {
	n.sent = append(n.sent, content)
	return nil
}
func (n *noopSender) SendImage(ctx context.Context, channel types.Channel, channelUserID, url, caption string) error {
	return nil
}

func setup(t *testing.T) (*contactreg.Registry, *convoreg.Registry, *noopSender) {
	t.Helper()
	contacts := contactreg.New(storekit.NewMemoryStore[types.Contact](""))
	conversations := convoreg.New(storekit.NewMemoryStore[types.Conversation](""))
	return contacts, conversations, &noopSender{}
}

func TestOnEngineEventDispatchesMatchingFlow(t *testing.T) {
	contacts, conversations, sender := setup(t)
	contact, _ := contacts.GetOrCreate(context.Background(), types.ChannelWeb, "cu-1", "Alex")
	conv, _ := conversations.Start(context.Background(), contact.ID, types.ChannelWeb)

	f := types.Flow{
		ID:          "welcome-flow",
		Active:      true,
		TriggerKind: types.TriggerConversationNew,
		Steps: []types.Step{
			{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "hi {contact.name}"}}},
		},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	flows := flow.NewStore(storekit.NewMemoryStore[types.Flow](""))
	if err := flows.Create(context.Background(), f); err != nil {
		t.Fatalf("create flow: %v", err)
	}
	runner := flow.NewRunner(flow.Config{Flows: flows, Executions: storekit.NewMemoryStore[types.FlowExecution](""), Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)

	mgr.onEngineEvent(context.Background(), engine.EventConversationStarted, engine.Event{
		Kind: engine.EventConversationStarted, ConversationID: conv.ID, ContactID: contact.ID, Channel: string(types.ChannelWeb),
	})

	if len(sender.sent) != 1 || sender.sent[0] != "hi Alex" {
		t.Fatalf("expected matching flow to send a templated message, got %v", sender.sent)
	}
}

func TestOnEngineEventSkipsNonMatchingTriggerKind(t *testing.T) {
	contacts, conversations, sender := setup(t)
	contact, _ := contacts.GetOrCreate(context.Background(), types.ChannelWeb, "cu-2", "Robin")
	conv, _ := conversations.Start(context.Background(), contact.ID, types.ChannelWeb)

	f := types.Flow{
		ID: "closed-flow", Active: true, TriggerKind: types.TriggerConversationShut,
		Steps: []types.Step{{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "bye"}}}},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	runner := flow.NewRunner(flow.Config{Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)

	mgr.onEngineEvent(context.Background(), engine.EventConversationStarted, engine.Event{
		Kind: engine.EventConversationStarted, ConversationID: conv.ID, ContactID: contact.ID, Channel: string(types.ChannelWeb),
	})

	if len(sender.sent) != 0 {
		t.Fatalf("expected no dispatch for mismatched trigger kind, got %v", sender.sent)
	}
}

func TestOnEngineEventSkipsDifferentChannel(t *testing.T) {
	contacts, conversations, sender := setup(t)
	contact, _ := contacts.GetOrCreate(context.Background(), types.ChannelTelegram, "cu-3", "Sam")
	conv, _ := conversations.Start(context.Background(), contact.ID, types.ChannelTelegram)

	f := types.Flow{
		ID: "whatsapp-only-flow", Active: true, TriggerKind: types.TriggerConversationNew,
		TriggerConfig: map[string]interface{}{"channel": "whatsapp"},
		Steps:         []types.Step{{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "hi"}}}},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	runner := flow.NewRunner(flow.Config{Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)

	mgr.onEngineEvent(context.Background(), engine.EventConversationStarted, engine.Event{
		Kind: engine.EventConversationStarted, ConversationID: conv.ID, ContactID: contact.ID, Channel: string(types.ChannelTelegram),
	})

	if len(sender.sent) != 0 {
		t.Fatal("expected channel-restricted flow to not fire for a different channel")
	}
}

func TestPollScheduledDispatchesDueCronFlow(t *testing.T) {
	contacts, conversations, sender := setup(t)
	contact, _ := contacts.GetOrCreate(context.Background(), types.ChannelWeb, "cu-4", "Taylor")
	conv, _ := conversations.Start(context.Background(), contact.ID, types.ChannelWeb)

	f := types.Flow{
		ID: "every-minute", Active: true, TriggerKind: types.TriggerScheduled,
		TriggerConfig: map[string]interface{}{"cron": "* * * * *"},
		Steps:         []types.Step{{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "tick"}}}},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	flows := flow.NewStore(storekit.NewMemoryStore[types.Flow](""))
	if err := flows.Create(context.Background(), f); err != nil {
		t.Fatalf("create flow: %v", err)
	}
	runner := flow.NewRunner(flow.Config{Flows: flows, Executions: storekit.NewMemoryStore[types.FlowExecution](""), Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)
	sched := NewScheduler(mgr)

	sched.PollDue(context.Background(), time.Now())

	if len(sender.sent) != 1 {
		t.Fatalf("expected the every-minute cron flow to be due and dispatched to the contact's active conversation, got %v", sender.sent)
	}
	_ = conv
}

func TestPollDueSkipsContactsWithNoActiveConversation(t *testing.T) {
	contacts, conversations, sender := setup(t)
	_, _ = contacts.GetOrCreate(context.Background(), types.ChannelWeb, "cu-5", "Morgan")

	f := types.Flow{
		ID: "every-minute-2", Active: true, TriggerKind: types.TriggerScheduled,
		TriggerConfig: map[string]interface{}{"cron": "* * * * *"},
		Steps:         []types.Step{{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "tick"}}}},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	runner := flow.NewRunner(flow.Config{Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)
	sched := NewScheduler(mgr)

	sched.PollDue(context.Background(), time.Now())

	if len(sender.sent) != 0 {
		t.Fatalf("expected no dispatch for a contact with no active conversation, got %v", sender.sent)
	}
}

func TestPollDueFiltersByChannel(t *testing.T) {
	contacts, conversations, sender := setup(t)
	contact, _ := contacts.GetOrCreate(context.Background(), types.ChannelTelegram, "cu-6", "Jamie")
	_, _ = conversations.Start(context.Background(), contact.ID, types.ChannelTelegram)

	f := types.Flow{
		ID: "web-only-scheduled", Active: true, TriggerKind: types.TriggerScheduled,
		TriggerConfig: map[string]interface{}{"cron": "* * * * *", "channel": "web"},
		Steps:         []types.Step{{ID: "s1", Action: types.Action{Type: types.ActionSendMessage, Config: map[string]interface{}{"message": "tick"}}}},
	}
	provider := &fakeFlowProvider{flows: []types.Flow{f}}
	runner := flow.NewRunner(flow.Config{Contacts: contacts, Conversations: conversations, Sender: sender})
	mgr := NewManager(provider, runner, contacts, conversations)
	sched := NewScheduler(mgr)

	sched.PollDue(context.Background(), time.Now())

	if len(sender.sent) != 0 {
		t.Fatalf("expected channel-restricted scheduled flow to skip a telegram contact, got %v", sender.sent)
	}
}
