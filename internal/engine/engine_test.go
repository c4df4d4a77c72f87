package engine

import (
	"context"
	"testing"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/orchestrator"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type scriptedClient struct {
	response llm.ChatResponse
	err      error
}

func (s *scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if s.err != nil {
		return llm.ChatResponse{}, s.err
	}
	return s.response, nil
}

func newTestEngine(t *testing.T, client llm.Client) *Engine {
	t.Helper()
	contacts := contactreg.New(storekit.NewMemoryStore[types.Contact](""))
	conversations := convoreg.New(storekit.NewMemoryStore[types.Conversation](""))
	catalog := persona.NewCatalog()
	router := orchestrator.NewRouter(client, nil, catalog)

	return New(Config{
		Contacts:      contacts,
		Conversations: conversations,
		Router:        router,
		Catalog:       catalog,
		LLMClient:     client,
		CompanyName:   "Acme",
		MaxCtxTokens:  50000,
	})
}

func TestHandleIncomingCreatesConversationAndReplies(t *testing.T) {
	client := &scriptedClient{response: llm.ChatResponse{Content: `{"intent":"support","confidence":0.9}`}}
	e := newTestEngine(t, client)

	var events []Event
	e.Bus().Subscribe(EventConversationStarted, func(ev Event) { events = append(events, ev) })
	e.Bus().Subscribe(EventMessageOutgoing, func(ev Event) { events = append(events, ev) })

	conv, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "hi there, I need help", ChannelUserID: "user-1", Channel: types.ChannelWhatsApp, SenderName: "Jordan",
	})
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected inbound + outbound messages, got %d", len(conv.Messages))
	}
	if events[0].Kind != EventConversationStarted {
		t.Fatalf("expected conversation:started event first, got %v", events[0].Kind)
	}
}

func TestHandleIncomingReusesActiveConversation(t *testing.T) {
	client := &scriptedClient{response: llm.ChatResponse{Content: `{"intent":"support","confidence":0.9}`}}
	e := newTestEngine(t, client)

	first, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "hello", ChannelUserID: "user-2", Channel: types.ChannelWeb,
	})
	if err != nil {
		t.Fatalf("first HandleIncoming: %v", err)
	}
	second, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "are you still there", ChannelUserID: "user-2", Channel: types.ChannelWeb,
	})
	if err != nil {
		t.Fatalf("second HandleIncoming: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the same active conversation to be reused")
	}
	if len(second.Messages) != 4 {
		t.Fatalf("expected 4 accumulated messages, got %d", len(second.Messages))
	}
}

func TestHandleIncomingExplicitHandoffSkipsLLMAndSetsStatus(t *testing.T) {
	client := &scriptedClient{response: llm.ChatResponse{Content: "unused"}}
	e := newTestEngine(t, client)

	conv, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "let me talk to a human agent please", ChannelUserID: "user-3", Channel: types.ChannelTelegram,
	})
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if conv.Status != types.StatusHandoff {
		t.Fatalf("expected handoff status, got %s", conv.Status)
	}
}

func TestHandleHumanReplyRequiresAgentIDBeforeHumanActive(t *testing.T) {
	client := &scriptedClient{response: llm.ChatResponse{Content: `{"intent":"support","confidence":0.9}`}}
	e := newTestEngine(t, client)

	conv, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "hello", ChannelUserID: "user-4", Channel: types.ChannelWeb,
	})
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}

	updated, err := e.HandleHumanReply(context.Background(), conv.ID, "agent-42", "I'm here to help")
	if err != nil {
		t.Fatalf("HandleHumanReply: %v", err)
	}
	if updated.Status != types.StatusHumanActive {
		t.Fatalf("expected human-active status, got %s", updated.Status)
	}
	if updated.HumanAgentID != "agent-42" {
		t.Fatalf("expected human agent id recorded, got %q", updated.HumanAgentID)
	}
}

func TestResumeAIAfterHandoff(t *testing.T) {
	client := &scriptedClient{response: llm.ChatResponse{Content: "unused"}}
	e := newTestEngine(t, client)

	conv, err := e.HandleIncoming(context.Background(), types.RawInboundEvent{
		Content: "speak to a manager", ChannelUserID: "user-5", Channel: types.ChannelWeb,
	})
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if conv.Status != types.StatusHandoff {
		t.Fatalf("expected handoff status, got %s", conv.Status)
	}

	resumed, err := e.ResumeAI(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("ResumeAI: %v", err)
	}
	if resumed.Status != types.StatusActive {
		t.Fatalf("expected active status after resume, got %s", resumed.Status)
	}
}
