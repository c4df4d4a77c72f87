package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type stubClient struct {
	response llm.ChatResponse
	err      error
	calls    int
}

func (s *stubClient) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return llm.ChatResponse{}, s.err
	}
	return s.response, nil
}

func TestRouteAcceptsHighConfidenceLLMResult(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: `{"intent":"sales","confidence":0.9,"language":"en"}`}}
	r := NewRouter(client, nil, persona.NewCatalog())
	result := r.Route(context.Background(), types.Conversation{}, "I want to buy your product")
	if result.Source != "llm" || result.Intent != "sales" {
		t.Fatalf("expected llm-sourced sales intent, got %+v", result)
	}
}

func TestRouteFallsBackOnLowConfidence(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: `{"intent":"sales","confidence":0.1}`}}
	r := NewRouter(client, nil, persona.NewCatalog())
	result := r.Route(context.Background(), types.Conversation{}, "I want to buy this now, the price is great")
	if result.Source != "keyword-fallback" {
		t.Fatalf("expected keyword fallback on low confidence, got %+v", result)
	}
	if result.Intent != "sales" {
		t.Fatalf("expected keyword fallback to find sales intent, got %q", result.Intent)
	}
}

func TestRouteFallsBackToDefaultIntentWithNoKeywordHits(t *testing.T) {
	client := &stubClient{err: context.DeadlineExceeded}
	r := NewRouter(client, nil, persona.NewCatalog())
	result := r.Route(context.Background(), types.Conversation{}, "xyz completely unrelated gibberish")
	if result.Intent != persona.DefaultIntent {
		t.Fatalf("expected default intent fallback, got %q", result.Intent)
	}
	if result.Confidence != 0.3 {
		t.Fatalf("expected 0.3 confidence with no hits, got %f", result.Confidence)
	}
}

func TestRouteUsesKnowledgeRoutingRulesWhenNoCustomCatalog(t *testing.T) {
	idx := knowledge.NewIndex(t.TempDir())
	client := &stubClient{err: context.DeadlineExceeded}
	r := NewRouter(client, idx, persona.NewCatalog())
	result := r.Route(context.Background(), types.Conversation{}, "need help, something is broken")
	if result.Intent != persona.DefaultIntent {
		t.Fatalf("expected default intent with empty knowledge index, got %q", result.Intent)
	}
}

func TestTransferCheckProposesDifferentPersonaOnKeywordMatch(t *testing.T) {
	r := NewRouter(&stubClient{}, nil, persona.NewCatalog())
	proposed, ok := r.TransferCheck("support", "actually I'd like to know the price and discount for this")
	if !ok || proposed != "sales" {
		t.Fatalf("expected transfer to sales, got %q ok=%v", proposed, ok)
	}
}

func TestTransferCheckNeverProposesCurrentAgent(t *testing.T) {
	r := NewRouter(&stubClient{}, nil, persona.NewCatalog())
	_, ok := r.TransferCheck("sales", "the price and discount look great")
	if ok {
		t.Fatal("expected no transfer proposal when only the current persona's own keywords match")
	}
}

func TestTransferCheckNoMatchReturnsFalse(t *testing.T) {
	r := NewRouter(&stubClient{}, nil, persona.NewCatalog())
	_, ok := r.TransferCheck("support", "just saying hello")
	if ok {
		t.Fatal("expected no transfer proposal with no keyword hits")
	}
}

func TestRunReturnsHandoffOnExplicitRequest(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: "should not be called"}}
	out := Run(context.Background(), RunInput{
		Client:         client,
		Catalog:        persona.NewCatalog(),
		PersonaKey:     "support",
		Conversation:   types.Conversation{},
		CurrentInbound: "I want to speak to a human agent",
	})
	if !out.Handoff {
		t.Fatal("expected explicit handoff request to force handoff")
	}
	if client.calls != 0 {
		t.Fatal("expected LLM to not be called when explicit handoff pre-empts the turn")
	}
}

func TestRunReturnsFallbackReplyAndHandoffOnLLMFailure(t *testing.T) {
	client := &stubClient{err: context.DeadlineExceeded}
	out := Run(context.Background(), RunInput{
		Client:         client,
		Catalog:        persona.NewCatalog(),
		PersonaKey:     "support",
		Conversation:   types.Conversation{},
		CurrentInbound: "hello there",
	})
	if !out.Handoff {
		t.Fatal("expected handoff when LLM fails after retries")
	}
	if out.Reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", out.Reply)
	}
}

func TestRunDoesNotHandoffOnOrdinaryReply(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: "Sure, I can help with that."}}
	out := Run(context.Background(), RunInput{
		Client:         client,
		Catalog:        persona.NewCatalog(),
		PersonaKey:     "support",
		Conversation:   types.Conversation{},
		CurrentInbound: "how do I reset my password",
	})
	if out.Handoff {
		t.Fatalf("expected no handoff for an ordinary reply, got reason %q", out.HandoffReason)
	}
	if out.Reply != "Sure, I can help with that." {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
}

func TestRunFlagsCloseConversationWithNoReplyOnClosingPhrase(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: "should not be called"}}
	out := Run(context.Background(), RunInput{
		Client:         client,
		Catalog:        persona.NewCatalog(),
		PersonaKey:     "support",
		Conversation:   types.Conversation{},
		CurrentInbound: "Thanks, that's all for today, goodbye!",
	})
	if out.Action != types.ActionCloseConversation {
		t.Fatalf("expected close-conversation action, got %q", out.Action)
	}
	if out.Reply != "" {
		t.Fatalf("expected no reply alongside close-conversation, got %q", out.Reply)
	}
	if client.calls != 0 {
		t.Fatal("expected LLM to not be called when a closing phrase pre-empts the turn")
	}
}

func TestRunEscalatesSupportOnRefundKeyword(t *testing.T) {
	client := &stubClient{response: llm.ChatResponse{Content: "I understand, let me look into that."}}
	conv := types.Conversation{Messages: []types.Message{
		{Direction: types.DirectionInbound, Content: "I want a refund for my order", Timestamp: time.Now()},
	}}
	out := Run(context.Background(), RunInput{
		Client:         client,
		Catalog:        persona.NewCatalog(),
		PersonaKey:     "support",
		Conversation:   conv,
		CurrentInbound: "I want a refund for my order",
	})
	if !out.Handoff {
		t.Fatal("expected refund keyword to trigger support handoff")
	}
}
