package promptbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

func TestBuildRouterTurnAppendsCurrentInbound(t *testing.T) {
	turn := BuildRouterTurn("Classify the message.", nil, "I want to buy something")
	if !strings.Contains(turn.SystemPrompt, "JSON") {
		t.Fatal("expected router instruction to request JSON")
	}
	if len(turn.History) != 1 || turn.History[0].Content != "I want to buy something" {
		t.Fatalf("unexpected history: %+v", turn.History)
	}
}

func TestBuildRouterTurnDoesNotDuplicateCurrentMessage(t *testing.T) {
	history := []types.Message{
		{Direction: types.DirectionInbound, Content: "hello", Timestamp: time.Now()},
	}
	turn := BuildRouterTurn("Classify.", history, "hello")
	if len(turn.History) != 1 {
		t.Fatalf("expected no duplicate of the last history entry, got %+v", turn.History)
	}
}

func TestBuildPersonaTurnSubstitutesVariables(t *testing.T) {
	turn := BuildPersonaTurn(PersonaPromptInput{
		BasePrompt:     "Hello {contactName}, welcome to {companyName} on {channel}.",
		CompanyName:    "Acme",
		Channel:        types.ChannelWeb,
		ContactName:    "Dana",
		CurrentInbound: "hi",
	})
	if !strings.Contains(turn.SystemPrompt, "Hello Dana, welcome to Acme on web.") {
		t.Fatalf("expected substituted greeting, got %q", turn.SystemPrompt)
	}
}

func TestBuildPersonaTurnSkipsOversizedKnowledgeBlocks(t *testing.T) {
	huge := strings.Repeat("x", maxPromptChars+1000)
	turn := BuildPersonaTurn(PersonaPromptInput{
		BasePrompt: "base",
		KnowledgeDocs: map[string]knowledge.Document{
			"huge": {Flat: huge},
		},
		CurrentInbound: "hi",
	})
	if len(turn.SystemPrompt) > maxPromptChars+500 {
		t.Fatalf("expected oversized knowledge block to be skipped, prompt length %d", len(turn.SystemPrompt))
	}
}

func TestBuildPersonaTurnIncludesFAQSection(t *testing.T) {
	turn := BuildPersonaTurn(PersonaPromptInput{
		BasePrompt: "base",
		FAQMatches: []knowledge.FAQMatch{
			{Entry: knowledge.FAQEntry{Question: "Refunds?", Answer: "30 days"}},
		},
		CurrentInbound: "hi",
	})
	if !strings.Contains(turn.SystemPrompt, "Relevant FAQ Matches") {
		t.Fatal("expected FAQ section present")
	}
}
