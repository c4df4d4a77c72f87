package ctxwindow

import (
	"strings"
	"testing"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

func buildConversation(n int, contentLen int) types.Conversation {
	conv := types.Conversation{ID: "c1", ContactID: "ct1", Channel: types.ChannelWeb}
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		dir := types.DirectionInbound
		if i%2 == 1 {
			dir = types.DirectionOutbound
		}
		conv.Messages = append(conv.Messages, types.Message{
			ID:        "m" + string(rune('a'+i%26)),
			Direction: dir,
			Content:   strings.Repeat("x", contentLen),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return conv
}

func TestBuildReturnsVerbatimWhenUnderBudget(t *testing.T) {
	conv := buildConversation(10, 10)
	result := Build(conv, 50000)
	if result.Truncated {
		t.Fatal("expected no truncation under budget")
	}
	if len(result.Messages) != 10 {
		t.Fatalf("expected all 10 messages, got %d", len(result.Messages))
	}
}

func TestBuildTruncatesAndSummarizesMiddle(t *testing.T) {
	conv := buildConversation(40, 1000)
	result := Build(conv, 1000) // forces truncation
	if !result.Truncated {
		t.Fatal("expected truncation over budget")
	}
	// first + summary + last 15
	if len(result.Messages) != 1+1+15 {
		t.Fatalf("expected 17 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].ID != conv.Messages[0].ID {
		t.Fatal("expected first original message preserved")
	}
	summary := result.Messages[1].Content
	if !strings.Contains(summary, "Summary of") {
		t.Fatalf("expected summary marker, got %q", summary)
	}
	if !strings.Contains(summary, "Customer discussed:") || !strings.Contains(summary, "Agent responded about:") {
		t.Fatalf("expected both sections in summary, got %q", summary)
	}
}

func TestEstimateTokensIsCharsOverFour(t *testing.T) {
	msgs := []types.Message{{Content: strings.Repeat("a", 400)}}
	if got := EstimateTokens(msgs); got != 100 {
		t.Fatalf("expected 100 tokens, got %d", got)
	}
}

func TestBuildNoMiddleWhenTooFewMessages(t *testing.T) {
	conv := buildConversation(10, 100000) // over budget but too few messages for head+tail split
	result := Build(conv, 100)
	if result.Truncated {
		t.Fatal("expected no truncation when there's no meaningful middle to compress")
	}
}
