// Package ctxwindow implements the Context Window Builder: char-based
// token estimation and deterministic local truncate-and-summarize-middle,
// with no LLM call. The token-budget-check control flow is adapted from
// the teacher's maybeSummarize/estimateTokens; the summary body itself is
// rewritten as pure snippet extraction since this spec requires a local
// summary, not an LLM-produced one.
package ctxwindow

import (
	"fmt"
	"strings"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const (
	DefaultMaxTokens = 50000
	headCount        = 1
	tailCount        = 15
	maxInboundSnips  = 5
	maxOutboundSnips = 3
	snippetMaxChars  = 80
)

// Result reports the (possibly truncated) message window.
type Result struct {
	Messages         []types.Message
	Truncated        bool
	EstimatedTokens  int
}

// EstimateTokens approximates token count as ceil(total-characters / 4)
// over the message contents.
func EstimateTokens(messages []types.Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return (chars + 3) / 4
}

// Build bounds conversation history to maxTokens (0 uses DefaultMaxTokens).
// If the full history fits, it is returned verbatim. Otherwise the first
// message, a deterministic local summary of the middle, and the last
// tailCount messages are returned.
func Build(conv types.Conversation, maxTokens int) Result {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	messages := conv.Messages
	total := EstimateTokens(messages)
	if total <= maxTokens {
		return Result{Messages: messages, Truncated: false, EstimatedTokens: total}
	}

	if len(messages) <= headCount+tailCount {
		// Nothing meaningful to compress; return as-is even though over
		// budget — there is no middle segment to summarize.
		return Result{Messages: messages, Truncated: false, EstimatedTokens: total}
	}

	first := messages[0]
	last := messages[len(messages)-tailCount:]
	middle := messages[headCount : len(messages)-tailCount]

	summaryMsg := types.Message{
		ID:             "summary",
		ConversationID: conv.ID,
		ContactID:      conv.ContactID,
		Direction:      types.DirectionOutbound,
		Type:           types.MessageSystem,
		Content:        summarizeMiddle(middle),
		Channel:        conv.Channel,
		Timestamp:      middle[len(middle)-1].Timestamp,
	}

	result := append([]types.Message{first, summaryMsg}, last...)
	return Result{
		Messages:        result,
		Truncated:       true,
		EstimatedTokens: EstimateTokens(result),
	}
}

// summarizeMiddle produces the deterministic local summary string:
// "[Summary of N earlier messages] Customer discussed: ...; Agent
// responded about: ...".
func summarizeMiddle(middle []types.Message) string {
	var inbound, outbound []string
	for _, m := range middle {
		snippet := truncateSnippet(m.Content, snippetMaxChars)
		if snippet == "" {
			continue
		}
		if m.Direction == types.DirectionInbound && len(inbound) < maxInboundSnips {
			inbound = append(inbound, snippet)
		} else if m.Direction == types.DirectionOutbound && len(outbound) < maxOutboundSnips {
			outbound = append(outbound, snippet)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Summary of %d earlier messages] ", len(middle)))
	sb.WriteString("Customer discussed: ")
	sb.WriteString(strings.Join(inbound, "; "))
	sb.WriteString("; Agent responded about: ")
	sb.WriteString(strings.Join(outbound, "; "))
	return sb.String()
}

func truncateSnippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
