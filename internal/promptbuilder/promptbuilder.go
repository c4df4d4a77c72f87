// Package promptbuilder composes the system-prompt and chat-history pairs
// for router and persona turns, adapted from the section-joining shape of
// the teacher's ContextBuilder.BuildSystemPrompt/BuildMessages — knowledge
// blocks and FAQ hits replace the teacher's skills/specialist sections, and
// content is sourced from internal/knowledge instead of the filesystem
// skills loader.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const (
	maxPromptChars  = 80000
	routerHistoryN  = 5
	personaHistoryN = 20
)

// ChatMessage is the {role, content} pair the LLM client consumes.
type ChatMessage struct {
	Role    string // "user" (inbound) or "assistant" (outbound)
	Content string
}

// Turn is the full composed prompt for one LLM call.
type Turn struct {
	SystemPrompt string
	History      []ChatMessage
}

func toChatHistory(messages []types.Message, n int) []ChatMessage {
	if n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := "assistant"
		if m.Direction == types.DirectionInbound {
			role = "user"
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	return out
}

// BuildRouterTurn composes the router instruction, the last five messages
// for context, and the current inbound as the user turn.
func BuildRouterTurn(routerInstruction string, history []types.Message, currentInbound string) Turn {
	systemPrompt := routerInstruction + "\n\nRespond with JSON: {\"intent\": string, \"confidence\": number, \"language\": string, \"sentiment\": string, \"summary\": string}"

	hist := toChatHistory(history, routerHistoryN)
	if len(hist) == 0 || hist[len(hist)-1].Content != currentInbound {
		hist = append(hist, ChatMessage{Role: "user", Content: currentInbound})
	}
	return Turn{SystemPrompt: systemPrompt, History: hist}
}

// PersonaPromptInput bundles everything BuildPersonaTurn needs.
type PersonaPromptInput struct {
	BasePrompt     string // persona's own system prompt, with template vars
	CompanyName    string
	Channel        types.Channel
	ContactName    string
	ToneOfVoice    string
	KnowledgeDocs  map[string]knowledge.Document
	FAQMatches     []knowledge.FAQMatch
	Customer       types.Contact
	ConvoContext   types.ConversationContext
	History        []types.Message
	CurrentInbound string
}

// BuildPersonaTurn assembles the persona system prompt: template
// substitution, tone-of-voice, a Knowledge Base section (skipping blocks
// that would exceed the prompt character budget), an FAQ section, customer
// info, conversation context, then the last 20 history messages.
func BuildPersonaTurn(in PersonaPromptInput) Turn {
	prompt := substituteVars(in.BasePrompt, map[string]string{
		"companyName": in.CompanyName,
		"channel":     string(in.Channel),
		"contactName": in.ContactName,
	})

	if in.ToneOfVoice != "" {
		prompt += "\n\n## Tone of Voice\n" + in.ToneOfVoice
	}

	if len(in.KnowledgeDocs) > 0 {
		section := "\n\n## Knowledge Base\n"
		budgetUsed := len(prompt) + len(section)
		for key, doc := range in.KnowledgeDocs {
			block := fmt.Sprintf("\n### %s\n%s\n", key, doc.Flat)
			if budgetUsed+len(block) > maxPromptChars {
				continue
			}
			section += block
			budgetUsed += len(block)
		}
		prompt += section
	}

	if len(in.FAQMatches) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n## Relevant FAQ Matches\n")
		for _, m := range in.FAQMatches {
			sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", m.Entry.Question, m.Entry.Answer))
		}
		prompt += sb.String()
	}

	prompt += "\n\n## Customer Info\n" + customerInfoBlock(in.Customer)
	prompt += "\n\n## Conversation Context\n" + contextBlock(in.ConvoContext)

	hist := toChatHistory(in.History, personaHistoryN)
	if len(hist) == 0 || hist[len(hist)-1].Content != in.CurrentInbound {
		hist = append(hist, ChatMessage{Role: "user", Content: in.CurrentInbound})
	}

	return Turn{SystemPrompt: prompt, History: hist}
}

func substituteVars(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func customerInfoBlock(c types.Contact) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name: %s\n", orUnknown(c.Name)))
	sb.WriteString(fmt.Sprintf("Channel: %s\n", c.Channel))
	if len(c.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(c.Tags, ", ")))
	}
	return sb.String()
}

func contextBlock(ctx types.ConversationContext) string {
	var sb strings.Builder
	if ctx.Intent != "" {
		sb.WriteString(fmt.Sprintf("Intent: %s\n", ctx.Intent))
	}
	if ctx.Sentiment != "" {
		sb.WriteString(fmt.Sprintf("Sentiment: %s\n", ctx.Sentiment))
	}
	if ctx.LeadScore != 0 {
		sb.WriteString(fmt.Sprintf("Lead score: %d\n", ctx.LeadScore))
	}
	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
