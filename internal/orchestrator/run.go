package orchestrator

import (
	"context"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/promptbuilder"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// fallbackReply is returned when the persona LLM call fails even after
// retry exhaustion; the turn is also flagged for handoff.
const fallbackReply = "I'm sorry, I'm having trouble responding right now. Let me connect you with a team member."

// MaxPersonaTurns bounds how many outbound AI turns a conversation may run
// before a forced handoff, per the persona.MaxTurnsExceeded detector.
const MaxPersonaTurns = 20

// RunInput bundles everything Run needs to produce one AI turn.
type RunInput struct {
	Client         llm.Client
	Catalog        *persona.Catalog
	Knowledge      *knowledge.Index
	PersonaKey     string
	CompanyName    string
	ToneOfVoice    string
	Conversation   types.Conversation
	Contact        types.Contact
	CurrentInbound string
}

// Outcome is the result of one orchestrated turn.
type Outcome struct {
	Reply         string
	PersonaUsed   string
	Handoff       bool
	HandoffReason string
	// Action is types.ActionCloseConversation when the persona flagged the
	// conversation complete with no reply (spec §4.9 step 8); empty
	// otherwise.
	Action types.ActionType
}

// Run composes the persona prompt, calls the LLM with retry, and applies
// the rule-based detectors to decide on a human handoff. It never returns
// an error: LLM failure is absorbed into a safe fallback reply plus a
// forced handoff, matching the core spec's failure-semantics requirement
// that the customer is never left without a response.
func Run(ctx context.Context, in RunInput) Outcome {
	if handoff, reason := explicitHandoffCheck(in); handoff {
		return Outcome{Reply: "", PersonaUsed: in.PersonaKey, Handoff: true, HandoffReason: reason}
	}
	if persona.DetectConversationClose(in.CurrentInbound) {
		return Outcome{Reply: "", PersonaUsed: in.PersonaKey, Action: types.ActionCloseConversation}
	}

	p, ok := in.Catalog.Get(in.PersonaKey)
	if !ok {
		p, _ = in.Catalog.Get(persona.DefaultIntent)
	}

	var knowledgeDocs map[string]knowledge.Document
	var faqMatches []knowledge.FAQMatch
	if in.Knowledge != nil {
		knowledgeDocs = in.Knowledge.FindRelevantData(in.CurrentInbound, string(p.Key))
		faqMatches = in.Knowledge.SearchFAQ(in.CurrentInbound)
	}

	turn := promptbuilder.BuildPersonaTurn(promptbuilder.PersonaPromptInput{
		BasePrompt:     p.SystemPrompt,
		CompanyName:    in.CompanyName,
		Channel:        in.Conversation.Channel,
		ContactName:    in.Contact.Name,
		ToneOfVoice:    in.ToneOfVoice,
		KnowledgeDocs:  knowledgeDocs,
		FAQMatches:     faqMatches,
		Customer:       in.Contact,
		ConvoContext:   in.Conversation.Context,
		History:        in.Conversation.Messages,
		CurrentInbound: in.CurrentInbound,
	})

	req := toChatRequest(turn, p.Temperature, p.MaxTokens)
	resp, err := llm.ChatWithRetry(ctx, in.Client, req, llm.DefaultRetryConfig())
	if err != nil {
		obslog.ErrorCF(component, "persona LLM call failed after retries, returning safe fallback", map[string]interface{}{
			"persona": p.Key, "error": err.Error(),
		})
		return Outcome{Reply: fallbackReply, PersonaUsed: string(p.Key), Handoff: true, HandoffReason: "LLM unavailable after retry exhaustion"}
	}

	outcome := Outcome{Reply: resp.Content, PersonaUsed: string(p.Key)}
	if handoff, reason := postReplyHandoffCheck(p.Key, in.Conversation); handoff {
		outcome.Handoff = true
		outcome.HandoffReason = reason
	}
	return outcome
}

// explicitHandoffCheck covers the detectors that should pre-empt calling
// the LLM at all: an explicit request for a human, or exceeding the
// configured persona turn budget.
func explicitHandoffCheck(in RunInput) (bool, string) {
	if ok, reason := persona.DetectExplicitHandoff(in.CurrentInbound, in.Conversation.Context.Language); ok {
		return true, reason
	}
	if persona.MaxTurnsExceeded(in.Conversation, MaxPersonaTurns) {
		return true, "maximum persona turns exceeded"
	}
	return false, ""
}

// postReplyHandoffCheck covers the detectors that depend on accumulated
// conversation signal and apply after a reply has been generated:
// three consecutive negative messages (any persona), support-specific
// refund keywords and frustration score, per spec §4.8 step 4.
func postReplyHandoffCheck(key persona.Key, conv types.Conversation) (bool, string) {
	if persona.ThreeConsecutiveNegative(conv) {
		return true, "three consecutive negative messages detected"
	}
	if key == persona.KeySupport {
		if len(conv.Messages) > 0 {
			last := conv.Messages[len(conv.Messages)-1]
			if last.Direction == types.DirectionInbound && persona.RefundKeywordDetected(last.Content) {
				return true, "refund request detected"
			}
		}
		if score := persona.FrustrationScore(conv); score >= 5 {
			return true, "frustration score threshold exceeded"
		}
	}
	return false, ""
}
