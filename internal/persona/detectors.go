package persona

import (
	"strings"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// handoffKeywords is the generic explicit-handoff-request list; arHandoffKeywords
// is its Arabic (right-to-left) counterpart. Spec Open Question #2 resolved:
// both lists are loaded, selection is driven by the conversation's detected
// language, with the generic list as the fallback.
var handoffKeywords = []string{"human", "agent", "manager", "representative", "real person", "speak to someone"}

var arHandoffKeywords = []string{"إنسان", "موظف", "مدير", "شخص حقيقي"}

func keywordsFor(language string) []string {
	if strings.EqualFold(language, "ar") || strings.EqualFold(language, "arabic") {
		return arHandoffKeywords
	}
	return handoffKeywords
}

// DetectExplicitHandoff reports whether content contains an explicit
// human-agent request keyword, localized by language.
func DetectExplicitHandoff(content, language string) (bool, string) {
	lower := strings.ToLower(content)
	for _, kw := range keywordsFor(language) {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, "explicit request for human: matched \"" + kw + "\""
		}
	}
	return false, ""
}

// MaxTurnsExceeded forces handoff when a conversation has run past a
// configured persona-turn limit.
func MaxTurnsExceeded(conv types.Conversation, maxTurns int) bool {
	if maxTurns <= 0 {
		return false
	}
	count := 0
	for _, m := range conv.Messages {
		if m.Direction == types.DirectionOutbound {
			count++
		}
	}
	return count >= maxTurns
}

var negativeSentimentKeywords = []string{"angry", "furious", "hate", "worst", "terrible", "unacceptable", "ridiculous"}

// ThreeConsecutiveNegative reports whether the last three inbound messages
// all contain a negative-sentiment keyword.
func ThreeConsecutiveNegative(conv types.Conversation) bool {
	var inbound []types.Message
	for _, m := range conv.Messages {
		if m.Direction == types.DirectionInbound {
			inbound = append(inbound, m)
		}
	}
	if len(inbound) < 3 {
		return false
	}
	last3 := inbound[len(inbound)-3:]
	for _, m := range last3 {
		if !containsAny(strings.ToLower(m.Content), negativeSentimentKeywords) {
			return false
		}
	}
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

var conversationCloseKeywords = []string{"that's all", "that is all", "no further questions", "nothing else", "that will be all", "goodbye", "bye for now"}

// DetectConversationClose reports whether content signals the customer is
// done and no further reply is needed, per spec §8's "unless the persona
// flags close with no reply" exception.
func DetectConversationClose(content string) bool {
	return containsAny(strings.ToLower(content), conversationCloseKeywords)
}

var refundKeywords = []string{"refund", "return", "money back", "cancel my order"}

// RefundKeywordDetected is the support-specific escalation check.
func RefundKeywordDetected(content string) bool {
	return containsAny(strings.ToLower(content), refundKeywords)
}

var severeFrustrationWords = []string{"terrible", "unacceptable", "disgusting", "furious", "worst"}
var mildFrustrationWords = []string{"annoyed", "frustrated", "disappointed", "slow", "confusing"}

// FrustrationScore counts severe words (weight 3), mild words (weight 1),
// ALL-CAPS inbound of length > 10 (weight 2), and runs of !/? >= 2
// (weight 1) over the last five inbound messages. Monotone non-decreasing
// as more trigger words accumulate within that window.
func FrustrationScore(conv types.Conversation) int {
	var inbound []types.Message
	for _, m := range conv.Messages {
		if m.Direction == types.DirectionInbound {
			inbound = append(inbound, m)
		}
	}
	if len(inbound) > 5 {
		inbound = inbound[len(inbound)-5:]
	}

	score := 0
	for _, m := range inbound {
		lower := strings.ToLower(m.Content)
		for _, w := range severeFrustrationWords {
			if strings.Contains(lower, w) {
				score += 3
			}
		}
		for _, w := range mildFrustrationWords {
			if strings.Contains(lower, w) {
				score += 1
			}
		}
		if len(m.Content) > 10 && m.Content == strings.ToUpper(m.Content) && strings.ToUpper(m.Content) != strings.ToLower(m.Content) {
			score += 2
		}
		if hasPunctuationRun(m.Content, '!', 2) || hasPunctuationRun(m.Content, '?', 2) {
			score += 1
		}
	}
	return score
}

func hasPunctuationRun(s string, ch rune, minRun int) bool {
	run := 0
	for _, r := range s {
		if r == ch {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

const frustrationHandoffThreshold = 5

// SalesStage is the stage machine driving the sales persona prompt.
type SalesStage string

const (
	StageQualifying        SalesStage = "qualifying"
	StagePresenting        SalesStage = "presenting"
	StageObjectionHandling SalesStage = "objection-handling"
	StageClosing           SalesStage = "closing"
)

var objectionKeywords = []string{"too expensive", "not sure", "need to think", "not convinced", "too much"}
var buyingKeywords = []string{"buy", "purchase", "sign up", "get started", "checkout"}

// DetermineSalesStage computes the current sales stage from inbound
// message count and keyword signals, per spec §4.8 step 4.
func DetermineSalesStage(conv types.Conversation) SalesStage {
	inboundCount := 0
	sawObjection := false
	sawBuying := false
	for _, m := range conv.Messages {
		if m.Direction != types.DirectionInbound {
			continue
		}
		inboundCount++
		lower := strings.ToLower(m.Content)
		if containsAny(lower, objectionKeywords) {
			sawObjection = true
		}
		if containsAny(lower, buyingKeywords) {
			sawBuying = true
		}
	}

	switch {
	case sawBuying && inboundCount > 3:
		return StageClosing
	case sawObjection:
		return StageObjectionHandling
	case inboundCount > 2:
		return StagePresenting
	default:
		return StageQualifying
	}
}

var disengagementKeywords = []string{"not interested", "maybe later", "stop messaging", "no thanks"}

// LeadScore maintains a [0,100] score: base 20, +5 per inbound (capped at
// +25 total), +8 per buying signal, -10 per disengagement signal.
func LeadScore(conv types.Conversation) int {
	score := 20
	inboundBonus := 0
	for _, m := range conv.Messages {
		if m.Direction != types.DirectionInbound {
			continue
		}
		if inboundBonus < 25 {
			inboundBonus += 5
			if inboundBonus > 25 {
				inboundBonus = 25
			}
		}
		lower := strings.ToLower(m.Content)
		if containsAny(lower, buyingKeywords) {
			score += 8
		}
		if containsAny(lower, disengagementKeywords) {
			score -= 10
		}
	}
	score += inboundBonus
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
