// Package orchestrator is the Agent Orchestrator: classifies an inbound
// message into a persona (LLM-JSON classification with a keyword-scoring
// fallback, adapted from the teacher's Router.Route), composes the
// persona's prompt, calls the LLM, and applies the rule-based detectors
// from internal/persona to decide whether the turn should hand off to a
// human instead of replying.
package orchestrator

import (
	"context"
	"strings"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/promptbuilder"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "orchestrator"

// RouteConfidenceThreshold is the minimum LLM-reported confidence accepted
// without falling back to keyword scoring.
const RouteConfidenceThreshold = 0.6

// RouteResult is the Router's classification of one inbound turn.
type RouteResult struct {
	Intent     string
	Confidence float64
	Language   string
	Sentiment  string
	Summary    string
	Source     string // "llm" or "keyword-fallback"
}

type routerJSON struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Sentiment  string  `json:"sentiment"`
	Summary    string  `json:"summary"`
}

// Router classifies inbound messages into a persona intent.
type Router struct {
	client    llm.Client
	retryCfg  llm.RetryConfig
	knowledge *knowledge.Index
	catalog   *persona.Catalog
}

func NewRouter(client llm.Client, knowledgeIndex *knowledge.Index, catalog *persona.Catalog) *Router {
	return &Router{client: client, retryCfg: llm.DefaultRetryConfig(), knowledge: knowledgeIndex, catalog: catalog}
}

const routerInstruction = "Classify the customer's intent into one of the configured personas. Consider the conversation history for context."

// Route classifies one inbound message. It first tries an LLM-JSON call;
// if that fails outright, or returns confidence below
// RouteConfidenceThreshold, it falls back to keyword scoring against the
// Knowledge Index's routing rules (or the catalog's own routing keywords
// when a custom catalog is loaded).
func (r *Router) Route(ctx context.Context, conv types.Conversation, inbound string) RouteResult {
	turn := promptbuilder.BuildRouterTurn(routerInstruction, conv.Messages, inbound)
	req := toChatRequest(turn, 0.2, 256)

	var parsed routerJSON
	err := llm.ChatJSON(ctx, r.client, req, &parsed)
	if err == nil && parsed.Confidence >= RouteConfidenceThreshold && parsed.Intent != "" {
		return RouteResult{
			Intent:     parsed.Intent,
			Confidence: parsed.Confidence,
			Language:   parsed.Language,
			Sentiment:  parsed.Sentiment,
			Summary:    parsed.Summary,
			Source:     "llm",
		}
	}
	if err != nil {
		obslog.WarnCF(component, "router LLM classification failed, falling back to keywords", map[string]interface{}{"error": err.Error()})
	}

	return r.keywordFallback(inbound, parsed)
}

// keywordFallback scores the inbound message against routing keywords.
// When a custom catalog is loaded, ranking weighs keyword hits (2) and
// topic-name hits (1) per persona; otherwise it scores the Knowledge
// Index's routing rules. Confidence is min(0.5 + hits*0.1, 0.85), or 0.3
// when nothing scores.
func (r *Router) keywordFallback(inbound string, llmHint routerJSON) RouteResult {
	lower := strings.ToLower(inbound)

	bestIntent := ""
	bestScore := 0

	if r.catalog != nil && len(r.catalog.Custom) > 0 {
		for name, p := range r.catalog.Active() {
			score := 0
			for _, kw := range p.RoutingKeywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					score += 2
				}
			}
			for _, topic := range p.Topics {
				if strings.Contains(lower, strings.ToLower(topic)) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				bestIntent = name
			}
		}
	} else if r.knowledge != nil {
		for _, rule := range r.knowledge.RoutingRules() {
			score := 0
			for _, kw := range rule.Keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				bestIntent = rule.Intent
			}
		}
	}

	if bestIntent == "" {
		for name, p := range persona.FixedCatalog {
			score := 0
			for _, kw := range p.RoutingKeywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				bestIntent = name
			}
		}
	}

	confidence := 0.3
	if bestIntent == "" {
		bestIntent = persona.DefaultIntent
	} else {
		confidence = 0.5 + float64(bestScore)*0.1
		if confidence > 0.85 {
			confidence = 0.85
		}
	}

	return RouteResult{
		Intent:     bestIntent,
		Confidence: confidence,
		Language:   llmHint.Language,
		Sentiment:  llmHint.Sentiment,
		Summary:    llmHint.Summary,
		Source:     "keyword-fallback",
	}
}

// TransferCheck implements spec §4.8 step 3's mid-conversation check: when
// a current agent is already assigned, it looks for a *different*
// persona's routing keywords/topics in the inbound content. It never
// proposes currentAgent itself, and proposes nothing when no other
// persona scores above zero — the caller performs the switch, Route is
// not re-run.
func (r *Router) TransferCheck(currentAgent, inbound string) (string, bool) {
	lower := strings.ToLower(inbound)
	candidates := r.catalog.Active()

	bestIntent := ""
	bestScore := 0
	for name, p := range candidates {
		if name == currentAgent {
			continue
		}
		score := 0
		for _, kw := range p.RoutingKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += 2
			}
		}
		for _, topic := range p.Topics {
			if strings.Contains(lower, strings.ToLower(topic)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIntent = name
		}
	}
	if bestIntent == "" {
		return "", false
	}
	return bestIntent, true
}

func toChatRequest(turn promptbuilder.Turn, temperature float64, maxTokens int) llm.ChatRequest {
	msgs := make([]llm.ChatMessage, 0, len(turn.History))
	for _, m := range turn.History {
		msgs = append(msgs, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return llm.ChatRequest{System: turn.SystemPrompt, Messages: msgs, Temperature: temperature, MaxTokens: maxTokens}
}
