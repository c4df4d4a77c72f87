// Package llm is the LLM client capability from the core spec's External
// Interfaces: Chat / ChatJSON, with retry-with-backoff, a Claude
// implementation, an OpenAI fallback implementation, and a composing
// FallbackClient — all adapted from the teacher's
// pkg/providers/claude_provider.go and pkg/providers/fallback_provider.go.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "llm"

// ChatMessage mirrors the {role, content} pair used throughout the
// Prompt Builder; role is "system", "user", or "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

type ChatRequest struct {
	System      string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

type ChatResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the capability interface the Orchestrator depends on.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ChatJSON parses the response as JSON into out, stripping a leading
// fenced code block if present. A parse failure is treated identically to
// a network failure by the caller (both are ExternalFailure-adjacent).
func ChatJSON(ctx context.Context, c Client, req ChatRequest, out interface{}) error {
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return types.ExternalFailure(component, "chat call failed", err)
	}
	content := stripFence(resp.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return types.ParseFailure(component, "could not parse JSON response", err)
	}
	return nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RetryConfig controls the exponential backoff used by ChatWithRetry; the
// default is three attempts with a 2s base delay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// ChatWithRetry retries any Chat error with exponential backoff up to
// MaxAttempts; with the default config it waits 2s after the first failed
// attempt and 4s after the second, and makes no wait after the last.
func ChatWithRetry(ctx context.Context, c Client, req ChatRequest, cfg RetryConfig) (ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		resp, err := c.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		obslog.WarnCF(component, "chat attempt failed", map[string]interface{}{"attempt": attempt + 1, "error": err.Error()})
		if attempt < cfg.MaxAttempts-1 {
			delay := cfg.BaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ChatResponse{}, ctx.Err()
			}
		}
	}
	return ChatResponse{}, types.ExternalFailure(component, fmt.Sprintf("exhausted %d attempts", cfg.MaxAttempts), lastErr)
}
