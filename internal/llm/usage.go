package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageEvent records one Chat call's token cost, adapted from the
// teacher's pkg/metrics.TokenEvent to the spec's Client/ChatRequest shape
// (no specialist/tool fields, since this platform has no agent tool loop).
type UsageEvent struct {
	Timestamp    string  `json:"ts"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"in"`
	OutputTokens int     `json:"out"`
	CostUSD      float64 `json:"cost"`
}

// UsageTracker appends UsageEvents to a JSONL file, the same
// append-and-fsync-free shape as the teacher's token tracker.
type UsageTracker struct {
	filePath string
	mu       sync.Mutex
}

func NewUsageTracker(dataDir string) *UsageTracker {
	dir := filepath.Join(dataDir, "usage")
	_ = os.MkdirAll(dir, 0755)
	return &UsageTracker{filePath: filepath.Join(dir, "llm_usage.jsonl")}
}

func (t *UsageTracker) Record(model string, inputTokens, outputTokens int) {
	event := UsageEvent{
		Timestamp:    time.Now().Format(time.RFC3339),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      estimateCost(model, inputTokens, outputTokens),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(data)
	f.Write([]byte("\n"))
}

type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"claude-sonnet-4-5": {3.0, 15.0},
	"claude-opus-4-5":   {15.0, 75.0},
	"claude-haiku-4-5":  {0.8, 4.0},
	"gpt-4o":            {2.5, 10.0},
	"gpt-4o-mini":       {0.15, 0.6},
}

func estimateCost(model string, input, output int) float64 {
	p, ok := pricing[model]
	if !ok {
		p = modelPricing{3.0, 15.0}
	}
	return float64(input)*p.inputPerM/1e6 + float64(output)*p.outputPerM/1e6
}

// TrackedClient wraps a Client and records a UsageEvent after every
// successful Chat call, so the orchestrator's LLM spend is observable
// without every call site having to remember to log it.
type TrackedClient struct {
	inner   Client
	model   string
	tracker *UsageTracker
}

func NewTrackedClient(inner Client, model string, tracker *UsageTracker) *TrackedClient {
	return &TrackedClient{inner: inner, model: model, tracker: tracker}
}

func (c *TrackedClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := c.inner.Chat(ctx, req)
	if err != nil {
		return resp, err
	}
	c.tracker.Record(c.model, resp.InputTokens, resp.OutputTokens)
	return resp, nil
}
