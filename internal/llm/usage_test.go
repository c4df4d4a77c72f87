package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackedClientRecordsUsageOnSuccess(t *testing.T) {
	dir := t.TempDir()
	tracker := NewUsageTracker(dir)
	inner := &fakeClient{response: ChatResponse{Content: "hi", InputTokens: 100, OutputTokens: 50}}
	client := NewTrackedClient(inner, "claude-sonnet-4-5", tracker)

	_, err := client.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "usage", "llm_usage.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestTrackedClientSkipsRecordingOnError(t *testing.T) {
	dir := t.TempDir()
	tracker := NewUsageTracker(dir)
	inner := &fakeClient{failN: 1}
	client := NewTrackedClient(inner, "claude-sonnet-4-5", tracker)

	_, err := client.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "usage", "llm_usage.jsonl"))
	assert.True(t, os.IsNotExist(statErr), "expected no usage log to be written on failure")
}

func TestEstimateCostFallsBackForUnknownModel(t *testing.T) {
	cost := estimateCost("some-unreleased-model", 1_000_000, 1_000_000)
	assert.Greater(t, cost, 0.0)
}
