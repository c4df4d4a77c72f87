package llm

import (
	"context"
	"fmt"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

// FallbackClient wraps a primary and fallback Client, adapted one-for-one
// from the teacher's FallbackProvider: if the primary fails, it
// transparently retries with the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
}

func NewFallbackClient(primary, fallback Client) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

func (f *FallbackClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	obslog.WarnCF(component, "primary LLM failed, falling back", map[string]interface{}{"error": err.Error()})

	fbResp, fbErr := f.fallback.Chat(ctx, req)
	if fbErr != nil {
		return ChatResponse{}, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbResp, nil
}

func (f *FallbackClient) Primary() Client  { return f.primary }
func (f *FallbackClient) Fallback() Client { return f.fallback }
