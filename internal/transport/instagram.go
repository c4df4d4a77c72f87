package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	platformtypes "github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const (
	instagramComponent = "transport.instagram"
	graphAPIBase       = "https://graph.facebook.com/v19.0"
)

// InstagramAdapter calls the Meta Graph API's Instagram messaging
// endpoints directly over net/http. No repo in the example pack and no
// established ecosystem SDK wraps this surface the way whatsmeow/telego
// wrap theirs, so this adapter is the one deliberate stdlib-only
// component in internal/transport (recorded in the design ledger).
type InstagramAdapter struct {
	pageID      string
	accessToken string
	verifyToken string
	httpClient  *http.Client
}

func NewInstagramAdapter(pageID, accessToken, verifyToken string) *InstagramAdapter {
	return &InstagramAdapter{
		pageID:      pageID,
		accessToken: accessToken,
		verifyToken: verifyToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type igRecipient struct {
	ID string `json:"id"`
}

type igMessage struct {
	Text string `json:"text,omitempty"`
}

type igSendPayload struct {
	Recipient igRecipient `json:"recipient"`
	Message   igMessage   `json:"message"`
}

func (a *InstagramAdapter) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return platformtypes.InvalidInput(instagramComponent, "encoding request body: "+err.Error())
	}

	url := fmt.Sprintf("%s/%s?access_token=%s", graphAPIBase, path, a.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return platformtypes.InvalidInput(instagramComponent, "building request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return platformtypes.ExternalFailure(instagramComponent, "graph api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return platformtypes.ExternalFailure(instagramComponent, fmt.Sprintf("graph api returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (a *InstagramAdapter) SendMessage(ctx context.Context, channelUserID, content string) error {
	return a.post(ctx, fmt.Sprintf("%s/messages", a.pageID), igSendPayload{
		Recipient: igRecipient{ID: channelUserID},
		Message:   igMessage{Text: content},
	})
}

func (a *InstagramAdapter) SendImage(ctx context.Context, channelUserID, url, caption string) error {
	return a.SendMessage(ctx, channelUserID, caption+"\n"+url)
}

func (a *InstagramAdapter) SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error {
	text := content
	for i, b := range buttons {
		text += fmt.Sprintf("\n%d. %s", i+1, b)
	}
	return a.SendMessage(ctx, channelUserID, text)
}

func (a *InstagramAdapter) SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error {
	return platformtypes.InvalidStateTransition(instagramComponent, "instagram messaging has no native template mechanism; render template "+templateName+" via internal/template before calling SendMessage")
}

// VerifyWebhook compares token against Meta's webhook verify handshake
// value; callers wire this from the page subscription's configured
// verify token.
func (a *InstagramAdapter) VerifyWebhook(token string) bool {
	return token != "" && token == a.verifyToken
}
