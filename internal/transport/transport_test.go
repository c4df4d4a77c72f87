package transport

import (
	"context"
	"testing"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type fakeAdapter struct {
	sent       []string
	verifyOK   bool
	failVerify bool
}

func (f *fakeAdapter) SendMessage(ctx context.Context, channelUserID, content string) error {
	f.sent = append(f.sent, channelUserID+":"+content)
	return nil
}
func (f *fakeAdapter) SendImage(ctx context.Context, channelUserID, url, caption string) error {
	f.sent = append(f.sent, channelUserID+":image:"+url)
	return nil
}
func (f *fakeAdapter) SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error {
	f.sent = append(f.sent, channelUserID+":buttons:"+content)
	return nil
}
func (f *fakeAdapter) SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error {
	f.sent = append(f.sent, channelUserID+":template:"+templateName)
	return nil
}
func (f *fakeAdapter) VerifyWebhook(token string) bool { return f.verifyOK }

func TestHubDispatchesToRegisteredChannel(t *testing.T) {
	hub := NewHub()
	wa := &fakeAdapter{}
	hub.Register(types.ChannelWhatsApp, wa)

	if err := hub.SendMessage(context.Background(), types.ChannelWhatsApp, "123", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(wa.sent) != 1 || wa.sent[0] != "123:hello" {
		t.Fatalf("unexpected sent log: %v", wa.sent)
	}
}

func TestHubReturnsErrorForUnregisteredChannel(t *testing.T) {
	hub := NewHub()
	if err := hub.SendMessage(context.Background(), types.ChannelTelegram, "1", "hi"); err == nil {
		t.Fatalf("expected error for unregistered channel")
	}
}

func TestHubVerifyWebhookFalseForUnregisteredChannel(t *testing.T) {
	hub := NewHub()
	if hub.VerifyWebhook(types.ChannelInstagram, "tok") {
		t.Fatalf("expected false for unregistered channel")
	}
}

func TestHubVerifyWebhookDelegatesToAdapter(t *testing.T) {
	hub := NewHub()
	ig := &fakeAdapter{verifyOK: true}
	hub.Register(types.ChannelInstagram, ig)

	if !hub.VerifyWebhook(types.ChannelInstagram, "tok") {
		t.Fatalf("expected adapter verify result to be true")
	}
}

func TestHubRoutesIndependentlyPerChannel(t *testing.T) {
	hub := NewHub()
	wa := &fakeAdapter{}
	web := &fakeAdapter{}
	hub.Register(types.ChannelWhatsApp, wa)
	hub.Register(types.ChannelWeb, web)

	_ = hub.SendMessage(context.Background(), types.ChannelWhatsApp, "a", "x")
	_ = hub.SendMessage(context.Background(), types.ChannelWeb, "b", "y")

	if len(wa.sent) != 1 || len(web.sent) != 1 {
		t.Fatalf("expected one send per adapter, got wa=%v web=%v", wa.sent, web.sent)
	}
}
