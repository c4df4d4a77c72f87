package broadcast

import (
	"context"
	"testing"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type recordingSender struct {
	sent []string
	fail map[string]bool
}

func (s *recordingSender) SendMessage(ctx context.Context, channel types.Channel, channelUserID, content string) error {
	if s.fail[channelUserID] {
		return types.ExternalFailure(component, "send failed", nil)
	}
	s.sent = append(s.sent, channelUserID)
	return nil
}

func setupManager(t *testing.T) (*Manager, *contactreg.Registry, *recordingSender) {
	t.Helper()
	contacts := contactreg.New(storekit.NewMemoryStore[types.Contact](""))
	sender := &recordingSender{fail: map[string]bool{}}
	store := storekit.NewMemoryStore[types.Broadcast]("")
	return NewManager(store, contacts, sender), contacts, sender
}

func TestSendDeliversToAllMatchingTargets(t *testing.T) {
	m, contacts, sender := setupManager(t)
	ctx := context.Background()

	for i, id := range []string{"cu-1", "cu-2", "cu-3"} {
		c, _ := contacts.GetOrCreate(ctx, types.ChannelWhatsApp, id, "User")
		if i == 0 {
			contacts.AddTag(ctx, c.ID, "vip")
		}
	}
	c4, _ := contacts.GetOrCreate(ctx, types.ChannelTelegram, "cu-4", "Other Channel")
	_ = c4

	b, err := m.Create(ctx, "promo", "Hello!", types.MessageText, types.BroadcastTargetFilter{Channel: types.ChannelWhatsApp})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := m.Send(ctx, b.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Status != types.BroadcastCompleted {
		t.Fatalf("expected completed status, got %s", result.Status)
	}
	if result.Recipients != 3 {
		t.Fatalf("expected 3 whatsapp recipients, got %d", result.Recipients)
	}
	if result.Sent != 3 || result.Delivered != 3 {
		t.Fatalf("expected all 3 delivered, got sent=%d delivered=%d", result.Sent, result.Delivered)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 sends recorded, got %d", len(sender.sent))
	}
}

func TestSendFiltersByRequiredTags(t *testing.T) {
	m, contacts, _ := setupManager(t)
	ctx := context.Background()

	vip, _ := contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-vip", "VIP")
	contacts.AddTag(ctx, vip.ID, "vip")
	contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-regular", "Regular")

	b, _ := m.Create(ctx, "vip-only", "Special offer", types.MessageText, types.BroadcastTargetFilter{RequiredTags: []string{"vip"}})
	result, err := m.Send(ctx, b.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Recipients != 1 {
		t.Fatalf("expected 1 vip recipient, got %d", result.Recipients)
	}
}

func TestSendRecordsFailures(t *testing.T) {
	m, contacts, sender := setupManager(t)
	ctx := context.Background()
	contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-good", "Good")
	contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-bad", "Bad")
	sender.fail["cu-bad"] = true

	b, _ := m.Create(ctx, "mixed", "hi", types.MessageText, types.BroadcastTargetFilter{})
	result, err := m.Send(ctx, b.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Failed != 1 || result.Sent != 1 {
		t.Fatalf("expected 1 failed and 1 sent, got failed=%d sent=%d", result.Failed, result.Sent)
	}
}

func TestCancelStopsSendLoop(t *testing.T) {
	m, contacts, _ := setupManager(t)
	ctx := context.Background()
	contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-1", "A")
	contacts.GetOrCreate(ctx, types.ChannelWeb, "cu-2", "B")

	b, _ := m.Create(ctx, "cancel-me", "hi", types.MessageText, types.BroadcastTargetFilter{})
	m.Cancel(b.ID)

	result, err := m.Send(ctx, b.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Status != types.BroadcastCancelled {
		t.Fatalf("expected cancelled status, got %s", result.Status)
	}
}
