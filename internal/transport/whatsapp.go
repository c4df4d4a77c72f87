package transport

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	platformtypes "github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const whatsappComponent = "transport.whatsapp"

// WhatsAppAdapter wires a whatsmeow client's event handler to an
// IncomingHandler, adapted one-for-one from thrapt-picobot's
// whatsappClient.handleEvent/runOutbound split: inbound messages arrive
// via the library's event callback, outbound sends go straight through
// client.SendMessage keyed by JID.
type WhatsAppAdapter struct {
	client  *whatsmeow.Client
	onEvent IncomingHandler
}

func NewWhatsAppAdapter(client *whatsmeow.Client, onEvent IncomingHandler) *WhatsAppAdapter {
	a := &WhatsAppAdapter{client: client, onEvent: onEvent}
	client.AddEventHandler(a.handleEvent)
	return a
}

func (a *WhatsAppAdapter) handleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok || msg.Message == nil {
		return
	}
	content := msg.Message.GetConversation()
	if content == "" && msg.Message.GetExtendedTextMessage() != nil {
		content = msg.Message.GetExtendedTextMessage().GetText()
	}
	if content == "" {
		return
	}
	if a.onEvent == nil {
		return
	}
	a.onEvent(context.Background(), platformtypes.RawInboundEvent{
		Content:       content,
		ChannelUserID: msg.Info.Chat.String(),
		Channel:       platformtypes.ChannelWhatsApp,
		SenderName:    msg.Info.PushName,
		Metadata:      platformtypes.Metadata{"message_id": msg.Info.ID, "is_group": msg.Info.IsGroup},
	})
}

func (a *WhatsAppAdapter) recipient(channelUserID string) (types.JID, error) {
	jid, err := types.ParseJID(channelUserID)
	if err != nil {
		return types.JID{}, platformtypes.InvalidInput(whatsappComponent, fmt.Sprintf("invalid JID %q: %v", channelUserID, err))
	}
	return jid, nil
}

func (a *WhatsAppAdapter) SendMessage(ctx context.Context, channelUserID, content string) error {
	recipient, err := a.recipient(channelUserID)
	if err != nil {
		return err
	}
	_, err = a.client.SendMessage(ctx, recipient, &waProto.Message{Conversation: &content})
	if err != nil {
		return platformtypes.ExternalFailure(whatsappComponent, "send message failed", err)
	}
	return nil
}

func (a *WhatsAppAdapter) SendImage(ctx context.Context, channelUserID, url, caption string) error {
	// WhatsApp requires uploading media before referencing it in a message;
	// url here is expected to already be a reachable resource the caller
	// has prepared. Captioned link fallback keeps this adapter functional
	// without a separate media-upload pipeline.
	return a.SendMessage(ctx, channelUserID, caption+"\n"+url)
}

func (a *WhatsAppAdapter) SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error {
	text := content
	for i, b := range buttons {
		text += fmt.Sprintf("\n%d. %s", i+1, b)
	}
	return a.SendMessage(ctx, channelUserID, text)
}

func (a *WhatsAppAdapter) SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error {
	return platformtypes.InvalidStateTransition(whatsappComponent, "whatsmeow sends free-form messages only; template "+templateName+" must be rendered by internal/template before calling SendMessage")
}

// VerifyWebhook is a no-op for WhatsApp: whatsmeow maintains a persistent
// multi-device socket rather than an inbound webhook.
func (a *WhatsAppAdapter) VerifyWebhook(token string) bool { return true }
