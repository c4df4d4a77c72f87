// Package transport implements the Channel Adapter capability: one
// interface satisfied by a concrete adapter per supported channel
// (WhatsApp via whatsmeow, Telegram via telego, Web via gorilla/websocket,
// Instagram via the Graph API's plain HTTP surface), plus a Hub that
// dispatches by types.Channel so the rest of the system (Flow Engine,
// Broadcast Manager, Conversation Engine) can send without knowing which
// concrete transport a contact lives on.
package transport

import (
	"context"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "transport"

// Adapter is the capability every concrete channel implementation
// provides. channelUserID is the transport-native recipient address (a
// WhatsApp JID, a Telegram chat ID, a websocket connection key, an
// Instagram-scoped user id).
type Adapter interface {
	SendMessage(ctx context.Context, channelUserID, content string) error
	SendImage(ctx context.Context, channelUserID, url, caption string) error
	SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error
	SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error
	VerifyWebhook(token string) bool
}

// IncomingHandler is invoked by a concrete adapter whenever the remote
// transport delivers a new message; the Conversation Engine wires
// engine.HandleIncoming here.
type IncomingHandler func(ctx context.Context, ev types.RawInboundEvent)

// Hub dispatches by channel to the registered Adapter. It satisfies the
// structural Sender interfaces internal/flow and internal/broadcast each
// declare, so neither package needs to import internal/transport directly.
type Hub struct {
	adapters map[types.Channel]Adapter
}

func NewHub() *Hub {
	return &Hub{adapters: make(map[types.Channel]Adapter)}
}

func (h *Hub) Register(channel types.Channel, adapter Adapter) {
	h.adapters[channel] = adapter
}

func (h *Hub) adapterFor(channel types.Channel) (Adapter, error) {
	a, ok := h.adapters[channel]
	if !ok {
		return nil, types.InvalidInput(component, "no adapter registered for channel "+string(channel))
	}
	return a, nil
}

func (h *Hub) SendMessage(ctx context.Context, channel types.Channel, channelUserID, content string) error {
	a, err := h.adapterFor(channel)
	if err != nil {
		return err
	}
	return a.SendMessage(ctx, channelUserID, content)
}

func (h *Hub) SendImage(ctx context.Context, channel types.Channel, channelUserID, url, caption string) error {
	a, err := h.adapterFor(channel)
	if err != nil {
		return err
	}
	return a.SendImage(ctx, channelUserID, url, caption)
}

func (h *Hub) SendButtons(ctx context.Context, channel types.Channel, channelUserID, content string, buttons []string) error {
	a, err := h.adapterFor(channel)
	if err != nil {
		return err
	}
	return a.SendButtons(ctx, channelUserID, content, buttons)
}

func (h *Hub) SendTemplate(ctx context.Context, channel types.Channel, channelUserID, templateName string, vars map[string]string) error {
	a, err := h.adapterFor(channel)
	if err != nil {
		return err
	}
	return a.SendTemplate(ctx, channelUserID, templateName, vars)
}

func (h *Hub) VerifyWebhook(channel types.Channel, token string) bool {
	a, err := h.adapterFor(channel)
	if err != nil {
		obslog.WarnCF(component, "webhook verify requested for unregistered channel", map[string]interface{}{"channel": channel})
		return false
	}
	return a.VerifyWebhook(token)
}
