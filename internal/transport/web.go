package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	platformtypes "github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const webComponent = "transport.web"

// wireMessage is the JSON envelope exchanged with the web widget over the
// socket, in both directions.
type wireMessage struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	URL     string   `json:"url,omitempty"`
	Caption string   `json:"caption,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
}

// WebAdapter is the in-page chat widget transport: one gorilla/websocket
// connection per visitor, registered under their channelUserID, pushed to
// directly rather than throttled like the teacher's bus.StreamNotifier
// since a widget expects every turn, not a periodic flush of deltas.
type WebAdapter struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn

	onEvent IncomingHandler
}

func NewWebAdapter(onEvent IncomingHandler) *WebAdapter {
	return &WebAdapter{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:   make(map[string]*websocket.Conn),
		onEvent: onEvent,
	}
}

// HandleUpgrade upgrades an inbound HTTP request to a websocket connection
// registered under channelUserID (a visitor session id assigned by the
// caller) and starts a read loop that forwards text frames to onEvent.
func (a *WebAdapter) HandleUpgrade(w http.ResponseWriter, r *http.Request, channelUserID string) error {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return platformtypes.ExternalFailure(webComponent, "websocket upgrade failed", err)
	}

	a.mu.Lock()
	if existing, ok := a.conns[channelUserID]; ok {
		existing.Close()
	}
	a.conns[channelUserID] = conn
	a.mu.Unlock()

	go a.readLoop(channelUserID, conn)
	return nil
}

func (a *WebAdapter) readLoop(channelUserID string, conn *websocket.Conn) {
	defer a.disconnect(channelUserID, conn)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			obslog.WarnCF(webComponent, "dropping malformed frame", map[string]interface{}{"channel_user_id": channelUserID})
			continue
		}
		if msg.Content == "" || a.onEvent == nil {
			continue
		}
		a.onEvent(context.Background(), platformtypes.RawInboundEvent{
			Content:       msg.Content,
			ChannelUserID: channelUserID,
			Channel:       platformtypes.ChannelWeb,
		})
	}
}

func (a *WebAdapter) disconnect(channelUserID string, conn *websocket.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns[channelUserID] == conn {
		delete(a.conns, channelUserID)
	}
	conn.Close()
}

func (a *WebAdapter) conn(channelUserID string) (*websocket.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, ok := a.conns[channelUserID]
	if !ok {
		return nil, platformtypes.NotFound(webComponent, "no open connection for "+channelUserID)
	}
	return conn, nil
}

func (a *WebAdapter) send(channelUserID string, msg wireMessage) error {
	conn, err := a.conn(channelUserID)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		return platformtypes.ExternalFailure(webComponent, "websocket write failed", err)
	}
	return nil
}

func (a *WebAdapter) SendMessage(ctx context.Context, channelUserID, content string) error {
	return a.send(channelUserID, wireMessage{Type: "message", Content: content})
}

func (a *WebAdapter) SendImage(ctx context.Context, channelUserID, url, caption string) error {
	return a.send(channelUserID, wireMessage{Type: "image", URL: url, Caption: caption})
}

func (a *WebAdapter) SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error {
	return a.send(channelUserID, wireMessage{Type: "buttons", Content: content, Buttons: buttons})
}

func (a *WebAdapter) SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error {
	return platformtypes.InvalidStateTransition(webComponent, "web widget has no native template mechanism; render template "+templateName+" via internal/template before calling SendMessage")
}

// VerifyWebhook is a no-op for the web widget: the visitor connects
// directly over a websocket, there is no inbound webhook to verify.
func (a *WebAdapter) VerifyWebhook(token string) bool { return true }
