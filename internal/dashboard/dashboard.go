// Package dashboard fans out Conversation Engine events to connected
// operator clients over a websocket, the same push-notification shape as
// the teacher's pkg/bus.StreamNotifier (accumulate, flush to a callback)
// generalized from one Telegram edit target to any number of operator
// browser tabs subscribed to the engine's event bus.
package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/engine"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

const component = "dashboard"

// outboxSize bounds how many unconsumed events a single slow operator
// client can queue before events are dropped for that client; a lagging
// dashboard tab must never block the engine's publish path.
const outboxSize = 64

type wireEvent struct {
	Kind           engine.EventKind `json:"kind"`
	ConversationID string           `json:"conversation_id"`
	ContactID      string           `json:"contact_id"`
	Channel        string           `json:"channel"`
	At             time.Time        `json:"at"`
}

type client struct {
	conn   *websocket.Conn
	outbox chan wireEvent
}

// Hub accepts operator websocket connections and broadcasts every event
// published on an attached engine.Bus to all of them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to every event kind the bus carries so every
// connected operator sees conversation lifecycle and message traffic in
// real time.
func (h *Hub) Attach(bus *engine.Bus) {
	kinds := []engine.EventKind{
		engine.EventConversationStarted,
		engine.EventConversationClosed,
		engine.EventConversationHandoff,
		engine.EventMessageIncoming,
		engine.EventMessageOutgoing,
		engine.EventExecutionFailed,
	}
	for _, kind := range kinds {
		bus.Subscribe(kind, h.broadcast)
	}
}

func (h *Hub) broadcast(ev engine.Event) {
	wire := wireEvent{
		Kind:           ev.Kind,
		ConversationID: ev.ConversationID,
		ContactID:      ev.ContactID,
		Channel:        ev.Channel,
		At:             ev.At,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.outbox <- wire:
		default:
			obslog.WarnCF(component, "dropping event for slow client", map[string]interface{}{"kind": ev.Kind})
		}
	}
}

// HandleUpgrade accepts a new operator connection and streams events to
// it until the socket closes.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, outbox: make(chan wireEvent, outboxSize)}
	h.register(c)

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.outbox)
	}
	c.conn.Close()
}

func (h *Hub) writeLoop(c *client) {
	for ev := range c.outbox {
		if err := c.conn.WriteJSON(ev); err != nil {
			h.unregister(c)
			return
		}
	}
}

// readLoop only exists to notice the client going away (gorilla requires
// a reader to detect close frames); operator clients never send data.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports how many operator connections are live, useful for
// health checks.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
