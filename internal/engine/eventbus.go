// Package engine implements the Conversation Engine: the top-level
// choreography that turns a raw inbound event into a persisted
// conversation turn, plus the typed event bus that notifies the Trigger
// Manager and the operator dashboard. The choreography is adapted from
// the teacher's AgentLoop.processMessage pipeline (resolve identity, fetch
// or create session, route and respond, persist, notify); the event bus
// generalizes the teacher's bus.StreamNotifier mutex-guarded callback
// shape into a typed, multi-subscriber, synchronous pub/sub bus per the
// core spec's Design Notes.
package engine

import (
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

const busComponent = "engine.bus"

// EventKind identifies the fixed set of events the Engine emits.
type EventKind string

const (
	EventConversationStarted EventKind = "conversation:started"
	EventConversationClosed  EventKind = "conversation:closed"
	EventConversationHandoff EventKind = "conversation:handoff"
	EventMessageIncoming     EventKind = "message:incoming"
	EventMessageOutgoing     EventKind = "message:outgoing"
	EventExecutionFailed     EventKind = "execution:failed"
)

// Event is the payload delivered to every subscriber of its Kind.
type Event struct {
	Kind           EventKind
	ConversationID string
	ContactID      string
	Channel        string
	Payload        interface{}
	At             time.Time
}

// maxSubscribersPerKind bounds the fan-out per event kind; the core spec
// calls for a "bounded" bus and this is a generous ceiling for the known
// subscriber set (trigger manager, dashboard).
const maxSubscribersPerKind = 32

// Bus is a typed, synchronous, multi-subscriber pub/sub bus. Publish calls
// every subscriber for Kind in registration order on the caller's
// goroutine; a panicking or slow subscriber never blocks or crashes the
// publisher beyond its own call, matching the teacher's "listener errors
// don't break the stream" discipline in bus.StreamNotifier.
type Bus struct {
	subscribers map[EventKind][]func(Event)
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[EventKind][]func(Event))}
}

// Subscribe registers fn to run on every future Publish of kind. Returns
// false without registering if the bound for kind has been reached.
func (b *Bus) Subscribe(kind EventKind, fn func(Event)) bool {
	if len(b.subscribers[kind]) >= maxSubscribersPerKind {
		obslog.WarnCF(busComponent, "subscriber bound reached, rejecting subscription", map[string]interface{}{"kind": kind})
		return false
	}
	b.subscribers[kind] = append(b.subscribers[kind], fn)
	return true
}

// Publish delivers ev to every subscriber of ev.Kind, synchronously, in
// registration order. A subscriber panic is recovered and logged so one
// broken listener cannot affect the others or the publisher.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for _, fn := range b.subscribers[ev.Kind] {
		b.safeCall(fn, ev)
	}
}

func (b *Bus) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			obslog.ErrorCF(busComponent, "event subscriber panicked, swallowed", map[string]interface{}{"kind": ev.Kind, "panic": r})
		}
	}()
	fn(ev)
}
