// Package trigger implements the Trigger Manager: it bridges Conversation
// Engine events and a cron poll loop into Flow executions, matching the
// registered Flow's TriggerKind and TriggerConfig (channel/keyword/
// business-hours filters) before handing off to the Flow Engine. Adapted
// from the same automation-engine shape as internal/flow — here the rule
// matching is event-kind and schedule-driven rather than per-message
// condition evaluation, which the flow engine still performs once a step
// chain starts.
package trigger

import (
	"context"
	"strings"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/engine"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/flow"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "trigger"

var engineEventToTriggerKind = map[engine.EventKind]types.TriggerKind{
	engine.EventMessageIncoming:     types.TriggerMessageReceived,
	engine.EventConversationStarted: types.TriggerConversationNew,
	engine.EventConversationClosed:  types.TriggerConversationShut,
	engine.EventConversationHandoff: types.TriggerHandoffResolved,
}

// FlowProvider supplies the currently active flows; flow.Store satisfies
// this with its ActiveFlows method.
type FlowProvider interface {
	ActiveFlows(ctx context.Context) ([]types.Flow, error)
}

// Manager wires engine events and a cron poll loop to Flow executions.
type Manager struct {
	flows         FlowProvider
	runner        *flow.Runner
	contacts      *contactreg.Registry
	conversations *convoreg.Registry
}

func NewManager(flows FlowProvider, runner *flow.Runner, contacts *contactreg.Registry, conversations *convoreg.Registry) *Manager {
	return &Manager{flows: flows, runner: runner, contacts: contacts, conversations: conversations}
}

// Attach subscribes to every engine event kind the trigger manager cares
// about.
func (m *Manager) Attach(bus *engine.Bus) {
	for kind := range engineEventToTriggerKind {
		kind := kind
		bus.Subscribe(kind, func(ev engine.Event) {
			m.onEngineEvent(context.Background(), kind, ev)
		})
	}
}

func (m *Manager) onEngineEvent(ctx context.Context, kind engine.EventKind, ev engine.Event) {
	triggerKind, ok := engineEventToTriggerKind[kind]
	if !ok {
		return
	}

	flows, err := m.flows.ActiveFlows(ctx)
	if err != nil {
		obslog.WarnCF(component, "failed to load active flows", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, f := range flows {
		if !m.matches(f, triggerKind, ev) {
			continue
		}
		m.dispatch(ctx, f, ev.ConversationID, ev.ContactID, nil)
	}
}

// matches applies the trigger kind and the config filters the core spec
// names: channel restriction, business-hours window, and (for
// keyword-detected) a keyword list checked against the event's message
// payload.
func (m *Manager) matches(f types.Flow, triggerKind types.TriggerKind, ev engine.Event) bool {
	if f.TriggerKind == types.TriggerKeywordDetected && triggerKind == types.TriggerMessageReceived {
		return m.matchesKeyword(f, ev)
	}
	if f.TriggerKind != triggerKind {
		return false
	}
	if channel, ok := f.TriggerConfig["channel"].(string); ok && channel != "" && channel != ev.Channel {
		return false
	}
	if !withinBusinessHours(f.TriggerConfig) {
		return false
	}
	return true
}

func (m *Manager) matchesKeyword(f types.Flow, ev engine.Event) bool {
	msg, ok := ev.Payload.(types.Message)
	if !ok {
		return false
	}
	raw, ok := f.TriggerConfig["keywords"].([]interface{})
	if !ok {
		return false
	}
	lower := strings.ToLower(msg.Content)
	for _, kw := range raw {
		s, _ := kw.(string)
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// withinBusinessHours checks an optional "business_hours_start"/
// "business_hours_end" ("HH:MM") config pair against the current local
// time; absent config means no restriction.
func withinBusinessHours(config map[string]interface{}) bool {
	start, sok := config["business_hours_start"].(string)
	end, eok := config["business_hours_end"].(string)
	if !sok || !eok || start == "" || end == "" {
		return true
	}
	now := time.Now().Format("15:04")
	return now >= start && now <= end
}

// dispatch invokes execute(flow-id, context) per spec §4.11, merging any
// trigger-specific extra fields (e.g. a scheduled flow's
// {trigger, scheduled_at}) into the seeded conversation_id/contact_id
// context.
func (m *Manager) dispatch(ctx context.Context, f types.Flow, conversationID, contactID string, extra map[string]interface{}) {
	execContext := map[string]interface{}{
		"conversation_id": conversationID,
		"contact_id":      contactID,
	}
	for k, v := range extra {
		execContext[k] = v
	}
	exec, err := m.runner.Execute(ctx, f.ID, execContext)
	if err != nil {
		obslog.WarnCF(component, "trigger dispatch: flow execution failed to start", map[string]interface{}{"flow_id": f.ID, "error": err.Error()})
		return
	}
	obslog.InfoCF(component, "flow execution dispatched", map[string]interface{}{"flow_id": f.ID, "status": exec.Status})
}
