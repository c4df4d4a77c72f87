// Package broadcast implements the Broadcast Manager: target-set
// computation over the Contact Registry, a per-channel rate-limited send
// loop, and cooperative cancellation. The chunk-then-pause send loop is
// adapted from the teacher's specialist/tool batch-processing delay
// pattern, generalized to the core spec's exact per-channel rate-limit
// formula (sleep ceil(1000/limit) ms between sends).
package broadcast

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "broadcast"

// perChannelRateLimit is messages/second, per the core spec's transport
// budgets.
var perChannelRateLimit = map[types.Channel]int{
	types.ChannelWhatsApp:  80,
	types.ChannelTelegram:  30,
	types.ChannelInstagram: 20,
	types.ChannelWeb:       100,
}

func rateLimitDelay(channel types.Channel) time.Duration {
	limit, ok := perChannelRateLimit[channel]
	if !ok || limit <= 0 {
		limit = 10
	}
	ms := math.Ceil(1000.0 / float64(limit))
	return time.Duration(ms) * time.Millisecond
}

// Sender is the outbound capability the send loop depends on.
type Sender interface {
	SendMessage(ctx context.Context, channel types.Channel, channelUserID, content string) error
}

// Manager owns Broadcast persistence plus the send loop's in-memory
// cancellation flags — cancellation is tracked here rather than on the
// persisted record, since a cooperative stop signal has no business being
// serialized.
type Manager struct {
	store    storekit.Store[types.Broadcast]
	contacts *contactreg.Registry
	sender   Sender

	mu        sync.Mutex
	cancelled map[string]bool
}

func NewManager(store storekit.Store[types.Broadcast], contacts *contactreg.Registry, sender Sender) *Manager {
	return &Manager{store: store, contacts: contacts, sender: sender, cancelled: make(map[string]bool)}
}

// Create registers a draft broadcast; Recipients is populated lazily at
// Send time once the target set is resolved.
func (m *Manager) Create(ctx context.Context, name, content string, messageType types.MessageType, target types.BroadcastTargetFilter) (types.Broadcast, error) {
	b := types.Broadcast{
		ID:          uuid.NewString(),
		Name:        name,
		Content:     content,
		MessageType: messageType,
		Target:      target,
		Status:      types.BroadcastDraft,
	}
	if err := m.store.Create(ctx, b.ID, b); err != nil {
		return types.Broadcast{}, err
	}
	return b, nil
}

func (m *Manager) Get(ctx context.Context, id string) (types.Broadcast, error) {
	b, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return types.Broadcast{}, err
	}
	if !ok {
		return types.Broadcast{}, types.NotFound(component, "broadcast "+id+" not found")
	}
	return b, nil
}

// resolveTargets returns every contact in the registry; Send narrows the
// set with matchesTarget (channel, required tags, optional predicate).
func (m *Manager) resolveTargets(ctx context.Context, target types.BroadcastTargetFilter) ([]types.Contact, error) {
	return m.contacts.Search(ctx, "")
}

func matchesTarget(c types.Contact, target types.BroadcastTargetFilter) bool {
	if target.Channel != "" && c.Channel != target.Channel {
		return false
	}
	for _, tag := range target.RequiredTags {
		if !c.HasTag(tag) {
			return false
		}
	}
	if target.Predicate != nil && !target.Predicate(c) {
		return false
	}
	return true
}

// Send resolves the target set, transitions to sending, and delivers one
// message per target with the channel's rate-limit delay between sends.
// It stops early, marking the broadcast cancelled, if Cancel was called
// for id.
func (m *Manager) Send(ctx context.Context, id string) (types.Broadcast, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return types.Broadcast{}, err
	}

	all, err := m.resolveTargets(ctx, b.Target)
	if err != nil {
		return types.Broadcast{}, err
	}
	var targets []types.Contact
	for _, c := range all {
		if matchesTarget(c, b.Target) {
			targets = append(targets, c)
		}
	}

	now := time.Now().UTC()
	b.Recipients = len(targets)
	b.Status = types.BroadcastSending
	b.StartedAt = &now
	if err := m.saveBroadcast(ctx, b); err != nil {
		return types.Broadcast{}, err
	}

	for i, c := range targets {
		if m.isCancelled(id) {
			b.Status = types.BroadcastCancelled
			obslog.InfoCF(component, "broadcast cancelled mid-send", map[string]interface{}{"broadcast_id": id, "sent": b.Sent, "total": b.Recipients})
			break
		}

		if err := m.sender.SendMessage(ctx, c.Channel, c.ChannelUserID, b.Content); err != nil {
			b.Failed++
			obslog.WarnCF(component, "broadcast send failed for recipient", map[string]interface{}{"broadcast_id": id, "contact_id": c.ID, "error": err.Error()})
		} else {
			b.Sent++
			b.Delivered++
		}

		if i < len(targets)-1 {
			select {
			case <-time.After(rateLimitDelay(c.Channel)):
			case <-ctx.Done():
				b.Status = types.BroadcastCancelled
				if saveErr := m.saveBroadcast(ctx, b); saveErr != nil {
					return b, saveErr
				}
				return b, ctx.Err()
			}
		}
	}

	if b.Status != types.BroadcastCancelled {
		b.Status = types.BroadcastCompleted
	}
	completed := time.Now().UTC()
	b.CompletedAt = &completed
	if err := m.saveBroadcast(ctx, b); err != nil {
		return types.Broadcast{}, err
	}
	m.clearCancelled(id)
	return b, nil
}

// Cancel requests that an in-flight Send loop for id stop before its next
// send.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	m.cancelled[id] = true
	m.mu.Unlock()
}

func (m *Manager) isCancelled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[id]
}

func (m *Manager) clearCancelled(id string) {
	m.mu.Lock()
	delete(m.cancelled, id)
	m.mu.Unlock()
}

func (m *Manager) saveBroadcast(ctx context.Context, b types.Broadcast) error {
	_, err := m.store.Update(ctx, b.ID, func(types.Broadcast) types.Broadcast { return b })
	return err
}
