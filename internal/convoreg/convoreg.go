// Package convoreg implements the Conversation Registry: lifecycle,
// message append, status transitions and context-field merges. It is the
// single writer for Conversation records. UpdateStatus enforces invariant
// I1 and AppendMessage enforces I3; I4 (one non-terminal conversation per
// contact) is not checked here, since Start always creates a new record.
package convoreg

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "convoreg"

type Registry struct {
	store storekit.Store[types.Conversation]
}

func New(store storekit.Store[types.Conversation]) *Registry {
	return &Registry{store: store}
}

// Start always creates a fresh active conversation with empty messages and
// a blank context, regardless of whether the contact already has one —
// callers are responsible for checking GetActive first per spec §4.9 step 2.
func (r *Registry) Start(ctx context.Context, contactID string, channel types.Channel) (types.Conversation, error) {
	now := time.Now().UTC()
	conv := types.Conversation{
		ID:        uuid.NewString(),
		ContactID: contactID,
		Channel:   channel,
		Status:    types.StatusActive,
		Messages:  []types.Message{},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Create(ctx, conv.ID, conv); err != nil {
		return types.Conversation{}, err
	}
	return conv, nil
}

// GetActive returns the most recently updated conversation for contactID
// whose status is active or waiting, or false if none exists.
func (r *Registry) GetActive(ctx context.Context, contactID string) (types.Conversation, bool, error) {
	matches, err := r.store.Find(ctx, func(c types.Conversation) bool {
		return c.ContactID == contactID && (c.Status == types.StatusActive || c.Status == types.StatusWaiting)
	})
	if err != nil {
		return types.Conversation{}, false, err
	}
	if len(matches) == 0 {
		return types.Conversation{}, false, nil
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.UpdatedAt.After(best.UpdatedAt) {
			best = m
		}
	}
	return best, true, nil
}

func (r *Registry) Get(ctx context.Context, id string) (types.Conversation, error) {
	c, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return types.Conversation{}, err
	}
	if !ok {
		return types.Conversation{}, types.NotFound(component, "conversation "+id+" not found")
	}
	return c, nil
}

// AppendMessage asserts the conversation exists and appends message,
// updating UpdatedAt. Invariant I3: timestamps are strictly monotone
// within a conversation, so AppendMessage bumps the timestamp forward if
// the caller-supplied one would not advance the sequence.
func (r *Registry) AppendMessage(ctx context.Context, convID string, msg types.Message) (types.Conversation, error) {
	return storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		if len(c.Messages) > 0 {
			last := c.Messages[len(c.Messages)-1].Timestamp
			if !msg.Timestamp.After(last) {
				msg.Timestamp = last.Add(time.Microsecond)
			}
		}
		c.Messages = append(c.Messages, msg)
		c.UpdatedAt = time.Now().UTC()
		return c
	})
}

// UpdateStatus enforces invariant I1: human-active requires a human agent
// id to already be set (set it via UpdateAgent first).
func (r *Registry) UpdateStatus(ctx context.Context, convID string, status types.ConversationStatus) (types.Conversation, error) {
	var invErr error
	result, err := storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		if status == types.StatusHumanActive && c.HumanAgentID == "" {
			invErr = types.InvalidStateTransition(component, "cannot set human-active without a human_agent_id")
			return c
		}
		c.Status = status
		c.UpdatedAt = time.Now().UTC()
		return c
	})
	if invErr != nil {
		return result, invErr
	}
	return result, err
}

func (r *Registry) UpdateAgent(ctx context.Context, convID, currentAgentID, humanAgentID string) (types.Conversation, error) {
	return storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		if currentAgentID != "" {
			c.CurrentAgent = currentAgentID
		}
		if humanAgentID != "" {
			c.HumanAgentID = humanAgentID
		}
		c.UpdatedAt = time.Now().UTC()
		return c
	})
}

// UpdateContext shallow-merges fields into the conversation's context
// record.
func (r *Registry) UpdateContext(ctx context.Context, convID string, merge func(types.ConversationContext) types.ConversationContext) (types.Conversation, error) {
	return storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		c.Context = merge(c.Context)
		c.UpdatedAt = time.Now().UTC()
		return c
	})
}

// Close records the reason under context.custom-fields.close-reason and
// transitions to closed.
func (r *Registry) Close(ctx context.Context, convID, reason string) (types.Conversation, error) {
	return storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		c.Status = types.StatusClosed
		if c.Context.CustomFields == nil {
			c.Context.CustomFields = types.Metadata{}
		}
		c.Context.CustomFields["close-reason"] = reason
		c.UpdatedAt = time.Now().UTC()
		return c
	})
}

// Reopen sets the conversation active again and erases the close reason.
func (r *Registry) Reopen(ctx context.Context, convID string) (types.Conversation, error) {
	return storekit.WithLockedUpdate(ctx, r.store, convID, func(c types.Conversation) types.Conversation {
		c.Status = types.StatusActive
		if c.Context.CustomFields != nil {
			delete(c.Context.CustomFields, "close-reason")
		}
		c.UpdatedAt = time.Now().UTC()
		return c
	})
}

// GetHistory returns the tail of length limit, or the full ordered list
// when limit is 0 or exceeds the message count.
func (r *Registry) GetHistory(ctx context.Context, convID string, limit int) ([]types.Message, error) {
	c, err := r.Get(ctx, convID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit >= len(c.Messages) {
		return c.Messages, nil
	}
	return c.Messages[len(c.Messages)-limit:], nil
}

// Filters selects conversations by optional criteria; zero-value fields
// are not applied.
type Filters struct {
	Status          types.ConversationStatus
	Channel         types.Channel
	CurrentAgent    string
	ContactID       string
	StartedBefore   *time.Time
	StartedAfter    *time.Time
}

func (r *Registry) Find(ctx context.Context, f Filters) ([]types.Conversation, error) {
	return r.store.Find(ctx, func(c types.Conversation) bool {
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		if f.Channel != "" && c.Channel != f.Channel {
			return false
		}
		if f.CurrentAgent != "" && c.CurrentAgent != f.CurrentAgent {
			return false
		}
		if f.ContactID != "" && c.ContactID != f.ContactID {
			return false
		}
		if f.StartedBefore != nil && !c.StartedAt.Before(*f.StartedBefore) {
			return false
		}
		if f.StartedAfter != nil && !c.StartedAt.After(*f.StartedAfter) {
			return false
		}
		return true
	})
}

// Stats returns counts grouped by status.
func (r *Registry) Stats(ctx context.Context) (map[types.ConversationStatus]int, error) {
	all, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[types.ConversationStatus]int)
	for _, c := range all {
		out[c.Status]++
	}
	return out, nil
}
