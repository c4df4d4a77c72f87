// Package contactreg implements the Contact Registry: identity resolution
// by (channel, channel-user-id), tag/custom-field mutators, and search. It
// is the single writer for Contact records, matching the teacher's
// registry-owns-its-records discipline seen in pkg/state.
package contactreg

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "contactreg"

type Registry struct {
	store storekit.Store[types.Contact]
}

func New(store storekit.Store[types.Contact]) *Registry {
	return &Registry{store: store}
}

// GetOrCreate locates a contact by (channel, channel-user-id); if found,
// refreshes LastSeenAt and back-fills Name only when previously empty.
// Otherwise creates a new contact. All writes happen under the contact's
// own per-key advisory lock.
func (r *Registry) GetOrCreate(ctx context.Context, channel types.Channel, channelUserID, name string) (types.Contact, error) {
	key := lockKey(channel, channelUserID)
	var result types.Contact
	err := r.store.WithLock(ctx, key, func() error {
		existing, err := r.findByIdentity(ctx, channel, channelUserID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if existing != nil {
			updated, err := r.store.Update(ctx, existing.ID, func(c types.Contact) types.Contact {
				if now.After(c.LastSeenAt) {
					c.LastSeenAt = now
				}
				if c.Name == "" && name != "" {
					c.Name = name
				}
				return c
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		}

		contact := types.Contact{
			ID:            uuid.NewString(),
			Name:          name,
			Channel:       channel,
			ChannelUserID: channelUserID,
			Tags:          []string{},
			CustomFields:  types.Metadata{},
			LastSeenAt:    now,
		}
		if err := r.store.Create(ctx, contact.ID, contact); err != nil {
			return err
		}
		result = contact
		return nil
	})
	return result, err
}

func (r *Registry) findByIdentity(ctx context.Context, channel types.Channel, channelUserID string) (*types.Contact, error) {
	matches, err := r.store.Find(ctx, func(c types.Contact) bool {
		return c.Channel == channel && c.ChannelUserID == channelUserID
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func lockKey(channel types.Channel, channelUserID string) string {
	return string(channel) + ":" + channelUserID
}

func (r *Registry) Get(ctx context.Context, id string) (types.Contact, error) {
	c, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return types.Contact{}, err
	}
	if !ok {
		return types.Contact{}, types.NotFound(component, "contact "+id+" not found")
	}
	return c, nil
}

func (r *Registry) Update(ctx context.Context, id string, merge func(types.Contact) types.Contact) (types.Contact, error) {
	return r.store.Update(ctx, id, merge)
}

func (r *Registry) AddTag(ctx context.Context, id, tag string) (types.Contact, error) {
	return storekit.WithLockedUpdate(ctx, r.store, id, func(c types.Contact) types.Contact {
		if c.HasTag(tag) {
			return c
		}
		c.Tags = append(append([]string{}, c.Tags...), tag)
		return c
	})
}

func (r *Registry) RemoveTag(ctx context.Context, id, tag string) (types.Contact, error) {
	return storekit.WithLockedUpdate(ctx, r.store, id, func(c types.Contact) types.Contact {
		out := make([]string, 0, len(c.Tags))
		for _, t := range c.Tags {
			if t != tag {
				out = append(out, t)
			}
		}
		c.Tags = out
		return c
	})
}

func (r *Registry) IncrementConversationCount(ctx context.Context, id string) (types.Contact, error) {
	return storekit.WithLockedUpdate(ctx, r.store, id, func(c types.Contact) types.Contact {
		c.ConversationCount++
		return c
	})
}

// Search is a case-insensitive substring match over name/email/channel-
// user-id and an exact-substring match over tags.
func (r *Registry) Search(ctx context.Context, query string) ([]types.Contact, error) {
	q := strings.ToLower(query)
	return r.store.Find(ctx, func(c types.Contact) bool {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(strings.ToLower(c.ChannelUserID), q) {
			return true
		}
		for _, t := range c.Tags {
			if strings.Contains(t, query) {
				return true
			}
		}
		return false
	})
}
