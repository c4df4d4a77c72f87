package contactreg

import (
	"context"
	"testing"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

func newRegistry() *Registry {
	return New(storekit.NewMemoryStore[types.Contact](""))
}

func TestGetOrCreateCreatesOnFirstSeen(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	c, err := r.GetOrCreate(ctx, types.ChannelWhatsApp, "+100", "Alice")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if c.ID == "" || c.Name != "Alice" {
		t.Fatalf("unexpected contact: %+v", c)
	}
}

func TestGetOrCreateReturnsSameIDOnRepeat(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	first, _ := r.GetOrCreate(ctx, types.ChannelWhatsApp, "+100", "Alice")
	second, err := r.GetOrCreate(ctx, types.ChannelWhatsApp, "+100", "")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same contact id, got %s vs %s", first.ID, second.ID)
	}
	if !second.LastSeenAt.After(first.LastSeenAt) && !second.LastSeenAt.Equal(first.LastSeenAt) {
		t.Fatalf("expected last_seen_at to be non-decreasing")
	}
}

func TestGetOrCreateBackfillsNameOnlyWhenEmpty(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	first, _ := r.GetOrCreate(ctx, types.ChannelTelegram, "u1", "")
	if first.Name != "" {
		t.Fatalf("expected empty name initially")
	}
	second, _ := r.GetOrCreate(ctx, types.ChannelTelegram, "u1", "Bob")
	if second.Name != "Bob" {
		t.Fatalf("expected name backfilled to Bob, got %q", second.Name)
	}
	third, _ := r.GetOrCreate(ctx, types.ChannelTelegram, "u1", "Carl")
	if third.Name != "Bob" {
		t.Fatalf("expected name to stay Bob once set, got %q", third.Name)
	}
}

func TestAddRemoveTagDedup(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	c, _ := r.GetOrCreate(ctx, types.ChannelWeb, "w1", "Dana")
	c, err := r.AddTag(ctx, c.ID, "vip")
	if err != nil {
		t.Fatalf("add tag: %v", err)
	}
	c, _ = r.AddTag(ctx, c.ID, "vip")
	if len(c.Tags) != 1 {
		t.Fatalf("expected no duplicate tags, got %v", c.Tags)
	}
	c, _ = r.RemoveTag(ctx, c.ID, "vip")
	if len(c.Tags) != 0 {
		t.Fatalf("expected tag removed, got %v", c.Tags)
	}
}

func TestSearchMatchesNameAndTags(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	c, _ := r.GetOrCreate(ctx, types.ChannelWhatsApp, "+200", "Evelyn")
	r.AddTag(ctx, c.ID, "newsletter")

	results, err := r.Search(ctx, "eve")
	if err != nil || len(results) != 1 {
		t.Fatalf("expected 1 result for name search, got %d err=%v", len(results), err)
	}

	results, _ = r.Search(ctx, "newsletter")
	if len(results) != 1 {
		t.Fatalf("expected 1 result for tag search, got %d", len(results))
	}
}

func TestIncrementConversationCount(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	c, _ := r.GetOrCreate(ctx, types.ChannelWeb, "w2", "Finn")
	c, err := r.IncrementConversationCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if c.ConversationCount != 1 {
		t.Fatalf("expected conversation count 1, got %d", c.ConversationCount)
	}
}
