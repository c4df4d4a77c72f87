package storekit

import (
	"context"
	"testing"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

type widget struct {
	ID    string
	Count int
}

func TestMemoryStoreCreateGet(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()

	if err := s.Create(ctx, "w1", widget{ID: "w1", Count: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, ok, err := s.Get(ctx, "w1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Count != 1 {
		t.Errorf("expected count 1, got %d", got.Count)
	}
}

func TestMemoryStoreCreateDuplicateRejected(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	if err := s.Create(ctx, "w1", widget{ID: "w1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, "w1", widget{ID: "w1"})
	if !types.IsKind(err, types.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestMemoryStoreUpdateMissingFails(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	_, err := s.Update(ctx, "missing", func(w widget) widget { return w })
	if !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateMerge(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	s.Create(ctx, "w1", widget{ID: "w1", Count: 1})
	updated, err := s.Update(ctx, "w1", func(w widget) widget {
		w.Count += 5
		return w
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Count != 6 {
		t.Errorf("expected count 6, got %d", updated.Count)
	}
}

func TestMemoryStoreDeleteAndSize(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	s.Create(ctx, "w1", widget{ID: "w1"})
	s.Create(ctx, "w2", widget{ID: "w2"})

	if size, _ := s.Size(ctx); size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
	if err := s.Delete(ctx, "w1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if size, _ := s.Size(ctx); size != 1 {
		t.Fatalf("expected size 1, got %d", size)
	}
	if err := s.Delete(ctx, "w1"); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("expected NotFound on double delete, got %v", err)
	}
}

func TestMemoryStoreFindAndOrder(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	s.Create(ctx, "a", widget{ID: "a", Count: 1})
	s.Create(ctx, "b", widget{ID: "b", Count: 2})
	s.Create(ctx, "c", widget{ID: "c", Count: 3})

	all, _ := s.GetAll(ctx)
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("expected insertion order a,b,c, got %+v", all)
	}

	found, _ := s.Find(ctx, func(w widget) bool { return w.Count > 1 })
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
}

func TestMemoryStoreWithLockSerializes(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	s.Create(ctx, "w1", widget{ID: "w1"})

	done := make(chan struct{})
	order := []int{}
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	go func() {
		s.WithLock(ctx, "w1", func() error {
			<-mu
			order = append(order, 1)
			mu <- struct{}{}
			return nil
		})
		done <- struct{}{}
	}()
	s.WithLock(ctx, "w1", func() error {
		<-mu
		order = append(order, 2)
		mu <- struct{}{}
		return nil
	})
	<-done

	if len(order) != 2 {
		t.Fatalf("expected both lock holders to run, got %v", order)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryStore[widget]("")
	ctx := context.Background()
	s.Create(ctx, "w1", widget{ID: "w1"})
	s.Clear(ctx)
	if size, _ := s.Size(ctx); size != 0 {
		t.Fatalf("expected empty store after clear, got size %d", size)
	}
}
