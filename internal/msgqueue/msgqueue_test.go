package msgqueue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEnqueueOrderWithinKey(t *testing.T) {
	var mu sync.Mutex
	var observed []string

	q := New(func(ctx context.Context, key string, item interface{}) error {
		mu.Lock()
		observed = append(observed, item.(string))
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	f1 := q.Enqueue(ctx, "conv-1", "A")
	f2 := q.Enqueue(ctx, "conv-1", "B")
	f3 := q.Enqueue(ctx, "conv-1", "C")

	f1.Wait(ctx)
	f2.Wait(ctx)
	f3.Wait(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 3 || observed[0] != "A" || observed[1] != "B" || observed[2] != "C" {
		t.Fatalf("expected strict order A,B,C, got %v", observed)
	}
}

func TestDistinctKeysRunConcurrently(t *testing.T) {
	start := make(chan struct{})
	release := make(chan struct{})
	entered := make(chan string, 2)

	q := New(func(ctx context.Context, key string, item interface{}) error {
		entered <- key
		<-release
		return nil
	})

	ctx := context.Background()
	close(start)
	q.Enqueue(ctx, "conv-1", "x")
	q.Enqueue(ctx, "conv-2", "y")

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for i := 0; i < 2; i++ {
		select {
		case k := <-entered:
			seen[k] = true
		case <-timeout:
			t.Fatal("expected both distinct-key workers to start concurrently")
		}
	}
	close(release)
	if !seen["conv-1"] || !seen["conv-2"] {
		t.Fatalf("expected both keys to run, got %v", seen)
	}
}

func TestFutureCarriesHandlerError(t *testing.T) {
	boom := context.DeadlineExceeded
	q := New(func(ctx context.Context, key string, item interface{}) error {
		return boom
	})
	f := q.Enqueue(context.Background(), "conv-1", "x")
	if err := f.Wait(context.Background()); err != boom {
		t.Fatalf("expected handler error propagated, got %v", err)
	}
}
