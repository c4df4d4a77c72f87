// Package msgqueue implements the Message Queue: a per-conversation FIFO
// with a single active worker per key, generalized from the teacher's
// single global pending/interrupt channel pair (pkg/agent/loop.go's
// routeMessages/Run) into the keyed-worker-pool shape the core spec calls
// for in its Design Notes — any number of conversation keys run
// concurrently, but handlers for one key are strictly serial.
package msgqueue

import (
	"context"
	"sync"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

const component = "msgqueue"

// Handler processes one item for a given conversation key. Its error, if
// any, is delivered to that item's Future.
type Handler func(ctx context.Context, key string, item interface{}) error

// Future is resolved once the enqueued item's handler has run.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Wait blocks until the handler completes and returns its error.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

type queueEntry struct {
	item   interface{}
	future *Future
}

// Queue is a keyed FIFO; one worker goroutine runs at a time per key.
type Queue struct {
	handler Handler

	mu      sync.Mutex
	queues  map[string][]queueEntry
	running map[string]bool
}

func New(handler Handler) *Queue {
	return &Queue{
		handler: handler,
		queues:  make(map[string][]queueEntry),
		running: make(map[string]bool),
	}
}

// Enqueue appends item under key and, if no worker is currently draining
// that key, starts one. Ordering guarantee: for a given key, handlers run
// strictly in enqueue order; across distinct keys, workers run
// concurrently.
func (q *Queue) Enqueue(ctx context.Context, key string, item interface{}) *Future {
	future := newFuture()

	q.mu.Lock()
	q.queues[key] = append(q.queues[key], queueEntry{item: item, future: future})
	alreadyRunning := q.running[key]
	if !alreadyRunning {
		q.running[key] = true
	}
	q.mu.Unlock()

	if !alreadyRunning {
		go q.drain(ctx, key)
	}
	return future
}

// drain processes entries for key in insertion order until the queue for
// that key is empty, then releases the running flag so a future Enqueue
// starts a fresh worker.
func (q *Queue) drain(ctx context.Context, key string) {
	for {
		q.mu.Lock()
		entries := q.queues[key]
		if len(entries) == 0 {
			delete(q.queues, key)
			q.running[key] = false
			q.mu.Unlock()
			return
		}
		next := entries[0]
		q.queues[key] = entries[1:]
		q.mu.Unlock()

		err := q.handler(ctx, key, next.item)
		if err != nil {
			obslog.ErrorCF(component, "handler failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		next.future.resolve(err)
	}
}
