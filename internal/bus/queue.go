package bus

import (
	"context"
	"errors"
	"sync"

	"main/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking market-event queue. Feed adapters publish
// into it; the pipeline engine consumes it on a single goroutine, which
// preserves per-symbol arrival order.
type Queue struct {
	ch     chan model.Event
	mu     sync.RWMutex
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.Event, capacity)}
}

// TryPublish enqueues an event without blocking. A full queue returns
// ErrQueueFull so a slow consumer degrades to dropped events instead of
// back-pressuring the feed.
//
// The read lock spans the send; Close cannot close the channel under an
// in-flight publish.
func (q *Queue) TryPublish(e model.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(model.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
