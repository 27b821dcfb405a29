// Package dispatch serializes concurrently arriving telephony events onto a
// single consumer goroutine, which is the only goroutine allowed to mutate
// the call and audio registries.
package dispatch

import (
	"errors"
	"sync"

	"github.com/odvcencio/dialtone/pkg/event"
)

// ErrQueueClosed is returned by Enqueue after Close. The envelope is dropped:
// once the owning handler is gone there is nowhere safe to apply it.
var ErrQueueClosed = errors.New("dispatch: queue closed")

// Queue is an unbounded FIFO mailbox. Any number of goroutines may Enqueue;
// exactly one goroutine may Dequeue. Enqueue never blocks: transport callback
// threads must not stall on a busy consumer, and event volume is bounded by
// real-world call-state change rates.
type Queue struct {
	mu     sync.Mutex
	items  []event.Envelope
	closed bool

	// signal has capacity 1; a pending token means "state changed, re-check".
	signal chan struct{}
}

// NewQueue returns an open, empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends env in arrival order. Safe for concurrent use.
func (q *Queue) Enqueue(env event.Envelope) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metricDroppedClosed.Inc()
		return ErrQueueClosed
	}
	q.items = append(q.items, env)
	depth := len(q.items)
	q.mu.Unlock()

	metricEnqueued.WithLabelValues(string(env.Kind())).Inc()
	metricQueueDepth.Set(float64(depth))
	q.signalUpdate()
	return nil
}

// Dequeue blocks until an envelope is available and returns it, or returns
// ok=false once the queue has been closed. Envelopes come out in enqueue
// order. Only the single consumer goroutine may call Dequeue.
func (q *Queue) Dequeue() (env event.Envelope, ok bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.items) > 0 {
			env = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			depth := len(q.items)
			q.mu.Unlock()
			metricQueueDepth.Set(float64(depth))
			return env, true
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// Close rejects all further enqueues and discards anything still pending.
// Idempotent; wakes a blocked Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	discarded := len(q.items)
	q.items = nil
	q.mu.Unlock()

	if discarded > 0 {
		metricDiscardedAtClose.Add(float64(discarded))
	}
	metricQueueDepth.Set(0)
	q.signalUpdate()
}

// Len returns the number of pending envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signalUpdate() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
