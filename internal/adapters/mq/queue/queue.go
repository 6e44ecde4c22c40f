// Package queue holds outbound messages between ingestion and publishing.
package queue

import (
	"context"
	"sync"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/metrics"
)

const defaultCapacity = 1024

// Message is the payload type flowing through the queue.
type Message = model.Message

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, m Message) bool

	// Dequeue returns a channel of queued messages. It is closed once the
	// queue is closed and drained, or when ctx ends.
	Dequeue(ctx context.Context) <-chan Message

	Len() int

	// Close stops new enqueues. Messages already queued can still be dequeued.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)
	metrics.UpdateOutboxSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordOutboxDropped()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	select {
	case q.messages <- m:
		metrics.UpdateOutboxSize(len(q.messages))
		return true
	default:
		metrics.RecordOutboxDropped()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-q.messages:
				if !ok {
					return
				}
				metrics.UpdateOutboxSize(len(q.messages))
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len() int { return len(q.messages) }

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
