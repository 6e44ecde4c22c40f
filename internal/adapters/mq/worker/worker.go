// Package worker drains the outbox and publishes messages.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/creatorboard/internal/adapters/mq/queue"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultCallTimeout  = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Message is what workers read off the queue.
type Message = queue.Message

// Publisher posts a message to the platform and returns its external id.
type Publisher interface {
	PublishMessage(ctx context.Context, text, replyTo string) (string, error)
}

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Message
}

// Worker publishes messages until its queue closes or ctx ends.
type Worker interface {
	Run(ctx context.Context)
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	publisher   Publisher
	name        string
	callTimeout time.Duration
	done        chan struct{}
	logger      logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		publisher:   publisher,
		name:        "worker",
		callTimeout: defaultCallTimeout,
		done:        make(chan struct{}),
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run publishes messages one at a time. A failed publish is logged and
// counted; the worker moves on.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for m := range w.queue.Dequeue(ctx) {
		w.publish(ctx, m)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) publish(ctx context.Context, m Message) {
	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	log := w.logger.With(
		logger.String("message_id", m.ID.String()),
		logger.String("kind", string(m.Kind)))
	start := time.Now()
	externalID, err := w.publisher.PublishMessage(callCtx, m.Text, m.ReplyTo)
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordPublish("error", ms)
		metrics.RecordErrorByComponent("worker", "publish")
		log.Error(ctx, "publish failed", logger.Error(err))
		return
	}
	metrics.RecordPublish("ok", ms)
	log.Info(ctx, "message published", logger.String("external_id", externalID))
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	started bool
	once    sync.Once
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; at least one.
func NewPool(workerCount int, q Queue, publisher Publisher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	base := &InMemoryWorker{logger: logger.Discard()}
	for _, opt := range opts {
		opt(base)
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		cancel:  func() {},
		logger:  base.logger.Named("publisher-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("publisher-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, publisher, wopts...)
	}
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop cancels workers without draining and waits for them.
func (p *Pool) Stop() {
	p.cancel()
	if !p.started {
		return
	}
	for _, w := range p.workers {
		<-w.done
	}
}

// Shutdown closes the queue, lets workers drain what is left and waits.
// Workers still busy when ctx or the pool timeout expires are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}
		if !p.started {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
			}
		}
		p.Stop()
	})
	return err
}
