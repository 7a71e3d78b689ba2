package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/agentmesh/service/messaging"
)

var errProcessed = errors.New("memory: message already processed")

// Config for memory queue implementation
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	DeadLetter bool
	Buffer     int
	// DropWhenFull makes Publish fail fast with messaging.ErrQueueFull
	// instead of blocking until a consumer frees space.
	DropWhenFull bool
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		DeadLetter: true,
		Buffer:     100,
	}
}

type message[T any] struct {
	payload  T
	queue    *Queue[T]
	attempts int
	once     sync.Once
}

func (m *message[T]) T() *T {
	return &m.payload
}

func (m *message[T]) Ack() error {
	err := errProcessed
	m.once.Do(func() { err = nil })
	return err
}

// Nack requeues the payload after RetryDelay until MaxRetries is exhausted,
// then moves it to the dead-letter list when enabled.
func (m *message[T]) Nack(_ error) error {
	err := errProcessed
	m.once.Do(func() {
		err = nil
		q := m.queue
		next := m.attempts + 1
		if next <= q.config.MaxRetries {
			go func() {
				time.Sleep(q.config.RetryDelay)
				q.enqueue(&message[T]{payload: m.payload, queue: q, attempts: next})
			}()
			return
		}
		if q.config.DeadLetter {
			q.mu.Lock()
			q.dlq = append(q.dlq, m.payload)
			q.mu.Unlock()
		}
	})
	return err
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *message[T]
	config   Config
	mu       sync.Mutex
	dlq      []T
	dropped  int
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *message[T], config.Buffer),
		config:   config,
	}
}

// Publish adds a copy of t to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &message[T]{payload: *t, queue: q}
	if q.config.DropWhenFull {
		select {
		case q.messages <- msg:
			return nil
		default:
			q.mu.Lock()
			q.dropped++
			q.mu.Unlock()
			return messaging.ErrQueueFull
		}
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue[T]) enqueue(msg *message[T]) {
	select {
	case q.messages <- msg:
	default:
		q.mu.Lock()
		q.dlq = append(q.dlq, msg.payload)
		q.mu.Unlock()
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the current number of queued messages.
func (q *Queue[T]) Len() int {
	return len(q.messages)
}

// Dropped returns how many publishes were rejected because the queue was full.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// DeadLetters returns a copy of payloads that exhausted their retries.
func (q *Queue[T]) DeadLetters() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.dlq...)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
