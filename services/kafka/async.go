package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"lead-routing/logger"
)

// ErrPublishQueueFull is returned when the AsyncPublisher buffer is full.
var ErrPublishQueueFull = stderrors.New("kafka publish queue is full")

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = stderrors.New("kafka publisher is closed")

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type pending struct {
	topic string
	key   string
	value interface{}
}

// AsyncPublisher hands messages to a single background worker so callers
// never wait on the broker. Messages keep their submission order. When the
// buffer is full the message is dropped and passed to DeadLetter.
type AsyncPublisher struct {
	next   Publisher
	queue  chan pending
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	// DeadLetter receives messages dropped because the buffer was full.
	// Optional.
	DeadLetter func(topic, key string, payload []byte, err error)
}

// NewAsyncPublisher starts the worker. buffer bounds the number of messages
// waiting for the broker.
func NewAsyncPublisher(next Publisher, buffer int, log *logger.Logger) *AsyncPublisher {
	if log == nil {
		log = logger.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &AsyncPublisher{
		next:   next,
		queue:  make(chan pending, buffer),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for msg := range a.queue {
		// The caller's context belongs to a request that has long finished.
		if err := a.next.Publish(a.ctx, msg.topic, msg.key, msg.value); err != nil {
			a.log.Warn("async publish to %s failed: %v", msg.topic, err)
		}
	}
}

// Publish queues value for delivery and returns immediately.
func (a *AsyncPublisher) Publish(_ context.Context, topic, key string, value interface{}) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.queue <- pending{topic: topic, key: key, value: value}:
		return nil
	default:
		if a.DeadLetter != nil {
			payload, _ := json.Marshal(value)
			a.DeadLetter(topic, key, payload, ErrPublishQueueFull)
		}
		return ErrPublishQueueFull
	}
}

// Close stops accepting messages and waits for the buffer to drain. If ctx
// ends first, the in-flight publish is cancelled and ctx.Err is returned.
func (a *AsyncPublisher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-a.done
		return ctx.Err()
	}
}
