// Package notify delivers free-text lead notifications. Delivery is best
// effort: sinks never return errors to the caller, they log and move on.
package notify

import (
	"context"
	"sync"
	"time"

	"lead-routing/logger"
	"lead-routing/services/kafka"
)

type Notification struct {
	InstitutionID string    `json:"institution_id"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// LogSink writes notifications to the logger.
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Notify(_ context.Context, n Notification) {
	log := s.Log
	if log == nil {
		log = logger.Default()
	}
	log.With("institution", n.InstitutionID).Info("notification: %s", n.Message)
}

// publisher is satisfied by *kafka.Producer.
type publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// KafkaSink publishes notifications to a topic, keyed by institution.
type KafkaSink struct {
	Producer publisher
	Topic    string
	Log      *logger.Logger
}

func (s KafkaSink) Notify(ctx context.Context, n Notification) {
	ev := kafka.Event{
		Event:         kafka.EventNotification,
		InstitutionID: n.InstitutionID,
		Message:       n.Message,
		Timestamp:     n.Timestamp,
	}
	if err := s.Producer.Publish(ctx, s.Topic, n.InstitutionID, ev); err != nil {
		log := s.Log
		if log == nil {
			log = logger.Default()
		}
		log.Warn("notification publish failed: %v", err)
	}
}

// FromEvent converts a consumed notification event back into a Notification.
func FromEvent(ev kafka.Event) Notification {
	return Notification{InstitutionID: ev.InstitutionID, Message: ev.Message, Timestamp: ev.Timestamp}
}

// Async delivers to a slow sink, such as mail, from a background worker.
// Notify never blocks; when the buffer is full the notification is dropped.
type Async struct {
	sink  Sink
	queue chan Notification
	log   *logger.Logger
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(sink Sink, buffer int, log *logger.Logger) *Async {
	if log == nil {
		log = logger.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{sink: sink, queue: make(chan Notification, buffer), log: log, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		for n := range a.queue {
			a.sink.Notify(context.Background(), n)
		}
	}()
	return a
}

func (a *Async) Notify(_ context.Context, n Notification) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- n:
	default:
		a.log.With("institution", n.InstitutionID).Warn("notification dropped, delivery queue full: %s", n.Message)
	}
}

// Close stops accepting notifications and waits for the queue to drain or
// ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
