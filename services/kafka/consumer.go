package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"lead-routing/logger"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev Event) error

type Consumer struct {
	mu       sync.Mutex
	reader   messageReader
	topic    string
	handlers map[string]Handler
	log      *logger.Logger

	// DeadLetter receives messages that failed to decode or whose handler
	// returned an error. Optional.
	DeadLetter func(topic, key string, payload []byte, err error)
}

// NewConsumer joins group on topic. With no brokers it returns a disabled
// consumer whose Run blocks until ctx is done.
func NewConsumer(brokers []string, topic, group string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Default()
	}
	c := &Consumer{topic: topic, handlers: make(map[string]Handler), log: log}
	if len(brokers) == 0 {
		log.Info("Kafka consumer is disabled (KAFKA_BROKERS is empty)")
		return c
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:          brokers,
		Topic:            topic,
		GroupID:          group,
		StartOffset:      kafka.LastOffset,
		CommitInterval:   time.Second,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})
	log.Info("Kafka consumer initialized. Brokers=%v, Topic=%s, ConsumerGroup=%s", brokers, topic, group)
	return c
}

func (c *Consumer) Enabled() bool {
	return c != nil && c.reader != nil
}

// Register routes events of the given type to h.
func (c *Consumer) Register(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = h
}

// Run reads until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.Enabled() {
		<-ctx.Done()
		return nil
	}
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("Error closing consumer: %v", err)
		}
	}()

	c.log.Info("Kafka consumer started on %s", c.topic)
	for {
		if ctx.Err() != nil {
			c.log.Info("Kafka consumer on %s stopped", c.topic)
			return nil
		}

		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := c.reader.ReadMessage(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			// Expected when idle or while the group coordinator starts.
			if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, io.EOF) {
				continue
			}
			if strings.Contains(err.Error(), "Group Coordinator Not Available") {
				sleep(ctx, 500*time.Millisecond)
				continue
			}
			c.log.Debug("Kafka read error on %s: %v", c.topic, err)
			sleep(ctx, time.Second)
			continue
		}

		c.Handle(ctx, msg)
	}
}

// Handle decodes and dispatches one message, reporting whether it succeeded.
// Failures go to DeadLetter.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) bool {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.deadLetter(msg, fmt.Errorf("failed to unmarshal JSON: %w", err))
		return false
	}
	if ev.Event == "" {
		c.deadLetter(msg, fmt.Errorf("message does not contain an event type"))
		return false
	}

	c.mu.Lock()
	h, ok := c.handlers[ev.Event]
	c.mu.Unlock()
	if !ok {
		c.deadLetter(msg, fmt.Errorf("unknown event type: %s", ev.Event))
		return false
	}

	if err := h(ctx, ev); err != nil {
		c.log.Error("Error handling event type %s: %v", ev.Event, err)
		c.deadLetter(msg, fmt.Errorf("handler error: %w", err))
		return false
	}
	return true
}

func (c *Consumer) deadLetter(msg kafka.Message, err error) {
	c.log.Warn("Kafka message on %s rejected: %v", msg.Topic, err)
	if c.DeadLetter != nil {
		c.DeadLetter(msg.Topic, string(msg.Key), msg.Value, err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
