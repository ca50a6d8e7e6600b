// Package kafka wraps segmentio/kafka-go for the notification and audit
// topics. A Producer or Consumer built with no brokers is disabled and every
// call on it is a no-op.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"lead-routing/logger"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	mu        sync.Mutex
	brokers   []string
	writer    messageWriter
	newWriter func() messageWriter
	connected bool
	attempts  int
	backoff   func(attempt int) time.Duration
	log       *logger.Logger

	// DeadLetter receives messages that could not be published after all
	// attempts. Optional.
	DeadLetter func(topic, key string, payload []byte, err error)
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// NewProducer returns a producer for brokers and creates topics in the
// background. With no brokers it returns a disabled producer.
func NewProducer(brokers []string, topics []string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Default()
	}
	p := &Producer{brokers: brokers, attempts: 3, backoff: defaultBackoff, log: log}
	if len(brokers) == 0 {
		log.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return p
	}
	p.newWriter = func() messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			Async:        false,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireAll,
		}
	}
	p.writer = p.newWriter()
	p.connected = true
	ensureTopicsExist(brokers, topics, log)
	log.Info("Kafka producer initialized. Brokers=%v", brokers)
	return p
}

func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish marshals value to JSON and writes it to topic, retrying with
// exponential backoff. On the second failure the writer is recreated to drop
// stale broker metadata.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	if !p.Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: payload}

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(wctx, msg)
		cancel()
		if err == nil {
			p.connected = true
			return nil
		}

		lastErr = err
		p.connected = false
		p.log.Warn("Kafka publish attempt %d to %s failed: %v", attempt+1, topic, err)

		if attempt == 1 && p.newWriter != nil {
			p.log.Info("Recreating Kafka producer after repeated failures")
			p.writer.Close()
			p.writer = p.newWriter()
		}
		if attempt < p.attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(attempt)):
			}
		}
	}

	if p.DeadLetter != nil {
		p.DeadLetter(topic, key, payload, lastErr)
	}
	return lastErr
}

// IsConnected reports whether the last publish succeeded.
func (p *Producer) IsConnected() bool {
	if !p.Enabled() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}
