package kafka

import (
	"math"
	"strings"
	"time"

	"lead-routing/logger"

	"github.com/segmentio/kafka-go"
)

// ensureTopicsExist creates topics in the background, retrying with
// exponential backoff while brokers come up.
func ensureTopicsExist(brokers, topics []string, log *logger.Logger) {
	if len(topics) == 0 {
		return
	}
	go func() {
		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
			} else {
				time.Sleep(time.Second)
			}

			conn, err := kafka.Dial("tcp", brokers[0])
			if err != nil {
				if attempt == maxRetries-1 {
					log.Warn("Could not reach Kafka broker for topic creation after %d attempts: %v", maxRetries, err)
				}
				continue
			}

			ready := 0
			for _, topic := range topics {
				err := conn.CreateTopics(kafka.TopicConfig{
					Topic:             topic,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
				if err == nil || strings.Contains(strings.ToLower(err.Error()), "already exists") {
					ready++
				}
			}
			conn.Close()

			if ready == len(topics) {
				log.Debug("Kafka topics ready: %v", topics)
				return
			}
		}
	}()
}
