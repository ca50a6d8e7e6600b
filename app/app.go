// Package app wires configuration into a running coordinator: store backend,
// Kafka producer, notification and audit sinks, and metrics. Both the server
// and leadctl build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"lead-routing/config"
	"lead-routing/db"
	"lead-routing/logger"
	"lead-routing/metrics"
	"lead-routing/services/assignment"
	"lead-routing/services/audit"
	"lead-routing/services/capacity"
	"lead-routing/services/kafka"
	"lead-routing/services/notify"
	"lead-routing/store"
)

type App struct {
	Config      config.Config
	Log         *logger.Logger
	Store       store.Store
	Coordinator *assignment.Coordinator
	Producer    *kafka.Producer
	Hub         *notify.Hub
	Metrics     *metrics.PrometheusCollector

	// Publisher feeds Producer from a background worker; sinks publish
	// through it so requests never wait on the broker.
	Publisher *kafka.AsyncPublisher

	// Mail is nil when SMTP is not configured.
	Mail      *notify.MailSink
	mailQueue *notify.Async
}

// publishBuffer bounds the messages waiting for Kafka before new ones are
// dead-lettered.
const publishBuffer = 1024

const closeTimeout = 10 * time.Second

// NewLogger builds the process logger from LOG_LEVEL and makes it the default.
func NewLogger(cfg config.Config) *logger.Logger {
	log := logger.New(logger.Config{Level: logger.ParseLevel(cfg.LogLevel)})
	logger.SetDefault(log)
	return log
}

// New opens the configured store and assembles the coordinator.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Hub:     notify.NewHub(32, log),
		Metrics: metrics.NewPrometheus(nil, cfg.MetricsNamespace),
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = st

	a.Producer = kafka.NewProducer(cfg.Brokers(), []string{cfg.KafkaNotificationTopic, cfg.KafkaAuditTopic}, log)
	a.Producer.DeadLetter = a.deadLetter
	a.Publisher = kafka.NewAsyncPublisher(a.Producer, publishBuffer, log)
	a.Publisher.DeadLetter = a.deadLetter

	if len(cfg.NotifyRecipients) > 0 {
		mail, err := notify.NewMailSink(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
		}, cfg.NotifyRecipients, log)
		if err != nil {
			log.Warn("email notifications disabled: %v", err)
		} else {
			a.Mail = mail
		}
	}

	notifier := notify.Multi{notify.LogSink{Log: log}, a.Hub}
	auditor := audit.Multi{audit.LogSink{Log: log}, audit.StoreSink{Store: st, Log: log}}
	if a.Producer.Enabled() {
		// Mail is sent by the notification consumer so slow SMTP never
		// holds up a request.
		notifier = append(notifier, notify.KafkaSink{Producer: a.Publisher, Topic: cfg.KafkaNotificationTopic, Log: log})
		auditor = append(auditor, audit.KafkaSink{Producer: a.Publisher, Topic: cfg.KafkaAuditTopic, Log: log})
	} else if a.Mail != nil {
		a.mailQueue = notify.NewAsync(a.Mail, 64, log)
		notifier = append(notifier, a.mailQueue)
	}

	a.Coordinator = assignment.New(assignment.Options{
		Store:    st,
		Capacity: capacity.NewTracker(cfg.DefaultCounselorCapacity),
		Notifier: notifier,
		Auditor:  auditor,
		Metrics:  a.Metrics,
		Log:      log,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	case "postgres":
		conn, err := db.Open(ctx, cfg.DBConnString())
		if err != nil {
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		log.Info("Database connected and migrated")
		return store.NewPostgresStore(conn), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NotificationConsumer reads notification events back off Kafka and emails
// them. It is disabled when Kafka or mail is not configured.
func (a *App) NotificationConsumer() *kafka.Consumer {
	var brokers []string
	if a.Mail != nil {
		brokers = a.Config.Brokers()
	}
	c := kafka.NewConsumer(brokers, a.Config.KafkaNotificationTopic, a.Config.KafkaConsumerGroup, a.Log)
	c.DeadLetter = a.deadLetter
	c.Register(kafka.EventNotification, func(_ context.Context, ev kafka.Event) error {
		return a.Mail.Send(notify.FromEvent(ev))
	})
	return c
}

// deadLetter records a message Kafka could not deliver or process.
func (a *App) deadLetter(topic, key string, payload []byte, err error) {
	a.Metrics.IncDeadLetter(topic)
	entry := audit.Entry("system", audit.ActionDeadLetter, "KAFKA_MESSAGE", key,
		fmt.Sprintf("topic=%s error=%v payload=%s", topic, err, payload))
	audit.StoreSink{Store: a.Store, Log: a.Log}.Record(context.Background(), entry)
}

// Close drains queued publishes and mail for up to closeTimeout, then
// releases the producer and store.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var firstErr error
	if err := a.Publisher.Close(ctx); err != nil {
		a.Log.Warn("Kafka publish queue not drained, remaining messages were dropped: %v", err)
		firstErr = err
	}
	if a.mailQueue != nil {
		if err := a.mailQueue.Close(ctx); err != nil {
			a.Log.Warn("notification mail queue not drained: %v", err)
		}
	}
	if err := a.Producer.Close(); err != nil {
		a.Log.Error("Error closing Kafka producer: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
