package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"postgres"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// StoreBackend selects "postgres" or "memory".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	// Applied to counselors without their own max capacity.
	DefaultCounselorCapacity int `env:"DEFAULT_COUNSELOR_CAPACITY" envDefault:"10"`

	// Kafka
	KafkaBrokers           string `env:"KAFKA_BROKERS"`
	KafkaNotificationTopic string `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"leads.notifications"`
	KafkaAuditTopic        string `env:"KAFKA_AUDIT_TOPIC" envDefault:"leads.audit"`
	KafkaConsumerGroup     string `env:"KAFKA_CONSUMER_GROUP" envDefault:"lead-routing-notifier"`

	SMTPHost         string   `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort         int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string   `env:"SMTP_USER"`
	SMTPPass         string   `env:"SMTP_PASS"`
	EmailFrom        string   `env:"EMAIL_FROM"`
	NotifyRecipients []string `env:"NOTIFY_RECIPIENTS" envSeparator:","`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"leadqueue"`
}

var AppConfig Config

// envLocations are tried in order; the first readable file wins.
var envLocations = []string{
	".env",              // project root
	"config/.env",       // config subdirectory
	"../config/.env",    // one level up
	"../../config/.env", // two levels up
}

func LoadConfig() error {
	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := Parse()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Parse reads the process environment into a Config and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", c.StoreBackend)
	}
	if c.DefaultCounselorCapacity <= 0 {
		return fmt.Errorf("DEFAULT_COUNSELOR_CAPACITY must be positive, got %d", c.DefaultCounselorCapacity)
	}
	return nil
}

// Brokers splits KafkaBrokers, dropping blanks. Empty means Kafka is disabled.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func GetDBConnString() string {
	return AppConfig.DBConnString()
}

func (c Config) DBConnString() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}
