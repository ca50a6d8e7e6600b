package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.DefaultCounselorCapacity)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Empty(t, cfg.Brokers())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DEFAULT_COUNSELOR_CAPACITY", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("NOTIFY_RECIPIENTS", "a@example.com,b@example.com")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 3, cfg.DefaultCounselorCapacity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.NotifyRecipients)
}

func TestParse_RejectsBadValues(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "mongo")
		_, err := Parse()
		require.Error(t, err)
	})
	t.Run("capacity", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("DEFAULT_COUNSELOR_CAPACITY", "0")
		_, err := Parse()
		require.Error(t, err)
	})
}

func TestDBConnString(t *testing.T) {
	cfg := Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "leads", DBSSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=leads sslmode=disable", cfg.DBConnString())
}
