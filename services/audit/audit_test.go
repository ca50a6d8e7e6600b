package audit

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"lead-routing/logger"
	"lead-routing/models"
	"lead-routing/services/kafka"
	"lead-routing/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAppender struct{}

func (failingAppender) AppendAudit(context.Context, models.AuditEntry) error {
	return stderrors.New("disk full")
}

func TestStoreSink(t *testing.T) {
	s := store.NewMemoryStore()
	StoreSink{Store: s}.Record(context.Background(), Entry("c-1", ActionAssign, EntityLead, "l-1", "assigned"))

	entries := s.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "c-1", entries[0].ActorID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestStoreSink_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: logger.DEBUG, Output: &buf})
	StoreSink{Store: failingAppender{}, Log: log}.Record(context.Background(), Entry("", ActionSubmit, EntityLead, "l", ""))
	assert.Contains(t, buf.String(), "audit write failed: disk full")
}

type capturePublisher struct {
	key   string
	value interface{}
}

func (c *capturePublisher) Publish(_ context.Context, _, key string, value interface{}) error {
	c.key, c.value = key, value
	return nil
}

func TestKafkaSinkAndMulti(t *testing.T) {
	p := &capturePublisher{}
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: logger.DEBUG, Output: &buf})

	Multi{KafkaSink{Producer: p, Topic: "leads.audit"}, LogSink{Log: log}, nil}.
		Record(context.Background(), Entry("", ActionTransfer, EntityLead, "l-7", "c-1 -> c-2"))

	assert.Equal(t, "l-7", p.key)
	ev := p.value.(kafka.Event)
	assert.Equal(t, kafka.EventAudit, ev.Event)
	assert.Equal(t, "system", ev.Audit.ActorID)
	assert.Contains(t, buf.String(), "actor=system entity=LEAD/l-7 audit LEAD_TRANSFERRED: c-1 -> c-2")
}
