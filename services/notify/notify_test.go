package notify

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"lead-routing/logger"
	"lead-routing/services/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func bufLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.New(logger.Config{Level: logger.DEBUG, Output: &buf}), &buf
}

type recordingSink struct{ got []Notification }

func (r *recordingSink) Notify(_ context.Context, n Notification) { r.got = append(r.got, n) }

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	Multi{a, nil, b}.Notify(context.Background(), Notification{Message: "x"})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestLogSink(t *testing.T) {
	log, buf := bufLogger()
	LogSink{Log: log}.Notify(context.Background(), Notification{InstitutionID: "inst-1", Message: "lead queued"})
	assert.Contains(t, buf.String(), "institution=inst-1 notification: lead queued")
}

type fakePublisher struct {
	topic, key string
	value      interface{}
	err        error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaSink(t *testing.T) {
	p := &fakePublisher{}
	KafkaSink{Producer: p, Topic: "leads.notifications"}.Notify(context.Background(), Notification{InstitutionID: "i", Message: "m"})
	assert.Equal(t, "leads.notifications", p.topic)
	assert.Equal(t, "i", p.key)
	ev := p.value.(kafka.Event)
	assert.Equal(t, kafka.EventNotification, ev.Event)
	assert.Equal(t, Notification{InstitutionID: "i", Message: "m"}, FromEvent(ev))

	log, buf := bufLogger()
	KafkaSink{Producer: &fakePublisher{err: stderrors.New("down")}, Log: log}.Notify(context.Background(), Notification{})
	assert.Contains(t, buf.String(), "notification publish failed")
}

func TestHub_PrunesSlowSubscribers(t *testing.T) {
	log, _ := bufLogger()
	h := NewHub(1, log)
	fast, cancelFast := h.Subscribe("inst")
	defer cancelFast()
	slow, _ := h.Subscribe("inst")
	other, cancelOther := h.Subscribe("elsewhere")
	defer cancelOther()

	h.Notify(context.Background(), Notification{InstitutionID: "inst", Message: "1"})
	assert.Equal(t, "1", (<-fast).Message)

	// slow never drains, so the second send overflows its buffer
	h.Notify(context.Background(), Notification{InstitutionID: "inst", Message: "2"})
	assert.Equal(t, 1, h.Subscribers("inst"))

	n, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, "1", n.Message)
	_, ok = <-slow
	assert.False(t, ok, "pruned subscriber channel is closed")

	assert.Equal(t, "2", (<-fast).Message)
	assert.Len(t, other, 0)
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub(0, nil)
	_, cancel := h.Subscribe("inst")
	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers("inst"))
}

type fakeSMTP struct {
	reject map[string]bool
	sent   []string
}

func (f *fakeSMTP) Send(_ string, to []string, msg io.WriterTo) error {
	if f.reject[to[0]] {
		return stderrors.New("550 mailbox unavailable")
	}
	var b strings.Builder
	msg.WriteTo(&b)
	f.sent = append(f.sent, to[0])
	return nil
}

func (f *fakeSMTP) Close() error { return nil }

func TestMailSink_PrunesBrokenRecipients(t *testing.T) {
	log, _ := bufLogger()
	smtp := &fakeSMTP{reject: map[string]bool{"gone@example.com": true}}
	s := &MailSink{
		from:       "queue@example.com",
		recipients: []string{"ops@example.com", "gone@example.com", "lead@example.com"},
		dial:       func() (gomail.SendCloser, error) { return smtp, nil },
		log:        log,
	}

	s.Notify(context.Background(), Notification{InstitutionID: "inst", Message: "3 leads waiting"})
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, smtp.sent)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, s.Recipients())
}

func TestNewMailSink_RequiresCredentials(t *testing.T) {
	_, err := NewMailSink(MailConfig{Host: "smtp", Port: 587}, nil, nil)
	require.Error(t, err)
	_, err = NewMailSink(MailConfig{Host: "smtp", Port: 587, User: "u"}, nil, nil)
	require.Error(t, err)
	s, err := NewMailSink(MailConfig{Host: "smtp", Port: 587, User: "u", Password: "p"}, []string{"a@b.io"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.io"}, s.Recipients())
}
