package assignment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"lead-routing/logger"
	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/services/kafka"
	"lead-routing/services/notify"
	"lead-routing/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedNotifier blocks notifications for one institution once armed.
type gatedNotifier struct {
	institutionID string
	armed         atomic.Bool
	entered       chan struct{}
	release       chan struct{}
}

func (g *gatedNotifier) Notify(_ context.Context, n notify.Notification) {
	if !g.armed.Load() || n.InstitutionID != g.institutionID {
		return
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

// downBroker never acknowledges a publish.
type downBroker struct{ calls atomic.Int32 }

func (b *downBroker) Publish(ctx context.Context, _, _ string, _ interface{}) error {
	b.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

// within fails the test if fn does not return in d.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not finish within %s", what, d)
	}
}

func seedTwoInstitutions(t *testing.T, c *Coordinator, s store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, inst := range []string{"inst", "other"} {
		require.NoError(t, s.SaveInstitution(ctx, models.Institution{ID: inst, Name: inst, IsActive: true}))
		_, err := c.RegisterCounselor(ctx, models.Counselor{ID: "c-" + inst, InstitutionID: inst, Name: "C " + inst, IsActive: true, MaxCapacity: 5})
		require.NoError(t, err)
		for _, name := range []string{"asha", "ravi"} {
			_, err := c.SubmitLead(ctx, "admin", models.Lead{
				InstitutionID: inst, FirstName: name, Email: name + "@" + inst + ".example.com",
				Phone: "+15550100", CourseInterest: "MBA",
			})
			require.NoError(t, err)
		}
	}
}

func TestSlowNotifierDoesNotHoldInstitution(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	gate := &gatedNotifier{institutionID: "inst", entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(Options{Store: s, Notifier: gate, Log: logger.NewDefault()})
	seedTwoInstitutions(t, c, s)

	gate.armed.Store(true)
	pulled := make(chan error, 1)
	go func() {
		_, err := c.PullNextForCounselor(ctx, "c-inst", "c-inst", "inst")
		pulled <- err
	}()
	<-gate.entered

	// the pull has committed and is stuck delivering its notification
	within(t, time.Second, "queue size on the same institution", func() {
		n, err := c.GetQueueSize(ctx, "inst")
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
	})
	within(t, time.Second, "pull on another institution", func() {
		lead, err := c.PullNextForCounselor(ctx, "c-other", "c-other", "other")
		assert.NoError(t, err)
		assert.NotNil(t, lead)
	})

	close(gate.release)
	require.NoError(t, <-pulled)
}

func TestBrokerOutageDoesNotDelayOperations(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	broker := &downBroker{}
	pub := kafka.NewAsyncPublisher(broker, 64, logger.NewDefault())
	c := New(Options{
		Store:    s,
		Notifier: notify.KafkaSink{Producer: pub, Topic: "leads.notifications"},
		Auditor:  audit.KafkaSink{Producer: pub, Topic: "leads.audit"},
		Log:      logger.NewDefault(),
	})
	seedTwoInstitutions(t, c, s)

	within(t, 500*time.Millisecond, "pull on inst", func() {
		_, err := c.PullNextForCounselor(ctx, "c-inst", "c-inst", "inst")
		assert.NoError(t, err)
	})
	within(t, 500*time.Millisecond, "pull on other", func() {
		_, err := c.PullNextForCounselor(ctx, "c-other", "c-other", "other")
		assert.NoError(t, err)
	})
	assert.GreaterOrEqual(t, broker.calls.Load(), int32(1))

	closeCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pub.Close(closeCtx), context.DeadlineExceeded)
}
