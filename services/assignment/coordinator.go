// Package assignment is the lead queueing and assignment coordinator. Every
// mutation of a lead, its institution queue, or a counselor's load goes
// through a Coordinator.
//
// Work on one institution is serialised by an in-process lock and runs in a
// single store transaction that also takes the institution row lock, so the
// capacity check and the assignment write commit together. Notifications and
// audit entries are emitted only after the transaction commits and the
// institution is unlocked, so a slow sink never holds up the queue.
package assignment

import (
	"context"
	"time"

	"lead-routing/errors"
	"lead-routing/logger"
	"lead-routing/metrics"
	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/services/capacity"
	"lead-routing/services/notify"
	"lead-routing/services/queue"
	"lead-routing/services/scoring"
	"lead-routing/store"

	"github.com/google/uuid"
)

type Options struct {
	Store    store.Store
	Queue    *queue.Queue
	Capacity *capacity.Tracker
	Scorer   *scoring.Scorer
	Notifier notify.Sink
	Auditor  audit.Sink
	Metrics  metrics.Collector
	Log      *logger.Logger
	Now      func() time.Time
	NewID    func() string
}

type Coordinator struct {
	store    store.Store
	queue    *queue.Queue
	capacity *capacity.Tracker
	scorer   *scoring.Scorer
	notifier notify.Sink
	auditor  audit.Sink
	metrics  metrics.Collector
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
	locks    *institutionLocks
}

// New fills unset options with working defaults; only Store is required.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		store:    opts.Store,
		queue:    opts.Queue,
		capacity: opts.Capacity,
		scorer:   opts.Scorer,
		notifier: opts.Notifier,
		auditor:  opts.Auditor,
		metrics:  opts.Metrics,
		log:      opts.Log,
		now:      opts.Now,
		newID:    opts.NewID,
		locks:    newInstitutionLocks(),
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.queue == nil {
		c.queue = queue.New(c.log)
	}
	if c.capacity == nil {
		c.capacity = capacity.NewTracker(capacity.DefaultMaxCapacity)
	}
	if c.scorer == nil {
		c.scorer = &scoring.Scorer{Now: c.now}
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.auditor == nil {
		c.auditor = audit.Nop{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	return c
}

// outbox collects side effects of a transaction; they are released only
// after commit.
type outbox struct {
	notes        []string
	audits       []models.AuditEntry
	assignments  []string
	queueTouched bool
	// queueSize is read after commit, before the institution is unlocked.
	queueSize int
}

func (o *outbox) notify(msg string) {
	o.notes = append(o.notes, msg)
}

func (o *outbox) audit(actor, action, entityType, entityID, detail string) {
	o.audits = append(o.audits, audit.Entry(actor, action, entityType, entityID, detail))
}

func (o *outbox) assigned(mode string) {
	o.assignments = append(o.assignments, mode)
}

// atomically runs fn in one transaction holding the institution row lock.
// The caller must hold the institution's in-process lock (see lock); the
// outbox is released when it is unlocked.
func (c *Coordinator) atomically(ctx context.Context, institutionID string, fn func(tx store.Tx, out *outbox) error) error {
	out := &outbox{}
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockInstitution(ctx, institutionID); err != nil {
			return err
		}
		return fn(tx, out)
	})
	if err != nil {
		if errors.IsKind(err, errors.CounselorUnavailable) {
			c.metrics.IncCapacityRejection()
		}
		return err
	}
	if out.queueTouched {
		n, err := c.queue.Size(ctx, c.store, institutionID)
		if err != nil {
			c.log.Warn("reading queue size for %s: %v", institutionID, err)
			out.queueTouched = false
		}
		out.queueSize = n
	}
	c.locks.hold(institutionID, out)
	return nil
}

func (c *Coordinator) flush(ctx context.Context, institutionID string, out *outbox) {
	for _, e := range out.audits {
		c.auditor.Record(ctx, e)
	}
	for _, msg := range out.notes {
		c.notifier.Notify(ctx, notify.Notification{InstitutionID: institutionID, Message: msg, Timestamp: c.now()})
	}
	for _, mode := range out.assignments {
		c.metrics.IncAssignment(mode)
	}
	if out.queueTouched {
		c.metrics.SetQueueSize(institutionID, out.queueSize)
	}
}

// observe records an operation's latency and outcome. Use with a named error
// result: defer c.observe("op", time.Now(), &err).
func (c *Coordinator) observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = errors.KindOf(*err).String()
	}
	c.metrics.ObserveOperation(op, result, time.Since(start).Seconds())
}

// institutionOf resolves the institution a lead belongs to. A lead never
// changes institution, so this can be read before taking the lock.
func (c *Coordinator) institutionOf(ctx context.Context, leadID string) (string, error) {
	lead, err := c.store.GetLead(ctx, leadID)
	if err != nil {
		return "", err
	}
	return lead.InstitutionID, nil
}

// assign hands lead to counselor inside tx, taking it off the queue if it is
// still there. Availability must already have been checked in the same
// transaction.
func (c *Coordinator) assign(ctx context.Context, tx store.Tx, lead *models.Lead, counselorID string) error {
	if lead.Status == models.StatusQueued {
		if _, err := c.queue.Remove(ctx, tx, lead.InstitutionID, lead.ID); err != nil {
			return err
		}
	}
	now := c.now()
	id := counselorID
	lead.Status = models.StatusAssigned
	lead.AssignedCounselorID = &id
	lead.AssignedAt = &now
	lead.CompletedAt = nil
	lead.QueuePosition = nil
	lead.UpdatedAt = now
	return tx.SaveLead(ctx, lead)
}

// pullNext dequeues the front lead for an already-checked counselor. It
// returns nil when the queue is empty.
func (c *Coordinator) pullNext(ctx context.Context, tx store.Tx, institutionID, counselorID string) (*models.Lead, error) {
	leadID, ok, err := c.queue.DequeueFront(ctx, tx, institutionID)
	if err != nil || !ok {
		return nil, err
	}
	lead, err := tx.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status != models.StatusQueued {
		return nil, errors.NewInternalError("queue front lead " + leadID + " is " + string(lead.Status) + ", not QUEUED")
	}
	if err := c.assign(ctx, tx, &lead, counselorID); err != nil {
		return nil, err
	}
	return &lead, nil
}
