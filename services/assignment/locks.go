package assignment

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// institutionLock guards one institution. pending holds the outboxes of
// transactions committed while the lock was held.
type institutionLock struct {
	mu      sync.Mutex
	pending []*outbox
}

// institutionLocks serialises operations per institution while letting
// different institutions proceed in parallel.
type institutionLocks struct {
	m *xsync.Map[string, *institutionLock]
}

func newInstitutionLocks() *institutionLocks {
	return &institutionLocks{m: xsync.NewMap[string, *institutionLock]()}
}

func (l *institutionLocks) get(institutionID string) *institutionLock {
	lock, _ := l.m.LoadOrStore(institutionID, &institutionLock{})
	return lock
}

// hold queues a committed outbox for release on unlock. The caller must
// hold the institution's lock.
func (l *institutionLocks) hold(institutionID string, out *outbox) {
	lock := l.get(institutionID)
	lock.pending = append(lock.pending, out)
}

// lock blocks until the institution is free. The returned func unlocks it
// and then flushes the effects committed meanwhile, so sinks never run while
// the institution is held.
func (c *Coordinator) lock(ctx context.Context, institutionID string) func() {
	lock := c.locks.get(institutionID)
	lock.mu.Lock()
	return func() {
		pending := lock.pending
		lock.pending = nil
		lock.mu.Unlock()
		// effects outlive a cancelled request
		ctx := context.WithoutCancel(ctx)
		for _, out := range pending {
			c.flush(ctx, institutionID, out)
		}
	}
}
