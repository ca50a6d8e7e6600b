// Package queue maintains each institution's ordered lead queue.
//
// The queue is persisted through store.Tx.SaveQueue, which rewrites positions
// in the same transaction as the mutation. Reads go through a per-institution
// working copy that is dropped on every write. Callers serialise work on an
// institution (see assignment.Coordinator), so the working copy is never
// repopulated while a write for the same institution is in flight.
package queue

import (
	"context"
	"fmt"
	"sort"

	"lead-routing/errors"
	"lead-routing/logger"
	"lead-routing/models"
	"lead-routing/store"

	"github.com/puzpuzpuz/xsync/v4"
)

type Queue struct {
	working *xsync.Map[string, []models.QueueEntry]
	log     *logger.Logger
}

func New(log *logger.Logger) *Queue {
	if log == nil {
		log = logger.Default()
	}
	return &Queue{
		working: xsync.NewMap[string, []models.QueueEntry](),
		log:     log,
	}
}

// Invalidate drops the working copy of an institution's queue.
func (q *Queue) Invalidate(institutionID string) {
	q.working.Delete(institutionID)
}

// Load returns the working copy, reading it from r on a miss.
func (q *Queue) Load(ctx context.Context, r store.Reader, institutionID string) ([]models.QueueEntry, error) {
	if entries, ok := q.working.Load(institutionID); ok {
		return append([]models.QueueEntry(nil), entries...), nil
	}
	entries, err := r.LoadQueue(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	q.working.Store(institutionID, entries)
	return append([]models.QueueEntry(nil), entries...), nil
}

func (q *Queue) Size(ctx context.Context, r store.Reader, institutionID string) (int, error) {
	entries, err := q.Load(ctx, r, institutionID)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Positions maps lead id to 1-based queue position.
func (q *Queue) Positions(ctx context.Context, r store.Reader, institutionID string) (map[string]int, error) {
	entries, err := q.Load(ctx, r, institutionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.LeadID] = e.Position
	}
	return out, nil
}

func (q *Queue) save(ctx context.Context, tx store.Tx, institutionID string, entries []models.QueueEntry) error {
	q.Invalidate(institutionID)
	return tx.SaveQueue(ctx, institutionID, entries)
}

// Enqueue inserts leadID in rank order. Enqueueing a lead that is already
// queued is a no-op.
func (q *Queue) Enqueue(ctx context.Context, tx store.Tx, institutionID, leadID string, key models.RankKey) error {
	entries, err := tx.LoadQueue(ctx, institutionID)
	if err != nil {
		return err
	}
	entries, inserted := Insert(entries, leadID, key)
	if !inserted {
		q.log.Debug("lead %s already queued for institution %s", leadID, institutionID)
		return nil
	}
	return q.save(ctx, tx, institutionID, entries)
}

// DequeueFront removes and returns the front lead id. ok is false on an
// empty queue, in which case nothing is written.
func (q *Queue) DequeueFront(ctx context.Context, tx store.Tx, institutionID string) (leadID string, ok bool, err error) {
	entries, err := tx.LoadQueue(ctx, institutionID)
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	leadID = entries[0].LeadID
	if err := q.save(ctx, tx, institutionID, entries[1:]); err != nil {
		return "", false, err
	}
	return leadID, true, nil
}

// Remove drops leadID and reports whether it was queued.
func (q *Queue) Remove(ctx context.Context, tx store.Tx, institutionID, leadID string) (bool, error) {
	entries, err := tx.LoadQueue(ctx, institutionID)
	if err != nil {
		return false, err
	}
	entries, removed := Remove(entries, leadID)
	if !removed {
		return false, nil
	}
	return true, q.save(ctx, tx, institutionID, entries)
}

// Reposition moves leadID to newPosition (1-based, clamped). The placement
// holds until the lead is next removed and re-enqueued.
func (q *Queue) Reposition(ctx context.Context, tx store.Tx, institutionID, leadID string, newPosition int) error {
	entries, err := tx.LoadQueue(ctx, institutionID)
	if err != nil {
		return err
	}
	entries, moved := Move(entries, leadID, newPosition)
	if !moved {
		return errors.NewInternalError(fmt.Sprintf("lead %s is QUEUED but missing from institution %s queue", leadID, institutionID))
	}
	return q.save(ctx, tx, institutionID, entries)
}

// Rebuild replaces the queue with the given leads in rank order, dropping any
// manual placement.
func (q *Queue) Rebuild(ctx context.Context, tx store.Tx, institutionID string, leads []models.Lead) ([]models.QueueEntry, error) {
	entries := make([]models.QueueEntry, 0, len(leads))
	for i := range leads {
		entries = append(entries, models.QueueEntry{LeadID: leads[i].ID, Key: leads[i].RankKey()})
	}
	entries = Sort(entries)
	if err := q.save(ctx, tx, institutionID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HealthCheck compares the working queue with the leads persisted as QUEUED.
// A mismatch is reported as a warning and left for an operator to resolve.
func (q *Queue) HealthCheck(ctx context.Context, r store.Reader, institutionID string) (models.QueueHealth, error) {
	entries, err := q.Load(ctx, r, institutionID)
	if err != nil {
		return models.QueueHealth{}, err
	}
	queued, err := r.FindLeads(ctx, institutionID, models.StatusQueued)
	if err != nil {
		return models.QueueHealth{}, err
	}

	health := models.QueueHealth{
		InstitutionID:  institutionID,
		InMemorySize:   len(entries),
		PersistedCount: len(queued),
	}

	missing, extra := diff(entries, queued)
	health.InSync = health.InMemorySize == health.PersistedCount && len(missing) == 0 && len(extra) == 0
	if health.InSync {
		health.Status = models.QueueHealthy
		return health, nil
	}

	health.Status = models.QueueWarning
	health.Detail = fmt.Sprintf("queued leads missing from queue: %v; queue entries not QUEUED: %v", missing, extra)
	q.log.With("institution", institutionID).Warn("queue out of sync: in-memory=%d persisted=%d", health.InMemorySize, health.PersistedCount)
	return health, nil
}

func diff(entries []models.QueueEntry, queued []models.Lead) (missing, extra []string) {
	inQueue := make(map[string]bool, len(entries))
	for _, e := range entries {
		inQueue[e.LeadID] = true
	}
	persisted := make(map[string]bool, len(queued))
	for _, l := range queued {
		persisted[l.ID] = true
		if !inQueue[l.ID] {
			missing = append(missing, l.ID)
		}
	}
	for _, e := range entries {
		if !persisted[e.LeadID] {
			extra = append(extra, e.LeadID)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
