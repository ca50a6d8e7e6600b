package queue

import (
	"context"
	"testing"
	"time"

	"lead-routing/errors"
	"lead-routing/logger"
	"lead-routing/models"
	"lead-routing/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func ids(entries []models.QueueEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.LeadID
	}
	return out
}

func key(tier int, score float64, minute int) models.RankKey {
	return models.RankKey{Tier: tier, Score: score, CreatedAt: t0.Add(time.Duration(minute) * time.Minute)}
}

func TestInsert_Ordering(t *testing.T) {
	var q []models.QueueEntry
	q, _ = Insert(q, "low-1", key(1, 10, 0))
	q, _ = Insert(q, "urgent", key(4, 40, 1))
	q, _ = Insert(q, "low-2", key(1, 10, 2))
	assert.Equal(t, []string{"urgent", "low-1", "low-2"}, ids(q))

	q, _ = Insert(q, "low-hi-score", key(1, 50, 3))
	assert.Equal(t, []string{"urgent", "low-hi-score", "low-1", "low-2"}, ids(q))

	for i, e := range q {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestInsert_Idempotent(t *testing.T) {
	q, inserted := Insert(nil, "a", key(2, 0, 0))
	require.True(t, inserted)
	q, inserted = Insert(q, "a", key(4, 0, 0))
	assert.False(t, inserted)
	assert.Equal(t, []string{"a"}, ids(q))
}

func TestMove_Clamps(t *testing.T) {
	var q []models.QueueEntry
	for i, id := range []string{"a", "b", "c", "d"} {
		q, _ = Insert(q, id, key(2, 0, i))
	}

	moved, ok := Move(q, "d", 2)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "d", "b", "c"}, ids(moved))

	moved, _ = Move(q, "b", -5)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(moved))

	moved, _ = Move(q, "a", 99)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(moved))

	_, ok = Move(q, "zzz", 1)
	assert.False(t, ok)
}

func TestManualPlacementIsStickyAcrossInserts(t *testing.T) {
	var q []models.QueueEntry
	q, _ = Insert(q, "hi", key(3, 0, 0))
	q, _ = Insert(q, "lo", key(1, 0, 1))
	q, _ = Move(q, "lo", 1)
	require.Equal(t, []string{"lo", "hi"}, ids(q))

	q, _ = Insert(q, "mid", key(2, 0, 2))
	assert.Equal(t, []string{"lo", "hi", "mid"}, ids(q))
}

func TestSort_Stable(t *testing.T) {
	q := []models.QueueEntry{
		{LeadID: "x", Key: key(2, 5, 1)},
		{LeadID: "y", Key: key(2, 5, 1)},
		{LeadID: "z", Key: key(3, 0, 9)},
	}
	assert.Equal(t, []string{"z", "x", "y"}, ids(Sort(q)))
}

type fixture struct {
	ctx   context.Context
	store *store.MemoryStore
	queue *Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.SaveInstitution(ctx, models.Institution{ID: "inst", Name: "Inst", IsActive: true}))
	return &fixture{ctx: ctx, store: s, queue: New(logger.NewDefault())}
}

func (f *fixture) addQueued(t *testing.T, id string, p models.Priority, minute int) {
	t.Helper()
	l := &models.Lead{
		ID: id, InstitutionID: "inst", FirstName: id, Email: id + "@x.io", Phone: "+15550001",
		CourseInterest: "MBA", Priority: p, Status: models.StatusQueued,
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		if err := tx.SaveLead(f.ctx, l); err != nil {
			return err
		}
		return f.queue.Enqueue(f.ctx, tx, "inst", id, l.RankKey())
	}))
}

func TestQueue_DequeueFront(t *testing.T) {
	f := newFixture(t)
	f.addQueued(t, "l1", models.PriorityLow, 0)
	f.addQueued(t, "u", models.PriorityUrgent, 1)
	f.addQueued(t, "l2", models.PriorityLow, 2)

	var got []string
	for {
		var id string
		var ok bool
		require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
			var err error
			id, ok, err = f.queue.DequeueFront(f.ctx, tx, "inst")
			return err
		}))
		if !ok {
			break
		}
		got = append(got, id)
	}
	assert.Equal(t, []string{"u", "l1", "l2"}, got)
}

func TestQueue_EnqueueUnknownInstitution(t *testing.T) {
	f := newFixture(t)
	err := f.store.InTx(f.ctx, func(tx store.Tx) error {
		return f.queue.Enqueue(f.ctx, tx, "missing", "x", key(1, 0, 0))
	})
	assert.True(t, errors.IsKind(err, errors.NotFound))
}

func TestQueue_WorkingCopyDroppedOnWrite(t *testing.T) {
	f := newFixture(t)
	f.addQueued(t, "a", models.PriorityMedium, 0)

	n, err := f.queue.Size(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.addQueued(t, "b", models.PriorityMedium, 1)
	n, err = f.queue.Size(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pos, err := f.queue.Positions(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, pos)
}

func TestQueue_RemoveAndReposition(t *testing.T) {
	f := newFixture(t)
	for i, id := range []string{"a", "b", "c"} {
		f.addQueued(t, id, models.PriorityMedium, i)
	}

	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		removed, err := f.queue.Remove(f.ctx, tx, "inst", "b")
		assert.True(t, removed)
		return err
	}))
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		return f.queue.Reposition(f.ctx, tx, "inst", "c", 1)
	}))

	entries, err := f.queue.Load(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(entries))

	c, err := f.store.GetLead(f.ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, *c.QueuePosition)

	err = f.store.InTx(f.ctx, func(tx store.Tx) error {
		return f.queue.Reposition(f.ctx, tx, "inst", "b", 1)
	})
	assert.True(t, errors.IsKind(err, errors.Internal))
}

func TestQueue_HealthCheck(t *testing.T) {
	f := newFixture(t)
	f.addQueued(t, "a", models.PriorityMedium, 0)

	h, err := f.queue.HealthCheck(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.True(t, h.InSync)
	assert.Equal(t, models.QueueHealthy, h.Status)
	assert.Equal(t, 1, h.InMemorySize)
	assert.Equal(t, 1, h.PersistedCount)

	// a QUEUED lead written behind the queue's back
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		return tx.SaveLead(f.ctx, &models.Lead{ID: "stray", InstitutionID: "inst", Status: models.StatusQueued, CreatedAt: t0})
	}))

	h, err = f.queue.HealthCheck(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.False(t, h.InSync)
	assert.Equal(t, models.QueueWarning, h.Status)
	assert.Equal(t, 1, h.InMemorySize)
	assert.Equal(t, 2, h.PersistedCount)
	assert.Contains(t, h.Detail, "stray")

	// the mismatch is reported, never repaired
	entries, err := f.store.LoadQueue(f.ctx, "inst")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(entries))
}

func TestQueue_Rebuild(t *testing.T) {
	f := newFixture(t)
	f.addQueued(t, "lo", models.PriorityLow, 0)
	f.addQueued(t, "hi", models.PriorityHigh, 1)
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		return f.queue.Reposition(f.ctx, tx, "inst", "lo", 1)
	}))

	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		leads, err := tx.FindLeads(f.ctx, "inst", models.StatusQueued)
		if err != nil {
			return err
		}
		_, err = f.queue.Rebuild(f.ctx, tx, "inst", leads)
		return err
	}))

	entries, err := f.queue.Load(f.ctx, f.store, "inst")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "lo"}, ids(entries))
}
