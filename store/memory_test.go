package store

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"lead-routing/errors"
	"lead-routing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveInstitution(ctx, models.Institution{ID: "inst-1", Name: "North", IsActive: true}))
	require.NoError(t, s.SaveCounselor(ctx, models.Counselor{ID: "c-1", InstitutionID: "inst-1", Name: "Ana", IsActive: true}))
	return s
}

func newLead(id string, status models.LeadStatus, created time.Time) *models.Lead {
	return &models.Lead{
		ID: id, InstitutionID: "inst-1", FirstName: "F", Email: id + "@example.com",
		Phone: "+15550000", CourseInterest: "CS", Priority: models.PriorityMedium,
		Status: status, CreatedAt: created, UpdatedAt: created,
	}
}

func TestMemoryStore_PositionsDerivedFromQueue(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)
	now := time.Now()

	err := s.InTx(ctx, func(tx Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.SaveLead(ctx, newLead(id, models.StatusQueued, now)); err != nil {
				return err
			}
		}
		return tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "b"}, {LeadID: "a"}, {LeadID: "c"}})
	})
	require.NoError(t, err)

	queue, err := s.LoadQueue(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{queue[0].Position, queue[1].Position, queue[2].Position})

	b, err := s.GetLead(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, b.QueuePosition)
	assert.Equal(t, 1, *b.QueuePosition)

	// dropping "b" shifts the others up
	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		return tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "a"}, {LeadID: "c"}})
	}))
	b, _ = s.GetLead(ctx, "b")
	assert.Nil(t, b.QueuePosition)
	c, _ := s.GetLead(ctx, "c")
	assert.Equal(t, 2, *c.QueuePosition)
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)

	boom := stderrors.New("boom")
	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.SaveLead(ctx, newLead("x", models.StatusQueued, time.Now())); err != nil {
			return err
		}
		if err := tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "x"}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetLead(ctx, "x")
	assert.True(t, errors.IsKind(err, errors.NotFound))
	queue, err := s.LoadQueue(ctx, "inst-1")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestMemoryStore_SaveQueueRejectsDuplicatesAndUnknownLeads(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)

	err := s.InTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.SaveLead(ctx, newLead("a", models.StatusQueued, time.Now())))
		return tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "a"}, {LeadID: "a"}})
	})
	assert.True(t, errors.IsKind(err, errors.Internal))

	err = s.InTx(ctx, func(tx Tx) error {
		return tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "ghost"}})
	})
	assert.True(t, errors.IsKind(err, errors.Internal))
}

func TestMemoryStore_CountActiveLeads(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)
	counselor := "c-1"

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		for i, st := range []models.LeadStatus{
			models.StatusAssigned, models.StatusInProgress, models.StatusContacted,
			models.StatusFollowUp, models.StatusOnHold, models.StatusCompleted,
		} {
			l := newLead(string(rune('a'+i)), st, time.Now())
			l.AssignedCounselorID = &counselor
			if err := tx.SaveLead(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))

	n, err := s.CountActiveLeads(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMemoryStore_FindLeadsAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)
	base := time.Now()

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.SaveLead(ctx, newLead("late", models.StatusNew, base.Add(time.Minute))))
		return tx.SaveLead(ctx, newLead("early", models.StatusQueued, base))
	}))

	all, err := s.FindLeads(ctx, "inst-1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "early", all[0].ID)

	queued, err := s.FindLeads(ctx, "inst-1", models.StatusQueued)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	_, err = s.LoadQueue(ctx, "nope")
	assert.True(t, errors.IsKind(err, errors.NotFound))
	_, err = s.GetCounselor(ctx, "nope")
	assert.True(t, errors.IsKind(err, errors.NotFound))
	err = s.SaveCounselor(ctx, models.Counselor{ID: "c-2", InstitutionID: "nope"})
	assert.True(t, errors.IsKind(err, errors.NotFound))
}

func TestMemoryStore_ReturnedLeadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)
	counselor := "c-1"
	l := newLead("a", models.StatusAssigned, time.Now())
	l.AssignedCounselorID = &counselor
	require.NoError(t, s.InTx(ctx, func(tx Tx) error { return tx.SaveLead(ctx, l) }))

	got, err := s.GetLead(ctx, "a")
	require.NoError(t, err)
	*got.AssignedCounselorID = "someone-else"

	again, _ := s.GetLead(ctx, "a")
	assert.Equal(t, "c-1", *again.AssignedCounselorID)
}

func TestMemoryStore_DeleteLead(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t)
	counselor := "c-1"
	now := time.Now()

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		done := newLead("done", models.StatusCompleted, now)
		done.AssignedCounselorID = &counselor
		require.NoError(t, tx.SaveLead(ctx, done))
		open := newLead("open", models.StatusAssigned, now.Add(time.Minute))
		open.AssignedCounselorID = &counselor
		require.NoError(t, tx.SaveLead(ctx, open))
		require.NoError(t, tx.SaveLead(ctx, newLead("waiting", models.StatusQueued, now)))
		return tx.SaveQueue(ctx, "inst-1", []models.QueueEntry{{LeadID: "waiting"}})
	}))

	mine, err := s.FindLeadsByCounselor(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "done", mine[0].ID)
	assert.Equal(t, "open", mine[1].ID)

	require.NoError(t, s.InTx(ctx, func(tx Tx) error { return tx.DeleteLead(ctx, "open") }))
	n, err := s.CountActiveLeads(ctx, "c-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	err = s.InTx(ctx, func(tx Tx) error { return tx.DeleteLead(ctx, "waiting") })
	assert.True(t, errors.IsKind(err, errors.Internal))
	err = s.InTx(ctx, func(tx Tx) error { return tx.DeleteLead(ctx, "ghost") })
	assert.True(t, errors.IsKind(err, errors.NotFound))

	_, err = s.GetLead(ctx, "waiting")
	assert.NoError(t, err)
}
