package assignment

import (
	"context"
	"fmt"
	"time"

	"lead-routing/errors"
	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/store"
)

// DefaultCleanupAge is how long closed leads are kept when no age is given.
const DefaultCleanupAge = 90 * 24 * time.Hour

// DeleteLead removes a lead for good. A queued lead leaves the queue first
// and the others shift up; an assigned lead frees its counselor's slot.
func (c *Coordinator) DeleteLead(ctx context.Context, actorID, leadID string) (err error) {
	defer c.observe("delete_lead", time.Now(), &err)

	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	return c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err := tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status == models.StatusQueued {
			if _, err := c.queue.Remove(ctx, tx, institutionID, lead.ID); err != nil {
				return err
			}
			out.queueTouched = true
		}
		if err := tx.DeleteLead(ctx, lead.ID); err != nil {
			return err
		}
		out.audit(actorID, audit.ActionDelete, audit.EntityLead, lead.ID, "Deleted lead: "+lead.Email)
		if lead.AssignedCounselorID != nil && lead.Status.IsActive() {
			out.notify(fmt.Sprintf("Lead deleted, slot freed for counselor %s: %s", *lead.AssignedCounselorID, lead.FullName()))
		}
		return nil
	})
}

// CleanupCompletedLeads deletes the institution's COMPLETED and REJECTED
// leads closed more than olderThan ago, returning how many went.
func (c *Coordinator) CleanupCompletedLeads(ctx context.Context, actorID, institutionID string, olderThan time.Duration) (removed int, err error) {
	defer c.observe("cleanup_completed", time.Now(), &err)

	if olderThan < 0 {
		return 0, errors.NewInvalidArgumentError("cleanup age cannot be negative")
	}
	cutoff := c.now().Add(-olderThan)

	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		removed = 0
		leads, err := tx.FindLeads(ctx, institutionID, "")
		if err != nil {
			return err
		}
		for _, lead := range leads {
			if !lead.Status.IsTerminal() || lead.CompletedAt == nil || !lead.CompletedAt.Before(cutoff) {
				continue
			}
			if err := tx.DeleteLead(ctx, lead.ID); err != nil {
				return err
			}
			removed++
		}
		if removed > 0 {
			out.audit(actorID, audit.ActionCleanup, audit.EntityInstitution, institutionID,
				fmt.Sprintf("Removed %d completed leads closed before %s", removed, cutoff.Format(time.RFC3339)))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.log.With("institution", institutionID).Info("cleanup removed %d leads closed before %s", removed, cutoff.Format(time.RFC3339))
	return removed, nil
}
