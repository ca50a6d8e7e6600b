package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lead-routing/errors"
	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/services/lifecycle"
	"lead-routing/store"
)

// Complete closes an assigned lead as COMPLETED or REJECTED. The counselor
// slot is freed but no queued lead is pulled in its place.
func (c *Coordinator) Complete(ctx context.Context, actorID, leadID string, final models.LeadStatus, notes string) (lead models.Lead, err error) {
	defer c.observe("complete", time.Now(), &err)

	if !final.IsTerminal() {
		return models.Lead{}, errors.NewInvalidArgumentError(fmt.Sprintf("final status must be COMPLETED or REJECTED, got %q", final))
	}
	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err = tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		return c.complete(ctx, tx, out, actorID, &lead, final, notes)
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (c *Coordinator) complete(ctx context.Context, tx store.Tx, out *outbox, actorID string, lead *models.Lead, final models.LeadStatus, notes string) error {
	if !lifecycle.CanComplete(lead.Status) {
		return errors.NewInvalidStateError("Cannot complete unassigned lead")
	}
	now := c.now()
	from := lead.Status
	lead.Status = final
	lead.CompletedAt = &now
	lead.UpdatedAt = now
	if notes = strings.TrimSpace(notes); notes != "" {
		if lead.Notes != "" {
			lead.Notes += "\n"
		}
		lead.Notes += notes
	}
	if err := tx.SaveLead(ctx, lead); err != nil {
		return err
	}
	out.audit(actorID, audit.ActionComplete, audit.EntityLead, lead.ID, fmt.Sprintf("Lead moved from %s to %s", from, final))
	return nil
}

// ChangeStatus moves a lead through the state machine, applying the queue and
// counselor effects of the transition. Terminal statuses go through Complete
// semantics and ASSIGNED from NEW or QUEUED needs AssignManually, which names
// the counselor.
func (c *Coordinator) ChangeStatus(ctx context.Context, actorID, leadID string, to models.LeadStatus) (lead models.Lead, err error) {
	defer c.observe("change_status", time.Now(), &err)

	if !to.Valid() {
		return models.Lead{}, errors.NewInvalidArgumentError(fmt.Sprintf("unknown lead status %q", to))
	}
	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err = tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		from := lead.Status
		if from == to {
			return nil
		}
		if to.IsTerminal() {
			return c.complete(ctx, tx, out, actorID, &lead, to, "")
		}
		if err := lifecycle.Check(from, to); err != nil {
			return err
		}

		switch to {
		case models.StatusAssigned:
			if from != models.StatusOnHold {
				return errors.NewInvalidArgumentError("a counselor is required; assign the lead instead")
			}
			if lead.AssignedCounselorID == nil {
				return errors.NewInvalidStateError("Lead on hold has no counselor to resume with")
			}
			counselor, err := tx.GetCounselor(ctx, *lead.AssignedCounselorID)
			if err != nil {
				return err
			}
			if err := c.capacity.CheckAvailable(ctx, tx, counselor, institutionID); err != nil {
				return err
			}
			if err := c.assign(ctx, tx, &lead, counselor.ID); err != nil {
				return err
			}
			out.assigned(modeManual)

		case models.StatusQueued:
			lead.Status = models.StatusQueued
			lead.AssignedCounselorID = nil
			lead.AssignedAt = nil
			lead.UpdatedAt = c.now()
			if err := tx.SaveLead(ctx, &lead); err != nil {
				return err
			}
			if err := c.queue.Enqueue(ctx, tx, institutionID, lead.ID, lead.RankKey()); err != nil {
				return err
			}
			out.queueTouched = true
			out.notify("Lead re-queued: " + lead.FullName())

		default:
			// ON_HOLD keeps any counselor; NEW only comes from QUEUED.
			if from == models.StatusQueued {
				if _, err := c.queue.Remove(ctx, tx, institutionID, lead.ID); err != nil {
					return err
				}
				out.queueTouched = true
			}
			lead.Status = to
			lead.UpdatedAt = c.now()
			if err := tx.SaveLead(ctx, &lead); err != nil {
				return err
			}
		}

		out.audit(actorID, audit.ActionStatusChange, audit.EntityLead, lead.ID, fmt.Sprintf("Lead moved from %s to %s", from, to))
		lead, err = tx.GetLead(ctx, lead.ID)
		return err
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// UpdatePriority changes a lead's priority and rescores it. A queued lead is
// re-ranked, which discards any manual placement it had.
func (c *Coordinator) UpdatePriority(ctx context.Context, actorID, leadID string, priority models.Priority) (lead models.Lead, err error) {
	defer c.observe("update_priority", time.Now(), &err)

	priority, ok := models.ParsePriority(string(priority))
	if !ok {
		return models.Lead{}, errors.NewInvalidArgumentError("invalid priority")
	}
	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err = tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status.IsTerminal() {
			return errors.NewInvalidStateError(fmt.Sprintf("Cannot change priority of %s lead", lead.Status))
		}
		old := lead.Priority
		lead.Priority = priority
		lead.Score = c.scorer.Score(&lead)
		lead.UpdatedAt = c.now()
		if err := tx.SaveLead(ctx, &lead); err != nil {
			return err
		}
		if lead.Status == models.StatusQueued {
			if _, err := c.queue.Remove(ctx, tx, institutionID, lead.ID); err != nil {
				return err
			}
			if err := c.queue.Enqueue(ctx, tx, institutionID, lead.ID, lead.RankKey()); err != nil {
				return err
			}
			out.queueTouched = true
		}

		out.audit(actorID, audit.ActionPriorityChange, audit.EntityLead, lead.ID,
			fmt.Sprintf("Priority changed from %s to %s, score %.1f", old, priority, lead.Score))
		lead, err = tx.GetLead(ctx, lead.ID)
		return err
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// MoveInQueue places a queued lead at newPosition (1-based, clamped to the
// queue bounds). The placement sticks until the lead leaves the queue.
func (c *Coordinator) MoveInQueue(ctx context.Context, actorID, leadID string, newPosition int) (lead models.Lead, err error) {
	defer c.observe("move_in_queue", time.Now(), &err)

	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err = tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != models.StatusQueued {
			return errors.NewInvalidStateError("Lead is not in queue")
		}
		if err := c.queue.Reposition(ctx, tx, institutionID, lead.ID, newPosition); err != nil {
			return err
		}
		lead, err = tx.GetLead(ctx, lead.ID)
		if err != nil {
			return err
		}
		out.queueTouched = true
		out.audit(actorID, audit.ActionReposition, audit.EntityLead, lead.ID,
			fmt.Sprintf("Moved to queue position %d", *lead.QueuePosition))
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// RemoveFromQueue withdraws a queued lead back to NEW.
func (c *Coordinator) RemoveFromQueue(ctx context.Context, actorID, leadID string) (lead models.Lead, err error) {
	defer c.observe("remove_from_queue", time.Now(), &err)

	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		lead, err = tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != models.StatusQueued {
			return errors.NewInvalidStateError("Lead is not in queue")
		}
		if _, err := c.queue.Remove(ctx, tx, institutionID, lead.ID); err != nil {
			return err
		}
		lead.Status = models.StatusNew
		lead.QueuePosition = nil
		lead.UpdatedAt = c.now()
		if err := tx.SaveLead(ctx, &lead); err != nil {
			return err
		}
		out.queueTouched = true
		out.audit(actorID, audit.ActionWithdraw, audit.EntityLead, lead.ID, "Removed from queue")
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// RebuildQueue rescores every QUEUED lead of the institution and rewrites the
// queue in rank order. Manual placements are discarded.
func (c *Coordinator) RebuildQueue(ctx context.Context, actorID, institutionID string) (entries []models.QueueEntry, err error) {
	defer c.observe("rebuild_queue", time.Now(), &err)

	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		queued, err := tx.FindLeads(ctx, institutionID, models.StatusQueued)
		if err != nil {
			return err
		}
		for i := range queued {
			queued[i].Score = c.scorer.Score(&queued[i])
			if err := tx.SaveLead(ctx, &queued[i]); err != nil {
				return err
			}
		}
		entries, err = c.queue.Rebuild(ctx, tx, institutionID, queued)
		if err != nil {
			return err
		}
		out.queueTouched = true
		out.audit(actorID, audit.ActionQueueRebuild, audit.EntityQueue, institutionID,
			fmt.Sprintf("Rebuilt queue with %d leads", len(entries)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
