package assignment

import (
	"context"
	"fmt"
	"time"

	"lead-routing/errors"
	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/services/capacity"
	"lead-routing/store"
)

// Assignment modes reported to metrics.
const (
	modeManual   = "manual"
	modePull     = "pull"
	modeBulk     = "bulk"
	modeTransfer = "transfer"
	modeAuto     = "auto"
)

// assignable reports whether a lead may be handed to a counselor by an
// operator: it must not already hold a slot or be closed.
func assignable(s models.LeadStatus) bool {
	return s == models.StatusNew || s == models.StatusQueued || s == models.StatusOnHold
}

// AssignManually hands a specific lead to a specific counselor.
func (c *Coordinator) AssignManually(ctx context.Context, actorID, leadID, counselorID string) (lead models.Lead, err error) {
	defer c.observe("assign_manually", time.Now(), &err)

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
		if !assignable(lead.Status) {
			return errors.NewInvalidStateError(fmt.Sprintf("Cannot assign lead in status %s", lead.Status))
		}
		counselor, err := tx.GetCounselor(ctx, counselorID)
		if err != nil {
			return err
		}
		if err := c.capacity.CheckAvailable(ctx, tx, counselor, institutionID); err != nil {
			return err
		}

		out.queueTouched = lead.Status == models.StatusQueued
		if err := c.assign(ctx, tx, &lead, counselor.ID); err != nil {
			return err
		}
		out.assigned(modeManual)
		out.audit(actorID, audit.ActionAssign, audit.EntityLead, lead.ID, "Assigned to counselor: "+counselor.ID)
		out.notify(fmt.Sprintf("Lead assigned to %s: %s", counselor.Name, lead.FullName()))
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// PullNextForCounselor assigns the front of the institution queue to the
// counselor. An empty queue yields a nil lead and no error.
func (c *Coordinator) PullNextForCounselor(ctx context.Context, actorID, counselorID, institutionID string) (lead *models.Lead, err error) {
	defer c.observe("pull_next", time.Now(), &err)

	unlock := c.lock(ctx, institutionID)
	defer unlock()
	return c.pullLocked(ctx, actorID, counselorID, institutionID, modePull)
}

// pullLocked runs a pull in its own transaction. The caller holds the
// institution lock.
func (c *Coordinator) pullLocked(ctx context.Context, actorID, counselorID, institutionID, mode string) (lead *models.Lead, err error) {
	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		counselor, err := tx.GetCounselor(ctx, counselorID)
		if err != nil {
			return err
		}
		if err := c.capacity.CheckAvailable(ctx, tx, counselor, institutionID); err != nil {
			return err
		}
		lead, err = c.pullNext(ctx, tx, institutionID, counselor.ID)
		if err != nil || lead == nil {
			return err
		}

		out.queueTouched = true
		out.assigned(mode)
		out.audit(actorID, audit.ActionAssign, audit.EntityLead, lead.ID, "Pulled from queue by counselor: "+counselor.ID)
		out.notify(fmt.Sprintf("Next lead auto-assigned to %s: %s", counselor.Name, lead.FullName()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// BulkAssign assigns leads to one counselor in the given order until the
// counselor is full. Leads that are unknown, belong to another institution,
// or are not assignable are skipped. A counselor with no free slots gets an
// empty result.
func (c *Coordinator) BulkAssign(ctx context.Context, actorID string, leadIDs []string, counselorID string) (assigned []models.Lead, err error) {
	defer c.observe("bulk_assign", time.Now(), &err)

	counselor, err := c.store.GetCounselor(ctx, counselorID)
	if err != nil {
		return nil, err
	}
	institutionID := counselor.InstitutionID
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	log := c.log.With("institution", institutionID, "counselor", counselorID)
	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		assigned = []models.Lead{}
		counselor, err := tx.GetCounselor(ctx, counselorID)
		if err != nil {
			return err
		}
		if err := capacity.CheckMember(counselor, institutionID); err != nil {
			return err
		}
		remaining, err := c.capacity.Remaining(ctx, tx, counselor)
		if err != nil {
			return err
		}
		if remaining == 0 {
			log.Info("counselor has no free slots, nothing to bulk assign")
			return nil
		}

		seen := make(map[string]bool, len(leadIDs))
		for _, id := range leadIDs {
			if remaining == 0 {
				log.Info("counselor reached capacity, stopping bulk assignment")
				break
			}
			if seen[id] {
				continue
			}
			seen[id] = true

			lead, err := tx.GetLead(ctx, id)
			if errors.IsKind(err, errors.NotFound) {
				log.Warn("skipping unknown lead %s", id)
				continue
			}
			if err != nil {
				return err
			}
			if lead.InstitutionID != institutionID {
				log.Warn("skipping lead %s from institution %s", id, lead.InstitutionID)
				continue
			}
			if !assignable(lead.Status) {
				log.Debug("skipping lead %s in status %s", id, lead.Status)
				continue
			}

			if lead.Status == models.StatusQueued {
				out.queueTouched = true
			}
			if err := c.assign(ctx, tx, &lead, counselor.ID); err != nil {
				return err
			}
			remaining--
			assigned = append(assigned, lead)
			out.assigned(modeBulk)
			out.audit(actorID, audit.ActionAssign, audit.EntityLead, lead.ID, "Bulk assigned to counselor: "+counselor.ID)
		}
		if len(assigned) > 0 {
			out.notify(fmt.Sprintf("Bulk assigned %d leads to %s", len(assigned), counselor.Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// Transfer moves an assigned lead from one counselor to another, then offers
// the next queued lead to the counselor who gave it up. The offer is best
// effort and never fails the transfer.
func (c *Coordinator) Transfer(ctx context.Context, actorID, leadID, fromCounselorID, toCounselorID, reason string) (lead models.Lead, err error) {
	defer c.observe("transfer", time.Now(), &err)

	if fromCounselorID == toCounselorID {
		return models.Lead{}, errors.NewInvalidArgumentError("Cannot transfer lead to the same counselor")
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
		if !lead.IsAssignedTo(fromCounselorID) {
			return errors.NewInvalidArgumentError(fmt.Sprintf("Lead is not assigned to counselor %s", fromCounselorID))
		}
		from, err := tx.GetCounselor(ctx, fromCounselorID)
		if err != nil {
			return err
		}
		to, err := tx.GetCounselor(ctx, toCounselorID)
		if err != nil {
			return err
		}
		if err := capacity.CheckMember(from, institutionID); err != nil {
			return err
		}
		if err := c.capacity.CheckAvailable(ctx, tx, to, institutionID); err != nil {
			return err
		}

		now := c.now()
		id := to.ID
		lead.AssignedCounselorID = &id
		lead.AssignedAt = &now
		lead.UpdatedAt = now
		if err := tx.SaveLead(ctx, &lead); err != nil {
			return err
		}

		detail := fmt.Sprintf("Transferred from %s to %s", from.ID, to.ID)
		if reason != "" {
			detail += ": " + reason
		}
		out.assigned(modeTransfer)
		out.audit(actorID, audit.ActionTransfer, audit.EntityLead, lead.ID, detail)
		out.notify(fmt.Sprintf("Lead transferred from %s to %s: %s", from.Name, to.Name, lead.FullName()))
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}

	next, perr := c.pullLocked(ctx, actorID, fromCounselorID, institutionID, modePull)
	switch {
	case errors.IsKind(perr, errors.CounselorUnavailable):
		c.log.With("counselor", fromCounselorID).Debug("not offering next lead after transfer: %v", perr)
	case perr != nil:
		c.log.With("institution", institutionID, "counselor", fromCounselorID).Warn("offering next lead after transfer: %v", perr)
	case next != nil:
		c.log.With("institution", institutionID, "counselor", fromCounselorID).Info("lead %s offered after transfer", next.ID)
	}
	return lead, nil
}

// AutoAssign gives the next queued lead to each available counselor of the
// institution, one lead per counselor, stopping when the queue runs dry.
func (c *Coordinator) AutoAssign(ctx context.Context, actorID, institutionID string) (assigned []models.Lead, err error) {
	defer c.observe("auto_assign", time.Now(), &err)

	unlock := c.lock(ctx, institutionID)
	defer unlock()

	err = c.atomically(ctx, institutionID, func(tx store.Tx, out *outbox) error {
		assigned = nil
		counselors, err := tx.ListCounselors(ctx, institutionID)
		if err != nil {
			return err
		}
		for _, counselor := range counselors {
			left, err := c.capacity.Remaining(ctx, tx, counselor)
			if err != nil {
				return err
			}
			if left == 0 {
				continue
			}
			lead, err := c.pullNext(ctx, tx, institutionID, counselor.ID)
			if err != nil {
				return err
			}
			if lead == nil {
				break
			}
			assigned = append(assigned, *lead)
			out.queueTouched = true
			out.assigned(modeAuto)
			out.audit(actorID, audit.ActionAssign, audit.EntityLead, lead.ID, "Auto-assigned to counselor: "+counselor.ID)
			out.notify(fmt.Sprintf("Lead auto-assigned to %s: %s", counselor.Name, lead.FullName()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(assigned) > 0 {
		c.log.With("institution", institutionID).Info("auto-assigned %d leads", len(assigned))
	}
	return assigned, nil
}
