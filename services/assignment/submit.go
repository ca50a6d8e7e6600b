package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lead-routing/models"
	"lead-routing/services/audit"
	"lead-routing/store"
	"lead-routing/utils"
)

// SubmitLead validates, scores and queues a new lead. The returned lead is
// QUEUED with its queue position set.
func (c *Coordinator) SubmitLead(ctx context.Context, actorID string, in models.Lead) (lead models.Lead, err error) {
	defer c.observe("submit_lead", time.Now(), &err)

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.InstitutionID = strings.TrimSpace(in.InstitutionID)
	in.CourseInterest = strings.TrimSpace(in.CourseInterest)
	in.Priority = models.Priority(strings.ToUpper(strings.TrimSpace(string(in.Priority))))
	if err := utils.ValidateLead(&in); err != nil {
		return models.Lead{}, err
	}

	now := c.now()
	in.ID = c.newID()
	in.Phone = utils.NormalizePhone(in.Phone)
	if in.Source != "" {
		in.Source = models.NormalizeSource(string(in.Source))
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	in.Status = models.StatusNew
	in.AssignedCounselorID = nil
	in.AssignedAt = nil
	in.CompletedAt = nil
	in.QueuePosition = nil
	in.Score = c.scorer.Score(&in)

	unlock := c.lock(ctx, in.InstitutionID)
	defer unlock()

	err = c.atomically(ctx, in.InstitutionID, func(tx store.Tx, out *outbox) error {
		inst, err := tx.GetInstitution(ctx, in.InstitutionID)
		if err != nil {
			return err
		}
		in.Status = models.StatusQueued
		if err := tx.SaveLead(ctx, &in); err != nil {
			return err
		}
		if err := c.queue.Enqueue(ctx, tx, in.InstitutionID, in.ID, in.RankKey()); err != nil {
			return err
		}
		lead, err = tx.GetLead(ctx, in.ID)
		if err != nil {
			return err
		}

		out.queueTouched = true
		out.audit(actorID, audit.ActionSubmit, audit.EntityLead, lead.ID, "Created lead: "+lead.Email)
		out.notify(fmt.Sprintf("New lead created and queued: %s for %s", lead.FullName(), inst.Name))
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}

	c.log.With("institution", lead.InstitutionID, "lead", lead.ID).
		Info("lead queued at position %d with score %.1f", *lead.QueuePosition, lead.Score)
	return lead, nil
}
