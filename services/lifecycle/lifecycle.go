// Package lifecycle holds the lead state machine. It only answers whether a
// status change is legal; the assignment coordinator applies the effects
// (queue membership, counselor slot, timestamps) of each transition.
package lifecycle

import (
	"fmt"
	"strings"

	"lead-routing/errors"
	"lead-routing/models"
)

var working = []models.LeadStatus{models.StatusInProgress, models.StatusContacted, models.StatusFollowUp}

var transitions = map[models.LeadStatus][]models.LeadStatus{
	models.StatusNew:    {models.StatusQueued, models.StatusAssigned},
	models.StatusQueued: {models.StatusAssigned, models.StatusOnHold, models.StatusNew},
	// ASSIGNED -> ASSIGNED is a transfer between counselors.
	models.StatusAssigned: append([]models.LeadStatus{
		models.StatusAssigned, models.StatusOnHold, models.StatusCompleted, models.StatusRejected,
	}, working...),
	models.StatusInProgress: append([]models.LeadStatus{models.StatusCompleted, models.StatusRejected}, working...),
	models.StatusContacted:  append([]models.LeadStatus{models.StatusCompleted, models.StatusRejected}, working...),
	models.StatusFollowUp:   append([]models.LeadStatus{models.StatusCompleted, models.StatusRejected}, working...),
	models.StatusOnHold:     {models.StatusQueued, models.StatusAssigned},
	models.StatusCompleted:  nil,
	models.StatusRejected:   nil,
}

// Next lists the statuses reachable from s in one step.
func Next(s models.LeadStatus) []models.LeadStatus {
	return append([]models.LeadStatus(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is a legal step. Staying in a
// working substate is allowed; the only other self-loop is ASSIGNED.
func CanTransition(from, to models.LeadStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Check returns an InvalidState error when from -> to is not legal. The
// message lists where the lead can go instead.
func Check(from, to models.LeadStatus) error {
	if !to.Valid() {
		return errors.NewInvalidArgumentError(fmt.Sprintf("unknown lead status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	next := Next(from)
	if len(next) == 0 {
		return errors.NewInvalidStateError(fmt.Sprintf("cannot move lead from %s to %s: %s is final", from, to, from))
	}
	allowed := make([]string, len(next))
	for i, s := range next {
		allowed[i] = string(s)
	}
	return errors.NewInvalidStateError(fmt.Sprintf("cannot move lead from %s to %s; allowed: %s",
		from, to, strings.Join(allowed, ", ")))
}

// CanComplete reports whether a lead in status s holds a counselor slot and
// can therefore be closed out.
func CanComplete(s models.LeadStatus) bool {
	return s.IsActive()
}
