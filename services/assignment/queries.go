package assignment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lead-routing/errors"
	"lead-routing/models"
)

// AvgProcessingMinutes is the assumed handling time per queued lead.
const AvgProcessingMinutes = 30

const waitingForCounselor = "Waiting for counselor availability"

// EstimateWait formats the expected wait for a lead at the given 1-based
// queue position.
func EstimateWait(position, availableCounselors int) string {
	if availableCounselors <= 0 {
		return waitingForCounselor
	}
	minutes := position * AvgProcessingMinutes / availableCounselors
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	s := fmt.Sprintf("%d hours", minutes/60)
	if m := minutes % 60; m > 0 {
		s += fmt.Sprintf(" %d minutes", m)
	}
	return s
}

// counselorCounts splits the institution's active counselors into available
// and busy.
func (c *Coordinator) counselorCounts(ctx context.Context, institutionID string) (available, busy int, err error) {
	counselors, err := c.store.ListCounselors(ctx, institutionID)
	if err != nil {
		return 0, 0, err
	}
	for _, counselor := range counselors {
		if !counselor.IsActive {
			continue
		}
		left, err := c.capacity.Remaining(ctx, c.store, counselor)
		if err != nil {
			return 0, 0, err
		}
		if left > 0 {
			available++
		} else {
			busy++
		}
	}
	return available, busy, nil
}

// GetQueueStatus lists the institution's queue with wait estimates.
func (c *Coordinator) GetQueueStatus(ctx context.Context, institutionID string) (models.QueueStatus, error) {
	inst, err := c.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return models.QueueStatus{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	entries, err := c.queue.Load(ctx, c.store, institutionID)
	if err != nil {
		return models.QueueStatus{}, err
	}
	available, busy, err := c.counselorCounts(ctx, institutionID)
	if err != nil {
		return models.QueueStatus{}, err
	}

	status := models.QueueStatus{
		InstitutionID:           inst.ID,
		InstitutionName:         inst.Name,
		TotalLeadsInQueue:       len(entries),
		AvailableCounselors:     available,
		BusyCounselors:          busy,
		EstimatedProcessingTime: EstimateWait(len(entries), available),
		QueuedLeads:             make([]models.LeadQueueInfo, 0, len(entries)),
		LastUpdated:             c.now(),
	}
	for _, e := range entries {
		lead, err := c.store.GetLead(ctx, e.LeadID)
		if err != nil {
			return models.QueueStatus{}, errors.E(errors.Internal, "queue entry "+e.LeadID, err)
		}
		status.QueuedLeads = append(status.QueuedLeads, models.LeadQueueInfo{
			Position:      e.Position,
			LeadID:        lead.ID,
			Name:          lead.FullName(),
			Email:         lead.Email,
			Score:         lead.Score,
			Priority:      string(lead.Priority),
			Source:        string(lead.Source),
			Course:        lead.CourseInterest,
			EstimatedWait: EstimateWait(e.Position, available),
		})
	}
	return status, nil
}

// WaitingTimeEstimates maps each queue position to its wait estimate.
func (c *Coordinator) WaitingTimeEstimates(ctx context.Context, institutionID string) (map[int]string, error) {
	status, err := c.GetQueueStatus(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(status.QueuedLeads))
	for _, info := range status.QueuedLeads {
		out[info.Position] = info.EstimatedWait
	}
	return out, nil
}

func (c *Coordinator) GetQueueSize(ctx context.Context, institutionID string) (int, error) {
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return 0, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()
	return c.queue.Size(ctx, c.store, institutionID)
}

// GetCounselorWorkloads reports load for every counselor of the institution,
// counted fresh on each call.
func (c *Coordinator) GetCounselorWorkloads(ctx context.Context, institutionID string) ([]models.CounselorWorkload, error) {
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return c.capacity.Workloads(ctx, c.store, institutionID)
}

// CounselorWorkload reports one counselor's load.
func (c *Coordinator) CounselorWorkload(ctx context.Context, counselorID string) (models.CounselorWorkload, error) {
	return c.capacity.WorkloadOf(ctx, c.store, counselorID)
}

// CounselorAvailable reports whether the counselor could take a lead of the
// institution right now.
func (c *Coordinator) CounselorAvailable(ctx context.Context, counselorID, institutionID string) (bool, error) {
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return false, err
	}
	return c.capacity.IsAvailable(ctx, c.store, counselorID, institutionID)
}

// AvailableCounselors lists the institution's active counselors that are
// below capacity.
func (c *Coordinator) AvailableCounselors(ctx context.Context, institutionID string) (models.AvailableCounselors, error) {
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return models.AvailableCounselors{}, err
	}
	counselors, err := c.store.ListCounselors(ctx, institutionID)
	if err != nil {
		return models.AvailableCounselors{}, err
	}
	out := models.AvailableCounselors{
		AvailableCounselors: []models.CounselorWorkload{},
		TotalCounselors:     len(counselors),
	}
	for _, counselor := range counselors {
		if !counselor.IsActive {
			continue
		}
		w, err := c.capacity.Workload(ctx, c.store, counselor)
		if err != nil {
			return models.AvailableCounselors{}, err
		}
		if w.Status == models.Available {
			out.AvailableCounselors = append(out.AvailableCounselors, w)
		}
	}
	out.TotalAvailable = len(out.AvailableCounselors)
	return out, nil
}

// LeadsByCounselor lists every lead assigned to the counselor, closed ones
// included, oldest first.
func (c *Coordinator) LeadsByCounselor(ctx context.Context, counselorID string) ([]models.Lead, error) {
	counselor, err := c.store.GetCounselor(ctx, counselorID)
	if err != nil {
		return nil, err
	}
	unlock := c.lock(ctx, counselor.InstitutionID)
	defer unlock()
	return c.store.FindLeadsByCounselor(ctx, counselorID)
}

// QueueHealthCheck compares the working queue with persisted QUEUED leads.
// A mismatch is reported, not repaired; RebuildQueue is the operator's fix.
func (c *Coordinator) QueueHealthCheck(ctx context.Context, institutionID string) (models.QueueHealth, error) {
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return models.QueueHealth{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()

	health, err := c.queue.HealthCheck(ctx, c.store, institutionID)
	if err != nil {
		return models.QueueHealth{}, err
	}
	c.metrics.SetQueueInSync(institutionID, health.InSync)
	c.metrics.SetQueueSize(institutionID, health.InMemorySize)
	return health, nil
}

func (c *Coordinator) GetLead(ctx context.Context, leadID string) (models.Lead, error) {
	institutionID, err := c.institutionOf(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()
	return c.store.GetLead(ctx, leadID)
}

// ListLeads lists an institution's leads, optionally filtered by status.
func (c *Coordinator) ListLeads(ctx context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	if status != "" && !status.Valid() {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unknown lead status %q", status))
	}
	if _, err := c.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	unlock := c.lock(ctx, institutionID)
	defer unlock()
	return c.store.FindLeads(ctx, institutionID, status)
}

// RegisterInstitution creates or updates an institution. A missing id is
// generated.
func (c *Coordinator) RegisterInstitution(ctx context.Context, inst models.Institution) (models.Institution, error) {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return models.Institution{}, errors.NewInvalidArgumentError("Institution name is required")
	}
	if inst.ID == "" {
		inst.ID = c.newID()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = c.now()
	}
	unlock := c.lock(ctx, inst.ID)
	defer unlock()
	if err := c.store.SaveInstitution(ctx, inst); err != nil {
		return models.Institution{}, err
	}
	return inst, nil
}

// RegisterCounselor creates or updates a counselor of an existing
// institution. A zero MaxCapacity falls back to the configured default. A
// counselor holding active leads cannot move to another institution.
func (c *Coordinator) RegisterCounselor(ctx context.Context, counselor models.Counselor) (models.Counselor, error) {
	counselor.Name = strings.TrimSpace(counselor.Name)
	if counselor.Name == "" {
		return models.Counselor{}, errors.NewInvalidArgumentError("Counselor name is required")
	}
	if counselor.MaxCapacity < 0 {
		return models.Counselor{}, errors.NewInvalidArgumentError("max capacity cannot be negative")
	}
	if counselor.ID == "" {
		counselor.ID = c.newID()
	}

	// Moving a counselor touches the capacity of both institutions.
	institutions := []string{counselor.InstitutionID}
	existing, err := c.store.GetCounselor(ctx, counselor.ID)
	if err != nil && !errors.IsKind(err, errors.NotFound) {
		return models.Counselor{}, err
	}
	if err == nil && existing.InstitutionID != counselor.InstitutionID {
		institutions = append(institutions, existing.InstitutionID)
		sort.Strings(institutions)
	}
	for _, id := range institutions {
		unlock := c.lock(ctx, id)
		defer unlock()
	}

	if len(institutions) > 1 {
		active, err := c.store.CountActiveLeads(ctx, counselor.ID)
		if err != nil {
			return models.Counselor{}, err
		}
		if active > 0 {
			return models.Counselor{}, errors.NewInvalidStateError(fmt.Sprintf(
				"counselor %s holds %d active leads in institution %s; complete or transfer them first",
				counselor.ID, active, existing.InstitutionID))
		}
	}
	if err := c.store.SaveCounselor(ctx, counselor); err != nil {
		return models.Counselor{}, err
	}
	return counselor, nil
}
