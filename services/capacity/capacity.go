// Package capacity derives counselor workload from the leads they actively
// hold. Nothing is cached: every answer is counted from the reader passed in,
// which inside a transaction makes check-and-assign atomic.
package capacity

import (
	"context"
	"fmt"

	"lead-routing/errors"
	"lead-routing/models"
	"lead-routing/store"
)

const DefaultMaxCapacity = 10

type Tracker struct {
	defaultCapacity int
}

// NewTracker uses defaultCapacity for counselors without their own limit.
func NewTracker(defaultCapacity int) *Tracker {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultMaxCapacity
	}
	return &Tracker{defaultCapacity: defaultCapacity}
}

func (t *Tracker) CapacityOf(c models.Counselor) int {
	if c.MaxCapacity > 0 {
		return c.MaxCapacity
	}
	return t.defaultCapacity
}

// CheckMember returns InvalidArgument unless the counselor belongs to the
// institution.
func CheckMember(c models.Counselor, institutionID string) error {
	if c.InstitutionID != institutionID {
		return errors.NewInvalidArgumentError(fmt.Sprintf("counselor %s is not a member of institution %s", c.ID, institutionID))
	}
	return nil
}

// Remaining returns how many more leads the counselor can take. Inactive
// counselors have none.
func (t *Tracker) Remaining(ctx context.Context, r store.Reader, c models.Counselor) (int, error) {
	if !c.IsActive {
		return 0, nil
	}
	n, err := r.CountActiveLeads(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if left := t.CapacityOf(c) - n; left > 0 {
		return left, nil
	}
	return 0, nil
}

// CheckAvailable returns InvalidArgument for a non-member and
// CounselorUnavailable when the counselor is inactive or full.
func (t *Tracker) CheckAvailable(ctx context.Context, r store.Reader, c models.Counselor, institutionID string) error {
	if err := CheckMember(c, institutionID); err != nil {
		return err
	}
	if !c.IsActive {
		return errors.NewCounselorUnavailableError(fmt.Sprintf("counselor %s is not active", c.ID))
	}
	left, err := t.Remaining(ctx, r, c)
	if err != nil {
		return err
	}
	if left == 0 {
		return errors.NewCounselorUnavailableError(fmt.Sprintf("counselor %s is at maximum capacity", c.ID))
	}
	return nil
}

// IsAvailable reports whether the counselor is active, a member of the
// institution, and below capacity.
func (t *Tracker) IsAvailable(ctx context.Context, r store.Reader, counselorID, institutionID string) (bool, error) {
	c, err := r.GetCounselor(ctx, counselorID)
	if err != nil {
		return false, err
	}
	err = t.CheckAvailable(ctx, r, c, institutionID)
	if err == nil {
		return true, nil
	}
	if errors.IsKind(err, errors.InvalidArgument) || errors.IsKind(err, errors.CounselorUnavailable) {
		return false, nil
	}
	return false, err
}

func (t *Tracker) Workload(ctx context.Context, r store.Reader, c models.Counselor) (models.CounselorWorkload, error) {
	n, err := r.CountActiveLeads(ctx, c.ID)
	if err != nil {
		return models.CounselorWorkload{}, err
	}
	limit := t.CapacityOf(c)
	w := models.CounselorWorkload{
		CounselorID:           c.ID,
		CounselorName:         c.Name,
		CounselorEmail:        c.Email,
		CurrentLeadCount:      n,
		MaxCapacity:           limit,
		UtilizationPercentage: float64(n) / float64(limit) * 100,
		Status:                models.Busy,
	}
	if n < limit {
		w.Status = models.Available
	}
	return w, nil
}

func (t *Tracker) WorkloadOf(ctx context.Context, r store.Reader, counselorID string) (models.CounselorWorkload, error) {
	c, err := r.GetCounselor(ctx, counselorID)
	if err != nil {
		return models.CounselorWorkload{}, err
	}
	return t.Workload(ctx, r, c)
}

// Workloads covers every counselor of the institution.
func (t *Tracker) Workloads(ctx context.Context, r store.Reader, institutionID string) ([]models.CounselorWorkload, error) {
	counselors, err := r.ListCounselors(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.CounselorWorkload, 0, len(counselors))
	for _, c := range counselors {
		w, err := t.Workload(ctx, r, c)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
