package models

import (
	"strings"
	"time"
)

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	StatusNew        LeadStatus = "NEW"
	StatusQueued     LeadStatus = "QUEUED"
	StatusAssigned   LeadStatus = "ASSIGNED"
	StatusInProgress LeadStatus = "IN_PROGRESS"
	StatusContacted  LeadStatus = "CONTACTED"
	StatusFollowUp   LeadStatus = "FOLLOW_UP"
	StatusOnHold     LeadStatus = "ON_HOLD"
	StatusCompleted  LeadStatus = "COMPLETED"
	StatusRejected   LeadStatus = "REJECTED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []LeadStatus{
	StatusNew, StatusQueued, StatusAssigned, StatusInProgress, StatusContacted,
	StatusFollowUp, StatusOnHold, StatusCompleted, StatusRejected,
}

// ActiveStatuses count against a counselor's capacity.
var ActiveStatuses = []LeadStatus{StatusAssigned, StatusInProgress, StatusContacted, StatusFollowUp}

// IsActive reports whether the status counts against counselor capacity.
func (s LeadStatus) IsActive() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusContacted, StatusFollowUp:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the lead's lifecycle.
func (s LeadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

func (s LeadStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ParseStatus is case-insensitive and reports false for unknown values.
func ParseStatus(s string) (LeadStatus, bool) {
	st := LeadStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Priority is the lead's priority tier. The zero value is "unset".
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Tier returns 1 (LOW) through 4 (URGENT), or 0 for unknown values.
func (p Priority) Tier() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	return p, p.Tier() > 0
}

// LeadSource is the channel a lead arrived through.
type LeadSource string

const (
	SourceReferral      LeadSource = "REFERRAL"
	SourceWebsite       LeadSource = "WEBSITE"
	SourceWalkIn        LeadSource = "WALK_IN"
	SourcePhoneCall     LeadSource = "PHONE_CALL"
	SourceSocialMedia   LeadSource = "SOCIAL_MEDIA"
	SourceAdvertisement LeadSource = "ADVERTISEMENT"
	SourceEmailCampaign LeadSource = "EMAIL_CAMPAIGN"
)

// NormalizeSource upper-cases and converts spaces/dashes so "walk-in" and
// "Walk In" both become WALK_IN. Unknown values pass through unchanged.
func NormalizeSource(s string) LeadSource {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return LeadSource(s)
}

// Lead represents a prospective applicant routed through an institution queue.
type Lead struct {
	ID             string     `json:"id"`
	InstitutionID  string     `json:"institution_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	CourseInterest string     `json:"course_interest"`
	Source         LeadSource `json:"source,omitempty"`
	Priority       Priority   `json:"priority,omitempty"`
	BudgetRange    string     `json:"budget_range,omitempty"`
	Qualification  string     `json:"qualification,omitempty"`
	Notes          string     `json:"notes,omitempty"`

	Status              LeadStatus `json:"status"`
	Score               float64    `json:"score"`
	QueuePosition       *int       `json:"queue_position,omitempty"`
	AssignedCounselorID *string    `json:"assigned_counselor_id,omitempty"`
	AssignedAt          *time.Time `json:"assigned_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// IsAssignedTo reports whether the lead is actively held by counselorID.
func (l *Lead) IsAssignedTo(counselorID string) bool {
	return l.Status.IsActive() && l.AssignedCounselorID != nil && *l.AssignedCounselorID == counselorID
}

// RankKey returns the queue ordering key for the lead.
func (l *Lead) RankKey() RankKey {
	return RankKey{Tier: l.Priority.Tier(), Score: l.Score, CreatedAt: l.CreatedAt}
}

// Clone returns a deep copy, so pointer fields can be mutated independently.
func (l Lead) Clone() Lead {
	c := l
	if l.QueuePosition != nil {
		p := *l.QueuePosition
		c.QueuePosition = &p
	}
	if l.AssignedCounselorID != nil {
		id := *l.AssignedCounselorID
		c.AssignedCounselorID = &id
	}
	if l.AssignedAt != nil {
		t := *l.AssignedAt
		c.AssignedAt = &t
	}
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// LeadResponse is the structured response for API responses
type LeadResponse struct {
	ID                  string  `json:"id"`
	InstitutionID       string  `json:"institution_id"`
	Name                string  `json:"name"`
	Email               string  `json:"email"`
	Phone               string  `json:"phone"`
	CourseInterest      string  `json:"course_interest"`
	Source              string  `json:"source,omitempty"`
	Priority            string  `json:"priority,omitempty"`
	Status              string  `json:"status"`
	Score               float64 `json:"score"`
	QueuePosition       *int    `json:"queue_position,omitempty"`
	AssignedCounselorID *string `json:"assigned_counselor_id,omitempty"`
	AssignedAt          *string `json:"assigned_at,omitempty"`
	CompletedAt         *string `json:"completed_at,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

// ToResponse converts Lead to LeadResponse with formatted timestamps
func (l *Lead) ToResponse() LeadResponse {
	return LeadResponse{
		ID:                  l.ID,
		InstitutionID:       l.InstitutionID,
		Name:                l.FullName(),
		Email:               l.Email,
		Phone:               l.Phone,
		CourseInterest:      l.CourseInterest,
		Source:              string(l.Source),
		Priority:            string(l.Priority),
		Status:              string(l.Status),
		Score:               l.Score,
		QueuePosition:       l.QueuePosition,
		AssignedCounselorID: l.AssignedCounselorID,
		AssignedAt:          formatTime(l.AssignedAt),
		CompletedAt:         formatTime(l.CompletedAt),
		CreatedAt:           l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           l.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
