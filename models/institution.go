package models

import "time"

// Institution is the tenant scope owning one queue and one set of counselors.
type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RankKey orders queue entries: higher tier, then higher score, then earlier creation.
type RankKey struct {
	Tier      int       `json:"tier"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Before reports whether k ranks strictly ahead of other.
func (k RankKey) Before(other RankKey) bool {
	if k.Tier != other.Tier {
		return k.Tier > other.Tier
	}
	if k.Score != other.Score {
		return k.Score > other.Score
	}
	return k.CreatedAt.Before(other.CreatedAt)
}

// QueueEntry is one lead id in an institution queue together with the key it
// was ranked by. Position is 1-based.
type QueueEntry struct {
	LeadID   string  `json:"lead_id"`
	Key      RankKey `json:"key"`
	Position int     `json:"position"`
}

// LeadQueueInfo is a read-only row of an institution's queue status.
type LeadQueueInfo struct {
	Position int     `json:"position"`
	LeadID   string  `json:"lead_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Score    float64 `json:"score"`
	Priority string  `json:"priority"`
	Source   string  `json:"source,omitempty"`
	Course   string  `json:"course_interest,omitempty"`

	// EstimatedWait assumes 30 minutes per lead shared across available counselors.
	EstimatedWait string `json:"estimated_wait"`
}

// QueueStatus summarises an institution's queue for dashboards.
type QueueStatus struct {
	InstitutionID           string          `json:"institution_id"`
	InstitutionName         string          `json:"institution_name"`
	TotalLeadsInQueue       int             `json:"total_leads_in_queue"`
	AvailableCounselors     int             `json:"available_counselors"`
	BusyCounselors          int             `json:"busy_counselors"`
	EstimatedProcessingTime string          `json:"estimated_processing_time"`
	QueuedLeads             []LeadQueueInfo `json:"queued_leads"`
	LastUpdated             time.Time       `json:"last_updated"`
}

// QueueHealthStatus is advisory; a mismatch is never repaired automatically.
type QueueHealthStatus string

const (
	QueueHealthy QueueHealthStatus = "OK"
	QueueWarning QueueHealthStatus = "WARNING"
)

// QueueHealth compares the cached working queue with durable storage.
type QueueHealth struct {
	InstitutionID  string            `json:"institution_id"`
	InMemorySize   int               `json:"in_memory_size"`
	PersistedCount int               `json:"persisted_count"`
	InSync         bool              `json:"in_sync"`
	Status         QueueHealthStatus `json:"status"`
	Detail         string            `json:"detail,omitempty"`
}

// AuditEntry is one fire-and-forget audit record.
type AuditEntry struct {
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	Timestamp  time.Time `json:"timestamp"`
}
