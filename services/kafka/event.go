package kafka

import (
	"time"

	"lead-routing/models"
)

// Event types carried in the "event" field of every message.
const (
	EventNotification = "lead.notification"
	EventAudit        = "lead.audit"
)

// Event is the JSON envelope published on the notification and audit topics.
type Event struct {
	Event         string             `json:"event"`
	InstitutionID string             `json:"institution_id,omitempty"`
	Message       string             `json:"message,omitempty"`
	Audit         *models.AuditEntry `json:"audit,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}
