// Package audit records who did what to which lead. Recording is fire and
// forget: failures are logged and never reach the caller.
package audit

import (
	"context"
	"time"

	"lead-routing/logger"
	"lead-routing/models"
	"lead-routing/services/kafka"
)

// Actions written by the coordinator.
const (
	ActionSubmit         = "LEAD_SUBMITTED"
	ActionAssign         = "LEAD_ASSIGNED"
	ActionTransfer       = "LEAD_TRANSFERRED"
	ActionComplete       = "LEAD_COMPLETED"
	ActionStatusChange   = "LEAD_STATUS_CHANGED"
	ActionPriorityChange = "LEAD_PRIORITY_CHANGED"
	ActionReposition     = "LEAD_REPOSITIONED"
	ActionWithdraw       = "LEAD_WITHDRAWN"
	ActionQueueRebuild   = "QUEUE_REBUILT"
	ActionDelete         = "LEAD_DELETED"
	ActionCleanup        = "COMPLETED_LEADS_CLEANED"
	ActionDeadLetter     = "DEAD_LETTER"

	EntityLead        = "LEAD"
	EntityQueue       = "QUEUE"
	EntityInstitution = "INSTITUTION"
)

type Sink interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

type Multi []Sink

func (m Multi) Record(ctx context.Context, entry models.AuditEntry) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, entry)
		}
	}
}

type Nop struct{}

func (Nop) Record(context.Context, models.AuditEntry) {}

type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Record(_ context.Context, e models.AuditEntry) {
	log := s.Log
	if log == nil {
		log = logger.Default()
	}
	log.With("actor", e.ActorID, "entity", e.EntityType+"/"+e.EntityID).Info("audit %s: %s", e.Action, e.Detail)
}

type appender interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}

// StoreSink appends entries to the audit_log table through the store.
type StoreSink struct {
	Store appender
	Log   *logger.Logger
}

func (s StoreSink) Record(ctx context.Context, e models.AuditEntry) {
	if err := s.Store.AppendAudit(ctx, e); err != nil {
		warn(s.Log, "audit write failed: %v", err)
	}
}

type publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// KafkaSink publishes entries to the audit topic, keyed by entity id.
type KafkaSink struct {
	Producer publisher
	Topic    string
	Log      *logger.Logger
}

func (s KafkaSink) Record(ctx context.Context, e models.AuditEntry) {
	entry := e
	ev := kafka.Event{Event: kafka.EventAudit, Audit: &entry, Timestamp: e.Timestamp}
	if err := s.Producer.Publish(ctx, s.Topic, e.EntityID, ev); err != nil {
		warn(s.Log, "audit publish failed: %v", err)
	}
}

// Entry builds an entry stamped with the current time.
func Entry(actorID, action, entityType, entityID, detail string) models.AuditEntry {
	if actorID == "" {
		actorID = "system"
	}
	return models.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		Timestamp:  time.Now(),
	}
}

func warn(log *logger.Logger, msg string, args ...interface{}) {
	if log == nil {
		log = logger.Default()
	}
	log.Warn(msg, args...)
}
