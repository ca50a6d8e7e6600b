// Package store defines the persistence collaborator used by the lead queue
// services, with an in-memory implementation and a Postgres implementation.
//
// The institution queue is stored exactly once, as an ordered list of entries.
// A lead's QueuePosition is never written independently: every read derives it
// from the queue, so positions cannot drift from queue order.
package store

import (
	"context"

	"lead-routing/models"
)

// Reader is the read side shared by stores and transactions.
type Reader interface {
	GetInstitution(ctx context.Context, id string) (models.Institution, error)
	GetLead(ctx context.Context, id string) (models.Lead, error)
	// FindLeads lists an institution's leads; an empty status matches all.
	FindLeads(ctx context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error)
	// FindLeadsByCounselor lists every lead assigned to the counselor, in
	// any status.
	FindLeadsByCounselor(ctx context.Context, counselorID string) ([]models.Lead, error)
	// LoadQueue returns the institution queue in order with dense positions.
	LoadQueue(ctx context.Context, institutionID string) ([]models.QueueEntry, error)
	GetCounselor(ctx context.Context, id string) (models.Counselor, error)
	ListCounselors(ctx context.Context, institutionID string) ([]models.Counselor, error)
	// CountActiveLeads counts leads in active statuses assigned to the counselor.
	CountActiveLeads(ctx context.Context, counselorID string) (int, error)
}

// Tx is one atomic unit of work. Writes become visible only if the function
// passed to Store.InTx returns nil.
type Tx interface {
	Reader
	// LockInstitution serialises all work on the institution's queue and on
	// the capacity of its counselors until the transaction ends.
	LockInstitution(ctx context.Context, id string) (models.Institution, error)
	SaveLead(ctx context.Context, lead *models.Lead) error
	// DeleteLead removes a lead. A queued lead must be taken out of the
	// queue first.
	DeleteLead(ctx context.Context, id string) error
	// SaveQueue replaces the institution queue. Entry positions are rewritten
	// to 1..N in slice order.
	SaveQueue(ctx context.Context, institutionID string, entries []models.QueueEntry) error
}

// Store is the persistence collaborator.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
	SaveInstitution(ctx context.Context, inst models.Institution) error
	SaveCounselor(ctx context.Context, c models.Counselor) error
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
	Close() error
}

// renumber assigns dense 1-based positions in slice order.
func renumber(entries []models.QueueEntry) []models.QueueEntry {
	out := make([]models.QueueEntry, len(entries))
	for i, e := range entries {
		e.Position = i + 1
		out[i] = e
	}
	return out
}
