package store

import (
	"context"
	"sort"
	"sync"

	"lead-routing/errors"
	"lead-routing/models"
)

// MemoryStore keeps everything in process. A transaction holds the store lock
// for its whole duration and restores a snapshot when it fails.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type memState struct {
	institutions map[string]models.Institution
	counselors   map[string]models.Counselor
	leads        map[string]models.Lead
	queues       map[string][]models.QueueEntry
	// lead id -> 1-based position in its institution queue
	positions map[string]int
	audit     []models.AuditEntry
}

func newMemState() *memState {
	return &memState{
		institutions: make(map[string]models.Institution),
		counselors:   make(map[string]models.Counselor),
		leads:        make(map[string]models.Lead),
		queues:       make(map[string][]models.QueueEntry),
		positions:    make(map[string]int),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.institutions {
		c.institutions[k] = v
	}
	for k, v := range s.counselors {
		c.counselors[k] = v
	}
	for k, v := range s.leads {
		c.leads[k] = v.Clone()
	}
	for k, v := range s.queues {
		c.queues[k] = append([]models.QueueEntry(nil), v...)
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	c.audit = append(c.audit, s.audit...)
	return c
}

func (s *memState) getInstitution(id string) (models.Institution, error) {
	inst, ok := s.institutions[id]
	if !ok {
		return models.Institution{}, errors.NewNotFoundError("institution not found: " + id)
	}
	return inst, nil
}

func (s *memState) withPosition(l models.Lead) models.Lead {
	l = l.Clone()
	l.QueuePosition = nil
	if pos, ok := s.positions[l.ID]; ok {
		p := pos
		l.QueuePosition = &p
	}
	return l
}

func (s *memState) getLead(id string) (models.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return models.Lead{}, errors.NewNotFoundError("lead not found: " + id)
	}
	return s.withPosition(l), nil
}

func (s *memState) findLeads(institutionID string, status models.LeadStatus) []models.Lead {
	return s.filterLeads(func(l models.Lead) bool {
		return l.InstitutionID == institutionID && (status == "" || l.Status == status)
	})
}

func (s *memState) findLeadsByCounselor(counselorID string) []models.Lead {
	return s.filterLeads(func(l models.Lead) bool {
		return l.AssignedCounselorID != nil && *l.AssignedCounselorID == counselorID
	})
}

// filterLeads returns matching leads oldest first.
func (s *memState) filterLeads(match func(models.Lead) bool) []models.Lead {
	var out []models.Lead
	for _, l := range s.leads {
		if match(l) {
			out = append(out, s.withPosition(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) loadQueue(institutionID string) ([]models.QueueEntry, error) {
	if _, err := s.getInstitution(institutionID); err != nil {
		return nil, err
	}
	return append([]models.QueueEntry(nil), s.queues[institutionID]...), nil
}

func (s *memState) getCounselor(id string) (models.Counselor, error) {
	c, ok := s.counselors[id]
	if !ok {
		return models.Counselor{}, errors.NewNotFoundError("counselor not found: " + id)
	}
	return c, nil
}

func (s *memState) listCounselors(institutionID string) []models.Counselor {
	var out []models.Counselor
	for _, c := range s.counselors {
		if c.InstitutionID == institutionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memState) countActive(counselorID string) int {
	n := 0
	for _, l := range s.leads {
		if l.IsAssignedTo(counselorID) {
			n++
		}
	}
	return n
}

func (s *memState) saveLead(lead *models.Lead) error {
	if _, err := s.getInstitution(lead.InstitutionID); err != nil {
		return err
	}
	stored := lead.Clone()
	stored.QueuePosition = nil
	s.leads[lead.ID] = stored
	return nil
}

func (s *memState) deleteLead(id string) error {
	if _, ok := s.leads[id]; !ok {
		return errors.NewNotFoundError("lead not found: " + id)
	}
	if _, queued := s.positions[id]; queued {
		return errors.NewInternalError("cannot delete queued lead: " + id)
	}
	delete(s.leads, id)
	return nil
}

func (s *memState) saveQueue(institutionID string, entries []models.QueueEntry) error {
	if _, err := s.getInstitution(institutionID); err != nil {
		return err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.LeadID] {
			return errors.NewInternalError("duplicate lead in queue: " + e.LeadID)
		}
		seen[e.LeadID] = true
		if _, ok := s.leads[e.LeadID]; !ok {
			return errors.NewInternalError("queued lead does not exist: " + e.LeadID)
		}
	}
	for _, e := range s.queues[institutionID] {
		delete(s.positions, e.LeadID)
	}
	entries = renumber(entries)
	for _, e := range entries {
		s.positions[e.LeadID] = e.Position
	}
	s.queues[institutionID] = entries
	return nil
}

// Reader methods outside a transaction.

func (m *MemoryStore) GetInstitution(_ context.Context, id string) (models.Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getInstitution(id)
}

func (m *MemoryStore) GetLead(_ context.Context, id string) (models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getLead(id)
}

func (m *MemoryStore) FindLeads(_ context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.findLeads(institutionID, status), nil
}

func (m *MemoryStore) FindLeadsByCounselor(_ context.Context, counselorID string) ([]models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.findLeadsByCounselor(counselorID), nil
}

func (m *MemoryStore) LoadQueue(_ context.Context, institutionID string) ([]models.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.loadQueue(institutionID)
}

func (m *MemoryStore) GetCounselor(_ context.Context, id string) (models.Counselor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getCounselor(id)
}

func (m *MemoryStore) ListCounselors(_ context.Context, institutionID string) ([]models.Counselor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listCounselors(institutionID), nil
}

func (m *MemoryStore) CountActiveLeads(_ context.Context, counselorID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.countActive(counselorID), nil
}

func (m *MemoryStore) SaveInstitution(_ context.Context, inst models.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.institutions[inst.ID] = inst
	return nil
}

func (m *MemoryStore) SaveCounselor(_ context.Context, c models.Counselor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.state.getInstitution(c.InstitutionID); err != nil {
		return err
	}
	m.state.counselors[c.ID] = c
	return nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.audit = append(m.state.audit, entry)
	return nil
}

// AuditEntries returns a copy of everything appended so far.
func (m *MemoryStore) AuditEntries() []models.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AuditEntry(nil), m.state.audit...)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memTx struct {
	state *memState
}

func (t *memTx) GetInstitution(_ context.Context, id string) (models.Institution, error) {
	return t.state.getInstitution(id)
}

func (t *memTx) LockInstitution(_ context.Context, id string) (models.Institution, error) {
	return t.state.getInstitution(id)
}

func (t *memTx) GetLead(_ context.Context, id string) (models.Lead, error) {
	return t.state.getLead(id)
}

func (t *memTx) FindLeads(_ context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	return t.state.findLeads(institutionID, status), nil
}

func (t *memTx) FindLeadsByCounselor(_ context.Context, counselorID string) ([]models.Lead, error) {
	return t.state.findLeadsByCounselor(counselorID), nil
}

func (t *memTx) LoadQueue(_ context.Context, institutionID string) ([]models.QueueEntry, error) {
	return t.state.loadQueue(institutionID)
}

func (t *memTx) GetCounselor(_ context.Context, id string) (models.Counselor, error) {
	return t.state.getCounselor(id)
}

func (t *memTx) ListCounselors(_ context.Context, institutionID string) ([]models.Counselor, error) {
	return t.state.listCounselors(institutionID), nil
}

func (t *memTx) CountActiveLeads(_ context.Context, counselorID string) (int, error) {
	return t.state.countActive(counselorID), nil
}

func (t *memTx) SaveLead(_ context.Context, lead *models.Lead) error {
	return t.state.saveLead(lead)
}

func (t *memTx) DeleteLead(_ context.Context, id string) error {
	return t.state.deleteLead(id)
}

func (t *memTx) SaveQueue(_ context.Context, institutionID string, entries []models.QueueEntry) error {
	return t.state.saveQueue(institutionID, entries)
}
