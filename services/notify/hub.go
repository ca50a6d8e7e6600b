package notify

import (
	"context"
	"sync"

	"lead-routing/logger"
)

// Hub broadcasts notifications to live subscribers of an institution, such
// as open dashboard streams. A subscriber that cannot keep up is pruned.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan Notification
	buffer int
	log    *logger.Logger
}

func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if log == nil {
		log = logger.Default()
	}
	return &Hub{subs: make(map[string]map[uint64]chan Notification), buffer: buffer, log: log}
}

// Subscribe returns a channel of notifications for institutionID and a
// cancel func. The channel is closed on cancel or when the subscriber is
// pruned.
func (h *Hub) Subscribe(institutionID string) (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Notification, h.buffer)
	if h.subs[institutionID] == nil {
		h.subs[institutionID] = make(map[uint64]chan Notification)
	}
	h.subs[institutionID][id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.drop(institutionID, id)
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(institutionID string, id uint64) {
	subs := h.subs[institutionID]
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	close(ch)
	if len(subs) == 0 {
		delete(h.subs, institutionID)
	}
}

func (h *Hub) Notify(_ context.Context, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[n.InstitutionID] {
		select {
		case ch <- n:
		default:
			h.log.Warn("pruning slow notification subscriber %d for institution %s", id, n.InstitutionID)
			h.drop(n.InstitutionID, id)
		}
	}
}

// Subscribers counts live subscribers of an institution.
func (h *Hub) Subscribers(institutionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[institutionID])
}
