package queue

import (
	"sort"

	"lead-routing/models"
)

// Insert places leadID ahead of the first entry that ranks strictly lower
// than key. Entries already in the queue are left where they are, so a
// manual reposition survives later inserts. It reports whether it inserted.
func Insert(entries []models.QueueEntry, leadID string, key models.RankKey) ([]models.QueueEntry, bool) {
	if indexOf(entries, leadID) >= 0 {
		return entries, false
	}
	at := len(entries)
	for i, e := range entries {
		if key.Before(e.Key) {
			at = i
			break
		}
	}
	out := make([]models.QueueEntry, 0, len(entries)+1)
	out = append(out, entries[:at]...)
	out = append(out, models.QueueEntry{LeadID: leadID, Key: key})
	out = append(out, entries[at:]...)
	return renumber(out), true
}

// Remove drops leadID and reports whether it was present.
func Remove(entries []models.QueueEntry, leadID string) ([]models.QueueEntry, bool) {
	i := indexOf(entries, leadID)
	if i < 0 {
		return entries, false
	}
	out := make([]models.QueueEntry, 0, len(entries)-1)
	out = append(out, entries[:i]...)
	out = append(out, entries[i+1:]...)
	return renumber(out), true
}

// Move places leadID at the 1-based newPosition, clamped to the queue bounds.
func Move(entries []models.QueueEntry, leadID string, newPosition int) ([]models.QueueEntry, bool) {
	i := indexOf(entries, leadID)
	if i < 0 {
		return entries, false
	}
	entry := entries[i]
	rest, _ := Remove(entries, leadID)

	at := newPosition - 1
	if at < 0 {
		at = 0
	}
	if at > len(rest) {
		at = len(rest)
	}
	out := make([]models.QueueEntry, 0, len(entries))
	out = append(out, rest[:at]...)
	out = append(out, entry)
	out = append(out, rest[at:]...)
	return renumber(out), true
}

// Sort orders entries by rank key; equal keys keep their relative order.
func Sort(entries []models.QueueEntry) []models.QueueEntry {
	out := append([]models.QueueEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key.Before(out[j].Key) })
	return renumber(out)
}

func indexOf(entries []models.QueueEntry, leadID string) int {
	for i, e := range entries {
		if e.LeadID == leadID {
			return i
		}
	}
	return -1
}

func renumber(entries []models.QueueEntry) []models.QueueEntry {
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}
