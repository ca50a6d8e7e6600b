package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	resp "lead-routing/http/response"
)

// NotificationStream pushes an institution's notifications as server-sent
// events until the client goes away.
// GET /institutions/{id}/notifications/stream
func (h *Handler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		resp.ErrorResponse(w, http.StatusServiceUnavailable, "Notification stream is disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		resp.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	institutionID := r.PathValue("id")
	notes, cancel := h.hub.Subscribe(institutionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-notes:
			if !ok {
				// pruned for falling behind
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.log.Warn("encoding notification: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
