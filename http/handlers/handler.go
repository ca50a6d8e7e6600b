// Package handlers adapts the assignment coordinator to JSON over HTTP.
package handlers

import (
	"net/http"
	"strings"

	resp "lead-routing/http/response"
	"lead-routing/logger"
	"lead-routing/services/assignment"
	"lead-routing/services/importer"
	"lead-routing/services/notify"
	"lead-routing/utils"
)

// ActorHeader carries the id of the user or counselor making a request; it
// ends up in the audit trail.
const ActorHeader = "X-Actor-ID"

// maxUploadBytes bounds the multipart form accepted for Excel uploads.
const maxUploadBytes = 10 << 20

type Handler struct {
	coord    *assignment.Coordinator
	importer *importer.Importer
	hub      *notify.Hub
	log      *logger.Logger
}

// New wires handlers to the coordinator. hub may be nil, in which case the
// notification stream is unavailable.
func New(coord *assignment.Coordinator, hub *notify.Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		coord:    coord,
		importer: importer.New(coord, log),
		hub:      hub,
		log:      log,
	}
}

func actorOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// decode reads a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.DecodeJSONRequest(r, v); err != nil {
		resp.ErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp.SuccessResponse(w, http.StatusOK, "ok", nil)
}
