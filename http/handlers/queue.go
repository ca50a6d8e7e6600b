package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	resp "lead-routing/http/response"
	"lead-routing/services/export"
	"lead-routing/utils"
)

// QueueStatus GET /institutions/{id}/queue
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.coord.GetQueueStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", status)
}

// QueueSize GET /institutions/{id}/queue/size
func (h *Handler) QueueSize(w http.ResponseWriter, r *http.Request) {
	size, err := h.coord.GetQueueSize(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", map[string]int{"size": size})
}

// QueueHealth GET /institutions/{id}/queue/health
func (h *Handler) QueueHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.coord.QueueHealthCheck(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, string(health.Status), health)
}

// WaitingTimes GET /institutions/{id}/queue/estimates
func (h *Handler) WaitingTimes(w http.ResponseWriter, r *http.Request) {
	estimates, err := h.coord.WaitingTimeEstimates(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", estimates)
}

// RebuildQueue POST /institutions/{id}/queue/rebuild
func (h *Handler) RebuildQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.coord.RebuildQueue(r.Context(), actorOf(r), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Queue rebuilt with %d leads", len(entries)), entries)
}

// PullNext POST /institutions/{id}/queue/pull
func (h *Handler) PullNext(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.PullNextForCounselor(r.Context(), actorOf(r), req.CounselorID, r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	if lead == nil {
		resp.SuccessResponse(w, http.StatusOK, "Queue is empty", nil)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead assigned", lead.ToResponse())
}

// AutoAssign POST /institutions/{id}/queue/auto-assign
func (h *Handler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	leads, err := h.coord.AutoAssign(r.Context(), actorOf(r), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Auto-assigned %d leads", len(leads)), utils.ConvertLeadsToResponse(leads))
}

// ExportQueue GET /institutions/{id}/queue/export?format=xlsx|pdf
func (h *Handler) ExportQueue(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		resp.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := h.coord.GetQueueStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}

	// Render fully before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, status); err != nil {
		h.log.Error("exporting queue for %s: %v", status.InstitutionID, err)
		resp.ErrorResponse(w, http.StatusInternalServerError, "Error generating export")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(status)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn("writing export: %v", err)
	}
}

// Workloads GET /institutions/{id}/counselors/workload
func (h *Handler) Workloads(w http.ResponseWriter, r *http.Request) {
	loads, err := h.coord.GetCounselorWorkloads(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", loads)
}
