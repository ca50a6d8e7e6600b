package handlers

import (
	"fmt"
	"net/http"

	"lead-routing/errors"
	resp "lead-routing/http/response"
	"lead-routing/utils"
)

// CounselorLeads GET /counselors/{id}/leads
func (h *Handler) CounselorLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.coord.LeadsByCounselor(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Retrieved %d leads successfully", len(leads)), utils.ConvertLeadsToResponse(leads))
}

// CounselorWorkload GET /counselors/{id}/workload
func (h *Handler) CounselorWorkload(w http.ResponseWriter, r *http.Request) {
	load, err := h.coord.CounselorWorkload(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", load)
}

type availability struct {
	CounselorID   string `json:"counselor_id"`
	InstitutionID string `json:"institution_id"`
	Available     bool   `json:"available"`
}

// CounselorAvailability GET /counselors/{id}/availability?institution_id=...
func (h *Handler) CounselorAvailability(w http.ResponseWriter, r *http.Request) {
	institutionID := r.URL.Query().Get("institution_id")
	if institutionID == "" {
		resp.FromError(w, errors.NewInvalidArgumentError("institution_id is required"))
		return
	}
	ok, err := h.coord.CounselorAvailable(r.Context(), r.PathValue("id"), institutionID)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", availability{
		CounselorID:   r.PathValue("id"),
		InstitutionID: institutionID,
		Available:     ok,
	})
}

// AvailableCounselors GET /institutions/{id}/counselors/available
func (h *Handler) AvailableCounselors(w http.ResponseWriter, r *http.Request) {
	avail, err := h.coord.AvailableCounselors(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Available counselors retrieved successfully", avail)
}
