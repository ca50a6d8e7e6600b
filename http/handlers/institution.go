package handlers

import (
	"net/http"

	resp "lead-routing/http/response"
	"lead-routing/models"
)

type institutionRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

// RegisterInstitution POST /institutions
func (h *Handler) RegisterInstitution(w http.ResponseWriter, r *http.Request) {
	var req institutionRequest
	if !decode(w, r, &req) {
		return
	}
	inst, err := h.coord.RegisterInstitution(r.Context(), models.Institution{
		ID:       req.ID,
		Name:     req.Name,
		IsActive: req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusCreated, "Institution registered", inst)
}

type counselorRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsActive    *bool  `json:"is_active"`
	MaxCapacity int    `json:"max_capacity"`
}

// RegisterCounselor POST /institutions/{id}/counselors
func (h *Handler) RegisterCounselor(w http.ResponseWriter, r *http.Request) {
	var req counselorRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.coord.RegisterCounselor(r.Context(), models.Counselor{
		ID:            req.ID,
		InstitutionID: r.PathValue("id"),
		Name:          req.Name,
		Email:         req.Email,
		IsActive:      req.IsActive == nil || *req.IsActive,
		MaxCapacity:   req.MaxCapacity,
	})
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusCreated, "Counselor registered", c)
}
