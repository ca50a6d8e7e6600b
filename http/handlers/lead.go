package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lead-routing/errors"
	resp "lead-routing/http/response"
	"lead-routing/models"
	"lead-routing/services/assignment"
	"lead-routing/utils"
)

type createLeadRequest struct {
	InstitutionID  string `json:"institution_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	CourseInterest string `json:"course_interest"`
	Source         string `json:"source"`
	Priority       string `json:"priority"`
	BudgetRange    string `json:"budget_range"`
	Qualification  string `json:"qualification"`
	Notes          string `json:"notes"`
}

func (req createLeadRequest) lead() models.Lead {
	return models.Lead{
		InstitutionID:  req.InstitutionID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		CourseInterest: req.CourseInterest,
		Source:         models.LeadSource(req.Source),
		Priority:       models.Priority(req.Priority),
		BudgetRange:    req.BudgetRange,
		Qualification:  req.Qualification,
		Notes:          req.Notes,
	}
}

// CreateLead handles single lead submission
// POST /leads
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.SubmitLead(r.Context(), actorOf(r), req.lead())
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusCreated, "Lead created and queued", lead.ToResponse())
}

// GetLead GET /leads/{id}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.coord.GetLead(r.Context(), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "", lead.ToResponse())
}

// ListLeads retrieves an institution's leads with optional filters
// GET /institutions/{id}/leads?status=QUEUED&created_after=...&created_before=...
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	timeParams, err := utils.ParseTimeFilters(r)
	if err != nil {
		resp.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var status models.LeadStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, ok := models.ParseStatus(s)
		if !ok {
			resp.FromError(w, errors.NewInvalidArgumentError(fmt.Sprintf("unknown lead status %q", s)))
			return
		}
		status = parsed
	}

	leads, err := h.coord.ListLeads(r.Context(), r.PathValue("id"), status)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	leads = utils.FilterByCreatedAt(leads, timeParams)
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Retrieved %d leads successfully", len(leads)), utils.ConvertLeadsToResponse(leads))
}

// UploadLeads handles bulk lead upload via Excel file
// POST /institutions/{id}/leads/upload (multipart field "file")
func (h *Handler) UploadLeads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.log.Warn("Error getting form file: %v", err)
		resp.ErrorResponse(w, http.StatusBadRequest, "Invalid file")
		return
	}
	defer file.Close()

	h.log.Info("Processing file upload: %s", header.Filename)
	report, err := h.importer.Import(r.Context(), actorOf(r), r.PathValue("id"), file)
	if err != nil {
		resp.ErrorResponse(w, http.StatusBadRequest, "Error parsing Excel: "+err.Error())
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Successfully uploaded %d leads", report.Succeeded), report)
}

type assignRequest struct {
	CounselorID string `json:"counselor_id"`
}

// AssignLead POST /leads/{id}/assign
func (h *Handler) AssignLead(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.AssignManually(r.Context(), actorOf(r), r.PathValue("id"), req.CounselorID)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead assigned", lead.ToResponse())
}

type transferRequest struct {
	FromCounselorID string `json:"from_counselor_id"`
	ToCounselorID   string `json:"to_counselor_id"`
	Reason          string `json:"reason"`
}

// TransferLead POST /leads/{id}/transfer
func (h *Handler) TransferLead(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.Transfer(r.Context(), actorOf(r), r.PathValue("id"), req.FromCounselorID, req.ToCounselorID, req.Reason)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead transferred", lead.ToResponse())
}

type completeRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CompleteLead POST /leads/{id}/complete
func (h *Handler) CompleteLead(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	final, _ := models.ParseStatus(req.Status)
	lead, err := h.coord.Complete(r.Context(), actorOf(r), r.PathValue("id"), final, req.Notes)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead closed as "+string(lead.Status), lead.ToResponse())
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus POST /leads/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	to, _ := models.ParseStatus(req.Status)
	lead, err := h.coord.ChangeStatus(r.Context(), actorOf(r), r.PathValue("id"), to)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead status is "+string(lead.Status), lead.ToResponse())
}

type priorityRequest struct {
	Priority string `json:"priority"`
}

// UpdatePriority POST /leads/{id}/priority
func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.UpdatePriority(r.Context(), actorOf(r), r.PathValue("id"), models.Priority(req.Priority))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead priority updated", lead.ToResponse())
}

type moveRequest struct {
	Position int `json:"position"`
}

// MoveInQueue POST /leads/{id}/move
func (h *Handler) MoveInQueue(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.coord.MoveInQueue(r.Context(), actorOf(r), r.PathValue("id"), req.Position)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead moved", lead.ToResponse())
}

// RemoveFromQueue DELETE /leads/{id}/queue
func (h *Handler) RemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	lead, err := h.coord.RemoveFromQueue(r.Context(), actorOf(r), r.PathValue("id"))
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead removed from queue", lead.ToResponse())
}

// DeleteLead DELETE /leads/{id}
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.DeleteLead(r.Context(), actorOf(r), r.PathValue("id")); err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, "Lead deleted successfully", nil)
}

type cleanupResult struct {
	InstitutionID string `json:"institution_id"`
	DaysOld       int    `json:"days_old"`
	Removed       int    `json:"removed"`
}

// CleanupLeads deletes long-closed leads
// POST /institutions/{id}/leads/cleanup?days_old=90
func (h *Handler) CleanupLeads(w http.ResponseWriter, r *http.Request) {
	days := int(assignment.DefaultCleanupAge / (24 * time.Hour))
	if s := r.URL.Query().Get("days_old"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			resp.FromError(w, errors.NewInvalidArgumentError(fmt.Sprintf("days_old must be a number, got %q", s)))
			return
		}
		days = n
	}
	institutionID := r.PathValue("id")
	removed, err := h.coord.CleanupCompletedLeads(r.Context(), actorOf(r), institutionID, time.Duration(days)*24*time.Hour)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Cleaned up %d old completed leads", removed),
		cleanupResult{InstitutionID: institutionID, DaysOld: days, Removed: removed})
}

type bulkAssignRequest struct {
	LeadIDs     []string `json:"lead_ids"`
	CounselorID string   `json:"counselor_id"`
}

// BulkAssign POST /leads/bulk-assign
func (h *Handler) BulkAssign(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignRequest
	if !decode(w, r, &req) {
		return
	}
	leads, err := h.coord.BulkAssign(r.Context(), actorOf(r), req.LeadIDs, req.CounselorID)
	if err != nil {
		resp.FromError(w, err)
		return
	}
	resp.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Assigned %d of %d leads", len(leads), len(req.LeadIDs)), utils.ConvertLeadsToResponse(leads))
}
