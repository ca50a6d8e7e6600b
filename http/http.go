package http

import (
	"net/http"

	"lead-routing/http/handlers"
	"lead-routing/http/middleware"
	"lead-routing/logger"
)

// SetupRoutes configures all HTTP routes and middleware. metrics may be nil.
func SetupRoutes(h *handlers.Handler, metrics http.Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Institutions & counselors
	mux.HandleFunc("POST /institutions", h.RegisterInstitution)
	mux.HandleFunc("POST /institutions/{id}/counselors", h.RegisterCounselor)
	mux.HandleFunc("GET /institutions/{id}/counselors/workload", h.Workloads)
	mux.HandleFunc("GET /institutions/{id}/counselors/available", h.AvailableCounselors)
	mux.HandleFunc("GET /counselors/{id}/leads", h.CounselorLeads)
	mux.HandleFunc("GET /counselors/{id}/workload", h.CounselorWorkload)
	mux.HandleFunc("GET /counselors/{id}/availability", h.CounselorAvailability)

	// Lead Management APIs
	mux.HandleFunc("POST /leads", h.CreateLead)
	mux.HandleFunc("POST /leads/bulk-assign", h.BulkAssign)
	mux.HandleFunc("GET /leads/{id}", h.GetLead)
	mux.HandleFunc("POST /leads/{id}/assign", h.AssignLead)
	mux.HandleFunc("POST /leads/{id}/transfer", h.TransferLead)
	mux.HandleFunc("POST /leads/{id}/complete", h.CompleteLead)
	mux.HandleFunc("POST /leads/{id}/status", h.ChangeStatus)
	mux.HandleFunc("POST /leads/{id}/priority", h.UpdatePriority)
	mux.HandleFunc("POST /leads/{id}/move", h.MoveInQueue)
	mux.HandleFunc("DELETE /leads/{id}", h.DeleteLead)
	mux.HandleFunc("DELETE /leads/{id}/queue", h.RemoveFromQueue)
	mux.HandleFunc("GET /institutions/{id}/leads", h.ListLeads)
	mux.HandleFunc("POST /institutions/{id}/leads/upload", h.UploadLeads)
	mux.HandleFunc("POST /institutions/{id}/leads/cleanup", h.CleanupLeads)

	// Queue APIs
	mux.HandleFunc("GET /institutions/{id}/queue", h.QueueStatus)
	mux.HandleFunc("GET /institutions/{id}/queue/size", h.QueueSize)
	mux.HandleFunc("GET /institutions/{id}/queue/health", h.QueueHealth)
	mux.HandleFunc("GET /institutions/{id}/queue/estimates", h.WaitingTimes)
	mux.HandleFunc("GET /institutions/{id}/queue/export", h.ExportQueue)
	mux.HandleFunc("POST /institutions/{id}/queue/rebuild", h.RebuildQueue)
	mux.HandleFunc("POST /institutions/{id}/queue/pull", h.PullNext)
	mux.HandleFunc("POST /institutions/{id}/queue/auto-assign", h.AutoAssign)

	mux.HandleFunc("GET /institutions/{id}/notifications/stream", h.NotificationStream)

	return middleware.EnableCORS(middleware.LogRequests(log)(mux))
}
