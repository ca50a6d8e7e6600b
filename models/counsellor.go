package models

// Counselor is a worker to whom leads are assigned. MaxCapacity of zero means
// the service-wide default applies.
type Counselor struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	IsActive      bool   `json:"is_active"`
	MaxCapacity   int    `json:"max_capacity"`
}

// Availability of a counselor for new work.
type Availability string

const (
	Available Availability = "AVAILABLE"
	Busy      Availability = "BUSY"
)

// CounselorWorkload is derived per request from counted active leads.
type CounselorWorkload struct {
	CounselorID           string       `json:"counselor_id"`
	CounselorName         string       `json:"counselor_name"`
	CounselorEmail        string       `json:"counselor_email"`
	CurrentLeadCount      int          `json:"current_lead_count"`
	MaxCapacity           int          `json:"max_capacity"`
	UtilizationPercentage float64      `json:"utilization_percentage"`
	Status                Availability `json:"status"`
}

// AvailableCounselors summarises which counselors of an institution can take
// another lead now.
type AvailableCounselors struct {
	AvailableCounselors []CounselorWorkload `json:"available_counselors"`
	TotalAvailable      int                 `json:"total_available"`
	TotalCounselors     int                 `json:"total_counselors"`
}
