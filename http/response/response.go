package response

import (
	"encoding/json"
	"net/http"

	"lead-routing/errors"
	"lead-routing/logger"
)

// StandardResponse represents the standard API response structure
type StandardResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	// Retryable is set when the same request may succeed later, e.g. once a
	// counselor frees up.
	Retryable bool `json:"retryable,omitempty"`
}

// SuccessResponse sends a success response with given status code, message, and data
func SuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	response := StandardResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	SendJSON(w, statusCode, response)
}

// ErrorResponse sends an error response with given status code and error message
func ErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	response := StandardResponse{
		Status: "error",
		Error:  errorMsg,
	}
	SendJSON(w, statusCode, response)
}

// FromError maps an application error onto its status code. Internal
// failures are logged and their detail is not sent to the client.
func FromError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	status := kind.HTTPStatus()
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
		msg = "Internal server error"
	}
	SendJSON(w, status, StandardResponse{
		Status:    "error",
		Error:     msg,
		Kind:      kind.String(),
		Retryable: errors.Retryable(err),
	})
}

// SendJSON encodes and sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
