package utils

import "lead-routing/models"

// ConvertLeadsToResponse converts a slice of Lead to LeadResponse format
func ConvertLeadsToResponse(leads []models.Lead) []models.LeadResponse {
	responses := make([]models.LeadResponse, len(leads))
	for i := range leads {
		responses[i] = leads[i].ToResponse()
	}
	return responses
}

// FilterByCreatedAt keeps leads created inside the optional bounds; both
// bounds are inclusive.
func FilterByCreatedAt(leads []models.Lead, params *TimeFilterParams) []models.Lead {
	if params == nil || (params.CreatedAfter == nil && params.CreatedBefore == nil) {
		return leads
	}
	out := leads[:0:0]
	for _, l := range leads {
		if params.CreatedAfter != nil && l.CreatedAt.Before(*params.CreatedAfter) {
			continue
		}
		if params.CreatedBefore != nil && l.CreatedAt.After(*params.CreatedBefore) {
			continue
		}
		out = append(out, l)
	}
	return out
}
