package utils

import (
	"fmt"
	"regexp"
	"strings"

	"lead-routing/errors"
	"lead-routing/models"
)

// Email and phone regex patterns
var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	PhoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// LeadValidationRules contains validation configuration
type LeadValidationRules struct {
	MaxNameLength          int
	MaxQualificationLength int
}

// DefaultValidationRules provides default validation constraints
var DefaultValidationRules = LeadValidationRules{
	MaxNameLength:          100,
	MaxQualificationLength: 200,
}

// NormalizePhone strips the separators people commonly type.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(phone))
}

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) error {
	if email == "" || !EmailRegex.MatchString(email) {
		return fmt.Errorf("Valid email is required")
	}
	return nil
}

// ValidatePhone checks if phone is in E.164 format once separators are removed
func ValidatePhone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("Phone number is required")
	}
	if !PhoneRegex.MatchString(NormalizePhone(phone)) {
		return fmt.Errorf("invalid phone format (use E.164 format, e.g., +919876543210)")
	}
	return nil
}

// ValidateName checks if name meets requirements
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("First name is required")
	}
	if len(name) > DefaultValidationRules.MaxNameLength {
		return fmt.Errorf("name must be less than %d characters", DefaultValidationRules.MaxNameLength)
	}
	return nil
}

// ValidateQualification checks if qualification meets requirements
func ValidateQualification(qualification string) error {
	if len(qualification) > DefaultValidationRules.MaxQualificationLength {
		return fmt.Errorf("qualification must be less than %d characters", DefaultValidationRules.MaxQualificationLength)
	}
	return nil
}

// ValidateLead checks the fields a lead needs before it can be queued, in a
// fixed order, and returns the first failure as InvalidLeadData.
func ValidateLead(l *models.Lead) error {
	checks := []func() error{
		func() error { return ValidateName(l.FirstName) },
		func() error { return ValidateEmail(strings.TrimSpace(l.Email)) },
		func() error { return ValidatePhone(l.Phone) },
		func() error {
			if strings.TrimSpace(l.InstitutionID) == "" {
				return fmt.Errorf("Institution ID is required")
			}
			return nil
		},
		func() error {
			if strings.TrimSpace(l.CourseInterest) == "" {
				return fmt.Errorf("Course interest is required")
			}
			return nil
		},
		func() error { return ValidateQualification(l.Qualification) },
		func() error {
			if l.Priority != "" && l.Priority.Tier() == 0 {
				return fmt.Errorf("invalid priority %q", l.Priority)
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return errors.NewInvalidLeadDataError(err.Error())
		}
	}
	return nil
}
