// Package scoring computes the deterministic 0-100 lead score used to break
// ties between leads of the same priority tier.
package scoring

import (
	"math"
	"strings"
	"time"

	"lead-routing/models"
)

const MaxScore = 100.0

var sourceScores = map[models.LeadSource]float64{
	models.SourceReferral:      30,
	models.SourceWebsite:       25,
	models.SourceWalkIn:        20,
	models.SourcePhoneCall:     15,
	models.SourceSocialMedia:   10,
	models.SourceAdvertisement: 8,
	models.SourceEmailCampaign: 5,
}

// Scorer scores leads against a clock. The zero value uses time.Now.
type Scorer struct {
	Now func() time.Time
}

func New() *Scorer {
	return &Scorer{Now: time.Now}
}

func (s *Scorer) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Score returns the lead's score clamped to MaxScore. Unknown or unset enum
// values contribute nothing.
func (s *Scorer) Score(lead *models.Lead) float64 {
	score := SourceScore(lead.Source)
	score += PriorityScore(lead.Priority)
	score += AgeScore(lead.CreatedAt, s.now())
	score += BudgetScore(lead.BudgetRange)
	score += QualificationScore(lead.Qualification)
	return math.Min(score, MaxScore)
}

func SourceScore(source models.LeadSource) float64 {
	return sourceScores[source]
}

// PriorityScore is ten points per tier.
func PriorityScore(p models.Priority) float64 {
	return float64(p.Tier() * 10)
}

// AgeScore counts whole hours since creation. Older than a day earns 15, older
// than three days earns a further 25.
func AgeScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	hours := int64(now.Sub(createdAt) / time.Hour)
	var score float64
	if hours > 24 {
		score += 15
	}
	if hours > 72 {
		score += 25
	}
	return score
}

func BudgetScore(budget string) float64 {
	switch strings.ToLower(strings.TrimSpace(budget)) {
	case "high", "premium":
		return 25
	case "medium":
		return 15
	case "low":
		return 5
	}
	return 0
}

// QualificationScore matches substrings, most advanced degree first.
func QualificationScore(qualification string) float64 {
	q := strings.ToLower(strings.TrimSpace(qualification))
	switch {
	case q == "":
		return 0
	case strings.Contains(q, "phd"), strings.Contains(q, "doctorate"):
		return 20
	case strings.Contains(q, "master"), strings.Contains(q, "post"):
		return 15
	case strings.Contains(q, "graduate"), strings.Contains(q, "bachelor"):
		return 10
	}
	return 5
}
