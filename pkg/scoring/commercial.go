package scoring

import (
	"math"

	"github.com/healthscope/healthscope/pkg/account"
)

// Commercial configures the bonus and penalty applied outside the base
// score.
type Commercial struct {
	// ExpansionMultiplier converts expansion/ARR into bonus points.
	ExpansionMultiplier float64
	MaxExpansionBonus   float64
	// ExpansionFactorMin is the smallest bonus reported as a factor.
	ExpansionFactorMin float64

	RenewalWindowDays    int
	RenewalAdoptionFloor float64
	RenewalPenalty       float64
}

// DefaultCommercial returns the standard commercial adjustment settings.
func DefaultCommercial() Commercial {
	return Commercial{
		ExpansionMultiplier:  20,
		MaxExpansionBonus:    10,
		ExpansionFactorMin:   5,
		RenewalWindowDays:    60,
		RenewalAdoptionFloor: 0.5,
		RenewalPenalty:       5,
	}
}

// Adjustment is the commercial contribution to a score.
type Adjustment struct {
	Points  float64
	Factors []account.HealthFactor
}

// Adjust computes the expansion bonus and the renewal-risk penalty. The two
// are independent and additive.
func (c Commercial) Adjust(s Signals) Adjustment {
	var adj Adjustment

	if s.Expansion > 0 && s.ARR > 0 {
		bonus := math.Min(c.MaxExpansionBonus, s.Expansion/s.ARR*c.ExpansionMultiplier)
		adj.Points += bonus
		if bonus >= c.ExpansionFactorMin {
			adj.Factors = append(adj.Factors, account.HealthFactor{
				Label:  "Strong expansion opportunity",
				Impact: roundImpact(bonus),
			})
		}
	}

	if s.HasRenewal && s.DaysToRenewal >= 0 && s.DaysToRenewal <= c.RenewalWindowDays &&
		s.AdoptionRatio < c.RenewalAdoptionFloor {
		adj.Points -= c.RenewalPenalty
		adj.Factors = append(adj.Factors, account.HealthFactor{
			Label:  "Renewal risk: low adoption",
			Impact: roundImpact(-c.RenewalPenalty),
		})
	}

	return adj
}
