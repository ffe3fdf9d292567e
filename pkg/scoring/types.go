// Package scoring implements the healthscope account health engine.
// It turns an account's adoption, engagement, support, advocacy, process and
// commercial signals into an explainable score with ranked factors.
package scoring

import "github.com/healthscope/healthscope/pkg/account"

const (
	// MaxBaseScore is the sum of all sub-score weights.
	MaxBaseScore = 100.0
	// MaxScore is the ceiling of the final score. Commercial adjustments can
	// lift a perfect base above MaxBaseScore.
	MaxScore = 110.0
	// MaxFactors is the number of factors kept on a result.
	MaxFactors = 10

	GreenThreshold = 75.0
	AmberThreshold = 50.0
)

// Group is the signal family a sub-score belongs to.
type Group string

const (
	GroupAdoption   Group = "Adoption"
	GroupEngagement Group = "Engagement"
	GroupSupport    Group = "Support"
	GroupAdvocacy   Group = "Advocacy"
	GroupProcess    Group = "Process"
)

// Result is the complete output of scoring one account. Immutable once
// computed.
type Result struct {
	Score      float64                `json:"score"`
	Bucket     account.Bucket         `json:"bucket"`
	Factors    []account.HealthFactor `json:"factors"`
	Base       float64                `json:"base"`
	Adjustment float64                `json:"adjustment"`
	Breakdown  []SubScore             `json:"breakdown"`
}

// SubScore is the points one weighted sub-score contributed to the base.
type SubScore struct {
	Key    string  `json:"key"`  // machine key: "adoption_ratio"
	Name   string  `json:"name"` // human name: "User adoption ratio"
	Group  Group   `json:"group"`
	Points float64 `json:"points"`
	Weight float64 `json:"weight"`
}

// NegativeFactors returns the factors that lowered the score.
func (r *Result) NegativeFactors() []account.HealthFactor {
	var out []account.HealthFactor
	for _, f := range r.Factors {
		if f.Impact < 0 {
			out = append(out, f)
		}
	}
	return out
}

// BucketFromScore maps a final score to its risk bucket. Lower bounds are
// inclusive.
func BucketFromScore(score float64) account.Bucket {
	switch {
	case score >= GreenThreshold:
		return account.BucketGreen
	case score >= AmberThreshold:
		return account.BucketAmber
	default:
		return account.BucketRed
	}
}
