package account

import "time"

// HealthFactor is one labeled contribution to a health score. Impact is
// signed: positive helped the score, negative hurt it.
type HealthFactor struct {
	Label  string  `json:"factor"`
	Impact float64 `json:"impact"`
}

// HealthSnapshot is one immutable scoring result for one account. Factors are
// ordered by descending absolute impact and hold at most ten entries.
type HealthSnapshot struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"account_id"`
	CalculatedAt time.Time      `json:"calculated_at"`
	Score        float64        `json:"score"`
	RiskLabel    Bucket         `json:"risk_label"`
	Factors      []HealthFactor `json:"top_factors"`
}

// NegativeFactors returns the factors that lowered the score, in ranked order.
func (s *HealthSnapshot) NegativeFactors() []HealthFactor {
	var out []HealthFactor
	for _, f := range s.Factors {
		if f.Impact < 0 {
			out = append(out, f)
		}
	}
	return out
}

// Labels returns the factor labels in ranked order.
func Labels(factors []HealthFactor) []string {
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = f.Label
	}
	return out
}
