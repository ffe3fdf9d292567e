package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Weights holds the maximum points of each sub-score. They must sum to
// MaxBaseScore.
type Weights struct {
	// Adoption
	AdoptionRatio   float64
	FeatureAdoption float64
	WeeklyActive    float64

	// Engagement
	SessionTime float64
	TimeToValue float64

	// Support
	SupportTickets  float64
	CriticalTickets float64
	SLABreaches     float64

	// Advocacy
	NPS float64

	// Process
	QBRRecency float64
	Onboarding float64
}

// Sub-score keys, shared by the weight table, the rule table and configuration.
const (
	KeyAdoptionRatio   = "adoption_ratio"
	KeyFeatureAdoption = "feature_adoption"
	KeyWeeklyActive    = "weekly_active"
	KeySessionTime     = "session_time"
	KeyTimeToValue     = "time_to_value"
	KeySupportTickets  = "support_tickets"
	KeyCriticalTickets = "critical_tickets"
	KeySLABreaches     = "sla_breaches"
	KeyNPS             = "nps"
	KeyQBRRecency      = "qbr_recency"
	KeyOnboarding      = "onboarding"
)

// Defaults returns the standard weights: adoption 35, engagement 20,
// support 20, advocacy 15, process 10.
func Defaults() Weights {
	return Weights{
		AdoptionRatio:   20,
		FeatureAdoption: 10,
		WeeklyActive:    5,

		SessionTime: 10,
		TimeToValue: 10,

		SupportTickets:  8,
		CriticalTickets: 8,
		SLABreaches:     4,

		NPS: 15,

		QBRRecency: 5,
		Onboarding: 5,
	}
}

func (w *Weights) fields() map[string]*float64 {
	return map[string]*float64{
		KeyAdoptionRatio:   &w.AdoptionRatio,
		KeyFeatureAdoption: &w.FeatureAdoption,
		KeyWeeklyActive:    &w.WeeklyActive,
		KeySessionTime:     &w.SessionTime,
		KeyTimeToValue:     &w.TimeToValue,
		KeySupportTickets:  &w.SupportTickets,
		KeyCriticalTickets: &w.CriticalTickets,
		KeySLABreaches:     &w.SLABreaches,
		KeyNPS:             &w.NPS,
		KeyQBRRecency:      &w.QBRRecency,
		KeyOnboarding:      &w.Onboarding,
	}
}

// Get returns the weight for a sub-score key, or 0 for unknown keys.
func (w Weights) Get(key string) float64 {
	if p, ok := w.fields()[key]; ok {
		return *p
	}
	return 0
}

// Total returns the sum of all weights.
func (w Weights) Total() float64 {
	var sum float64
	for _, p := range w.fields() {
		sum += *p
	}
	return sum
}

// Validate checks that no weight is negative and that the weights sum to
// MaxBaseScore.
func (w Weights) Validate() error {
	for key, p := range w.fields() {
		if *p < 0 {
			return eris.Errorf("weight %s is negative: %v", key, *p)
		}
	}
	if total := w.Total(); math.Abs(total-MaxBaseScore) > 1e-9 {
		return eris.Errorf("weights sum to %v, want %v", total, MaxBaseScore)
	}
	return nil
}

// Apply returns a copy of w with the given overrides and validates the result.
// Unknown keys are rejected.
func (w Weights) Apply(overrides map[string]float64) (Weights, error) {
	out := w
	fields := out.fields()
	var unknown []string
	for key, v := range overrides {
		p, ok := fields[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		*p = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return w, eris.Errorf("unknown weight keys: %s", strings.Join(unknown, ", "))
	}
	if err := out.Validate(); err != nil {
		return w, err
	}
	return out, nil
}
