package scoring

import (
	"math"
	"time"

	"github.com/healthscope/healthscope/pkg/account"
)

// MaxAdoptionRatio caps active users per seat. Over-deployment beyond this
// earns no extra credit.
const MaxAdoptionRatio = 1.2

// Signals are the derived inputs the sub-scores, rules and commercial
// adjuster read. Deriving them once keeps every table working from the same
// numbers.
type Signals struct {
	AdoptionRatio   float64
	FeatureAdoption float64
	WeeklyActive    float64
	// SessionProxy stands in for session time until per-session data exists.
	SessionProxy float64

	TimeToValueDays float64
	HasTimeToValue  bool

	Tickets30d     float64
	Critical90d    float64
	SLABreaches90d float64

	NPS    float64
	HasNPS bool

	DaysSinceQBR int
	HasQBR       bool

	Onboarding     bool
	OnboardingDays int

	ARR       float64
	Expansion float64

	DaysToRenewal int
	HasRenewal    bool
}

// DeriveSignals computes Signals for a as of now. Day counts use UTC calendar
// days.
func DeriveSignals(a *account.Account, now time.Time) Signals {
	s := Signals{
		AdoptionRatio:   math.Min(a.AdoptionRatio(), MaxAdoptionRatio),
		FeatureAdoption: a.FeatureAdoption,
		WeeklyActive:    a.WeeklyActivePct,
		SessionProxy:    float64(a.ActiveUsers) * 0.5,
		Tickets30d:      float64(a.TicketsLast30d),
		Critical90d:     float64(a.CriticalTickets90d),
		SLABreaches90d:  float64(a.SLABreaches90d),
		Onboarding:      a.OnboardingPhase,
		ARR:             a.ARR,
		Expansion:       a.ExpansionOpptyDollar,
	}

	if a.TimeToValueDays != nil {
		s.TimeToValueDays = float64(*a.TimeToValueDays)
		s.HasTimeToValue = true
	}
	if a.NPS != nil {
		s.NPS = *a.NPS
		s.HasNPS = true
	}
	if a.QBRLastDate != nil {
		s.DaysSinceQBR = daysBetween(a.QBRLastDate.Time, now)
		s.HasQBR = true
	}
	if a.OnboardingPhase && !a.CreatedAt.IsZero() {
		s.OnboardingDays = int(now.Sub(a.CreatedAt).Hours() / 24)
	}
	if a.RenewalDate != nil {
		s.DaysToRenewal = daysBetween(now, a.RenewalDate.Time)
		s.HasRenewal = true
	}
	return s
}

// daysBetween counts whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	return int((civilDay(b) - civilDay(a)) / 86400)
}

func civilDay(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
