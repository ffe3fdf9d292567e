package scoring

// Framing decides how a rule turns its sub-score's points into an impact.
type Framing int

const (
	// Positive reports the points earned.
	Positive Framing = iota
	// Negative reports the points lost against the full weight.
	Negative
	// Neutral reports the distance from half the weight.
	Neutral
)

// Rule emits a labeled factor for one sub-score when its condition holds.
type Rule struct {
	SubScore string
	Label    string
	Framing  Framing
	When     func(s Signals) bool
}

// Impact computes the factor impact for the sub-score's points and weight.
func (r Rule) Impact(points, weight float64) float64 {
	switch r.Framing {
	case Negative:
		return points - weight
	case Neutral:
		return points - weight/2
	default:
		return points
	}
}

// Thresholds at which rules fire.
const (
	StrongAdoptionRatio = 0.9
	LowAdoptionRatio    = 0.3
	HighFeatureAdoption = 0.7
	LowFeatureAdoption  = 0.3
	LowWeeklyActive     = 0.3
	FastTimeToValueDays = 30
	SlowTimeToValueDays = 90
	HighTicketVolume    = 10
	ManyCriticalTickets = 3
	ManySLABreaches     = 2
	PromoterNPS         = 50
	OverdueQBRDays      = 120
)

// DefaultRules returns the threshold table in evaluation order. Factors are
// emitted in this order before ranking, so ties keep it.
func DefaultRules() []Rule {
	return []Rule{
		{
			SubScore: KeyAdoptionRatio, Label: "Strong user adoption", Framing: Positive,
			When: func(s Signals) bool { return s.AdoptionRatio >= StrongAdoptionRatio },
		},
		{
			SubScore: KeyAdoptionRatio, Label: "Low user adoption", Framing: Negative,
			When: func(s Signals) bool { return s.AdoptionRatio < LowAdoptionRatio },
		},
		{
			SubScore: KeyAdoptionRatio, Label: "Moderate user adoption", Framing: Neutral,
			When: func(s Signals) bool {
				return s.AdoptionRatio >= LowAdoptionRatio && s.AdoptionRatio < StrongAdoptionRatio
			},
		},
		{
			SubScore: KeyFeatureAdoption, Label: "High feature adoption", Framing: Positive,
			When: func(s Signals) bool { return s.FeatureAdoption >= HighFeatureAdoption },
		},
		{
			SubScore: KeyFeatureAdoption, Label: "Low feature adoption", Framing: Negative,
			When: func(s Signals) bool { return s.FeatureAdoption < LowFeatureAdoption },
		},
		{
			SubScore: KeyWeeklyActive, Label: "Low weekly engagement", Framing: Negative,
			When: func(s Signals) bool { return s.WeeklyActive < LowWeeklyActive },
		},
		{
			SubScore: KeyTimeToValue, Label: "Fast time to value", Framing: Positive,
			When: func(s Signals) bool { return s.HasTimeToValue && s.TimeToValueDays <= FastTimeToValueDays },
		},
		{
			SubScore: KeyTimeToValue, Label: "Slow time to value", Framing: Negative,
			When: func(s Signals) bool { return s.HasTimeToValue && s.TimeToValueDays > SlowTimeToValueDays },
		},
		{
			SubScore: KeySupportTickets, Label: "High ticket volume", Framing: Negative,
			When: func(s Signals) bool { return s.Tickets30d > HighTicketVolume },
		},
		{
			SubScore: KeySupportTickets, Label: "Zero support tickets", Framing: Positive,
			When: func(s Signals) bool { return s.Tickets30d == 0 },
		},
		{
			SubScore: KeyCriticalTickets, Label: "Multiple critical issues", Framing: Negative,
			When: func(s Signals) bool { return s.Critical90d > ManyCriticalTickets },
		},
		{
			SubScore: KeySLABreaches, Label: "SLA breaches", Framing: Negative,
			When: func(s Signals) bool { return s.SLABreaches90d > ManySLABreaches },
		},
		{
			SubScore: KeyNPS, Label: "Promoter NPS", Framing: Positive,
			When: func(s Signals) bool { return s.HasNPS && s.NPS >= PromoterNPS },
		},
		{
			SubScore: KeyNPS, Label: "Detractor NPS", Framing: Negative,
			When: func(s Signals) bool { return s.HasNPS && s.NPS < 0 },
		},
		{
			SubScore: KeyQBRRecency, Label: "Overdue QBR", Framing: Negative,
			When: func(s Signals) bool { return s.HasQBR && s.DaysSinceQBR > OverdueQBRDays },
		},
		{
			// No QBR earns zero points, so the negative framing costs the full weight.
			SubScore: KeyQBRRecency, Label: "No QBR history", Framing: Negative,
			When: func(s Signals) bool { return !s.HasQBR },
		},
		{
			SubScore: KeyOnboarding, Label: "Extended onboarding", Framing: Negative,
			When: func(s Signals) bool { return s.Onboarding && s.OnboardingDays > OnboardingGraceDays },
		},
	}
}
