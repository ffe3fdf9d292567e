package scoring

// Normalization ranges of the raw signals.
const (
	SessionProxyMax     = 100.0
	TimeToValueMaxDays  = 180.0
	TicketsMax          = 20.0
	CriticalTicketsMax  = 10.0
	SLABreachesMax      = 5.0
	QBRMaxDays          = 180.0
	OnboardingGraceDays = 30

	// onboardingInGraceCredit is the share of the onboarding weight earned
	// while onboarding is still within the grace period.
	onboardingInGraceCredit = 0.6
	// neutralCredit is the share granted when an optional signal is unknown.
	neutralCredit = 0.5
)

// subScore is one row of the weight table: a key and a credit function
// returning the share of the weight earned, in [0, 1].
type subScore struct {
	key    string
	name   string
	group  Group
	credit func(s Signals) float64
}

// subScores is the weight table. Order is the order of the breakdown.
var subScores = []subScore{
	{
		key: KeyAdoptionRatio, name: "User adoption ratio", group: GroupAdoption,
		credit: func(s Signals) float64 {
			return Normalize(s.AdoptionRatio, 0, MaxAdoptionRatio, false)
		},
	},
	{
		key: KeyFeatureAdoption, name: "Feature adoption", group: GroupAdoption,
		credit: func(s Signals) float64 {
			return Normalize(s.FeatureAdoption, 0, 1, false)
		},
	},
	{
		key: KeyWeeklyActive, name: "Weekly active users", group: GroupAdoption,
		credit: func(s Signals) float64 {
			return Normalize(s.WeeklyActive, 0, 1, false)
		},
	},
	{
		key: KeySessionTime, name: "Session time", group: GroupEngagement,
		credit: func(s Signals) float64 {
			return Normalize(s.SessionProxy, 0, SessionProxyMax, false)
		},
	},
	{
		key: KeyTimeToValue, name: "Time to value", group: GroupEngagement,
		credit: func(s Signals) float64 {
			if !s.HasTimeToValue {
				return neutralCredit
			}
			return Normalize(s.TimeToValueDays, 0, TimeToValueMaxDays, true)
		},
	},
	{
		key: KeySupportTickets, name: "Support tickets (30d)", group: GroupSupport,
		credit: func(s Signals) float64 {
			return Normalize(s.Tickets30d, 0, TicketsMax, true)
		},
	},
	{
		key: KeyCriticalTickets, name: "Critical tickets (90d)", group: GroupSupport,
		credit: func(s Signals) float64 {
			return Normalize(s.Critical90d, 0, CriticalTicketsMax, true)
		},
	},
	{
		key: KeySLABreaches, name: "SLA breaches (90d)", group: GroupSupport,
		credit: func(s Signals) float64 {
			return Normalize(s.SLABreaches90d, 0, SLABreachesMax, true)
		},
	},
	{
		key: KeyNPS, name: "Net promoter score", group: GroupAdvocacy,
		credit: func(s Signals) float64 {
			if !s.HasNPS {
				return neutralCredit
			}
			return Normalize(s.NPS, -100, 100, false)
		},
	},
	{
		key: KeyQBRRecency, name: "QBR recency", group: GroupProcess,
		credit: func(s Signals) float64 {
			if !s.HasQBR {
				return 0
			}
			return Normalize(float64(s.DaysSinceQBR), 0, QBRMaxDays, true)
		},
	},
	{
		key: KeyOnboarding, name: "Onboarding hygiene", group: GroupProcess,
		credit: func(s Signals) float64 {
			switch {
			case !s.Onboarding:
				return 1
			case s.OnboardingDays > OnboardingGraceDays:
				return 0
			default:
				return onboardingInGraceCredit
			}
		},
	},
}
