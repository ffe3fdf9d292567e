package account

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalid marks an account that is missing required fields or holds
// out-of-range values.
var ErrInvalid = errors.New("invalid account")

// Validate checks every field range. The returned error wraps ErrInvalid and
// lists all violations, not just the first.
func (a *Account) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(a.Name) == "" {
		add("name is required")
	}
	if !a.Segment.Valid() {
		add("segment %q must be one of SMB, Mid-Market, Enterprise", a.Segment)
	}
	if !finite(a.ARR) || a.ARR < 0 {
		add("arr must be a finite number >= 0")
	}
	if !finite(a.ExpansionOpptyDollar) || a.ExpansionOpptyDollar < 0 {
		add("expansion_oppty_dollar must be a finite number >= 0")
	}
	if !a.RenewalRisk.Valid() {
		add("renewal_risk %q must be one of Low, Medium, High", a.RenewalRisk)
	}
	if a.ActiveUsers < 0 {
		add("active_users must be >= 0")
	}
	if a.SeatsPurchased < 1 {
		add("seats_purchased must be >= 1")
	}
	if !finite(a.FeatureAdoption) || a.FeatureAdoption < 0 || a.FeatureAdoption > 1 {
		add("feature_x_adoption must be within [0,1]")
	}
	if !finite(a.WeeklyActivePct) || a.WeeklyActivePct < 0 || a.WeeklyActivePct > 1 {
		add("weekly_active_pct must be within [0,1]")
	}
	if a.TimeToValueDays != nil && *a.TimeToValueDays < 0 {
		add("time_to_value_days must be >= 0")
	}
	if a.TicketsLast30d < 0 {
		add("tickets_last_30d must be >= 0")
	}
	if a.CriticalTickets90d < 0 {
		add("critical_tickets_90d must be >= 0")
	}
	if a.SLABreaches90d < 0 {
		add("sla_breaches_90d must be >= 0")
	}
	if a.NPS != nil && (!finite(*a.NPS) || *a.NPS < -100 || *a.NPS > 100) {
		add("nps must be within [-100,100]")
	}

	if len(problems) == 0 {
		return nil
	}
	return eris.Wrapf(ErrInvalid, "account %s: %s", a.Key(), strings.Join(problems, "; "))
}

// finite reports whether v is neither NaN nor an infinity.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
