// Package account defines the customer account model scored by healthscope,
// together with the health factors and snapshots recorded for it.
package account

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Segment is the commercial segment of an account.
type Segment string

const (
	SegmentSMB        Segment = "SMB"
	SegmentMidMarket  Segment = "Mid-Market"
	SegmentEnterprise Segment = "Enterprise"
)

// Valid reports whether s is a known segment.
func (s Segment) Valid() bool {
	switch s {
	case SegmentSMB, SegmentMidMarket, SegmentEnterprise:
		return true
	}
	return false
}

// RenewalRisk is the account team's own renewal risk call. Empty means unset.
type RenewalRisk string

const (
	RenewalRiskLow    RenewalRisk = "Low"
	RenewalRiskMedium RenewalRisk = "Medium"
	RenewalRiskHigh   RenewalRisk = "High"
)

// Valid reports whether r is unset or a known risk level.
func (r RenewalRisk) Valid() bool {
	switch r {
	case "", RenewalRiskLow, RenewalRiskMedium, RenewalRiskHigh:
		return true
	}
	return false
}

// Bucket is the discrete risk tier derived from a health score.
type Bucket string

const (
	BucketGreen Bucket = "Green"
	BucketAmber Bucket = "Amber"
	BucketRed   Bucket = "Red"
)

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	switch b {
	case BucketGreen, BucketAmber, BucketRed:
		return true
	}
	return false
}

// Account is one tracked customer account.
//
// HealthScore, HealthBucket and LatestSnapshotID are derived: they always
// hold the values of the account's most recent HealthSnapshot and are only
// written by the snapshot recorder.
type Account struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Segment  Segment `json:"segment"`
	Industry string  `json:"industry,omitempty"`
	Region   string  `json:"region,omitempty"`
	Owner    string  `json:"cs_owner,omitempty"`

	ARR                  float64     `json:"arr"`
	RenewalDate          *Date       `json:"renewal_date,omitempty"`
	ExpansionOpptyDollar float64     `json:"expansion_oppty_dollar"`
	RenewalRisk          RenewalRisk `json:"renewal_risk,omitempty"`

	ActiveUsers     int     `json:"active_users"`
	SeatsPurchased  int     `json:"seats_purchased"`
	FeatureAdoption float64 `json:"feature_x_adoption"`
	WeeklyActivePct float64 `json:"weekly_active_pct"`
	TimeToValueDays *int    `json:"time_to_value_days,omitempty"`

	TicketsLast30d     int `json:"tickets_last_30d"`
	CriticalTickets90d int `json:"critical_tickets_90d"`
	SLABreaches90d     int `json:"sla_breaches_90d"`

	NPS *float64 `json:"nps,omitempty"`

	QBRLastDate     *Date `json:"qbr_last_date,omitempty"`
	OnboardingPhase bool  `json:"onboarding_phase"`

	HealthScore      float64 `json:"health_score"`
	HealthBucket     Bucket  `json:"health_bucket,omitempty"`
	LatestSnapshotID string  `json:"latest_snapshot_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdoptionRatio returns active users per purchased seat. Seats below one
// count as one.
func (a *Account) AdoptionRatio() float64 {
	seats := a.SeatsPurchased
	if seats < 1 {
		seats = 1
	}
	return float64(a.ActiveUsers) / float64(seats)
}

// Key identifies the account in batch error reports: the ID when assigned,
// otherwise the name.
func (a *Account) Key() string {
	if a.ID != "" {
		return a.ID
	}
	if a.Name != "" {
		return a.Name
	}
	return "<unnamed>"
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	if a.RenewalDate != nil {
		d := *a.RenewalDate
		c.RenewalDate = &d
	}
	if a.QBRLastDate != nil {
		d := *a.QBRLastDate
		c.QBRLastDate = &d
	}
	if a.TimeToValueDays != nil {
		v := *a.TimeToValueDays
		c.TimeToValueDays = &v
	}
	if a.NPS != nil {
		v := *a.NPS
		c.NPS = &v
	}
	return &c
}

// Date is a calendar date without a time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate returns the calendar date of t in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DatePtr is NewDate returning a pointer, for optional fields.
func DatePtr(t time.Time) *Date {
	d := NewDate(t)
	return &d
}

// ParseDate parses a YYYY-MM-DD string. A full RFC 3339 timestamp is accepted
// and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, eris.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "date must be a string")
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
