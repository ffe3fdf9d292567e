package scoring_test

import (
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newEngine() *scoring.Engine {
	return scoring.NewEngine(scoring.WithClock(func() time.Time { return fixedNow }))
}

func ptr[T any](v T) *T { return &v }

func daysFromNow(n int) *account.Date {
	return account.DatePtr(fixedNow.AddDate(0, 0, n))
}

// healthyAccount has strong adoption, no support load, promoter NPS and a
// recent QBR.
func healthyAccount() *account.Account {
	return &account.Account{
		Name:            "Northwind",
		Segment:         account.SegmentMidMarket,
		ARR:             250000,
		ActiveUsers:     90,
		SeatsPurchased:  100,
		FeatureAdoption: 0.8,
		WeeklyActivePct: 0.7,
		NPS:             ptr(60.0),
		QBRLastDate:     daysFromNow(-10),
		CreatedAt:       fixedNow.AddDate(-2, 0, 0),
	}
}

func atRiskAccount() *account.Account {
	a := healthyAccount()
	a.ActiveUsers = 30
	a.TicketsLast30d = 15
	a.CriticalTickets90d = 4
	a.NPS = ptr(-20.0)
	a.RenewalDate = daysFromNow(20)
	return a
}

func subScore(t *testing.T, r scoring.Result, key string) float64 {
	t.Helper()
	for _, s := range r.Breakdown {
		if s.Key == key {
			return s.Points
		}
	}
	t.Fatalf("sub-score %s not in breakdown", key)
	return 0
}

func labels(factors []account.HealthFactor) []string {
	return account.Labels(factors)
}

func TestScoreHealthyAccount(t *testing.T) {
	r := newEngine().Score(healthyAccount())

	assert.Equal(t, account.BucketGreen, r.Bucket)
	assert.InDelta(t, 77.72, r.Score, 0.01)
	assert.Equal(t, 0.0, r.Adjustment)
	assert.Equal(t, []account.HealthFactor{
		{Label: "Strong user adoption", Impact: 15},
		{Label: "Promoter NPS", Impact: 12},
		{Label: "High feature adoption", Impact: 8},
		{Label: "Zero support tickets", Impact: 8},
	}, r.Factors)
}

func TestScoreAtRiskAccount(t *testing.T) {
	r := newEngine().Score(atRiskAccount())

	assert.Equal(t, account.BucketRed, r.Bucket)
	assert.InDelta(t, 44.52, r.Score, 0.01)
	assert.InDelta(t, -5, r.Adjustment, 1e-9)
	assert.Equal(t, []account.HealthFactor{
		{Label: "Detractor NPS", Impact: -9},
		{Label: "High feature adoption", Impact: 8},
		{Label: "High ticket volume", Impact: -6},
		{Label: "Moderate user adoption", Impact: -5},
		{Label: "Renewal risk: low adoption", Impact: -5},
		{Label: "Multiple critical issues", Impact: -3.2},
	}, r.Factors)

	negative := r.NegativeFactors()
	require.NotEmpty(t, negative)
	assert.Equal(t, "Detractor NPS", negative[0].Label)
}

func TestScoreMissingOptionalSignalsAreNeutral(t *testing.T) {
	a := healthyAccount()
	a.NPS = nil
	a.TimeToValueDays = nil
	a.QBRLastDate = nil

	r := newEngine().Score(a)

	assert.InDelta(t, 7.5, subScore(t, r, scoring.KeyNPS), 1e-9)
	assert.InDelta(t, 5, subScore(t, r, scoring.KeyTimeToValue), 1e-9)
	assert.Equal(t, 0.0, subScore(t, r, scoring.KeyQBRRecency))
	assert.Contains(t, r.Factors, account.HealthFactor{Label: "No QBR history", Impact: -5})
	assert.NotContains(t, labels(r.Factors), "Promoter NPS")
}

func TestScoreTimeToValue(t *testing.T) {
	tests := []struct {
		days       int
		wantPoints float64
		wantLabel  string
	}{
		{days: 0, wantPoints: 10, wantLabel: "Fast time to value"},
		{days: 30, wantPoints: 10 * (1 - 30.0/180), wantLabel: "Fast time to value"},
		{days: 60, wantPoints: 10 * (1 - 60.0/180)},
		{days: 120, wantPoints: 10 * (1 - 120.0/180), wantLabel: "Slow time to value"},
		{days: 400, wantPoints: 0, wantLabel: "Slow time to value"},
	}

	for _, tt := range tests {
		a := healthyAccount()
		a.TimeToValueDays = ptr(tt.days)
		r := newEngine().Score(a)

		assert.InDelta(t, tt.wantPoints, subScore(t, r, scoring.KeyTimeToValue), 1e-9, "days=%d", tt.days)
		got := labels(r.Factors)
		if tt.wantLabel != "" {
			assert.Contains(t, got, tt.wantLabel, "days=%d", tt.days)
		} else {
			assert.NotContains(t, got, "Fast time to value")
			assert.NotContains(t, got, "Slow time to value")
		}
	}
}

func TestScoreOnboarding(t *testing.T) {
	tests := []struct {
		name       string
		onboarding bool
		ageDays    int
		wantPoints float64
		wantFactor bool
	}{
		{name: "live", onboarding: false, ageDays: 400, wantPoints: 5},
		{name: "within grace", onboarding: true, ageDays: 10, wantPoints: 3},
		{name: "at grace boundary", onboarding: true, ageDays: 30, wantPoints: 3},
		{name: "extended", onboarding: true, ageDays: 45, wantPoints: 0, wantFactor: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := healthyAccount()
			a.OnboardingPhase = tt.onboarding
			a.CreatedAt = fixedNow.AddDate(0, 0, -tt.ageDays)

			r := newEngine().Score(a)
			assert.InDelta(t, tt.wantPoints, subScore(t, r, scoring.KeyOnboarding), 1e-9)
			if tt.wantFactor {
				assert.Contains(t, r.Factors, account.HealthFactor{Label: "Extended onboarding", Impact: -5})
			} else {
				assert.NotContains(t, labels(r.Factors), "Extended onboarding")
			}
		})
	}
}

func TestScoreOverdueQBR(t *testing.T) {
	a := healthyAccount()
	a.QBRLastDate = daysFromNow(-150)

	r := newEngine().Score(a)
	points := 5 * (1 - 150.0/180)
	assert.InDelta(t, points, subScore(t, r, scoring.KeyQBRRecency), 1e-9)
	assert.Contains(t, r.Factors, account.HealthFactor{Label: "Overdue QBR", Impact: math.RoundToEven((points-5)*10) / 10})
}

func TestScorePerfectAccountReachesCeiling(t *testing.T) {
	a := &account.Account{
		Name:                 "Globex",
		Segment:              account.SegmentEnterprise,
		ARR:                  100000,
		ExpansionOpptyDollar: 100000,
		ActiveUsers:          240,
		SeatsPurchased:       200,
		FeatureAdoption:      1,
		WeeklyActivePct:      1,
		TimeToValueDays:      ptr(0),
		NPS:                  ptr(100.0),
		QBRLastDate:          daysFromNow(0),
	}

	r := newEngine().Score(a)
	assert.InDelta(t, scoring.MaxBaseScore, r.Base, 1e-9)
	assert.InDelta(t, 10, r.Adjustment, 1e-9)
	assert.InDelta(t, scoring.MaxScore, r.Score, 1e-9)
	assert.Equal(t, account.BucketGreen, r.Bucket)
	assert.Contains(t, r.Factors, account.HealthFactor{Label: "Strong expansion opportunity", Impact: 10})
}

func TestScoreKeepsTopTenFactors(t *testing.T) {
	a := &account.Account{
		Name:               "Initech",
		Segment:            account.SegmentSMB,
		ARR:                20000,
		ActiveUsers:        2,
		SeatsPurchased:     50,
		FeatureAdoption:    0.1,
		WeeklyActivePct:    0.1,
		TimeToValueDays:    ptr(150),
		TicketsLast30d:     18,
		CriticalTickets90d: 7,
		SLABreaches90d:     4,
		NPS:                ptr(-60.0),
		QBRLastDate:        daysFromNow(-170),
		OnboardingPhase:    true,
		CreatedAt:          fixedNow.AddDate(0, -3, 0),
		RenewalDate:        daysFromNow(5),
	}

	r := newEngine().Score(a)
	require.Len(t, r.Factors, scoring.MaxFactors)
	assert.Equal(t, account.BucketRed, r.Bucket)
	assert.True(t, sort.SliceIsSorted(r.Factors, func(i, j int) bool {
		return math.Abs(r.Factors[i].Impact) > math.Abs(r.Factors[j].Impact)
	}))
	for _, f := range r.Factors {
		assert.Negative(t, f.Impact, f.Label)
	}
	assert.Equal(t, "Low user adoption", r.Factors[0].Label)
}

func TestScoreIsIdempotent(t *testing.T) {
	e := newEngine()
	for _, a := range []*account.Account{healthyAccount(), atRiskAccount()} {
		first := e.Score(a)
		second := e.Score(a)
		assert.Equal(t, first, second)
	}
}

func TestScoreRangeAndBucket(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := newEngine()

	for i := 0; i < 500; i++ {
		a := &account.Account{
			Name:                 "random",
			Segment:              account.SegmentSMB,
			ARR:                  rng.Float64() * 1e6,
			ExpansionOpptyDollar: rng.Float64() * 1e6,
			ActiveUsers:          rng.Intn(400),
			SeatsPurchased:       1 + rng.Intn(300),
			FeatureAdoption:      rng.Float64(),
			WeeklyActivePct:      rng.Float64(),
			TicketsLast30d:       rng.Intn(40),
			CriticalTickets90d:   rng.Intn(20),
			SLABreaches90d:       rng.Intn(10),
			OnboardingPhase:      rng.Intn(2) == 0,
			CreatedAt:            fixedNow.AddDate(0, 0, -rng.Intn(200)),
		}
		if rng.Intn(2) == 0 {
			a.NPS = ptr(rng.Float64()*200 - 100)
		}
		if rng.Intn(2) == 0 {
			a.TimeToValueDays = ptr(rng.Intn(365))
		}
		if rng.Intn(2) == 0 {
			a.QBRLastDate = daysFromNow(-rng.Intn(365))
		}
		if rng.Intn(2) == 0 {
			a.RenewalDate = daysFromNow(rng.Intn(200) - 50)
		}
		require.NoError(t, a.Validate())

		r := e.Score(a)
		require.GreaterOrEqual(t, r.Score, 0.0)
		require.LessOrEqual(t, r.Score, scoring.MaxScore)
		require.Equal(t, scoring.BucketFromScore(r.Score), r.Bucket)
		require.LessOrEqual(t, len(r.Factors), scoring.MaxFactors)
	}
}

func TestBucketFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  account.Bucket
	}{
		{110, account.BucketGreen},
		{75, account.BucketGreen},
		{74.999, account.BucketAmber},
		{50, account.BucketAmber},
		{49.999, account.BucketRed},
		{0, account.BucketRed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.BucketFromScore(tt.score), "score=%v", tt.score)
	}
}

func TestAdoptionIsMonotonicInActiveUsers(t *testing.T) {
	e := newEngine()
	a := healthyAccount()
	prev := -1.0
	for users := 0; users <= 130; users += 5 {
		a.ActiveUsers = users
		adoption := subScore(t, e.Score(a), scoring.KeyAdoptionRatio)
		assert.GreaterOrEqual(t, adoption, prev, "active_users=%d", users)
		prev = adoption
	}
}

func TestSupportIsMonotonicInTickets(t *testing.T) {
	e := newEngine()
	a := healthyAccount()
	prev := math.Inf(1)
	for tickets := 0; tickets <= 30; tickets++ {
		a.TicketsLast30d = tickets
		support := subScore(t, e.Score(a), scoring.KeySupportTickets)
		assert.LessOrEqual(t, support, prev, "tickets=%d", tickets)
		prev = support
	}
}

func TestCustomWeights(t *testing.T) {
	w, err := scoring.Defaults().Apply(map[string]float64{
		scoring.KeyAdoptionRatio: 10,
		scoring.KeyNPS:           25,
	})
	require.NoError(t, err)

	r := scoring.NewEngine(scoring.WithClock(func() time.Time { return fixedNow }), scoring.WithWeights(w)).
		Score(healthyAccount())
	assert.InDelta(t, 7.5, subScore(t, r, scoring.KeyAdoptionRatio), 1e-9)
	assert.InDelta(t, 20, subScore(t, r, scoring.KeyNPS), 1e-9)
	assert.Contains(t, r.Factors, account.HealthFactor{Label: "Promoter NPS", Impact: 20})
}
