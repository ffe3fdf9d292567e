package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func portfolioFixture() []account.Account {
	return []account.Account{
		{Name: "a", Segment: account.SegmentSMB, ARR: 10000, ActiveUsers: 5, SeatsPurchased: 10,
			FeatureAdoption: 0.2, TicketsLast30d: 3, CriticalTickets90d: 1,
			HealthScore: 40, HealthBucket: account.BucketRed,
			RenewalDate: account.DatePtr(now.AddDate(0, 0, 30))},
		{Name: "b", Segment: account.SegmentEnterprise, ARR: 90000, ActiveUsers: 90, SeatsPurchased: 100,
			FeatureAdoption: 0.8, TicketsLast30d: 1,
			HealthScore: 80, HealthBucket: account.BucketGreen,
			RenewalDate: account.DatePtr(now.AddDate(0, 0, 61))},
		{Name: "c", Segment: account.SegmentSMB, ARR: 20000, ActiveUsers: 10, SeatsPurchased: 10,
			FeatureAdoption: 0.5, HealthScore: 60, HealthBucket: account.BucketAmber,
			RenewalDate: account.DatePtr(now)},
		{Name: "d", Segment: account.SegmentMidMarket, ARR: 5000, ActiveUsers: 1, SeatsPurchased: 4,
			RenewalDate: account.DatePtr(now.AddDate(0, 0, -1))},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(portfolioFixture(), now)

	assert.Equal(t, 4, s.TotalAccounts)
	assert.InDelta(t, 125000, s.TotalARR, 1e-9)
	assert.Equal(t, map[string]float64{"Red": 10000, "Green": 90000, "Amber": 20000, Unscored: 5000}, s.ARRByBucket)
	assert.Equal(t, map[string]float64{"SMB": 30000, "Enterprise": 90000, "Mid-Market": 5000}, s.ARRBySegment)
	assert.Equal(t, map[string]int{"Red": 1, "Green": 1, "Amber": 1, Unscored: 1}, s.AccountsByRisk)
	assert.InDelta(t, 25.0, s.RiskBreakdown["Red"], 1e-9)

	// Only scored accounts count toward score statistics.
	assert.InDelta(t, 60, s.AvgHealthScore, 1e-9)
	assert.InDelta(t, 60, s.MedianHealthScore, 1e-9)

	// (0.5 + 0.9 + 1.0 + 0.25) / 4
	assert.InDelta(t, 0.66, s.AvgAdoptionRatio, 1e-9)
	assert.InDelta(t, 0.38, s.AvgFeatureAdoption, 1e-9)
	assert.Equal(t, 4, s.TotalTickets30d)
	assert.Equal(t, 1, s.TotalCritical90d)
	assert.Equal(t, 2, s.RenewalsNext60d)
	assert.InDelta(t, 30000, s.AtRiskARR, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, now)

	assert.Zero(t, s.TotalAccounts)
	assert.NotNil(t, s.ARRByBucket)
	assert.Zero(t, s.AvgHealthScore)
}

func TestMedianEven(t *testing.T) {
	assert.InDelta(t, 50, median([]float64{80, 20, 40, 60}), 1e-9)
}

func TestRoundTiesToEven(t *testing.T) {
	assert.Equal(t, 0.12, round(0.125, 2))
	assert.Equal(t, 0.38, round(0.375, 2))
	assert.Equal(t, 72.5, round(72.5, 2))
}

func TestLoad(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	for _, a := range portfolioFixture() {
		a := a
		_, err := st.UpsertAccount(ctx, &a)
		require.NoError(t, err)
	}

	s, err := Load(ctx, st, now)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalAccounts)
	// Upserted accounts have no snapshot yet.
	assert.Equal(t, 4, s.AccountsByRisk[Unscored])
}
