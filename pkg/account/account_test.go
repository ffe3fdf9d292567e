package account_test

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthscope/healthscope/pkg/account"
)

func validAccount() *account.Account {
	return &account.Account{
		Name:            "Acme",
		Segment:         account.SegmentEnterprise,
		ARR:             120000,
		ActiveUsers:     40,
		SeatsPurchased:  50,
		FeatureAdoption: 0.5,
		WeeklyActivePct: 0.6,
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	badNPS := 150.0
	nanNPS := math.NaN()
	infNPS := math.Inf(-1)

	tests := []struct {
		name    string
		mutate  func(a *account.Account)
		wantErr string
	}{
		{name: "valid", mutate: func(*account.Account) {}},
		{name: "missing name", mutate: func(a *account.Account) { a.Name = "  " }, wantErr: "name is required"},
		{name: "unknown segment", mutate: func(a *account.Account) { a.Segment = "Startup" }, wantErr: "segment"},
		{name: "zero seats", mutate: func(a *account.Account) { a.SeatsPurchased = 0 }, wantErr: "seats_purchased"},
		{name: "negative arr", mutate: func(a *account.Account) { a.ARR = -5 }, wantErr: "arr must be"},
		{name: "feature adoption above one", mutate: func(a *account.Account) { a.FeatureAdoption = 1.2 }, wantErr: "feature_x_adoption"},
		{name: "negative time to value", mutate: func(a *account.Account) { a.TimeToValueDays = &neg }, wantErr: "time_to_value_days"},
		{name: "nps out of range", mutate: func(a *account.Account) { a.NPS = &badNPS }, wantErr: "nps"},
		{name: "bad renewal risk", mutate: func(a *account.Account) { a.RenewalRisk = "Severe" }, wantErr: "renewal_risk"},
		{name: "nan arr", mutate: func(a *account.Account) { a.ARR = math.NaN() }, wantErr: "arr must be"},
		{name: "infinite arr", mutate: func(a *account.Account) { a.ARR = math.Inf(1) }, wantErr: "arr must be"},
		{name: "nan expansion", mutate: func(a *account.Account) { a.ExpansionOpptyDollar = math.NaN() }, wantErr: "expansion_oppty_dollar"},
		{name: "nan feature adoption", mutate: func(a *account.Account) { a.FeatureAdoption = math.NaN() }, wantErr: "feature_x_adoption"},
		{name: "nan weekly active", mutate: func(a *account.Account) { a.WeeklyActivePct = math.NaN() }, wantErr: "weekly_active_pct"},
		{name: "nan nps", mutate: func(a *account.Account) { a.NPS = &nanNPS }, wantErr: "nps"},
		{name: "infinite nps", mutate: func(a *account.Account) { a.NPS = &infNPS }, wantErr: "nps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAccount()
			tt.mutate(a)
			err := a.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, account.ErrInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRejectsParsedNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		v, err := strconv.ParseFloat(raw, 64)
		require.NoError(t, err, raw)

		a := validAccount()
		a.FeatureAdoption = v
		err = a.Validate()
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, account.ErrInvalid), raw)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	a := &account.Account{Segment: "x", SeatsPurchased: 0}
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "segment")
	assert.Contains(t, err.Error(), "seats_purchased")
}

func TestAdoptionRatio(t *testing.T) {
	a := &account.Account{ActiveUsers: 30, SeatsPurchased: 0}
	assert.Equal(t, 30.0, a.AdoptionRatio())

	a.SeatsPurchased = 60
	assert.Equal(t, 0.5, a.AdoptionRatio())
}

func TestDateJSON(t *testing.T) {
	var out struct {
		Renewal *account.Date `json:"renewal_date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"renewal_date":"2026-11-05"}`), &out))
	require.NotNil(t, out.Renewal)
	assert.Equal(t, time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC), out.Renewal.Time)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"renewal_date":"2026-11-05"}`, string(b))

	err = json.Unmarshal([]byte(`{"renewal_date":"05/11/2026"}`), &out)
	assert.Error(t, err)
}

func TestParseDateAcceptsTimestamp(t *testing.T) {
	d, err := account.ParseDate("2026-03-01T18:30:00-08:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", d.String())
}

func TestNegativeFactors(t *testing.T) {
	s := &account.HealthSnapshot{Factors: []account.HealthFactor{
		{Label: "Detractor NPS", Impact: -9},
		{Label: "High feature adoption", Impact: 8},
		{Label: "Renewal risk: low adoption", Impact: -5},
	}}
	assert.Equal(t, []string{"Detractor NPS", "Renewal risk: low adoption"}, account.Labels(s.NegativeFactors()))
}

func TestCloneIsDeep(t *testing.T) {
	nps := 10.0
	a := validAccount()
	a.NPS = &nps
	a.QBRLastDate = account.DatePtr(time.Now())

	c := a.Clone()
	*c.NPS = 99
	c.QBRLastDate.Time = time.Time{}

	assert.Equal(t, 10.0, *a.NPS)
	assert.False(t, a.QBRLastDate.IsZero())
}
