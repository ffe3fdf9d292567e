// Package portfolio aggregates account health across the whole book of
// business.
package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

// RenewalWindowDays is the horizon for RenewalsNext60d.
const RenewalWindowDays = 60

// Unscored is the bucket key for accounts without a snapshot.
const Unscored = "Unknown"

// Summary is the portfolio overview returned by the API and the CLI.
type Summary struct {
	TotalAccounts      int                `json:"total_accounts"`
	TotalARR           float64            `json:"total_arr"`
	ARRByBucket        map[string]float64 `json:"arr_by_bucket"`
	ARRBySegment       map[string]float64 `json:"arr_by_segment"`
	RiskBreakdown      map[string]float64 `json:"risk_breakdown"`
	AccountsByRisk     map[string]int     `json:"accounts_by_risk"`
	AvgHealthScore     float64            `json:"avg_health_score"`
	MedianHealthScore  float64            `json:"median_health_score"`
	AvgAdoptionRatio   float64            `json:"avg_adoption_ratio"`
	AvgFeatureAdoption float64            `json:"avg_feature_adoption"`
	TotalTickets30d    int                `json:"total_tickets_30d"`
	TotalCritical90d   int                `json:"total_critical_90d"`
	RenewalsNext60d    int                `json:"renewals_next_60d"`
	AtRiskARR          float64            `json:"at_risk_arr"`
}

// Summarize computes the summary for accounts as of now. Score statistics
// only consider accounts that have been scored.
func Summarize(accounts []account.Account, now time.Time) Summary {
	s := Summary{
		TotalAccounts:  len(accounts),
		ARRByBucket:    map[string]float64{},
		ARRBySegment:   map[string]float64{},
		RiskBreakdown:  map[string]float64{},
		AccountsByRisk: map[string]int{},
	}
	if len(accounts) == 0 {
		return s
	}

	today := civilDay(now)
	var scores []float64
	var adoption, features float64

	for i := range accounts {
		a := &accounts[i]
		bucket := string(a.HealthBucket)
		if bucket == "" {
			bucket = Unscored
		} else {
			scores = append(scores, a.HealthScore)
		}

		s.TotalARR += a.ARR
		s.ARRByBucket[bucket] += a.ARR
		s.ARRBySegment[string(a.Segment)] += a.ARR
		s.AccountsByRisk[bucket]++

		adoption += a.AdoptionRatio()
		features += a.FeatureAdoption
		s.TotalTickets30d += a.TicketsLast30d
		s.TotalCritical90d += a.CriticalTickets90d

		if a.RenewalDate != nil {
			days := civilDay(a.RenewalDate.Time) - today
			if days >= 0 && days <= RenewalWindowDays {
				s.RenewalsNext60d++
			}
		}
		if a.HealthBucket == account.BucketAmber || a.HealthBucket == account.BucketRed {
			s.AtRiskARR += a.ARR
		}
	}

	n := float64(len(accounts))
	for bucket, count := range s.AccountsByRisk {
		s.RiskBreakdown[bucket] = round(float64(count)/n*100, 1)
	}
	for k, v := range s.ARRByBucket {
		s.ARRByBucket[k] = round(v, 2)
	}
	for k, v := range s.ARRBySegment {
		s.ARRBySegment[k] = round(v, 2)
	}

	s.TotalARR = round(s.TotalARR, 2)
	s.AtRiskARR = round(s.AtRiskARR, 2)
	s.AvgAdoptionRatio = round(adoption/n, 2)
	s.AvgFeatureAdoption = round(features/n, 2)
	s.AvgHealthScore = round(mean(scores), 2)
	s.MedianHealthScore = round(median(scores), 2)
	return s
}

// Load lists every stored account and summarizes them.
func Load(ctx context.Context, st store.Store, now time.Time) (Summary, error) {
	accounts, err := st.ListAccounts(ctx, store.Filter{})
	if err != nil {
		return Summary{}, eris.Wrap(err, "list accounts for summary")
	}
	return Summarize(accounts, now), nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}

func civilDay(t time.Time) int {
	u := t.UTC()
	return int(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
