package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/healthscope/healthscope/pkg/account"
)

// Engine scores accounts against a weight table, a rule table and the
// commercial adjuster. It holds no per-account state; Score is safe for
// concurrent use.
type Engine struct {
	weights    Weights
	rules      []Rule
	commercial Commercial
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for day arithmetic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWeights replaces the default weights. Callers validate them first
// with Weights.Validate.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithRules replaces the default threshold table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithCommercial replaces the default commercial adjustment settings.
func WithCommercial(c Commercial) Option {
	return func(e *Engine) { e.commercial = c }
}

// NewEngine creates an engine with default weights, rules and commercial
// settings, then applies opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights:    Defaults(),
		rules:      DefaultRules(),
		commercial: DefaultCommercial(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the engine's weight table.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Score computes the health score of a. It never fails: missing optional
// signals fall back to their documented defaults.
func (e *Engine) Score(a *account.Account) Result {
	return e.ScoreSignals(DeriveSignals(a, e.now()))
}

// ScoreSignals scores already-derived signals.
func (e *Engine) ScoreSignals(s Signals) Result {
	var result Result

	points := make(map[string]float64, len(subScores))
	for _, ss := range subScores {
		weight := e.weights.Get(ss.key)
		p := ss.credit(s) * weight
		points[ss.key] = p
		result.Base += p
		result.Breakdown = append(result.Breakdown, SubScore{
			Key:    ss.key,
			Name:   ss.name,
			Group:  ss.group,
			Points: p,
			Weight: weight,
		})
	}

	var factors []account.HealthFactor
	for _, r := range e.rules {
		if !r.When(s) {
			continue
		}
		factors = append(factors, account.HealthFactor{
			Label:  r.Label,
			Impact: roundImpact(r.Impact(points[r.SubScore], e.weights.Get(r.SubScore))),
		})
	}

	adj := e.commercial.Adjust(s)
	result.Adjustment = adj.Points
	factors = append(factors, adj.Factors...)

	result.Score = clamp(result.Base+result.Adjustment, 0, MaxScore)
	result.Bucket = BucketFromScore(result.Score)
	result.Factors = rankFactors(factors)
	return result
}

// rankFactors orders factors by descending absolute impact, keeping emission
// order for ties, and keeps the top MaxFactors.
func rankFactors(factors []account.HealthFactor) []account.HealthFactor {
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Impact) > math.Abs(factors[j].Impact)
	})
	if len(factors) > MaxFactors {
		factors = factors[:MaxFactors]
	}
	if factors == nil {
		factors = []account.HealthFactor{}
	}
	return factors
}

var defaultEngine = NewEngine()

// ScoreAccount scores a with the default engine and the wall clock.
func ScoreAccount(a *account.Account) Result {
	return defaultEngine.Score(a)
}
