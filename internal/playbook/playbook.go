// Package playbook maps the negative factors of a health snapshot to
// remediation playbooks.
package playbook

import (
	_ "embed"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultLimit is the number of recommendations returned when none is given.
const DefaultLimit = 5

// Priority ranks how urgent a playbook is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) boost() float64 {
	switch p {
	case PriorityHigh:
		return 0.2
	case PriorityMedium:
		return 0.1
	default:
		return 0
	}
}

// Playbook is a remediation plan for a set of risk factors.
type Playbook struct {
	ID              int      `yaml:"id" json:"id"`
	Title           string   `yaml:"title" json:"title"`
	Description     string   `yaml:"description" json:"description"`
	Category        string   `yaml:"category" json:"category"`
	Priority        Priority `yaml:"priority" json:"priority"`
	EstimatedEffort string   `yaml:"estimated_effort" json:"estimated_effort"`
	RiskFactors     []string `yaml:"risk_factors" json:"risk_factors"`
	Steps           []string `yaml:"steps" json:"steps"`
}

// Recommendation is a playbook ranked against an account's risk factors.
type Recommendation struct {
	Playbook            Playbook `json:"playbook"`
	RelevanceScore      float64  `json:"relevance_score"`
	MatchingRiskFactors []string `json:"matching_risk_factors"`
}

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog holds the available playbooks in catalog order.
type Catalog struct {
	playbooks []Playbook
}

// Parse decodes a YAML playbook list.
func Parse(data []byte) (*Catalog, error) {
	var playbooks []Playbook
	if err := yaml.Unmarshal(data, &playbooks); err != nil {
		return nil, eris.Wrap(err, "parse playbook catalog")
	}
	for _, p := range playbooks {
		if len(p.RiskFactors) == 0 {
			return nil, eris.Errorf("playbook %d (%s) has no risk factors", p.ID, p.Title)
		}
	}
	return &Catalog{playbooks: playbooks}, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every playbook in catalog order.
func (c *Catalog) All() []Playbook {
	return append([]Playbook(nil), c.playbooks...)
}

// Recommend ranks the playbooks against riskFactors, usually the labels of
// the negative factors from an account's latest snapshot. An input factor
// matches a playbook when it contains one of the playbook's keys, ignoring
// case. Relevance is the share of input factors matched plus the priority
// boost, capped at 1. Playbooks with no match are left out. A limit of zero
// or less means DefaultLimit.
func (c *Catalog) Recommend(riskFactors []string, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}

	recs := []Recommendation{}
	for _, p := range c.playbooks {
		matching := matchFactors(p.RiskFactors, riskFactors)
		if len(matching) == 0 {
			continue
		}
		relevance := float64(len(matching))/float64(len(riskFactors)) + p.Priority.boost()
		recs = append(recs, Recommendation{
			Playbook:            p,
			RelevanceScore:      math.RoundToEven(math.Min(1, relevance)*100) / 100,
			MatchingRiskFactors: matching,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RelevanceScore > recs[j].RelevanceScore
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func matchFactors(keys, riskFactors []string) []string {
	var matching []string
	for _, rf := range riskFactors {
		lower := strings.ToLower(rf)
		for _, k := range keys {
			if strings.Contains(lower, strings.ToLower(k)) {
				matching = append(matching, rf)
				break
			}
		}
	}
	return matching
}
