package fairness

import (
	"fmt"
	"sort"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
)

const (
	// MinSampleSize is the smallest pool the calculator will score. Below it
	// the rates are too noisy to call anything disparate.
	MinSampleSize = 5

	// metricPenalty is subtracted from the overall 0-100 score for every
	// failed metric.
	metricPenalty = 20.0
)

// Thresholds are the pass/fail cutoffs applied by IsFair and the overall
// score.
type Thresholds struct {
	DemographicParityMax float64
	DisparateImpactMin   float64
	EqualOpportunityMax  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DemographicParityMax: 0.10,
		DisparateImpactMin:   0.80,
		EqualOpportunityMax:  0.10,
	}
}

// GroupStats is the per-group confusion-matrix breakdown behind every metric.
type GroupStats struct {
	Count    int `json:"count"`
	Selected int `json:"selected"`

	SelectionRate float64 `json:"selection_rate"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`

	TruePositiveRate  Ratio `json:"true_positive_rate"`
	FalsePositiveRate Ratio `json:"false_positive_rate"`
	Precision         Ratio `json:"precision"`
}

// Metrics is the full statistical-parity result for one evaluation. A Metrics
// value is created once and never mutated afterwards.
type Metrics struct {
	InsufficientData bool   `json:"insufficient_data"`
	Reason           string `json:"reason,omitempty"`

	SampleSize int `json:"sample_size"`
	KnownSize  int `json:"known_size"`

	Groups         []string               `json:"groups"`
	GroupStats     map[string]*GroupStats `json:"group_stats,omitempty"`
	SelectionRates map[string]float64     `json:"selection_rates,omitempty"`

	DemographicParityDifference float64          `json:"demographic_parity_difference"`
	DemographicParityRatio      Ratio            `json:"demographic_parity_ratio"`
	DisparateImpact             map[string]Ratio `json:"disparate_impact,omitempty"`
	EightyPercentRulePass       bool             `json:"eighty_percent_rule_pass"`

	EqualOpportunityDifference float64 `json:"equal_opportunity_difference"`
	// EqualOpportunityProxy is set when no ground truth was supplied and the
	// predicted-positive rate stands in for the true-positive rate. The
	// number then measures demographic parity, not true equal opportunity,
	// and must be presented as such.
	EqualOpportunityProxy      bool `json:"equal_opportunity_proxy"`
	EqualOpportunityApplicable bool `json:"equal_opportunity_applicable"`

	EqualizedOddsDifference    float64 `json:"equalized_odds_difference"`
	EqualizedOddsApplicable    bool    `json:"equalized_odds_applicable"`
	PredictiveParityDifference float64 `json:"predictive_parity_difference"`
	PredictiveParityApplicable bool    `json:"predictive_parity_applicable"`

	OverallScore float64 `json:"overall_fairness_score"`

	thresholds Thresholds
}

// insufficient builds the explicit "cannot compute" marker the spec requires
// instead of fabricated numbers.
func insufficient(reason string, sample, known int, groups []string) *Metrics {
	sort.Strings(groups)
	return &Metrics{
		InsufficientData: true,
		Reason:           reason,
		SampleSize:       sample,
		KnownSize:        known,
		Groups:           groups,
		thresholds:       DefaultThresholds(),
	}
}

// Evaluate computes all parity metrics from parallel per-candidate vectors.
// predictions are binary selected/not values, labels are binary ground truth
// (nil when unavailable, which switches equal opportunity to the documented
// predicted-positive proxy), sensitive carries the group label per candidate.
func Evaluate(predictions []int, labels []int, sensitive []string) (*Metrics, error) {
	return EvaluateWithThresholds(predictions, labels, sensitive, DefaultThresholds())
}

func EvaluateWithThresholds(predictions []int, labels []int, sensitive []string, thresholds Thresholds) (*Metrics, error) {
	if len(predictions) != len(sensitive) {
		return nil, fmt.Errorf("predictions (%d) and sensitive features (%d) must have the same length", len(predictions), len(sensitive))
	}

	proxy := labels == nil
	if !proxy && len(labels) != len(predictions) {
		return nil, fmt.Errorf("labels (%d) and predictions (%d) must have the same length", len(labels), len(predictions))
	}

	sample := len(predictions)

	// Partition by group, dropping the unknown bucket only when at least two
	// known groups exist.
	byGroup := make(map[string][]int)
	for i, g := range sensitive {
		if g == "" {
			g = candidate.UnknownGroup
		}
		byGroup[g] = append(byGroup[g], i)
	}
	knownNames := make([]string, 0, len(byGroup))
	for g := range byGroup {
		if g != candidate.UnknownGroup {
			knownNames = append(knownNames, g)
		}
	}
	if len(knownNames) >= 2 {
		delete(byGroup, candidate.UnknownGroup)
	}

	groups := make([]string, 0, len(byGroup))
	known := 0
	for g, idx := range byGroup {
		groups = append(groups, g)
		if g != candidate.UnknownGroup {
			known += len(idx)
		}
	}
	sort.Strings(groups)

	if len(knownNames) < 2 {
		return insufficient("single group", sample, known, groups), nil
	}

	m := &Metrics{
		SampleSize:            sample,
		KnownSize:             known,
		Groups:                groups,
		GroupStats:            make(map[string]*GroupStats, len(groups)),
		SelectionRates:        make(map[string]float64, len(groups)),
		DisparateImpact:       make(map[string]Ratio),
		EqualOpportunityProxy: proxy,
		thresholds:            thresholds,
	}

	// Small samples are still computed so callers see the actual rates, but
	// numbers over so few candidates are noise and must carry the flag.
	if sample < MinSampleSize {
		m.InsufficientData = true
		m.Reason = fmt.Sprintf("sample size %d below minimum %d", sample, MinSampleSize)
	}

	for _, g := range groups {
		m.GroupStats[g] = confusion(byGroup[g], predictions, labels)
		m.SelectionRates[g] = m.GroupStats[g].SelectionRate
	}

	m.computeParity()
	m.computeOddsAndPrecision()
	m.OverallScore = m.overallScore()

	return m, nil
}

// confusion tallies the selection and confusion-matrix counts for one group.
// With nil labels the group's selection rate stands in for its true-positive
// rate and the label-dependent rates stay undefined.
func confusion(indexes []int, predictions, labels []int) *GroupStats {
	s := &GroupStats{Count: len(indexes)}
	for _, i := range indexes {
		if predictions[i] == 1 {
			s.Selected++
		}
	}
	s.SelectionRate = float64(s.Selected) / float64(s.Count)

	if labels == nil {
		s.TruePositiveRate = NewRatio(float64(s.Selected), float64(s.Count))
		s.FalsePositiveRate = NewRatio(0, 0)
		s.Precision = NewRatio(0, 0)
		return s
	}

	for _, i := range indexes {
		if predictions[i] == 1 {
			if labels[i] == 1 {
				s.TruePositives++
			} else {
				s.FalsePositives++
			}
		} else if labels[i] == 1 {
			s.FalseNegatives++
		} else {
			s.TrueNegatives++
		}
	}

	s.TruePositiveRate = NewRatio(float64(s.TruePositives), float64(s.TruePositives+s.FalseNegatives))
	s.FalsePositiveRate = NewRatio(float64(s.FalsePositives), float64(s.FalsePositives+s.TrueNegatives))
	s.Precision = NewRatio(float64(s.TruePositives), float64(s.Selected))

	return s
}

func (m *Metrics) computeParity() {
	minRate, maxRate := m.SelectionRates[m.Groups[0]], m.SelectionRates[m.Groups[0]]
	for _, g := range m.Groups {
		r := m.SelectionRates[g]
		if r < minRate {
			minRate = r
		}
		if r > maxRate {
			maxRate = r
		}
	}

	m.DemographicParityDifference = maxRate - minRate
	m.DemographicParityRatio = NewRatio(minRate, maxRate)

	// Pairwise ratios in both directions; the 80% rule passes only when
	// every defined ratio clears the cutoff. Undefined ratios (comparison
	// group selected nobody) are reported but cannot fail the rule.
	m.EightyPercentRulePass = true
	for _, a := range m.Groups {
		for _, b := range m.Groups {
			if a == b {
				continue
			}
			r := NewRatio(m.SelectionRates[a], m.SelectionRates[b])
			m.DisparateImpact[a+"_vs_"+b] = r
			if r.Applicable() && r.Value() < m.thresholds.DisparateImpactMin {
				m.EightyPercentRulePass = false
			}
		}
	}
}

// computeOddsAndPrecision derives the equal-opportunity, equalized-odds and
// predictive-parity differences as max-min spreads of per-group rates,
// skipping groups where the underlying rate is undefined. A spread needs at
// least two defined groups to be applicable.
func (m *Metrics) computeOddsAndPrecision() {
	spread := func(pick func(*GroupStats) Ratio) (float64, bool) {
		var minV, maxV float64
		defined := 0
		for _, g := range m.Groups {
			r := pick(m.GroupStats[g])
			if !r.Applicable() {
				continue
			}
			v := r.Value()
			if defined == 0 || v < minV {
				minV = v
			}
			if defined == 0 || v > maxV {
				maxV = v
			}
			defined++
		}
		if defined < 2 {
			return 0, false
		}
		return maxV - minV, true
	}

	m.EqualOpportunityDifference, m.EqualOpportunityApplicable = spread(func(s *GroupStats) Ratio { return s.TruePositiveRate })
	m.EqualizedOddsDifference, m.EqualizedOddsApplicable = spread(func(s *GroupStats) Ratio { return s.FalsePositiveRate })
	m.PredictiveParityDifference, m.PredictiveParityApplicable = spread(func(s *GroupStats) Ratio { return s.Precision })
}

// overallScore starts at 100 and loses a fixed penalty per failed metric,
// floored at 0. Metrics that are not applicable cannot fail.
func (m *Metrics) overallScore() float64 {
	score := 100.0
	if m.DemographicParityDifference > m.thresholds.DemographicParityMax {
		score -= metricPenalty
	}
	if !m.EightyPercentRulePass {
		score -= metricPenalty
	}
	if m.EqualOpportunityApplicable && m.EqualOpportunityDifference > m.thresholds.EqualOpportunityMax {
		score -= metricPenalty
	}
	if m.EqualizedOddsApplicable && m.EqualizedOddsDifference > m.thresholds.EqualOpportunityMax {
		score -= metricPenalty
	}
	if m.PredictiveParityApplicable && m.PredictiveParityDifference > m.thresholds.EqualOpportunityMax {
		score -= metricPenalty
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Thresholds returns the cutoffs this evaluation was scored against.
func (m *Metrics) Thresholds() Thresholds {
	return m.thresholds
}

// IsFair reports whether the evaluation clears every configured cutoff:
// demographic-parity difference, all defined disparate-impact ratios, and the
// equal-opportunity difference. Insufficient-data results are never fair nor
// unfair; they report false here and must be read through the flag.
func (m *Metrics) IsFair(t Thresholds) bool {
	if m.InsufficientData {
		return false
	}
	if m.DemographicParityDifference > t.DemographicParityMax {
		return false
	}
	for _, r := range m.DisparateImpact {
		if r.Applicable() && r.Value() < t.DisparateImpactMin {
			return false
		}
	}
	if m.EqualOpportunityApplicable && m.EqualOpportunityDifference > t.EqualOpportunityMax {
		return false
	}
	return true
}
