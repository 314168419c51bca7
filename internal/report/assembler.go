package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/shortlist"
)

// Version identifies the report structure; consumers pin against it.
const Version = "1.0"

// MetricRow is one line of the pass/fail table. Value reuses the NA-able
// ratio type so undefined metrics render as "not_applicable" instead of a
// fabricated number.
type MetricRow struct {
	Name      string         `json:"metric"`
	Value     fairness.Ratio `json:"value"`
	Threshold float64        `json:"threshold"`
	Passes    bool           `json:"passes"`
}

// GroupBreakdown is the per-group slice of the audited decision. Score
// summaries are present only when the assembler saw the candidate scores,
// which happens on the shortlist path.
type GroupBreakdown struct {
	Count         int     `json:"count"`
	Selected      int     `json:"selected"`
	SelectionRate float64 `json:"selection_rate"`

	MeanScore   float64 `json:"mean_score,omitempty"`
	MedianScore float64 `json:"median_score,omitempty"`
	MinScore    float64 `json:"min_score,omitempty"`
	MaxScore    float64 `json:"max_score,omitempty"`
}

// ShortlistSummary carries the strategy-specific audit trail into the report.
type ShortlistSummary struct {
	Method          shortlist.Method   `json:"method"`
	Attribute       string             `json:"attribute"`
	TargetSize      int                `json:"target_size"`
	SelectedCount   int                `json:"selected_count"`
	SingleGroup     bool               `json:"single_group,omitempty"`
	AdjustmentMade  bool               `json:"adjustment_made,omitempty"`
	BeforeRatio     fairness.Ratio     `json:"before_ratio,omitzero"`
	AfterRatio      fairness.Ratio     `json:"after_ratio,omitzero"`
	GroupWeights    map[string]float64 `json:"group_weights,omitempty"`
	GroupThresholds map[string]float64 `json:"group_thresholds,omitempty"`
}

// Significance is a two-proportion z-test between the extreme-rate groups.
type Significance struct {
	GroupLow        string  `json:"group_low"`
	GroupHigh       string  `json:"group_high"`
	ZScore          float64 `json:"z_score"`
	PValue          float64 `json:"p_value"`
	SignificantAt05 bool    `json:"significant_at_0_05"`
}

// FairnessReport is the externally consumed audit structure. It is assembled
// once per evaluation and never mutated afterwards.
type FairnessReport struct {
	ReportID    string    `json:"report_id"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Engine      string    `json:"engine"`

	InputSize int `json:"input_size"`
	KnownSize int `json:"known_size"`

	InsufficientData      bool   `json:"insufficient_data"`
	Reason                string `json:"reason,omitempty"`
	EqualOpportunityProxy bool   `json:"equal_opportunity_proxy,omitempty"`

	Groups  map[string]*GroupBreakdown `json:"groups"`
	Metrics []MetricRow                `json:"metrics"`

	OverallScore float64  `json:"overall_fairness_score"`
	Fair         bool     `json:"fair"`
	Severity     Severity `json:"severity"`

	Recommendations map[string]string `json:"recommendations"`
	Significance    *Significance     `json:"significance,omitempty"`

	Shortlist *ShortlistSummary `json:"shortlist,omitempty"`
}

// Assembler turns metrics and shortlist decisions into the report structure.
type Assembler struct {
	thresholds fairness.Thresholds
	// significance is swappable for tests; defaults to the normal-CDF test.
	significance func(m *fairness.Metrics) *Significance
}

func NewAssembler(thresholds fairness.Thresholds) *Assembler {
	return &Assembler{
		thresholds:   thresholds,
		significance: proportionTest,
	}
}

// Assemble builds the report for a plain evaluation.
func (a *Assembler) Assemble(m *fairness.Metrics, engineName string, generatedAt time.Time) *FairnessReport {
	r := &FairnessReport{
		ReportID:              uuid.NewString(),
		Version:               Version,
		GeneratedAt:           generatedAt,
		Engine:                engineName,
		InputSize:             m.SampleSize,
		KnownSize:             m.KnownSize,
		InsufficientData:      m.InsufficientData,
		Reason:                m.Reason,
		EqualOpportunityProxy: m.EqualOpportunityProxy,
		Groups:                make(map[string]*GroupBreakdown),
		Recommendations:       make(map[string]string),
	}

	for g, s := range m.GroupStats {
		r.Groups[g] = &GroupBreakdown{
			Count:         s.Count,
			Selected:      s.Selected,
			SelectionRate: s.SelectionRate,
		}
	}

	if m.InsufficientData {
		r.Recommendations["insufficient_data"] = "not enough known-group candidates to assess disparity; collect protected-attribute data before relying on this decision"
		// A bare marker carries no per-group rates at all, so there is
		// nothing to tabulate or grade.
		if len(m.GroupStats) == 0 {
			r.Severity = SeverityPass
			return r
		}
	}

	a.addMetricRows(r, m)
	a.grade(r, m)

	r.OverallScore = m.OverallScore
	r.Fair = m.IsFair(a.thresholds)
	r.Significance = a.significance(m)

	return r
}

// AssembleShortlist builds the report for a strategy run, enriching groups
// with score summaries from the pool.
func (a *Assembler) AssembleShortlist(m *fairness.Metrics, res *shortlist.Result, scoresByGroup map[string][]float64, engineName string, generatedAt time.Time) *FairnessReport {
	r := a.Assemble(m, engineName, generatedAt)

	r.Shortlist = &ShortlistSummary{
		Method:          res.Method,
		Attribute:       res.Attribute,
		TargetSize:      res.TargetSize,
		SelectedCount:   len(res.SelectedIDs),
		SingleGroup:     res.SingleGroup,
		AdjustmentMade:  res.AdjustmentMade,
		BeforeRatio:     res.BeforeRatio,
		AfterRatio:      res.AfterRatio,
		GroupWeights:    res.GroupWeights,
		GroupThresholds: res.GroupThresholds,
	}
	if res.InsufficientData && !r.InsufficientData {
		r.InsufficientData = true
		r.Reason = res.Reason
	}

	for g, scores := range scoresByGroup {
		bd, ok := r.Groups[g]
		if !ok {
			bd = &GroupBreakdown{Count: len(scores)}
			r.Groups[g] = bd
		}
		if len(scores) == 0 {
			continue
		}
		bd.MeanScore, _ = stats.Mean(scores)
		bd.MedianScore, _ = stats.Median(scores)
		bd.MinScore, _ = stats.Min(scores)
		bd.MaxScore, _ = stats.Max(scores)
	}

	return r
}

func (a *Assembler) addMetricRows(r *FairnessReport, m *fairness.Metrics) {
	r.Metrics = append(r.Metrics,
		MetricRow{
			Name:      "demographic_parity_difference",
			Value:     fairness.Defined(m.DemographicParityDifference),
			Threshold: a.thresholds.DemographicParityMax,
			Passes:    m.DemographicParityDifference <= a.thresholds.DemographicParityMax,
		},
		MetricRow{
			Name:      "demographic_parity_ratio",
			Value:     m.DemographicParityRatio,
			Threshold: a.thresholds.DisparateImpactMin,
			Passes:    !m.DemographicParityRatio.Applicable() || m.DemographicParityRatio.AtLeast(a.thresholds.DisparateImpactMin),
		},
	)

	eoName := "equal_opportunity_difference"
	if m.EqualOpportunityProxy {
		// Without ground truth this is the predicted-positive spread, which
		// measures demographic parity, not true equal opportunity.
		eoName = "equal_opportunity_difference (proxy)"
	}

	eoValue := fairness.Ratio{}
	eoPasses := true
	if m.EqualOpportunityApplicable {
		eoValue = fairness.Defined(m.EqualOpportunityDifference)
		eoPasses = m.EqualOpportunityDifference <= a.thresholds.EqualOpportunityMax
	}
	r.Metrics = append(r.Metrics, MetricRow{
		Name:      eoName,
		Value:     eoValue,
		Threshold: a.thresholds.EqualOpportunityMax,
		Passes:    eoPasses,
	})

	if m.EqualizedOddsApplicable {
		r.Metrics = append(r.Metrics, MetricRow{
			Name:      "equalized_odds_difference",
			Value:     fairness.Defined(m.EqualizedOddsDifference),
			Threshold: a.thresholds.EqualOpportunityMax,
			Passes:    m.EqualizedOddsDifference <= a.thresholds.EqualOpportunityMax,
		})
	}
	if m.PredictiveParityApplicable {
		r.Metrics = append(r.Metrics, MetricRow{
			Name:      "predictive_parity_difference",
			Value:     fairness.Defined(m.PredictiveParityDifference),
			Threshold: a.thresholds.EqualOpportunityMax,
			Passes:    m.PredictiveParityDifference <= a.thresholds.EqualOpportunityMax,
		})
	}

	for pair, ratio := range m.DisparateImpact {
		r.Metrics = append(r.Metrics, MetricRow{
			Name:      "disparate_impact " + pair,
			Value:     ratio,
			Threshold: a.thresholds.DisparateImpactMin,
			Passes:    !ratio.Applicable() || ratio.AtLeast(a.thresholds.DisparateImpactMin),
		})
	}
}

// grade assigns severity and recommendations. Escalation is monotonic: a
// disparate-impact failure pins CRITICAL regardless of what else passes.
func (a *Assembler) grade(r *FairnessReport, m *fairness.Metrics) {
	if !m.EightyPercentRulePass {
		r.Severity.escalate(SeverityCritical)
		r.Recommendations["disparate_impact"] = "at least one group's selection rate is below 80% of the highest group's rate; adjust the selection or rerun with the postprocessing strategy"
	}
	if m.DemographicParityDifference > a.thresholds.DemographicParityMax {
		r.Severity.escalate(SeverityHigh)
		r.Recommendations["demographic_parity"] = "selection rates differ across groups beyond the configured tolerance; consider reweighting or threshold optimization"
	}
	if m.EqualOpportunityApplicable && m.EqualOpportunityDifference > a.thresholds.EqualOpportunityMax {
		r.Severity.escalate(SeverityMedium)
		key := "equal_opportunity"
		if m.EqualOpportunityProxy {
			key = "equal_opportunity_proxy"
			r.Recommendations[key] = "predicted-positive rates diverge across groups; supply ground-truth labels to measure true equal opportunity"
		} else {
			r.Recommendations[key] = "qualified candidates are selected at different rates across groups; review per-group cutoffs"
		}
	}
}
