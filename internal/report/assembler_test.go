package report

import (
	"math"
	"testing"
	"time"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/shortlist"
)

func evaluate(t *testing.T, predictions []int, sensitive []string) *fairness.Metrics {
	t.Helper()

	m, err := fairness.Evaluate(predictions, nil, sensitive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func metricRow(t *testing.T, r *FairnessReport, name string) MetricRow {
	t.Helper()

	for _, row := range r.Metrics {
		if row.Name == name {
			return row
		}
	}
	t.Fatalf("metric row %q not found in %+v", name, r.Metrics)
	return MetricRow{}
}

func TestAssembleCriticalOnDisparateImpactFailure(t *testing.T) {
	m := evaluate(t,
		[]int{1, 1, 1, 0, 0, 0},
		[]string{"M", "M", "M", "F", "F", "F"},
	)

	generatedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(fairness.DefaultThresholds())
	r := a.Assemble(m, engine.EngineFallback, generatedAt)

	if r.ReportID == "" {
		t.Fatalf("expected a report id")
	}
	if r.Version != Version {
		t.Fatalf("expected version %s, got %s", Version, r.Version)
	}
	if r.Engine != engine.EngineFallback {
		t.Fatalf("expected engine %s, got %s", engine.EngineFallback, r.Engine)
	}
	if !r.GeneratedAt.Equal(generatedAt) {
		t.Fatalf("expected timestamp passthrough, got %v", r.GeneratedAt)
	}

	if r.Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", r.Severity)
	}
	if r.Fair {
		t.Fatalf("expected unfair report")
	}
	// Parity, the 80% rule and the proxied equal opportunity all fail.
	if math.Abs(r.OverallScore-40) > 1e-9 {
		t.Fatalf("expected overall score 40, got %v", r.OverallScore)
	}

	if _, ok := r.Recommendations["disparate_impact"]; !ok {
		t.Fatalf("expected a disparate impact recommendation, got %v", r.Recommendations)
	}
	if _, ok := r.Recommendations["demographic_parity"]; !ok {
		t.Fatalf("expected a demographic parity recommendation, got %v", r.Recommendations)
	}

	row := metricRow(t, r, "demographic_parity_difference")
	if row.Passes {
		t.Fatalf("expected the parity row to fail")
	}
	di := metricRow(t, r, "disparate_impact F_vs_M")
	if di.Passes || !di.Value.Applicable() || di.Value.Value() != 0 {
		t.Fatalf("expected a failing zero-ratio row, got %+v", di)
	}
	// The reverse direction divides by a zero rate: reported, never failed.
	rev := metricRow(t, r, "disparate_impact M_vs_F")
	if !rev.Passes || rev.Value.Applicable() {
		t.Fatalf("expected a passing not-applicable row, got %+v", rev)
	}

	if r.Significance == nil || !r.Significance.SignificantAt05 {
		t.Fatalf("expected a significant rate gap, got %+v", r.Significance)
	}
	if r.Significance.GroupLow != "F" || r.Significance.GroupHigh != "M" {
		t.Fatalf("unexpected extreme groups: %+v", r.Significance)
	}

	if g := r.Groups["M"]; g == nil || g.Count != 3 || g.Selected != 3 {
		t.Fatalf("unexpected group breakdown: %+v", g)
	}
}

func TestAssemblePassingReport(t *testing.T) {
	m := evaluate(t,
		[]int{1, 1, 0, 1, 1, 0},
		[]string{"M", "M", "M", "F", "F", "F"},
	)

	a := NewAssembler(fairness.DefaultThresholds())
	r := a.Assemble(m, engine.EnginePrimary, time.Now().UTC())

	if r.Severity != SeverityPass {
		t.Fatalf("expected PASS, got %s", r.Severity)
	}
	if !r.Fair {
		t.Fatalf("expected fair report")
	}
	if len(r.Recommendations) != 0 {
		t.Fatalf("expected no recommendations, got %v", r.Recommendations)
	}
	for _, row := range r.Metrics {
		if !row.Passes {
			t.Fatalf("expected every row to pass, got %+v", row)
		}
	}
	// Equal rates leave nothing to test for significance.
	if r.Significance != nil {
		t.Fatalf("expected no significance block, got %+v", r.Significance)
	}
}

func TestAssembleBareInsufficiencyMarker(t *testing.T) {
	m := evaluate(t, []int{1, 0, 1}, []string{"M", "M", "M"})

	a := NewAssembler(fairness.DefaultThresholds())
	r := a.Assemble(m, engine.EngineFallback, time.Now().UTC())

	if !r.InsufficientData || r.Reason != "single group" {
		t.Fatalf("expected the single-group marker, got %+v", r)
	}
	if r.Severity != SeverityPass {
		t.Fatalf("a marker without numbers cannot be graded, got %s", r.Severity)
	}
	if len(r.Metrics) != 0 {
		t.Fatalf("expected no metric rows, got %v", r.Metrics)
	}
	if _, ok := r.Recommendations["insufficient_data"]; !ok {
		t.Fatalf("expected an insufficient data recommendation")
	}
}

func TestAssembleSmallSampleCarriesFlagAndNumbers(t *testing.T) {
	m := evaluate(t,
		[]int{1, 0, 1, 0},
		[]string{"Male", "Female", "Male", "Female"},
	)

	a := NewAssembler(fairness.DefaultThresholds())
	r := a.Assemble(m, engine.EngineFallback, time.Now().UTC())

	if !r.InsufficientData {
		t.Fatalf("expected the small-sample flag on the report")
	}
	if len(r.Metrics) == 0 {
		t.Fatalf("expected the computed rows alongside the flag")
	}
	if _, ok := r.Recommendations["insufficient_data"]; !ok {
		t.Fatalf("expected an insufficient data recommendation")
	}
	if r.Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL for a zero ratio, got %s", r.Severity)
	}
	// A flagged sample is too small for the z-test.
	if r.Significance != nil {
		t.Fatalf("expected no significance block, got %+v", r.Significance)
	}
}

func TestAssembleProxyEqualOpportunityRow(t *testing.T) {
	m := evaluate(t,
		[]int{1, 1, 0, 1, 0, 0},
		[]string{"M", "M", "M", "F", "F", "F"},
	)
	if !m.EqualOpportunityProxy {
		t.Fatalf("expected proxy mode without labels")
	}

	a := NewAssembler(fairness.DefaultThresholds())
	r := a.Assemble(m, engine.EngineFallback, time.Now().UTC())

	// The proxied spread is the selection-rate gap, 2/3 - 1/3.
	row := metricRow(t, r, "equal_opportunity_difference (proxy)")
	if row.Passes {
		t.Fatalf("expected the proxy spread to fail, got %+v", row)
	}
	if !row.Value.Applicable() || math.Abs(row.Value.Value()-1.0/3.0) > 1e-9 {
		t.Fatalf("expected proxy value 1/3, got %s", row.Value)
	}
	if _, ok := r.Recommendations["equal_opportunity_proxy"]; !ok {
		t.Fatalf("expected a proxy recommendation, got %v", r.Recommendations)
	}
	if r.Severity != SeverityCritical {
		t.Fatalf("the 80%% rule failure still pins severity, got %s", r.Severity)
	}
}

func TestAssembleShortlist(t *testing.T) {
	m := evaluate(t,
		[]int{1, 1, 1, 0, 0, 0, 1, 0, 0, 0},
		[]string{"M", "M", "F", "M", "M", "F", "M", "F", "M", "F"},
	)

	res := &shortlist.Result{
		Method:         shortlist.MethodPostProcessing,
		Attribute:      "gender",
		TargetSize:     4,
		SelectedIDs:    []string{"A", "B", "C", "G"},
		AdjustmentMade: true,
		BeforeRatio:    fairness.NewRatio(0.25, 0.5),
		AfterRatio:     fairness.NewRatio(1, 3.0/2.0),
	}
	scores := map[string][]float64{
		"M": {95, 90, 85, 82, 78, 72},
		"F": {88, 80, 75, 70},
	}

	a := NewAssembler(fairness.DefaultThresholds())
	r := a.AssembleShortlist(m, res, scores, engine.EngineFallback, time.Now().UTC())

	if r.Shortlist == nil {
		t.Fatalf("expected a shortlist summary")
	}
	if r.Shortlist.Method != shortlist.MethodPostProcessing {
		t.Fatalf("unexpected method: %s", r.Shortlist.Method)
	}
	if r.Shortlist.SelectedCount != 4 {
		t.Fatalf("expected 4 selected, got %d", r.Shortlist.SelectedCount)
	}
	if !r.Shortlist.AdjustmentMade {
		t.Fatalf("expected the adjustment flag to carry through")
	}
	if !r.Shortlist.BeforeRatio.Applicable() || r.Shortlist.BeforeRatio.Value() != 0.5 {
		t.Fatalf("unexpected before ratio: %s", r.Shortlist.BeforeRatio)
	}

	f := r.Groups["F"]
	if f == nil {
		t.Fatalf("expected a breakdown for group F")
	}
	if math.Abs(f.MeanScore-78.25) > 1e-9 {
		t.Fatalf("expected mean 78.25, got %v", f.MeanScore)
	}
	if math.Abs(f.MedianScore-77.5) > 1e-9 {
		t.Fatalf("expected median 77.5, got %v", f.MedianScore)
	}
	if f.MinScore != 70 || f.MaxScore != 88 {
		t.Fatalf("unexpected score range: %v..%v", f.MinScore, f.MaxScore)
	}
}
