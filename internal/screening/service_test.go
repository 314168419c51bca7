package screening

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/report"
)

type failingEngine struct {
	calls int
}

func (f *failingEngine) Name() string { return engine.EnginePrimary }

func (f *failingEngine) Evaluate(_ context.Context, _ *engine.Input) (*engine.Evaluation, error) {
	f.calls++
	return nil, errors.New("engine unavailable")
}

func newTestService(primary engine.Engine) *Service {
	proxy := engine.NewProxy(primary, engine.NewFallback(), engine.ProxyConfig{MaxAttempts: 1}, engine.NewHealthState(), zap.NewNop())
	return New(proxy, fairness.DefaultThresholds(), zap.NewNop())
}

func testPool() *candidate.Pool {
	items := []struct {
		id     string
		score  float64
		gender string
	}{
		{"A", 95, "M"}, {"B", 90, "M"}, {"C", 88, "F"}, {"D", 85, "M"}, {"E", 82, "M"},
		{"F", 80, "F"}, {"G", 78, "M"}, {"H", 75, "F"}, {"I", 72, "M"}, {"J", 70, "F"},
	}

	pool := &candidate.Pool{}
	for _, it := range items {
		pool.Items = append(pool.Items, &candidate.ScoredCandidate{
			ID:           it.id,
			OverallScore: it.score,
			Attributes:   map[string]string{"gender": it.gender},
		})
	}
	return pool
}

func TestShortlistPostProcessingEndToEnd(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Shortlist(context.Background(), ShortlistRequest{
		Pool:                testPool(),
		Method:              "postprocessing",
		Attribute:           "gender",
		SelectionPercentage: 0.4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"A", "B", "C", "F"}
	if !reflect.DeepEqual(resp.SelectedIDs, want) {
		t.Fatalf("expected shortlist %v, got %v", want, resp.SelectedIDs)
	}

	if resp.Report == nil || resp.Report.Shortlist == nil {
		t.Fatalf("expected an audit report with a shortlist summary")
	}
	if !resp.Report.Shortlist.AdjustmentMade {
		t.Fatalf("expected the adjustment to be reported")
	}
	if !resp.Report.Shortlist.BeforeRatio.Applicable() || !resp.Report.Shortlist.AfterRatio.Applicable() {
		t.Fatalf("expected both ratios in the report, got %s -> %s",
			resp.Report.Shortlist.BeforeRatio, resp.Report.Shortlist.AfterRatio)
	}
	// The shortlist path never involves the remote evaluator.
	if resp.Report.Engine != engine.EngineFallback {
		t.Fatalf("expected the local calculator, got %s", resp.Report.Engine)
	}
	if resp.Report.EqualOpportunityProxy != true {
		t.Fatalf("a shortlist audit has no ground truth and must be flagged as proxy")
	}
}

func TestShortlistAllMethodsReturnReports(t *testing.T) {
	svc := newTestService(nil)

	for _, method := range []string{"postprocessing", "reweighting", "threshold_optimization"} {
		t.Run(method, func(t *testing.T) {
			resp, err := svc.Shortlist(context.Background(), ShortlistRequest{
				Pool:                testPool(),
				Method:              method,
				Attribute:           "gender",
				SelectionPercentage: 0.4,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(resp.SelectedIDs) != 4 {
				t.Fatalf("expected 4 selected, got %v", resp.SelectedIDs)
			}
			if resp.Report == nil {
				t.Fatalf("expected a report")
			}
		})
	}
}

func TestShortlistValidation(t *testing.T) {
	svc := newTestService(nil)

	cases := []struct {
		name string
		req  ShortlistRequest
	}{
		{
			name: "unknown method",
			req:  ShortlistRequest{Pool: testPool(), Method: "preprocessing", Attribute: "gender", SelectionPercentage: 0.4},
		},
		{
			name: "zero percentage",
			req:  ShortlistRequest{Pool: testPool(), Method: "postprocessing", Attribute: "gender"},
		},
		{
			name: "percentage above one",
			req:  ShortlistRequest{Pool: testPool(), Method: "postprocessing", Attribute: "gender", SelectionPercentage: 1.5},
		},
		{
			name: "impact threshold above one",
			req:  ShortlistRequest{Pool: testPool(), Method: "postprocessing", Attribute: "gender", SelectionPercentage: 0.4, DisparateImpactThreshold: 1.5},
		},
		{
			name: "missing pool",
			req:  ShortlistRequest{Method: "postprocessing", Attribute: "gender", SelectionPercentage: 0.4},
		},
		{
			name: "absent attribute",
			req:  ShortlistRequest{Pool: testPool(), Method: "postprocessing", Attribute: "ethnicity", SelectionPercentage: 0.4},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Shortlist(context.Background(), tc.req)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected a configuration error, got %v", err)
			}
		})
	}
}

func TestShortlistExplicitTargetSizeSkipsPercentageCheck(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Shortlist(context.Background(), ShortlistRequest{
		Pool:       testPool(),
		Method:     "threshold_optimization",
		Attribute:  "gender",
		TargetSize: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SelectedIDs) != 5 {
		t.Fatalf("expected 5 selected, got %v", resp.SelectedIDs)
	}
}

func TestEvaluateRoutesThroughFallbackWhenPrimaryFails(t *testing.T) {
	primary := &failingEngine{}
	svc := newTestService(primary)

	rep, err := svc.Evaluate(context.Background(),
		[]int{1, 1, 0, 1, 0, 0},
		nil,
		[]string{"M", "M", "M", "F", "F", "F"},
	)
	if err != nil {
		t.Fatalf("a primary outage must never surface as an error: %v", err)
	}

	if rep.Engine != engine.EngineFallback {
		t.Fatalf("expected the fallback engine, got %s", rep.Engine)
	}
	if primary.calls != 1 {
		t.Fatalf("expected 1 primary attempt, got %d", primary.calls)
	}

	health := svc.Health(context.Background())
	if health.Primary.Failures != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", health.Primary.Failures)
	}
	if health.FallbackUses != 1 {
		t.Fatalf("expected 1 fallback use, got %d", health.FallbackUses)
	}
	// The stub has no probe support, so the primary reads as unreachable.
	if health.Primary.Status != "unreachable" {
		t.Fatalf("unexpected primary status: %s", health.Primary.Status)
	}
	if health.Fallback.Status != "healthy" {
		t.Fatalf("the local calculator is always healthy, got %s", health.Fallback.Status)
	}
}

func TestEvaluateValidation(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Evaluate(ctx, []int{1, 0}, nil, []string{"M"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error for mismatched vectors, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, []int{1, 0}, []int{1}, []string{"M", "F"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error for mismatched labels, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, []int{2, 0}, nil, []string{"M", "F"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error for non-binary predictions, got %v", err)
	}
}

func TestHealthUnconfiguredPrimary(t *testing.T) {
	svc := newTestService(nil)

	health := svc.Health(context.Background())
	if health.Primary.Status != "unconfigured" {
		t.Fatalf("expected unconfigured primary, got %s", health.Primary.Status)
	}
	if health.FallbackUses != 0 {
		t.Fatalf("expected no fallback uses yet, got %d", health.FallbackUses)
	}
}

func TestEvaluateAssemblesReport(t *testing.T) {
	svc := newTestService(nil)

	rep, err := svc.Evaluate(context.Background(),
		[]int{1, 1, 1, 0, 0, 0},
		[]int{1, 1, 0, 1, 0, 0},
		[]string{"M", "M", "M", "F", "F", "F"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.Version != report.Version {
		t.Fatalf("unexpected report version: %s", rep.Version)
	}
	if rep.EqualOpportunityProxy {
		t.Fatalf("ground truth was supplied, proxy flag must be off")
	}
	if rep.Severity != report.SeverityCritical {
		t.Fatalf("expected CRITICAL for a zero selection rate, got %s", rep.Severity)
	}
}
