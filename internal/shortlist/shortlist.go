package shortlist

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
)

// Method selects one of the shortlisting strategies. The set is closed:
// unknown names are rejected at the boundary, never silently defaulted.
type Method string

const (
	MethodPostProcessing        Method = "postprocessing"
	MethodReweighting           Method = "reweighting"
	MethodThresholdOptimization Method = "threshold_optimization"

	// DefaultDisparateImpactThreshold is the 80% rule cutoff.
	DefaultDisparateImpactThreshold = 0.8
)

// ParseMethod validates a method name coming from configuration.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodPostProcessing, MethodReweighting, MethodThresholdOptimization:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown shortlisting method %q (want %s, %s or %s)",
			s, MethodPostProcessing, MethodReweighting, MethodThresholdOptimization)
	}
}

// Options are the shared strategy inputs.
type Options struct {
	// Attribute is the protected-attribute key to balance on.
	Attribute string
	// SelectionPercentage in (0,1] sizes the shortlist relative to the pool.
	SelectionPercentage float64
	// TargetSize overrides SelectionPercentage when positive.
	TargetSize int
	// DisparateImpactThreshold is the minimum acceptable selection-rate
	// ratio; zero means DefaultDisparateImpactThreshold.
	DisparateImpactThreshold float64
}

func (o Options) diThreshold() float64 {
	if o.DisparateImpactThreshold == 0 {
		return DefaultDisparateImpactThreshold
	}
	return o.DisparateImpactThreshold
}

// Decision records the outcome for a single candidate.
type Decision struct {
	CandidateID string  `json:"candidate_id"`
	Selected    bool    `json:"selected"`
	Method      Method  `json:"method"`
	Group       string  `json:"group"`
	Threshold   float64 `json:"threshold,omitempty"`
	// FairScore is the reweighted score; the original score is never
	// overwritten.
	FairScore *float64 `json:"fair_score,omitempty"`
}

// Step carries the counters logged after every strategy run, mirroring how
// each filtering step of a pipeline accounts for its work.
type Step struct {
	Initial  int `json:"initial"`
	Selected int `json:"selected"`
	Rejected int `json:"rejected"`
}

// Result is the full outcome of one strategy run.
type Result struct {
	Method     Method `json:"method"`
	Attribute  string `json:"attribute"`
	TargetSize int    `json:"target_size"`

	SelectedIDs []string   `json:"selected_ids"`
	Decisions   []Decision `json:"decisions"`
	Step        Step       `json:"step"`

	SingleGroup      bool   `json:"single_group,omitempty"`
	InsufficientData bool   `json:"insufficient_data,omitempty"`
	Reason           string `json:"reason,omitempty"`

	// Post-processing fields.
	AdjustmentMade bool           `json:"adjustment_made,omitempty"`
	BeforeRatio    fairness.Ratio `json:"before_ratio,omitzero"`
	AfterRatio     fairness.Ratio `json:"after_ratio,omitzero"`

	// Reweighting fields.
	GroupWeights map[string]float64 `json:"group_weights,omitempty"`

	// Threshold-optimization fields.
	GroupThresholds map[string]float64 `json:"group_thresholds,omitempty"`
}

// Strategy is a single shortlisting algorithm.
type Strategy interface {
	Name() Method
	Apply(pool *candidate.Pool, opts Options) (*Result, error)
}

// New dispatches a method name to its strategy.
func New(method Method, logger *zap.Logger) (Strategy, error) {
	switch method {
	case MethodPostProcessing:
		return &postProcessing{logger: logger}, nil
	case MethodReweighting:
		return &reweighting{logger: logger}, nil
	case MethodThresholdOptimization:
		return &thresholdOptimization{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown shortlisting method %q", method)
	}
}

// TargetSize resolves the shortlist size for a pool of n candidates. The
// percentage is rounded half up so the outcome is deterministic, then clamped
// to [1, n]; rounding policy matters at small n because it shifts selection
// rates.
func TargetSize(n int, opts Options) int {
	if n == 0 {
		return 0
	}
	k := opts.TargetSize
	if k <= 0 {
		k = int(math.Floor(opts.SelectionPercentage*float64(n) + 0.5))
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// rankByScore returns candidate indexes ordered by overall score descending.
// Ties keep input order, so repeated runs are identical.
func rankByScore(pool *candidate.Pool) []int {
	ranked := make([]int, pool.Len())
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return pool.Items[ranked[a]].OverallScore > pool.Items[ranked[b]].OverallScore
	})
	return ranked
}

// selectionRates computes per-group selection rates over the given partition.
func selectionRates(groups map[string][]int, selected map[int]bool) map[string]float64 {
	rates := make(map[string]float64, len(groups))
	for g, idx := range groups {
		count := 0
		for _, i := range idx {
			if selected[i] {
				count++
			}
		}
		rates[g] = float64(count) / float64(len(idx))
	}
	return rates
}

// impactRatio is min(rate)/max(rate) over the partition; not applicable when
// nobody in any group is selected.
func impactRatio(rates map[string]float64) fairness.Ratio {
	first := true
	var minR, maxR float64
	for _, r := range rates {
		if first {
			minR, maxR = r, r
			first = false
			continue
		}
		if r < minR {
			minR = r
		}
		if r > maxR {
			maxR = r
		}
	}
	if first {
		return fairness.Ratio{}
	}
	return fairness.NewRatio(minR, maxR)
}

// knownGroupCount counts the non-unknown groups in a partition. A pool with
// one known group plus an unknown bucket is still a single effective group.
func knownGroupCount(groups map[string][]int) int {
	n := 0
	for g := range groups {
		if g != candidate.UnknownGroup {
			n++
		}
	}
	return n
}

// sortedGroupNames gives a stable iteration order over a partition.
func sortedGroupNames(groups map[string][]int) []string {
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// emptyResult is the typed marker returned for an empty pool.
func emptyResult(method Method, opts Options) *Result {
	return &Result{
		Method:           method,
		Attribute:        opts.Attribute,
		SelectedIDs:      []string{},
		Decisions:        []Decision{},
		InsufficientData: true,
		Reason:           "empty candidate pool",
	}
}

func logStep(logger *zap.Logger, r *Result) {
	if logger == nil {
		return
	}
	logger.Info("shortlist step",
		zap.String("method", string(r.Method)),
		zap.Int("initial", r.Step.Initial),
		zap.Int("selected", r.Step.Selected),
		zap.Int("rejected", r.Step.Rejected),
	)
}
