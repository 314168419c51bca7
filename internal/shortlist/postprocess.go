package shortlist

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
)

// postProcessing takes the plain top-K by score and, when the selection-rate
// ratio between groups falls below the configured threshold, swaps in
// top-scoring candidates from the lowest-rate group for the lowest-scoring
// selected candidates of the highest-rate group.
type postProcessing struct {
	logger *zap.Logger
}

func (p *postProcessing) Name() Method { return MethodPostProcessing }

func (p *postProcessing) Apply(pool *candidate.Pool, opts Options) (*Result, error) {
	if pool.Len() == 0 {
		return emptyResult(p.Name(), opts), nil
	}

	k := TargetSize(pool.Len(), opts)
	ranked := rankByScore(pool)

	selected := make(map[int]bool, k)
	for _, i := range ranked[:k] {
		selected[i] = true
	}

	result := &Result{
		Method:     p.Name(),
		Attribute:  opts.Attribute,
		TargetSize: k,
	}

	groups := pool.KnownGroups(opts.Attribute)

	switch {
	case pool.Len() < fairness.MinSampleSize:
		result.InsufficientData = true
		result.Reason = "pool below minimum size for disparity adjustment"
	case knownGroupCount(groups) < 2:
		result.SingleGroup = true
		result.Reason = "single effective group"
	default:
		p.adjust(pool, ranked, groups, selected, opts, result)
	}

	p.finish(pool, ranked, selected, result)
	return result, nil
}

// adjust runs the disparity check and, if needed, the swap loop. Each swap is
// kept only when it improves the measured ratio, so partial mitigation is
// reported honestly and the ratio never ends up below the unadjusted one.
func (p *postProcessing) adjust(pool *candidate.Pool, ranked []int, groups map[string][]int, selected map[int]bool, opts Options, result *Result) {
	threshold := opts.diThreshold()

	rates := selectionRates(groups, selected)
	result.BeforeRatio = impactRatio(rates)
	result.AfterRatio = result.BeforeRatio

	if result.BeforeRatio.AtLeast(threshold) {
		return
	}

	under, over := extremeGroups(groups, rates)
	if rates[over] == 0 {
		// No known-group candidate is selected at all; there is no
		// overrepresented group to pull back from.
		result.Reason = "no known-group candidates selected"
		return
	}

	targetSelected := int(math.Ceil(threshold * rates[over] * float64(len(groups[under]))))
	current := selectedCount(groups[under], selected)
	need := targetSelected - current
	if need <= 0 {
		return
	}

	additions := sortedByScore(pool, unselectedOf(groups[under], selected), false)
	evictions := sortedByScore(pool, selectedOf(groups[over], selected), true)
	if len(additions) < need {
		need = len(additions)
	}
	if len(evictions) < need {
		need = len(evictions)
	}

	swaps := 0
	for i := 0; i < need; i++ {
		add, evict := additions[i], evictions[i]
		selected[add] = true
		delete(selected, evict)

		after := impactRatio(selectionRates(groups, selected))
		if !improved(result.AfterRatio, after) {
			delete(selected, add)
			selected[evict] = true
			break
		}

		result.AfterRatio = after
		swaps++
		if after.AtLeast(threshold) {
			break
		}
	}

	result.AdjustmentMade = swaps > 0
	if p.logger != nil {
		p.logger.Info("post-processing adjustment",
			zap.String("underrepresented", under),
			zap.String("overrepresented", over),
			zap.Int("swaps", swaps),
			zap.String("before_ratio", result.BeforeRatio.String()),
			zap.String("after_ratio", result.AfterRatio.String()),
		)
	}
}

func (p *postProcessing) finish(pool *candidate.Pool, ranked []int, selected map[int]bool, result *Result) {
	result.SelectedIDs = make([]string, 0, len(selected))
	result.Decisions = make([]Decision, 0, pool.Len())

	for _, i := range ranked {
		c := pool.Items[i]
		if selected[i] {
			result.SelectedIDs = append(result.SelectedIDs, c.ID)
		}
	}
	for i, c := range pool.Items {
		result.Decisions = append(result.Decisions, Decision{
			CandidateID: c.ID,
			Selected:    selected[i],
			Method:      p.Name(),
			Group:       c.Attribute(result.Attribute),
		})
	}

	result.Step = Step{
		Initial:  pool.Len(),
		Selected: len(result.SelectedIDs),
		Rejected: pool.Len() - len(result.SelectedIDs),
	}
	logStep(p.logger, result)
}

// extremeGroups picks the lowest- and highest-rate groups; rate ties are
// broken by name so the choice is deterministic.
func extremeGroups(groups map[string][]int, rates map[string]float64) (under, over string) {
	for _, g := range sortedGroupNames(groups) {
		if under == "" || rates[g] < rates[under] {
			under = g
		}
		if over == "" || rates[g] > rates[over] {
			over = g
		}
	}
	return under, over
}

// improved reports whether the ratio strictly increased; a defined ratio
// always beats a not-applicable one.
func improved(before, after fairness.Ratio) bool {
	if !after.Applicable() {
		return false
	}
	if !before.Applicable() {
		return true
	}
	return after.Value() > before.Value()
}

func selectedCount(idx []int, selected map[int]bool) int {
	n := 0
	for _, i := range idx {
		if selected[i] {
			n++
		}
	}
	return n
}

func selectedOf(idx []int, selected map[int]bool) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if selected[i] {
			out = append(out, i)
		}
	}
	return out
}

func unselectedOf(idx []int, selected map[int]bool) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if !selected[i] {
			out = append(out, i)
		}
	}
	return out
}

// sortedByScore orders the given indexes by score, descending by default or
// ascending for eviction order. Ties keep input order.
func sortedByScore(pool *candidate.Pool, idx []int, ascending bool) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	sort.SliceStable(out, func(a, b int) bool {
		if ascending {
			return pool.Items[out[a]].OverallScore < pool.Items[out[b]].OverallScore
		}
		return pool.Items[out[a]].OverallScore > pool.Items[out[b]].OverallScore
	})
	return out
}
