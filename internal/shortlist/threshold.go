package shortlist

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
)

// thresholdOptimization gives every group the same selection rate by
// construction: each group receives round(group_size x target_rate) slots,
// with the largest group absorbing the rounding remainder so the total is
// exactly K. Within a group the top scorers win, which means different groups
// face different score cutoffs; those cutoffs are reported per group so the
// trade is auditable.
type thresholdOptimization struct {
	logger *zap.Logger
}

func (t *thresholdOptimization) Name() Method { return MethodThresholdOptimization }

func (t *thresholdOptimization) Apply(pool *candidate.Pool, opts Options) (*Result, error) {
	if pool.Len() == 0 {
		return emptyResult(t.Name(), opts), nil
	}

	k := TargetSize(pool.Len(), opts)
	groups := pool.Groups(opts.Attribute)

	result := &Result{
		Method:          t.Name(),
		Attribute:       opts.Attribute,
		TargetSize:      k,
		GroupThresholds: make(map[string]float64, len(groups)),
	}
	if knownGroupCount(groups) < 2 {
		result.SingleGroup = true
		result.Reason = "single effective group"
	}

	quotas := groupQuotas(groups, k, pool.Len())

	selected := make(map[int]bool, k)
	for _, g := range sortedGroupNames(groups) {
		quota := quotas[g]
		if quota == 0 {
			continue
		}
		ranked := sortedByScore(pool, groups[g], false)
		for _, i := range ranked[:quota] {
			selected[i] = true
		}
		// The lowest selected score is the group's effective cutoff.
		result.GroupThresholds[g] = pool.Items[ranked[quota-1]].OverallScore
	}

	result.SelectedIDs = make([]string, 0, k)
	for _, i := range rankByScore(pool) {
		if selected[i] {
			result.SelectedIDs = append(result.SelectedIDs, pool.Items[i].ID)
		}
	}

	result.Decisions = make([]Decision, 0, pool.Len())
	for i, c := range pool.Items {
		g := c.Attribute(opts.Attribute)
		result.Decisions = append(result.Decisions, Decision{
			CandidateID: c.ID,
			Selected:    selected[i],
			Method:      t.Name(),
			Group:       g,
			Threshold:   result.GroupThresholds[g],
		})
	}

	result.Step = Step{
		Initial:  pool.Len(),
		Selected: len(result.SelectedIDs),
		Rejected: pool.Len() - len(result.SelectedIDs),
	}

	if t.logger != nil {
		t.logger.Info("per-group thresholds computed",
			zap.Int("target", k),
			zap.Any("quotas", quotas),
			zap.Any("thresholds", result.GroupThresholds),
		)
	}
	logStep(t.logger, result)

	return result, nil
}

// groupQuotas distributes k selection slots across groups proportionally to
// group size. Rounding drift lands on the largest group first; any residual
// beyond its capacity spills over to the next-largest groups, in name order
// on size ties, so the distribution is deterministic and sums to exactly k.
func groupQuotas(groups map[string][]int, k, total int) map[string]int {
	targetRate := float64(k) / float64(total)

	names := sortedGroupNames(groups)
	quotas := make(map[string]int, len(groups))
	sum := 0
	for _, g := range names {
		q := int(math.Floor(float64(len(groups[g]))*targetRate + 0.5))
		if q > len(groups[g]) {
			q = len(groups[g])
		}
		quotas[g] = q
		sum += q
	}

	// Largest groups absorb the remainder, positive or negative.
	bySize := make([]string, len(names))
	copy(bySize, names)
	sort.SliceStable(bySize, func(a, b int) bool {
		return len(groups[bySize[a]]) > len(groups[bySize[b]])
	})

	remainder := k - sum
	for _, g := range bySize {
		if remainder == 0 {
			break
		}
		room := len(groups[g]) - quotas[g]
		switch {
		case remainder > 0:
			add := remainder
			if add > room {
				add = room
			}
			quotas[g] += add
			remainder -= add
		case remainder < 0:
			sub := -remainder
			if sub > quotas[g] {
				sub = quotas[g]
			}
			quotas[g] -= sub
			remainder += sub
		}
	}

	return quotas
}
