package shortlist

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
)

// reweighting applies Kamiran-Calders style instance weights: each known
// group's scores are scaled by expected/observed group probability, so
// underrepresented groups gain and overrepresented ones lose. Ranking then
// happens on the derived fair score; the original score is carried through
// untouched for transparency.
//
// Groups are assumed mutually exclusive and exhaustive among known attribute
// values. Candidates in the unknown bucket keep weight 1.0 and compete on
// their raw score.
type reweighting struct {
	logger *zap.Logger
}

func (r *reweighting) Name() Method { return MethodReweighting }

func (r *reweighting) Apply(pool *candidate.Pool, opts Options) (*Result, error) {
	if pool.Len() == 0 {
		return emptyResult(r.Name(), opts), nil
	}

	k := TargetSize(pool.Len(), opts)
	groups := pool.KnownGroups(opts.Attribute)

	result := &Result{
		Method:       r.Name(),
		Attribute:    opts.Attribute,
		TargetSize:   k,
		GroupWeights: make(map[string]float64, len(groups)),
	}

	if knownGroupCount(groups) < 2 {
		result.SingleGroup = true
		result.Reason = "single effective group"
		for g := range groups {
			result.GroupWeights[g] = 1.0
		}
	} else {
		// At least two known groups exist, so the partition holds known
		// groups only at this point.
		total := 0
		for _, idx := range groups {
			total += len(idx)
		}
		expected := 1.0 / float64(len(groups))
		for g, idx := range groups {
			observed := float64(len(idx)) / float64(total)
			result.GroupWeights[g] = expected / observed
		}
	}

	weightFor := func(c *candidate.ScoredCandidate) float64 {
		if w, ok := result.GroupWeights[c.Attribute(opts.Attribute)]; ok {
			return w
		}
		return 1.0
	}

	fairScores := make([]float64, pool.Len())
	for i, c := range pool.Items {
		fairScores[i] = c.OverallScore * weightFor(c)
	}

	ranked := make([]int, pool.Len())
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return fairScores[ranked[a]] > fairScores[ranked[b]]
	})

	selected := make(map[int]bool, k)
	result.SelectedIDs = make([]string, 0, k)
	for _, i := range ranked[:k] {
		selected[i] = true
		result.SelectedIDs = append(result.SelectedIDs, pool.Items[i].ID)
	}

	result.Decisions = make([]Decision, 0, pool.Len())
	for i, c := range pool.Items {
		fs := fairScores[i]
		result.Decisions = append(result.Decisions, Decision{
			CandidateID: c.ID,
			Selected:    selected[i],
			Method:      r.Name(),
			Group:       c.Attribute(opts.Attribute),
			FairScore:   &fs,
		})
	}

	result.Step = Step{
		Initial:  pool.Len(),
		Selected: k,
		Rejected: pool.Len() - k,
	}

	if r.logger != nil {
		r.logger.Info("reweighting applied",
			zap.Int("groups", len(groups)),
			zap.Any("weights", result.GroupWeights),
		)
	}
	logStep(r.logger, result)

	return result, nil
}
