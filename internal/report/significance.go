package report

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
)

// proportionTest runs a pooled two-proportion z-test between the lowest- and
// highest-rate groups. It answers whether the observed rate gap could be
// sampling noise; nil when the test is undefined (tiny groups, no variance).
func proportionTest(m *fairness.Metrics) *Significance {
	if m.InsufficientData || len(m.Groups) < 2 {
		return nil
	}

	var low, high string
	for _, g := range m.Groups {
		if low == "" || m.SelectionRates[g] < m.SelectionRates[low] {
			low = g
		}
		if high == "" || m.SelectionRates[g] > m.SelectionRates[high] {
			high = g
		}
	}
	if low == high {
		return nil
	}

	sl, sh := m.GroupStats[low], m.GroupStats[high]
	n1, n2 := float64(sl.Count), float64(sh.Count)
	pooled := float64(sl.Selected+sh.Selected) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return nil
	}

	z := (sh.SelectionRate - sl.SelectionRate) / se
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * (1 - normal.CDF(math.Abs(z)))

	return &Significance{
		GroupLow:        low,
		GroupHigh:       high,
		ZScore:          z,
		PValue:          p,
		SignificantAt05: p < 0.05,
	}
}
