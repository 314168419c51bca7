package fairness

import (
	"encoding/json"
	"fmt"
)

// NotApplicable is how a zero-denominator ratio renders in JSON and logs. It
// is distinct from a genuine 0.0 ratio, which only means the numerator is 0.
const NotApplicable = "not_applicable"

// Ratio is a rate comparison that may be undefined. A ratio with a zero
// denominator is "not applicable" rather than NaN or infinity.
type Ratio struct {
	value      float64
	applicable bool
}

// NewRatio builds num/den, marking the result not applicable when den is 0.
func NewRatio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{value: num / den, applicable: true}
}

// Defined wraps an already-computed value in an applicable Ratio, so report
// rows can carry plain differences and NA-able ratios in one column type.
func Defined(v float64) Ratio {
	return Ratio{value: v, applicable: true}
}

func (r Ratio) Applicable() bool { return r.applicable }

// Value returns the ratio value. It is only meaningful when Applicable.
func (r Ratio) Value() float64 { return r.value }

// AtLeast reports whether the ratio is defined and not below the threshold.
func (r Ratio) AtLeast(threshold float64) bool {
	return r.applicable && r.value >= threshold
}

func (r Ratio) String() string {
	if !r.applicable {
		return NotApplicable
	}
	return fmt.Sprintf("%.4f", r.value)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.applicable {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(r.value)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != NotApplicable {
			return fmt.Errorf("invalid ratio value %q", s)
		}
		*r = Ratio{}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Ratio{value: v, applicable: true}
	return nil
}
