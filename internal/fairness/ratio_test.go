package fairness

import (
	"encoding/json"
	"testing"
)

func TestNewRatioZeroNumeratorIsDefined(t *testing.T) {
	r := NewRatio(0, 0.5)

	if !r.Applicable() {
		t.Fatalf("expected zero-numerator ratio to be applicable")
	}
	if r.Value() != 0 {
		t.Fatalf("expected value 0, got %v", r.Value())
	}
	if r.AtLeast(0.8) {
		t.Fatalf("expected 0 to fail the 0.8 threshold")
	}
}

func TestNewRatioZeroDenominatorIsNotApplicable(t *testing.T) {
	r := NewRatio(1, 0)

	if r.Applicable() {
		t.Fatalf("expected zero-denominator ratio to be not applicable")
	}
	if r.AtLeast(0) {
		t.Fatalf("not-applicable ratio must never clear a threshold")
	}
	if r.String() != NotApplicable {
		t.Fatalf("unexpected string form: %s", r.String())
	}
}

func TestRatioJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   Ratio
		want string
	}{
		{name: "defined", in: NewRatio(1, 2), want: `0.5`},
		{name: "zero", in: NewRatio(0, 2), want: `0`},
		{name: "not applicable", in: NewRatio(1, 0), want: `"not_applicable"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, data)
			}

			var back Ratio
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if back != tc.in {
				t.Fatalf("round trip changed the ratio: %v != %v", back, tc.in)
			}
		})
	}
}

func TestRatioUnmarshalRejectsUnknownString(t *testing.T) {
	var r Ratio
	if err := json.Unmarshal([]byte(`"garbage"`), &r); err == nil {
		t.Fatalf("expected error for unknown string value")
	}
}
