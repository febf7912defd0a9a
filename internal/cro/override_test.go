package cro

import "testing"

func TestApplyOverride(t *testing.T) {
	cases := []struct {
		base     Band
		decision Decision
		want     Band
	}{
		{BandLow, DecisionAllow, BandLow},
		{BandMedium, DecisionAllow, BandMedium},
		{BandLow, DecisionAllowWithConstraints, BandHigh},
		{BandMedium, DecisionAllowWithConstraints, BandHigh},
		{BandCritical, DecisionAllowWithConstraints, BandCritical},
		{BandLow, DecisionHold, BandCritical},
		{BandLow, DecisionEscalate, BandCritical},
		{BandHigh, DecisionDeny, BandCritical},
		{Band("bogus"), DecisionAllow, BandCritical},
		{BandLow, Decision("MAYBE"), BandCritical},
		{Band("medium"), DecisionAllow, BandMedium},
	}
	for _, tc := range cases {
		if got := ApplyOverride(tc.base, Result{Decision: tc.decision}); got != tc.want {
			t.Fatalf("ApplyOverride(%s, %s) = %s, want %s", tc.base, tc.decision, got, tc.want)
		}
	}
}

func TestApplyOverrideIsMonotone(t *testing.T) {
	bands := []Band{BandLow, BandMedium, BandHigh, BandCritical}
	decisions := []Decision{DecisionAllow, DecisionAllowWithConstraints, DecisionHold, DecisionEscalate, DecisionDeny}
	for _, b := range bands {
		for _, d := range decisions {
			if got := ApplyOverride(b, Result{Decision: d}); !got.AtLeast(b) {
				t.Fatalf("ApplyOverride(%s, %s) = %s lowered the band", b, d, got)
			}
		}
	}
}
