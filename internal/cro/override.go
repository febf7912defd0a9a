package cro

// ApplyOverride combines a base risk band with a CRO result. The effective
// band is never less restrictive than base: HOLD, ESCALATE and DENY force
// CRITICAL, ALLOW_WITH_CONSTRAINTS raises the band to at least HIGH and ALLOW
// leaves it unchanged. An unrecognised base band or decision yields CRITICAL.
func ApplyOverride(base Band, r Result) Band {
	base, ok := ParseBand(string(base))
	if !ok {
		return BandCritical
	}
	switch r.Decision {
	case DecisionDeny, DecisionEscalate, DecisionHold:
		return BandCritical
	case DecisionAllowWithConstraints:
		if base.AtLeast(BandHigh) {
			return base
		}
		return BandHigh
	case DecisionAllow:
		return base
	default:
		return BandCritical
	}
}
