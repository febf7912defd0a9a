// Package cro is the deterministic risk-policy evaluator. It turns advisory
// risk metadata into an enforceable decision using a fixed threshold table and
// fails closed whenever the metadata is missing or ambiguous.
package cro

import (
	"fmt"
	"strings"
)

type Decision string

const (
	DecisionAllow                Decision = "ALLOW"
	DecisionAllowWithConstraints Decision = "ALLOW_WITH_CONSTRAINTS"
	DecisionHold                 Decision = "HOLD"
	DecisionEscalate             Decision = "ESCALATE"
	DecisionDeny                 Decision = "DENY"
)

// ParseDecision reads a recorded decision. Matching ignores case and
// surrounding space.
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionAllow, DecisionAllowWithConstraints, DecisionHold, DecisionEscalate, DecisionDeny:
		return d, true
	default:
		return "", false
	}
}

// BlocksExecution is true for HOLD, ESCALATE and DENY.
func (d Decision) BlocksExecution() bool {
	switch d {
	case DecisionAllow, DecisionAllowWithConstraints:
		return false
	case DecisionHold, DecisionEscalate, DecisionDeny:
		return true
	default:
		panic(fmt.Sprintf("cro: unknown decision %q", string(d)))
	}
}

// Band is a coarse risk classification ordered LOW < MEDIUM < HIGH < CRITICAL.
type Band string

const (
	BandLow      Band = "LOW"
	BandMedium   Band = "MEDIUM"
	BandHigh     Band = "HIGH"
	BandCritical Band = "CRITICAL"
)

func ParseBand(s string) (Band, bool) {
	switch b := Band(strings.ToUpper(strings.TrimSpace(s))); b {
	case BandLow, BandMedium, BandHigh, BandCritical:
		return b, true
	default:
		return "", false
	}
}

func (b Band) rank() int {
	switch b {
	case BandLow:
		return 0
	case BandMedium:
		return 1
	case BandHigh:
		return 2
	case BandCritical:
		return 3
	default:
		panic(fmt.Sprintf("cro: unknown band %q", string(b)))
	}
}

// AtLeast reports whether b is as restrictive as other.
func (b Band) AtLeast(other Band) bool {
	return b.rank() >= other.rank()
}
