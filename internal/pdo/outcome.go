package pdo

import "strings"

// Outcome is the decision a PDO records.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomePending  Outcome = "PENDING"
)

// ParseOutcome matches case-insensitively and returns the canonical upper-case form.
func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeApproved:
		return OutcomeApproved, true
	case OutcomeRejected:
		return OutcomeRejected, true
	case OutcomePending:
		return OutcomePending, true
	default:
		return "", false
	}
}

// SignerType is the namespace half of a "type::id" signer.
type SignerType string

const (
	SignerAgent    SignerType = "agent"
	SignerSystem   SignerType = "system"
	SignerOperator SignerType = "operator"
)

type Signer struct {
	Type SignerType
	ID   string
}

func (s Signer) String() string {
	return string(s.Type) + "::" + s.ID
}

func parseSigner(s string) (Signer, bool) {
	m := signerPattern.FindStringSubmatch(s)
	if m == nil {
		return Signer{}, false
	}
	return Signer{Type: SignerType(m[1]), ID: m[2]}, true
}
