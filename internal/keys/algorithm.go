package keys

import "strings"

// Algorithm names a signature algorithm accepted in a SignatureEnvelope.
type Algorithm string

const (
	AlgEd25519    Algorithm = "ED25519"
	AlgHMACSHA256 Algorithm = "HMAC-SHA256"
)

// ParseAlgorithm normalises an algorithm name. Names are compared after
// trimming and upper-casing.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch a := Algorithm(strings.ToUpper(strings.TrimSpace(s))); a {
	case AlgEd25519, AlgHMACSHA256:
		return a, true
	default:
		return "", false
	}
}
