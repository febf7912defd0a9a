package pdo

import (
	"time"

	"github.com/davidahmann/pdogate/internal/crypto"
)

// SigningFields is the fixed member set covered by a PDO signature. Legacy
// members (inputs_hash, signer), the CRO members and the envelope itself are
// outside it.
var SigningFields = []string{
	FieldPDOID,
	FieldDecisionHash,
	FieldPolicyVersion,
	FieldAgentID,
	FieldAction,
	FieldOutcome,
	FieldTimestamp,
	FieldNonce,
	FieldExpiresAt,
}

// Canonicalize returns the canonical JSON of the signing view of raw: sorted
// keys, compact separators, absent members omitted.
func Canonicalize(raw Raw) ([]byte, error) {
	view := make(map[string]any, len(SigningFields))
	for _, field := range SigningFields {
		value, ok := raw[field]
		if !ok || value == nil {
			continue
		}
		if ts, ok := value.(time.Time); ok {
			value = ts.UTC().Format(time.RFC3339Nano)
		}
		view[field] = value
	}
	return crypto.CanonicalizeSubset(view, SigningFields)
}
