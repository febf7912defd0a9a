package pdo

import (
	"strings"

	"github.com/davidahmann/pdogate/internal/crypto"
)

// ComputeDecisionHash binds inputs, policy and outcome:
// SHA256(lower(inputs_hash) + "|" + policy_version + "|" + upper(outcome)) as lowercase hex.
func ComputeDecisionHash(inputsHash, policyVersion, outcome string) string {
	preimage := strings.ToLower(inputsHash) + "|" + policyVersion + "|" + strings.ToUpper(outcome)
	return crypto.DigestHex([]byte(preimage))
}
