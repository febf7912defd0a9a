package pdo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/pkg/types"
)

var ErrInvalidMint = errors.New("minted PDO failed schema validation")

type MintInput struct {
	InputsHash    string
	PolicyVersion string
	Outcome       Outcome
	Signer        string

	AgentID string
	Action  string
	Nonce   string
	// TTL sets expires_at relative to Now when positive.
	TTL time.Duration
	Now time.Time
}

// NewID returns a fresh PDO identifier.
func NewID() string {
	id := uuid.New()
	return "PDO-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}

// NewNonce returns a single-use nonce.
func NewNonce() string {
	return uuid.NewString()
}

// HashInputs returns the lowercase hex SHA-256 of the canonical JSON of inputs.
func HashInputs(inputs any) (string, error) {
	canonical, err := crypto.Canonicalize(inputs)
	if err != nil {
		return "", err
	}
	return crypto.DigestHex(canonical), nil
}

// Mint builds a new, unsigned PDO with a bound decision_hash. The result is
// run through Validate before it is returned.
func Mint(in MintInput) (types.PDO, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	out := types.PDO{
		PDOID:         NewID(),
		InputsHash:    strings.ToLower(in.InputsHash),
		PolicyVersion: in.PolicyVersion,
		DecisionHash:  ComputeDecisionHash(in.InputsHash, in.PolicyVersion, string(in.Outcome)),
		Outcome:       strings.ToUpper(string(in.Outcome)),
		Timestamp:     now.Format(time.RFC3339),
		Signer:        in.Signer,
		AgentID:       in.AgentID,
		Action:        in.Action,
		Nonce:         in.Nonce,
	}
	if in.TTL > 0 {
		out.ExpiresAt = now.Add(in.TTL).Format(time.RFC3339)
	}

	if res := Validate(FromWire(out)); !res.Valid() {
		first := res.Errors[0]
		return types.PDO{}, fmt.Errorf("%w: %s %s", ErrInvalidMint, first.Code, first.Field)
	}
	return out, nil
}
