package signature

import (
	"fmt"

	"github.com/davidahmann/pdogate/pkg/types"
)

// Outcome is the result of verifying a PDO signature. Only OutcomeValid
// permits execution.
type Outcome string

const (
	OutcomeValid                Outcome = "VALID"
	OutcomeUnsigned             Outcome = "UNSIGNED_PDO"
	OutcomeUnknownKeyID         Outcome = "UNKNOWN_KEY_ID"
	OutcomeUnsupportedAlgorithm Outcome = "UNSUPPORTED_ALGORITHM"
	OutcomeMalformedSignature   Outcome = "MALFORMED_SIGNATURE"
	OutcomeInvalidSignature     Outcome = "INVALID_SIGNATURE"
	OutcomeExpired              Outcome = "EXPIRED_PDO"
	OutcomeReplayDetected       Outcome = "REPLAY_DETECTED"
	OutcomeSignerMismatch       Outcome = "SIGNER_MISMATCH"
)

// Code maps a failing outcome to its validation error code. It panics for
// OutcomeValid and for values outside the enum.
func (o Outcome) Code() types.ErrorCode {
	switch o {
	case OutcomeUnsigned:
		return types.CodeUnsignedPDO
	case OutcomeUnknownKeyID:
		return types.CodeUnknownKeyID
	case OutcomeUnsupportedAlgorithm:
		return types.CodeUnsupportedAlgorithm
	case OutcomeMalformedSignature:
		return types.CodeMalformedSignature
	case OutcomeInvalidSignature:
		return types.CodeInvalidSignature
	case OutcomeExpired:
		return types.CodeExpiredPDO
	case OutcomeReplayDetected:
		return types.CodeReplayDetected
	case OutcomeSignerMismatch:
		return types.CodeSignerMismatch
	case OutcomeValid:
		panic("signature: VALID has no error code")
	default:
		panic(fmt.Sprintf("signature: unknown outcome %q", string(o)))
	}
}

// Result is the verdict for one PDO. Reason never contains key material or
// signature bytes.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	PDOID     string  `json:"pdo_id"`
	KeyID     string  `json:"key_id,omitempty"`
	Algorithm string  `json:"algorithm,omitempty"`
	Reason    string  `json:"reason"`
}

func (r Result) IsValid() bool { return r.Outcome == OutcomeValid }

func (r Result) IsUnsigned() bool { return r.Outcome == OutcomeUnsigned }

// AllowsExecution is true only for a VALID signature. An unsigned PDO blocks.
func (r Result) AllowsExecution() bool { return r.IsValid() }
