package types

// ErrorCode identifies a validation failure. Codes are stable wire identifiers.
type ErrorCode string

// Schema tier.
const (
	CodeMissingField     ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
	CodeInvalidOutcome   ErrorCode = "INVALID_OUTCOME"
	CodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"
	CodeHashMismatch     ErrorCode = "HASH_MISMATCH"
)

// Signature tier.
const (
	CodeInvalidSignature     ErrorCode = "INVALID_SIGNATURE"
	CodeUnsupportedAlgorithm ErrorCode = "UNSUPPORTED_ALGORITHM"
	CodeUnknownKeyID         ErrorCode = "UNKNOWN_KEY_ID"
	CodeMalformedSignature   ErrorCode = "MALFORMED_SIGNATURE"
	CodeUnsignedPDO          ErrorCode = "UNSIGNED_PDO"
	CodeExpiredPDO           ErrorCode = "EXPIRED_PDO"
	CodeReplayDetected       ErrorCode = "REPLAY_DETECTED"
	CodeSignerMismatch       ErrorCode = "SIGNER_MISMATCH"
)

// Policy tier.
const (
	CodeCRODecisionInvalid ErrorCode = "CRO_DECISION_INVALID"
	CodeCROBlocksExecution ErrorCode = "CRO_BLOCKS_EXECUTION"
)

// ValidationError is one entry of a ValidationResult's ordered error list.
type ValidationError struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
}
