package pdo

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/davidahmann/pdogate/pkg/types"
)

var (
	pdoIDPattern         = regexp.MustCompile(`^PDO-[A-Z0-9]{8,64}$`)
	sha256HexPattern     = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	policyVersionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*@v[0-9]+(\.[0-9]+)*$`)
	signerPattern        = regexp.MustCompile(`^(agent|system|operator)::([A-Za-z0-9][A-Za-z0-9_.:\-]*)$`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SchemaResult is the outcome of Validate. PDO is non-nil only when Errors is empty.
type SchemaResult struct {
	Errors []types.ValidationError
	PDO    *PDO
}

func (r SchemaResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks required members, member formats and the decision-hash
// binding. It is pure and never panics on malformed input.
//
// Missing members are all reported and stop validation. Format problems are
// all collected. The hash binding is only checked when every format is valid.
func Validate(raw Raw) SchemaResult {
	if raw == nil {
		return SchemaResult{Errors: []types.ValidationError{{
			Code:    types.CodeMissingField,
			Field:   "pdo",
			Message: "PDO is null",
		}}}
	}

	var errs []types.ValidationError
	for _, field := range RequiredFields {
		if value, ok := raw[field]; !ok || value == nil {
			errs = append(errs, types.ValidationError{
				Code:    types.CodeMissingField,
				Field:   field,
				Message: fmt.Sprintf("required field %s is missing", field),
			})
		}
	}
	if len(errs) > 0 {
		return SchemaResult{Errors: errs}
	}

	v := &validator{raw: raw}
	p := &PDO{}

	p.ID = v.pattern(FieldPDOID, pdoIDPattern, "must match PDO-[A-Z0-9]{8,64}")
	p.InputsHash = strings.ToLower(v.pattern(FieldInputsHash, sha256HexPattern, "must be a 64-character hex SHA-256 digest"))
	p.PolicyVersion = v.pattern(FieldPolicyVersion, policyVersionPattern, "must look like name@vMAJOR[.MINOR...]")
	p.DecisionHash = strings.ToLower(v.pattern(FieldDecisionHash, sha256HexPattern, "must be a 64-character hex SHA-256 digest"))
	p.Outcome = v.outcome()
	if ts, ok := v.timestamp(FieldTimestamp); ok {
		p.Timestamp = ts
	}
	if text := v.pattern(FieldSigner, signerPattern, "must look like type::id with type agent, system or operator"); text != "" {
		p.Signer, _ = parseSigner(text)
	}

	p.AgentID = v.optionalString(FieldAgentID)
	p.Action = v.optionalString(FieldAction)
	p.Nonce = v.optionalString(FieldNonce)
	if value, ok := raw[FieldExpiresAt]; ok && value != nil {
		if ts, ok := v.timestamp(FieldExpiresAt); ok {
			p.ExpiresAt = &ts
		}
	}

	if len(v.errs) > 0 {
		return SchemaResult{Errors: v.errs}
	}

	// The parsed outcome is hashed so any spelling accepted above binds the
	// same way as its canonical form.
	inputsText, _ := raw[FieldInputsHash].(string)
	expected := ComputeDecisionHash(inputsText, p.PolicyVersion, string(p.Outcome))
	if expected != p.DecisionHash {
		return SchemaResult{Errors: []types.ValidationError{{
			Code:    types.CodeHashMismatch,
			Field:   FieldDecisionHash,
			Message: "decision_hash does not match SHA256(inputs_hash|policy_version|outcome)",
		}}}
	}

	p.Signature = parseEnvelope(raw[FieldSignature])
	p.CRO = RecordedCRO{
		Decision:      raw[FieldCRODecision],
		Reasons:       raw[FieldCROReasons],
		EvaluatedAt:   raw[FieldCROEvaluatedAt],
		PolicyVersion: raw[FieldCROPolicyVersion],
	}
	p.raw = make(Raw, len(raw))
	for k, val := range raw {
		p.raw[k] = val
	}
	return SchemaResult{PDO: p}
}

// ParseTimestamp accepts ISO-8601 date-times (with or without offset) and
// plain dates. Offset-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	trim := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trim); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

type validator struct {
	raw  Raw
	errs []types.ValidationError
}

func (v *validator) fail(code types.ErrorCode, field, message string) {
	v.errs = append(v.errs, types.ValidationError{Code: code, Field: field, Message: message})
}

func (v *validator) pattern(field string, re *regexp.Regexp, hint string) string {
	s, ok := v.raw[field].(string)
	if !ok {
		v.fail(types.CodeInvalidFormat, field, field+" must be a string")
		return ""
	}
	if !re.MatchString(s) {
		v.fail(types.CodeInvalidFormat, field, field+" "+hint)
		return ""
	}
	return s
}

func (v *validator) outcome() Outcome {
	s, ok := v.raw[FieldOutcome].(string)
	if !ok {
		v.fail(types.CodeInvalidOutcome, FieldOutcome, "outcome must be a string")
		return ""
	}
	outcome, ok := ParseOutcome(s)
	if !ok {
		v.fail(types.CodeInvalidOutcome, FieldOutcome, "outcome must be one of APPROVED, REJECTED, PENDING")
		return ""
	}
	return outcome
}

func (v *validator) timestamp(field string) (time.Time, bool) {
	switch value := v.raw[field].(type) {
	case time.Time:
		return value.UTC(), true
	case string:
		if ts, ok := ParseTimestamp(value); ok {
			return ts, true
		}
	}
	v.fail(types.CodeInvalidTimestamp, field, field+" must be an ISO-8601 timestamp")
	return time.Time{}, false
}

func (v *validator) optionalString(field string) *string {
	value, ok := v.raw[field]
	if !ok || value == nil {
		return nil
	}
	s, ok := nonEmptyString(value)
	if !ok {
		v.fail(types.CodeInvalidFormat, field, field+" must be a non-empty string")
		return nil
	}
	return &s
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
