// Package pdo holds the Proof Decision Outcome record: the untrusted raw form,
// the schema validator that turns it into a validated PDO, the decision-hash
// binding and the canonical signing payload.
package pdo

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/davidahmann/pdogate/pkg/types"
)

// Raw is an untrusted, decoded PDO payload.
type Raw map[string]any

// Wire field names.
const (
	FieldPDOID            = "pdo_id"
	FieldInputsHash       = "inputs_hash"
	FieldPolicyVersion    = "policy_version"
	FieldDecisionHash     = "decision_hash"
	FieldOutcome          = "outcome"
	FieldTimestamp        = "timestamp"
	FieldSigner           = "signer"
	FieldAgentID          = "agent_id"
	FieldAction           = "action"
	FieldNonce            = "nonce"
	FieldExpiresAt        = "expires_at"
	FieldSignature        = "signature"
	FieldCRODecision      = "cro_decision"
	FieldCROReasons       = "cro_reasons"
	FieldCROEvaluatedAt   = "cro_evaluated_at"
	FieldCROPolicyVersion = "cro_policy_version"
)

// RequiredFields are checked for presence in this order.
var RequiredFields = []string{
	FieldPDOID,
	FieldInputsHash,
	FieldPolicyVersion,
	FieldDecisionHash,
	FieldOutcome,
	FieldTimestamp,
	FieldSigner,
}

// PDO is a schema-valid record with a verified decision-hash binding. It is
// only produced by Validate and is never modified afterwards; amending a
// decision means minting a new PDO.
type PDO struct {
	ID            string
	InputsHash    string
	PolicyVersion string
	DecisionHash  string
	Outcome       Outcome
	Timestamp     time.Time
	Signer        Signer

	AgentID   *string
	Action    *string
	Nonce     *string
	ExpiresAt *time.Time

	// Signature is nil when the envelope is missing or unparseable.
	Signature *types.SignatureEnvelope

	CRO RecordedCRO

	raw Raw
}

// RecordedCRO holds the CRO fields exactly as they appeared on the wire. The
// CRO stage interprets them.
type RecordedCRO struct {
	Decision      any
	Reasons       any
	EvaluatedAt   any
	PolicyVersion any
}

// Present reports whether the PDO carries a cro_decision member.
func (c RecordedCRO) Present() bool {
	return c.Decision != nil
}

// SigningPayload returns the canonical bytes covered by the signature envelope.
func (p *PDO) SigningPayload() ([]byte, error) {
	return Canonicalize(p.raw)
}

// Decode parses JSON into a Raw payload. Numbers are kept as json.Number.
// A JSON null decodes to a nil Raw.
func Decode(data []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw Raw
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FromWire converts a typed wire PDO into its raw form.
func FromWire(w types.PDO) Raw {
	raw := Raw{
		FieldPDOID:         w.PDOID,
		FieldInputsHash:    w.InputsHash,
		FieldPolicyVersion: w.PolicyVersion,
		FieldDecisionHash:  w.DecisionHash,
		FieldOutcome:       w.Outcome,
		FieldTimestamp:     w.Timestamp,
		FieldSigner:        w.Signer,
	}
	setIfNotEmpty(raw, FieldAgentID, w.AgentID)
	setIfNotEmpty(raw, FieldAction, w.Action)
	setIfNotEmpty(raw, FieldNonce, w.Nonce)
	setIfNotEmpty(raw, FieldExpiresAt, w.ExpiresAt)
	if w.Signature != nil {
		raw[FieldSignature] = map[string]any{
			"alg":    w.Signature.Alg,
			"key_id": w.Signature.KeyID,
			"sig":    w.Signature.Sig,
		}
	}
	setIfNotEmpty(raw, FieldCRODecision, w.CRODecision)
	if w.CROReasons != nil {
		reasons := make([]any, 0, len(w.CROReasons))
		for _, r := range w.CROReasons {
			reasons = append(reasons, r)
		}
		raw[FieldCROReasons] = reasons
	}
	setIfNotEmpty(raw, FieldCROEvaluatedAt, w.CROEvaluatedAt)
	setIfNotEmpty(raw, FieldCROPolicyVersion, w.CROPolicyVersion)
	return raw
}

func setIfNotEmpty(raw Raw, field, value string) {
	if value != "" {
		raw[field] = value
	}
}

// parseEnvelope returns nil unless alg, key_id and sig are all non-empty strings.
func parseEnvelope(v any) *types.SignatureEnvelope {
	var m map[string]any
	switch env := v.(type) {
	case map[string]any:
		m = env
	case Raw:
		m = env
	case *types.SignatureEnvelope:
		if env == nil || env.Alg == "" || env.KeyID == "" || env.Sig == "" {
			return nil
		}
		out := *env
		return &out
	case types.SignatureEnvelope:
		if env.Alg == "" || env.KeyID == "" || env.Sig == "" {
			return nil
		}
		return &env
	default:
		return nil
	}

	alg, ok1 := nonEmptyString(m["alg"])
	keyID, ok2 := nonEmptyString(m["key_id"])
	sig, ok3 := nonEmptyString(m["sig"])
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	return &types.SignatureEnvelope{Alg: alg, KeyID: keyID, Sig: sig}
}
