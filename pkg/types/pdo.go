package types

// PDO is the wire form of a Proof Decision Outcome.
type PDO struct {
	PDOID         string `json:"pdo_id"`
	InputsHash    string `json:"inputs_hash"`
	PolicyVersion string `json:"policy_version"`
	DecisionHash  string `json:"decision_hash"`
	Outcome       string `json:"outcome"`
	Timestamp     string `json:"timestamp"`
	Signer        string `json:"signer"`

	AgentID   string `json:"agent_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`

	Signature *SignatureEnvelope `json:"signature,omitempty"`

	CRODecision      string   `json:"cro_decision,omitempty"`
	CROReasons       []string `json:"cro_reasons,omitempty"`
	CROEvaluatedAt   string   `json:"cro_evaluated_at,omitempty"`
	CROPolicyVersion string   `json:"cro_policy_version,omitempty"`
}

// SignatureEnvelope is excluded from its own signed payload.
type SignatureEnvelope struct {
	Alg   string `json:"alg"`
	KeyID string `json:"key_id"`
	Sig   string `json:"sig"`
}
