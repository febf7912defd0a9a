// Package ledger persists the two shared structures of the enforcement core:
// trusted verification keys and consumed nonces. Times are RFC3339 UTC strings.
package ledger

type Store interface {
	WithTx(fn func(Tx) error) error

	PutTrustedKey(key TrustedKeyRecord) error
	GetTrustedKey(keyID string) (TrustedKeyRecord, bool)
	ListTrustedKeys() ([]TrustedKeyRecord, error)

	// ConsumeNonce records the nonce if it has not been seen in its namespace
	// and reports whether this call was the one that recorded it.
	ConsumeNonce(rec NonceRecord) (bool, error)
	// PurgeNonces drops nonces whose retention ended before the given time.
	PurgeNonces(before string) (int64, error)
}

type Tx interface {
	PutTrustedKey(key TrustedKeyRecord) error
	GetTrustedKey(keyID string) (TrustedKeyRecord, bool)

	ConsumeNonce(rec NonceRecord) (bool, error)
}

type TrustedKeyRecord struct {
	KeyID        string
	Algorithm    string
	Material     []byte
	BoundAgentID *string
	RegisteredAt string
	UpdatedAt    string
}

type NonceRecord struct {
	Namespace   string
	Nonce       string
	ConsumedAt  string
	RetainUntil string
}
