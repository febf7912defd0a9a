package keys

import (
	"time"

	"github.com/davidahmann/pdogate/internal/ledger"
)

// LedgerRegistry keeps trusted keys in a ledger.Store so that every gateway
// replica sharing the database sees the same registrations.
type LedgerRegistry struct {
	store ledger.Store
	now   func() time.Time
}

func NewLedgerRegistry(store ledger.Store) *LedgerRegistry {
	return &LedgerRegistry{store: store, now: time.Now}
}

func (r *LedgerRegistry) Register(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	ts := r.now().UTC().Format(time.RFC3339)
	var bound *string
	if rec.Bound() {
		agent := rec.BoundAgentID
		bound = &agent
	}
	return r.store.PutTrustedKey(ledger.TrustedKeyRecord{
		KeyID:        rec.KeyID,
		Algorithm:    string(rec.Algorithm),
		Material:     append([]byte(nil), rec.Material...),
		BoundAgentID: bound,
		RegisteredAt: ts,
		UpdatedAt:    ts,
	})
}

// Lookup returns false for rows whose algorithm is no longer supported.
func (r *LedgerRegistry) Lookup(keyID string) (Record, bool) {
	stored, ok := r.store.GetTrustedKey(keyID)
	if !ok {
		return Record{}, false
	}
	return fromLedger(stored)
}

func (r *LedgerRegistry) List() ([]Record, error) {
	stored, err := r.store.ListTrustedKeys()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(stored))
	for _, s := range stored {
		if rec, ok := fromLedger(s); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func fromLedger(stored ledger.TrustedKeyRecord) (Record, bool) {
	alg, ok := ParseAlgorithm(stored.Algorithm)
	if !ok {
		return Record{}, false
	}
	rec := Record{
		KeyID:     stored.KeyID,
		Algorithm: alg,
		Material:  stored.Material,
	}
	if stored.BoundAgentID != nil {
		rec.BoundAgentID = *stored.BoundAgentID
	}
	return rec, true
}
