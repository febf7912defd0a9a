package ledger

import (
	"sort"
	"sync"
)

type InMemoryStore struct {
	mu sync.Mutex

	keys   map[string]TrustedKeyRecord
	nonces map[nonceKey]NonceRecord
}

type nonceKey struct {
	namespace string
	nonce     string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		keys:   make(map[string]TrustedKeyRecord),
		nonces: make(map[nonceKey]NonceRecord),
	}
}

func (s *InMemoryStore) WithTx(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*memTx)(s))
}

type memTx InMemoryStore

func (s *InMemoryStore) PutTrustedKey(key TrustedKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutTrustedKey(key)
}

func (s *InMemoryStore) GetTrustedKey(keyID string) (TrustedKeyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetTrustedKey(keyID)
}

func (s *InMemoryStore) ListTrustedKeys() ([]TrustedKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrustedKeyRecord, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, cloneKey(key))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (s *InMemoryStore) ConsumeNonce(rec NonceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).ConsumeNonce(rec)
}

func (s *InMemoryStore) PurgeNonces(before string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for k, rec := range s.nonces {
		if rec.RetainUntil < before {
			delete(s.nonces, k)
			purged++
		}
	}
	return purged, nil
}

func (t *memTx) PutTrustedKey(key TrustedKeyRecord) error {
	if existing, ok := t.keys[key.KeyID]; ok {
		key.RegisteredAt = existing.RegisteredAt
	}
	t.keys[key.KeyID] = cloneKey(key)
	return nil
}

func (t *memTx) GetTrustedKey(keyID string) (TrustedKeyRecord, bool) {
	key, ok := t.keys[keyID]
	if !ok {
		return TrustedKeyRecord{}, false
	}
	return cloneKey(key), true
}

func (t *memTx) ConsumeNonce(rec NonceRecord) (bool, error) {
	k := nonceKey{namespace: rec.Namespace, nonce: rec.Nonce}
	// A record past its retention may be consumed again, matching a purge.
	if existing, ok := t.nonces[k]; ok && existing.RetainUntil >= rec.ConsumedAt {
		return false, nil
	}
	t.nonces[k] = rec
	return true, nil
}

func cloneKey(key TrustedKeyRecord) TrustedKeyRecord {
	key.Material = append([]byte(nil), key.Material...)
	if key.BoundAgentID != nil {
		agent := *key.BoundAgentID
		key.BoundAgentID = &agent
	}
	return key
}
