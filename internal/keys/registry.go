// Package keys is the trusted key registry consulted by signature
// verification. Keys are added by an explicit registration and are never
// deleted; registering an existing key_id overwrites it.
package keys

import (
	"crypto/ed25519"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Record struct {
	KeyID     string
	Algorithm Algorithm
	Material  []byte
	// BoundAgentID is empty when the key is not bound to an agent.
	BoundAgentID string
}

// Bound reports whether the key may only sign for one agent.
func (r Record) Bound() bool {
	return r.BoundAgentID != ""
}

type Registry interface {
	Register(rec Record) error
	Lookup(keyID string) (Record, bool)
}

// NewRecord builds a Record from operator supplied values.
func NewRecord(keyID, algorithm string, material []byte, agentID string) (Record, error) {
	alg, ok := ParseAlgorithm(algorithm)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	rec := Record{
		KeyID:        strings.TrimSpace(keyID),
		Algorithm:    alg,
		Material:     material,
		BoundAgentID: strings.TrimSpace(agentID),
	}
	return rec, rec.Validate()
}

// Validate checks the record can be used for verification.
func (r Record) Validate() error {
	if strings.TrimSpace(r.KeyID) == "" {
		return ErrEmptyKeyID
	}
	switch r.Algorithm {
	case AlgEd25519:
		if len(r.Material) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", ErrInvalidMaterial, ed25519.PublicKeySize, len(r.Material))
		}
	case AlgHMACSHA256:
		if len(r.Material) == 0 {
			return fmt.Errorf("%w: hmac secret is empty", ErrInvalidMaterial)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, r.Algorithm)
	}
	return nil
}

func (r Record) clone() Record {
	r.Material = append([]byte(nil), r.Material...)
	return r
}

type InMemoryRegistry struct {
	mu   sync.RWMutex
	keys map[string]Record
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{keys: make(map[string]Record)}
}

func (r *InMemoryRegistry) Register(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[rec.KeyID] = rec.clone()
	return nil
}

func (r *InMemoryRegistry) Lookup(keyID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.keys[keyID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// List returns every registered key ordered by key_id.
func (r *InMemoryRegistry) List() ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.keys))
	for _, rec := range r.keys {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}
