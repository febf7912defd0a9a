package ledger

import (
	"errors"
	"testing"
)

func TestInMemoryStore_TrustedKeys(t *testing.T) {
	s := NewInMemoryStore()

	agent := "settlement-bot"
	key := TrustedKeyRecord{KeyID: "kid", Algorithm: "ED25519", Material: []byte("pub"), BoundAgentID: &agent, RegisteredAt: "t0", UpdatedAt: "t0"}
	if err := s.PutTrustedKey(key); err != nil {
		t.Fatalf("put key: %v", err)
	}
	got, ok := s.GetTrustedKey("kid")
	if !ok || got.Algorithm != "ED25519" || got.BoundAgentID == nil || *got.BoundAgentID != agent {
		t.Fatalf("get key mismatch: ok=%v got=%+v", ok, got)
	}

	got.Material[0] = 'X'
	again, _ := s.GetTrustedKey("kid")
	if string(again.Material) != "pub" {
		t.Fatalf("stored material aliased by caller")
	}

	overwrite := TrustedKeyRecord{KeyID: "kid", Algorithm: "HMAC-SHA256", Material: []byte("secret"), UpdatedAt: "t1"}
	if err := s.PutTrustedKey(overwrite); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.GetTrustedKey("kid")
	if got.Algorithm != "HMAC-SHA256" || got.RegisteredAt != "t0" || got.UpdatedAt != "t1" {
		t.Fatalf("overwrite mismatch: %+v", got)
	}

	if _, ok := s.GetTrustedKey("missing"); ok {
		t.Fatalf("expected missing key")
	}

	if err := s.PutTrustedKey(TrustedKeyRecord{KeyID: "a", Algorithm: "ED25519"}); err != nil {
		t.Fatalf("put key: %v", err)
	}
	list, err := s.ListTrustedKeys()
	if err != nil || len(list) != 2 || list[0].KeyID != "a" {
		t.Fatalf("list mismatch: err=%v list=%+v", err, list)
	}
}

func TestInMemoryStore_Nonces(t *testing.T) {
	s := NewInMemoryStore()

	rec := NonceRecord{Namespace: "k1/agent", Nonce: "n1", ConsumedAt: "2025-12-20T00:00:00Z", RetainUntil: "2025-12-21T00:00:00Z"}
	fresh, err := s.ConsumeNonce(rec)
	if err != nil || !fresh {
		t.Fatalf("expected first consume to succeed: fresh=%v err=%v", fresh, err)
	}
	fresh, err = s.ConsumeNonce(rec)
	if err != nil || fresh {
		t.Fatalf("expected replay: fresh=%v err=%v", fresh, err)
	}

	other := rec
	other.Namespace = "k2/agent"
	if fresh, _ := s.ConsumeNonce(other); !fresh {
		t.Fatalf("namespaces must be independent")
	}

	purged, err := s.PurgeNonces("2025-12-22T00:00:00Z")
	if err != nil || purged != 2 {
		t.Fatalf("purge mismatch: purged=%d err=%v", purged, err)
	}
	if fresh, _ := s.ConsumeNonce(rec); !fresh {
		t.Fatalf("expected nonce to be consumable after purge")
	}
}

func TestInMemoryStore_ExpiredNonceConsumableBeforePurge(t *testing.T) {
	s := NewInMemoryStore()

	first := NonceRecord{Namespace: "2:k1/agent", Nonce: "n1", ConsumedAt: "2025-12-20T00:00:00Z", RetainUntil: "2025-12-21T00:00:00Z"}
	if fresh, err := s.ConsumeNonce(first); err != nil || !fresh {
		t.Fatalf("expected first consume to succeed: fresh=%v err=%v", fresh, err)
	}

	inWindow := first
	inWindow.ConsumedAt = "2025-12-21T00:00:00Z"
	inWindow.RetainUntil = "2025-12-22T00:00:00Z"
	if fresh, _ := s.ConsumeNonce(inWindow); fresh {
		t.Fatalf("expected replay at the retention boundary")
	}

	later := first
	later.ConsumedAt = "2025-12-21T00:00:01Z"
	later.RetainUntil = "2025-12-22T00:00:01Z"
	if fresh, err := s.ConsumeNonce(later); err != nil || !fresh {
		t.Fatalf("expected expired nonce to be consumable: fresh=%v err=%v", fresh, err)
	}
	if fresh, _ := s.ConsumeNonce(later); fresh {
		t.Fatalf("expected replay of the renewed record")
	}
}

func TestInMemoryStore_WithTx(t *testing.T) {
	s := NewInMemoryStore()
	err := s.WithTx(func(tx Tx) error {
		if err := tx.PutTrustedKey(TrustedKeyRecord{KeyID: "tx-k", Algorithm: "ED25519", Material: []byte("pub")}); err != nil {
			return err
		}
		if _, ok := tx.GetTrustedKey("tx-k"); !ok {
			t.Fatalf("expected key in tx")
		}
		fresh, err := tx.ConsumeNonce(NonceRecord{Namespace: "ns", Nonce: "n"})
		if err != nil || !fresh {
			t.Fatalf("expected fresh nonce in tx")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withtx: %v", err)
	}

	boom := errors.New("boom")
	if err := s.WithTx(func(Tx) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected tx error to propagate, got %v", err)
	}
}
