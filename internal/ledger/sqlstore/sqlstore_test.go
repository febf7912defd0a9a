package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/davidahmann/pdogate/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.DB().SetMaxOpenConns(1)

	if _, err := ledger.Migrate(context.Background(), s.DB(), ledger.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestTrustedKeyCRUD(t *testing.T) {
	s := openTestStore(t)

	agent := "settlement-bot"
	key := ledger.TrustedKeyRecord{
		KeyID:        "kid",
		Algorithm:    "ED25519",
		Material:     []byte("pub"),
		BoundAgentID: &agent,
		RegisteredAt: "2025-12-20T00:00:00Z",
		UpdatedAt:    "2025-12-20T00:00:00Z",
	}
	if err := s.PutTrustedKey(key); err != nil {
		t.Fatalf("put key: %v", err)
	}
	got, ok := s.GetTrustedKey("kid")
	if !ok || got.Algorithm != "ED25519" || string(got.Material) != "pub" {
		t.Fatalf("get key mismatch: ok=%v got=%+v", ok, got)
	}
	if got.BoundAgentID == nil || *got.BoundAgentID != agent {
		t.Fatalf("expected bound agent, got %+v", got.BoundAgentID)
	}

	rotated := ledger.TrustedKeyRecord{
		KeyID:        "kid",
		Algorithm:    "HMAC-SHA256",
		Material:     []byte("secret"),
		RegisteredAt: "2025-12-21T00:00:00Z",
		UpdatedAt:    "2025-12-21T00:00:00Z",
	}
	if err := s.PutTrustedKey(rotated); err != nil {
		t.Fatalf("overwrite key: %v", err)
	}
	got, _ = s.GetTrustedKey("kid")
	if got.Algorithm != "HMAC-SHA256" || got.BoundAgentID != nil {
		t.Fatalf("overwrite mismatch: %+v", got)
	}
	if got.RegisteredAt != "2025-12-20T00:00:00Z" || got.UpdatedAt != "2025-12-21T00:00:00Z" {
		t.Fatalf("timestamps mismatch: %+v", got)
	}

	if err := s.PutTrustedKey(ledger.TrustedKeyRecord{KeyID: "a-kid", Algorithm: "ED25519", Material: []byte("p"), RegisteredAt: "t", UpdatedAt: "t"}); err != nil {
		t.Fatalf("put key: %v", err)
	}
	list, err := s.ListTrustedKeys()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].KeyID != "a-kid" || list[1].KeyID != "kid" {
		t.Fatalf("list mismatch: %+v", list)
	}

	if _, ok := s.GetTrustedKey("missing"); ok {
		t.Fatalf("expected missing key")
	}
	if err := s.PutTrustedKey(ledger.TrustedKeyRecord{}); err == nil {
		t.Fatalf("expected error for empty key_id")
	}
}

func TestConsumeNonceOnce(t *testing.T) {
	s := openTestStore(t)

	rec := ledger.NonceRecord{Namespace: "kid/agent", Nonce: "n-1", ConsumedAt: "2025-12-20T00:00:00Z", RetainUntil: "2025-12-21T00:00:00Z"}
	fresh, err := s.ConsumeNonce(rec)
	if err != nil || !fresh {
		t.Fatalf("expected fresh nonce: fresh=%v err=%v", fresh, err)
	}
	fresh, err = s.ConsumeNonce(rec)
	if err != nil || fresh {
		t.Fatalf("expected replay: fresh=%v err=%v", fresh, err)
	}

	other := rec
	other.Namespace = "kid2/agent"
	if fresh, err := s.ConsumeNonce(other); err != nil || !fresh {
		t.Fatalf("expected independent namespace: fresh=%v err=%v", fresh, err)
	}

	kept := ledger.NonceRecord{Namespace: "kid/agent", Nonce: "n-2", ConsumedAt: "2025-12-22T00:00:00Z", RetainUntil: "2025-12-23T00:00:00Z"}
	if _, err := s.ConsumeNonce(kept); err != nil {
		t.Fatalf("consume: %v", err)
	}

	purged, err := s.PurgeNonces("2025-12-22T00:00:00Z")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}
	if fresh, _ := s.ConsumeNonce(kept); fresh {
		t.Fatalf("expected retained nonce to still be consumed")
	}
	if fresh, _ := s.ConsumeNonce(rec); !fresh {
		t.Fatalf("expected purged nonce to be consumable again")
	}
}

func TestConsumeNonceAfterRetention(t *testing.T) {
	s := openTestStore(t)

	first := ledger.NonceRecord{Namespace: "3:kid/agent", Nonce: "n-1", ConsumedAt: "2025-12-20T00:00:00Z", RetainUntil: "2025-12-21T00:00:00Z"}
	if fresh, err := s.ConsumeNonce(first); err != nil || !fresh {
		t.Fatalf("expected fresh nonce: fresh=%v err=%v", fresh, err)
	}

	inWindow := first
	inWindow.ConsumedAt = "2025-12-20T12:00:00Z"
	inWindow.RetainUntil = "2025-12-21T12:00:00Z"
	if fresh, err := s.ConsumeNonce(inWindow); err != nil || fresh {
		t.Fatalf("expected replay inside retention: fresh=%v err=%v", fresh, err)
	}

	later := first
	later.ConsumedAt = "2025-12-22T00:00:00Z"
	later.RetainUntil = "2025-12-23T00:00:00Z"
	if fresh, err := s.ConsumeNonce(later); err != nil || !fresh {
		t.Fatalf("expected expired nonce to be consumable without purge: fresh=%v err=%v", fresh, err)
	}
	if fresh, err := s.ConsumeNonce(later); err != nil || fresh {
		t.Fatalf("expected replay of renewed record: fresh=%v err=%v", fresh, err)
	}

	purged, err := s.PurgeNonces("2025-12-22T12:00:00Z")
	if err != nil || purged != 0 {
		t.Fatalf("renewed record must outlive the old window: purged=%d err=%v", purged, err)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutTrustedKey(ledger.TrustedKeyRecord{KeyID: "kid-rollback", Algorithm: "ED25519", Material: []byte("p"), RegisteredAt: "now", UpdatedAt: "now"}); err != nil {
			return err
		}
		if _, err := tx.ConsumeNonce(ledger.NonceRecord{Namespace: "ns", Nonce: "n", ConsumedAt: "now", RetainUntil: "later"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.GetTrustedKey("kid-rollback"); ok {
		t.Fatalf("expected rollback to discard key")
	}
	if fresh, _ := s.ConsumeNonce(ledger.NonceRecord{Namespace: "ns", Nonce: "n", ConsumedAt: "now", RetainUntil: "later"}); !fresh {
		t.Fatalf("expected rollback to discard nonce")
	}
}

func TestTxGetters(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx ledger.Tx) error {
		key := ledger.TrustedKeyRecord{KeyID: "kid-tx", Algorithm: "ED25519", Material: []byte("pub"), RegisteredAt: "now", UpdatedAt: "now"}
		if err := tx.PutTrustedKey(key); err != nil {
			return err
		}
		if got, ok := tx.GetTrustedKey("kid-tx"); !ok || got.KeyID != "kid-tx" {
			return fmt.Errorf("tx get key mismatch: ok=%v got=%+v", ok, got)
		}
		if _, ok := tx.GetTrustedKey("missing"); ok {
			return errors.New("expected missing key in tx")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withtx: %v", err)
	}
}
