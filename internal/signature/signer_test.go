package signature

import (
	"testing"

	"github.com/davidahmann/pdogate/internal/pdo"
)

func TestSignIsStableAcrossUnrelatedFields(t *testing.T) {
	s := testEd25519Signer(t, "ed-key")
	w := mintPDO(t, "n")

	first, err := Sign(pdo.FromWire(w), s)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w.Signer = "system::scheduler"
	w.CROReasons = []string{"LOW_RISK_ALLOW"}
	second, err := Sign(pdo.FromWire(w), s)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first != second {
		t.Fatalf("signature changed for fields outside the signing view")
	}
	if first.Alg != "ED25519" || first.KeyID != "ed-key" {
		t.Fatalf("unexpected envelope: %+v", first)
	}
}

func TestSignPDOAttachesEnvelope(t *testing.T) {
	s := NewHMACSigner("mac-key", []byte(testSecret))
	w := mintPDO(t, "n")
	if err := SignPDO(&w, s); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if w.Signature == nil || w.Signature.Alg != "HMAC-SHA256" || w.Signature.Sig == "" {
		t.Fatalf("expected envelope, got %+v", w.Signature)
	}
}

func TestHMACSignerRejectsEmptySecret(t *testing.T) {
	w := mintPDO(t, "n")
	if err := SignPDO(&w, NewHMACSigner("k", nil)); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
