package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKeyring(t *testing.T) {
	dir := t.TempDir()
	pub := testPublicKey(t)

	if err := os.WriteFile(filepath.Join(dir, "hmac.key"), []byte("hex:"+hex.EncodeToString([]byte("shared-secret"))), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	kr := Keyring{Keys: []KeyringEntry{
		{KeyID: "ed", Algorithm: "ed25519", Material: EncodeMaterial(pub), AgentID: "settlement-bot"},
		{KeyID: "mac", Algorithm: "HMAC-SHA256", MaterialPath: "hmac.key"},
	}}
	path := filepath.Join(dir, "keyring.yaml")
	if err := WriteKeyring(path, kr); err != nil {
		t.Fatalf("write keyring: %v", err)
	}

	reg := NewInMemoryRegistry()
	n, err := LoadKeyring(path, reg)
	if err != nil {
		t.Fatalf("load keyring: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 keys, got %d", n)
	}
	ed, ok := reg.Lookup("ed")
	if !ok || ed.Algorithm != AlgEd25519 || ed.BoundAgentID != "settlement-bot" || !ed25519.PublicKey(ed.Material).Equal(pub) {
		t.Fatalf("ed25519 entry mismatch: %+v", ed)
	}
	mac, ok := reg.Lookup("mac")
	if !ok || string(mac.Material) != "shared-secret" {
		t.Fatalf("hmac entry mismatch: %+v", mac)
	}
}

func TestLoadKeyringMissingFileIsEmpty(t *testing.T) {
	n, err := LoadKeyring(filepath.Join(t.TempDir(), "absent.yaml"), NewInMemoryRegistry())
	if err != nil || n != 0 {
		t.Fatalf("expected empty keyring, got n=%d err=%v", n, err)
	}
}

func TestLoadKeyringRejectsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad yaml":      "keys: [",
		"no material":   "keys:\n  - key_id: k\n    algorithm: ED25519\n",
		"both material": "keys:\n  - key_id: k\n    algorithm: HMAC-SHA256\n    material: hex:00\n    material_path: x\n",
		"short ed25519": "keys:\n  - key_id: k\n    algorithm: ED25519\n    material: hex:0011\n",
		"unknown alg":   "keys:\n  - key_id: k\n    algorithm: RS256\n    material: hex:0011\n",
		"bad encoding":  "keys:\n  - key_id: k\n    algorithm: HMAC-SHA256\n    material: \"base64:%%%\"\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, "keyring.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		reg := NewInMemoryRegistry()
		if _, err := LoadKeyring(path, reg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if _, ok := reg.Lookup("k"); ok {
			t.Fatalf("%s: nothing should be registered", name)
		}
	}
}

func TestKeyringUpsert(t *testing.T) {
	var kr Keyring
	kr.Upsert(KeyringEntry{KeyID: "a", Algorithm: "ED25519"})
	kr.Upsert(KeyringEntry{KeyID: "b", Algorithm: "ED25519"})
	kr.Upsert(KeyringEntry{KeyID: "a", Algorithm: "HMAC-SHA256"})
	if len(kr.Keys) != 2 || kr.Keys[0].Algorithm != "HMAC-SHA256" {
		t.Fatalf("upsert mismatch: %+v", kr.Keys)
	}
}
