package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPairFromSeed derives an Ed25519 keypair from a 32-byte seed.
func KeyPairFromSeed(seed []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, ErrInvalidSeedSize
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	publicKey := privateKey.Public().(ed25519.PublicKey)
	return privateKey, publicKey, nil
}

// DecodeSignature decodes a base64 signature. The standard alphabet is tried
// first, then the unpadded URL alphabet.
func DecodeSignature(sig string) ([]byte, error) {
	trim := strings.TrimSpace(sig)
	if trim == "" {
		return nil, ErrMalformedBase64
	}
	if out, err := base64.StdEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	if out, err := base64.RawURLEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	return nil, ErrMalformedBase64
}

// EncodeSignature is the inverse of DecodeSignature for the standard alphabet.
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// DecodeKeyMaterial decodes textual key material. Accepted forms:
// "base64:<...>", "hex:<...>", bare hex, bare base64.
func DecodeKeyMaterial(text string) ([]byte, error) {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return nil, fmt.Errorf("empty key material")
	}
	if strings.HasPrefix(trim, "base64:") {
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(trim, "base64:"))
	}
	if strings.HasPrefix(trim, "hex:") {
		return hex.DecodeString(strings.TrimPrefix(trim, "hex:"))
	}
	if out, err := hex.DecodeString(trim); err == nil {
		return out, nil
	}
	if out, err := base64.StdEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	if out, err := base64.RawURLEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	return nil, fmt.Errorf("unrecognized key encoding")
}
