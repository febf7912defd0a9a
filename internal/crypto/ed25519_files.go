package crypto

import (
	"crypto/ed25519"
	"fmt"
	"os"
)

// LoadEd25519PrivateKey loads an Ed25519 private key from a file.
// Supported formats:
// - raw 64-byte private key
// - raw 32-byte seed
// - hex or base64 encoding of either form
func LoadEd25519PrivateKey(path string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	data, err := LoadKeyMaterial(path)
	if err != nil {
		return nil, nil, err
	}

	switch len(data) {
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(data)
		pub := priv.Public().(ed25519.PublicKey)
		return priv, pub, nil
	case ed25519.SeedSize:
		return KeyPairFromSeed(data)
	default:
		return nil, nil, fmt.Errorf("unsupported private key length: %d", len(data))
	}
}

// LoadKeyMaterial reads a key file holding raw or encoded bytes.
func LoadKeyMaterial(path string) ([]byte, error) {
	// #nosec G304 -- path is operator-configured.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// raw binary keys are common for seeds and private keys
	if len(raw) == ed25519.PrivateKeySize || len(raw) == ed25519.SeedSize {
		if _, err := DecodeKeyMaterial(string(raw)); err != nil {
			return raw, nil
		}
	}
	return DecodeKeyMaterial(string(raw))
}
