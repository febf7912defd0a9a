package keys

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/pdogate/internal/crypto"
)

// Keyring is the YAML file an operator uses to provision trusted keys.
//
//	keys:
//	  - key_id: settlement-2025
//	    algorithm: ED25519
//	    material: base64:...
//	    agent_id: settlement-bot
type Keyring struct {
	Keys []KeyringEntry `yaml:"keys"`
}

type KeyringEntry struct {
	KeyID     string `yaml:"key_id"`
	Algorithm string `yaml:"algorithm"`
	// Material holds encoded key bytes; MaterialPath points at a key file
	// instead and is resolved relative to the keyring.
	Material     string `yaml:"material,omitempty"`
	MaterialPath string `yaml:"material_path,omitempty"`
	AgentID      string `yaml:"agent_id,omitempty"`
}

// ReadKeyring parses a keyring file. A missing file yields an empty keyring.
func ReadKeyring(path string) (Keyring, error) {
	// #nosec G304 -- path is operator-configured.
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Keyring{}, nil
	}
	if err != nil {
		return Keyring{}, err
	}
	var kr Keyring
	if err := yaml.Unmarshal(data, &kr); err != nil {
		return Keyring{}, fmt.Errorf("parse keyring: %w", err)
	}
	return kr, nil
}

// WriteKeyring replaces the keyring file.
func WriteKeyring(path string, kr Keyring) error {
	data, err := yaml.Marshal(kr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Upsert replaces the entry with the same key_id or appends a new one.
func (k *Keyring) Upsert(entry KeyringEntry) {
	for i := range k.Keys {
		if k.Keys[i].KeyID == entry.KeyID {
			k.Keys[i] = entry
			return
		}
	}
	k.Keys = append(k.Keys, entry)
}

// Records decodes every entry. baseDir resolves relative material paths.
func (k Keyring) Records(baseDir string) ([]Record, error) {
	out := make([]Record, 0, len(k.Keys))
	for i, entry := range k.Keys {
		material, err := entry.material(baseDir)
		if err != nil {
			return nil, fmt.Errorf("keyring entry %d (%s): %w", i, entry.KeyID, err)
		}
		rec, err := NewRecord(entry.KeyID, entry.Algorithm, material, entry.AgentID)
		if err != nil {
			return nil, fmt.Errorf("keyring entry %d (%s): %w", i, entry.KeyID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e KeyringEntry) material(baseDir string) ([]byte, error) {
	switch {
	case e.Material != "" && e.MaterialPath != "":
		return nil, fmt.Errorf("%w: set material or material_path, not both", ErrInvalidMaterial)
	case e.Material != "":
		return crypto.DecodeKeyMaterial(e.Material)
	case e.MaterialPath != "":
		path := e.MaterialPath
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return crypto.LoadKeyMaterial(path)
	default:
		return nil, fmt.Errorf("%w: missing material", ErrInvalidMaterial)
	}
}

// LoadKeyring registers every key in the file and returns how many were
// registered. Nothing is registered when any entry is invalid.
func LoadKeyring(path string, reg Registry) (int, error) {
	kr, err := ReadKeyring(path)
	if err != nil {
		return 0, err
	}
	records, err := kr.Records(filepath.Dir(path))
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := reg.Register(rec); err != nil {
			return 0, fmt.Errorf("register %s: %w", rec.KeyID, err)
		}
	}
	return len(records), nil
}

// EncodeMaterial renders key bytes in the keyring's preferred encoding.
func EncodeMaterial(material []byte) string {
	return "base64:" + base64.StdEncoding.EncodeToString(material)
}
