package cro

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/pdogate/pkg/types"
)

// LoadMetadata reads risk metadata from a YAML or JSON file.
func LoadMetadata(path string) (types.CRORiskMetadata, error) {
	// #nosec G304 -- path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return types.CRORiskMetadata{}, err
	}
	return ParseMetadata(data)
}

// ParseMetadata decodes YAML or JSON risk metadata. Unknown members are
// rejected so a misspelt field cannot silently read as absent.
func ParseMetadata(data []byte) (types.CRORiskMetadata, error) {
	var meta types.CRORiskMetadata
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&meta); err != nil {
		return types.CRORiskMetadata{}, fmt.Errorf("parse risk metadata: %w", err)
	}
	return meta, nil
}
