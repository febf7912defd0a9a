package keys

import "errors"

var (
	ErrEmptyKeyID           = errors.New("key_id is required")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidMaterial      = errors.New("invalid key material")
)
