package signature

import (
	"crypto/ed25519"

	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/keys"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/pkg/types"
)

// Signer produces raw signatures over a canonical signing payload.
type Signer interface {
	KeyID() string
	Algorithm() keys.Algorithm
	Sign(payload []byte) ([]byte, error)
}

type Ed25519Signer struct {
	keyID      string
	privateKey ed25519.PrivateKey
}

func NewEd25519Signer(keyID string, privateKey ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{keyID: keyID, privateKey: privateKey}
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) Algorithm() keys.Algorithm { return keys.AlgEd25519 }

// Sign signs the SHA-256 digest of payload.
func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return crypto.SignEd25519(s.privateKey, crypto.DigestBytes(payload))
}

// PublicKey is the verification material to register for this signer.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

type HMACSigner struct {
	keyID  string
	secret []byte
}

func NewHMACSigner(keyID string, secret []byte) *HMACSigner {
	return &HMACSigner{keyID: keyID, secret: append([]byte(nil), secret...)}
}

func (s *HMACSigner) KeyID() string { return s.keyID }

func (s *HMACSigner) Algorithm() keys.Algorithm { return keys.AlgHMACSHA256 }

func (s *HMACSigner) Sign(payload []byte) ([]byte, error) {
	return crypto.SignHMAC(s.secret, payload)
}

// Sign builds the envelope for raw. Any existing envelope on raw is ignored.
func Sign(raw pdo.Raw, s Signer) (types.SignatureEnvelope, error) {
	payload, err := pdo.Canonicalize(raw)
	if err != nil {
		return types.SignatureEnvelope{}, err
	}
	sig, err := s.Sign(payload)
	if err != nil {
		return types.SignatureEnvelope{}, err
	}
	return types.SignatureEnvelope{
		Alg:   string(s.Algorithm()),
		KeyID: s.KeyID(),
		Sig:   crypto.EncodeSignature(sig),
	}, nil
}

// SignPDO attaches a signature envelope to a wire PDO.
func SignPDO(p *types.PDO, s Signer) error {
	env, err := Sign(pdo.FromWire(*p), s)
	if err != nil {
		return err
	}
	p.Signature = &env
	return nil
}
