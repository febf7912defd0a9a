// Package signature verifies and produces PDO signature envelopes.
//
// Verification is a fixed-priority state machine: the first failing check
// decides the outcome, and only a PDO that passes every check is VALID.
package signature

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/keys"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/internal/replay"
)

// Binding controls how a key's bound agent is enforced.
type Binding string

const (
	// BindingStrict requires agent_id to match when the key is bound.
	BindingStrict Binding = "strict"
	// BindingRequired also rejects keys that are not bound to an agent.
	BindingRequired Binding = "required"
	// BindingDisabled skips the agent check.
	BindingDisabled Binding = "disabled"
)

func ParseBinding(s string) (Binding, error) {
	switch b := Binding(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BindingStrict, nil
	case BindingStrict, BindingRequired, BindingDisabled:
		return b, nil
	default:
		return "", fmt.Errorf("unknown signer binding: %q", s)
	}
}

type Config struct {
	// ReplayWindow is how long a consumed nonce is remembered. It is only
	// used when the verifier builds its own replay cache.
	ReplayWindow time.Duration
	// RequireNonce turns a missing nonce into REPLAY_DETECTED.
	RequireNonce bool
	Binding      Binding
	Now          func() time.Time
}

type Verifier struct {
	registry keys.Registry
	nonces   replay.Cache
	cfg      Config
}

// NewVerifier builds a verifier. A nil cache gets an in-memory cache with the
// configured replay window.
func NewVerifier(registry keys.Registry, nonces replay.Cache, cfg Config) *Verifier {
	if cfg.Binding == "" {
		cfg.Binding = BindingStrict
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if nonces == nil {
		nonces = replay.NewInMemoryCache(cfg.ReplayWindow)
	}
	return &Verifier{registry: registry, nonces: nonces, cfg: cfg}
}

// Verify runs the verification state machine. A nil PDO is UNSIGNED_PDO.
// A fresh nonce is consumed once the signature is proven authentic, even if
// the signer check then fails.
func (v *Verifier) Verify(p *pdo.PDO) Result {
	if p == nil {
		return Result{Outcome: OutcomeUnsigned, Reason: "no PDO supplied"}
	}
	res := Result{PDOID: p.ID}

	env := p.Signature
	if env == nil {
		return res.fail(OutcomeUnsigned, "signature envelope missing or incomplete")
	}
	res.KeyID = env.KeyID
	res.Algorithm = env.Alg

	rec, ok := v.registry.Lookup(env.KeyID)
	if !ok {
		return res.fail(OutcomeUnknownKeyID, "key_id is not registered")
	}

	claimed, ok := keys.ParseAlgorithm(env.Alg)
	if !ok || claimed != rec.Algorithm {
		return res.fail(OutcomeUnsupportedAlgorithm, fmt.Sprintf("algorithm %q is not accepted for this key", env.Alg))
	}
	res.Algorithm = string(claimed)

	sig, err := crypto.DecodeSignature(env.Sig)
	if err != nil {
		return res.fail(OutcomeMalformedSignature, "signature is not valid base64")
	}

	payload, err := p.SigningPayload()
	if err != nil {
		return res.fail(OutcomeInvalidSignature, "signing payload could not be canonicalized")
	}
	if !v.authentic(rec, payload, sig) {
		return res.fail(OutcomeInvalidSignature, "signature does not match payload")
	}

	now := v.cfg.Now()
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return res.fail(OutcomeExpired, "PDO expired at "+p.ExpiresAt.UTC().Format(time.RFC3339))
	}

	if out, reason, failed := v.checkNonce(p, rec, now); failed {
		return res.fail(out, reason)
	}

	if out, reason, failed := v.checkSigner(p, rec); failed {
		return res.fail(out, reason)
	}

	res.Outcome = OutcomeValid
	res.Reason = "signature verified"
	return res
}

func (v *Verifier) authentic(rec keys.Record, payload, sig []byte) bool {
	switch rec.Algorithm {
	case keys.AlgEd25519:
		ok, err := crypto.VerifyEd25519(rec.Material, crypto.DigestBytes(payload), sig)
		return err == nil && ok
	case keys.AlgHMACSHA256:
		ok, err := crypto.VerifyHMAC(rec.Material, payload, sig)
		return err == nil && ok
	default:
		panic(fmt.Sprintf("signature: registry returned unsupported algorithm %q", string(rec.Algorithm)))
	}
}

func (v *Verifier) checkNonce(p *pdo.PDO, rec keys.Record, now time.Time) (Outcome, string, bool) {
	if p.Nonce == nil {
		if v.cfg.RequireNonce {
			return OutcomeReplayDetected, "nonce is required", true
		}
		return "", "", false
	}
	agent := ""
	if p.AgentID != nil {
		agent = *p.AgentID
	}
	fresh, err := v.nonces.Consume(replay.Namespace(rec.KeyID, agent), *p.Nonce, now)
	if err != nil {
		return OutcomeReplayDetected, "nonce store unavailable", true
	}
	if !fresh {
		return OutcomeReplayDetected, "nonce already consumed", true
	}
	return "", "", false
}

func (v *Verifier) checkSigner(p *pdo.PDO, rec keys.Record) (Outcome, string, bool) {
	switch v.cfg.Binding {
	case BindingDisabled:
		return "", "", false
	case BindingRequired:
		if !rec.Bound() {
			return OutcomeSignerMismatch, "key is not bound to an agent", true
		}
	case BindingStrict:
		if !rec.Bound() {
			return "", "", false
		}
	default:
		panic(fmt.Sprintf("signature: unknown binding %q", string(v.cfg.Binding)))
	}
	if p.AgentID == nil || *p.AgentID != rec.BoundAgentID {
		return OutcomeSignerMismatch, "agent_id does not match the key's bound agent", true
	}
	return "", "", false
}

func (r Result) fail(out Outcome, reason string) Result {
	r.Outcome = out
	r.Reason = reason
	return r
}
