// Package enforce composes schema validation, signature verification and the
// CRO policy into the single gate a governed action must pass. Stages run in
// a fixed order and a failing stage stops the pipeline.
package enforce

import (
	"fmt"
	"log"
	"time"

	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/keys"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/internal/replay"
	"github.com/davidahmann/pdogate/internal/signature"
	"github.com/davidahmann/pdogate/pkg/types"
)

type Options struct {
	// Registry defaults to an empty in-memory registry.
	Registry keys.Registry
	// Nonces defaults to an in-memory cache using Signature.ReplayWindow.
	Nonces    replay.Cache
	Signature signature.Config
	Now       func() time.Time
	// Logger receives one line per blocked PDO. Defaults to log.Default().
	Logger *log.Logger
}

type Service struct {
	registry  keys.Registry
	verifier  *signature.Verifier
	evaluator *cro.Evaluator
	logger    *log.Logger
}

func NewService(opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = keys.NewInMemoryRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Signature.Now == nil {
		opts.Signature.Now = opts.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Service{
		registry:  opts.Registry,
		verifier:  signature.NewVerifier(opts.Registry, opts.Nonces, opts.Signature),
		evaluator: cro.NewEvaluator(opts.Now),
		logger:    opts.Logger,
	}
}

type stage string

const (
	stageSchema    stage = "schema"
	stageSignature stage = "signature"
	stageCRO       stage = "cro"
)

type croMode int

const (
	croSkip croMode = iota
	croRecorded
	croLive
)

type plan struct {
	signature bool
	cro       croMode
	metadata  *types.CRORiskMetadata
}

// Validate runs schema validation only.
func (s *Service) Validate(raw pdo.Raw) ValidationResult {
	return s.run(raw, plan{})
}

// ValidateWithSignature runs schema validation and signature verification.
// Unsigned PDOs fail.
func (s *Service) ValidateWithSignature(raw pdo.Raw) ValidationResult {
	return s.run(raw, plan{signature: true})
}

// ValidateWithCRO runs schema validation and checks the CRO decision recorded
// on the PDO.
func (s *Service) ValidateWithCRO(raw pdo.Raw) ValidationResult {
	return s.run(raw, plan{cro: croRecorded})
}

func (s *Service) ValidateWithSignatureAndCRO(raw pdo.Raw) ValidationResult {
	return s.run(raw, plan{signature: true, cro: croRecorded})
}

// ValidateWithRisk evaluates meta with the CRO policy instead of trusting the
// recorded decision. A recorded cro_decision that disagrees with the live
// evaluation fails with CRO_DECISION_INVALID.
func (s *Service) ValidateWithRisk(raw pdo.Raw, meta *types.CRORiskMetadata, withSignature bool) ValidationResult {
	return s.run(raw, plan{signature: withSignature, cro: croLive, metadata: meta})
}

// ComputeDecisionHash is the hash a minted PDO must carry in decision_hash.
func (s *Service) ComputeDecisionHash(inputsHash, policyVersion, outcome string) string {
	return pdo.ComputeDecisionHash(inputsHash, policyVersion, outcome)
}

// RegisterTrustedKey adds or replaces a verification key. agentID may be
// empty for a key that is not bound to an agent.
func (s *Service) RegisterTrustedKey(keyID, algorithm string, material []byte, agentID string) error {
	rec, err := keys.NewRecord(keyID, algorithm, material, agentID)
	if err != nil {
		return err
	}
	return s.registry.Register(rec)
}

func (s *Service) run(raw pdo.Raw, pl plan) ValidationResult {
	res := ValidationResult{Errors: []types.ValidationError{}, PDOID: pdoID(raw)}

	schema := pdo.Validate(raw)
	if !schema.Valid() {
		return s.block(res, stageSchema, schema.Errors...)
	}
	p := schema.PDO
	res.PDOID = p.ID

	if pl.signature {
		sig := s.verifier.Verify(p)
		res.SignatureResult = &sig
		if !sig.AllowsExecution() {
			return s.block(res, stageSignature, types.ValidationError{
				Code:    sig.Outcome.Code(),
				Field:   pdo.FieldSignature,
				Message: sig.Reason,
			})
		}
	}

	switch pl.cro {
	case croSkip:
	case croRecorded:
		result, errs := recordedCRO(p.CRO)
		res.CROResult = result
		if len(errs) > 0 {
			return s.block(res, stageCRO, errs...)
		}
	case croLive:
		live := s.evaluator.Evaluate(pl.metadata)
		res.CROResult = &live
		if errs := compareRecorded(p.CRO, live); len(errs) > 0 {
			return s.block(res, stageCRO, errs...)
		}
		if live.BlocksExecution() {
			return s.block(res, stageCRO, blocksExecution(live.Decision))
		}
	default:
		panic(fmt.Sprintf("enforce: unknown cro mode %d", pl.cro))
	}

	res.Valid = true
	return res
}

func (s *Service) block(res ValidationResult, st stage, errs ...types.ValidationError) ValidationResult {
	res.Valid = false
	res.Errors = append(res.Errors, errs...)
	if len(errs) > 0 {
		s.logger.Printf("pdo blocked: pdo_id=%s stage=%s code=%s", res.PDOID, st, errs[0].Code)
	}
	return res
}

func pdoID(raw pdo.Raw) string {
	if raw == nil {
		return ""
	}
	id, _ := raw[pdo.FieldPDOID].(string)
	return id
}
