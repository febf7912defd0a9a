package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/davidahmann/pdogate/internal/auth"
	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/enforce"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/pkg/types"
)

// Handler serves the enforcement gateway. Validation results are always
// returned with 200; mapping a blocked PDO to a transport status is the
// caller's decision.
type Handler struct {
	// Auth guards key registration. A nil Auth disables the route.
	Auth      auth.Authenticator
	Service   *enforce.Service
	Evaluator *cro.Evaluator
	Logger    *log.Logger
}

type validationResponse struct {
	enforce.ValidationResult
	AllowsExecution bool `json:"allows_execution"`
}

type riskRequest struct {
	PDO              json.RawMessage        `json:"pdo"`
	RiskMetadata     *types.CRORiskMetadata `json:"risk_metadata"`
	RequireSignature bool                   `json:"require_signature"`
}

type decisionHashRequest struct {
	InputsHash    string `json:"inputs_hash"`
	PolicyVersion string `json:"policy_version"`
	Outcome       string `json:"outcome"`
}

type croResponse struct {
	cro.Result
	BlocksExecution bool `json:"blocks_execution"`
}

type registerKeyRequest struct {
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	Material  string `json:"material"`
	AgentID   string `json:"agent_id,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.Service.Validate)
}

func (h *Handler) ValidateSignature(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.Service.ValidateWithSignature)
}

func (h *Handler) ValidateCRO(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.Service.ValidateWithCRO)
}

func (h *Handler) ValidateFull(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.Service.ValidateWithSignatureAndCRO)
}

func (h *Handler) ValidateRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.PDO) == 0 {
		writeError(w, http.StatusBadRequest, "missing pdo")
		return
	}
	raw, err := pdo.Decode(req.PDO)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pdo json")
		return
	}
	writeValidation(w, h.Service.ValidateWithRisk(raw, req.RiskMetadata, req.RequireSignature))
}

func (h *Handler) DecisionHash(w http.ResponseWriter, r *http.Request) {
	var req decisionHashRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, ok := pdo.ParseOutcome(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome must be APPROVED, REJECTED or PENDING")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"decision_hash": h.Service.ComputeDecisionHash(req.InputsHash, req.PolicyVersion, string(outcome)),
	})
}

func (h *Handler) EvaluateCRO(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	meta, err := cro.ParseMetadata(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid risk metadata")
		return
	}
	result := h.evaluator().Evaluate(&meta)
	writeJSON(w, http.StatusOK, croResponse{Result: result, BlocksExecution: result.BlocksExecution()})
}

func (h *Handler) RegisterKey(w http.ResponseWriter, r *http.Request) {
	var req registerKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	material, err := crypto.DecodeKeyMaterial(req.Material)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key material")
		return
	}
	if err := h.Service.RegisterTrustedKey(req.KeyID, req.Algorithm, material, req.AgentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subject := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		subject = claims.Subject
	}
	h.logger().Printf("trusted key registered: key_id=%s algorithm=%s by=%s", req.KeyID, req.Algorithm, subject)
	writeJSON(w, http.StatusCreated, map[string]string{"key_id": req.KeyID, "status": "registered"})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Auth == nil {
			writeError(w, http.StatusNotImplemented, "key registration not configured")
			return
		}
		claims, err := h.Auth.Authenticate(r)
		if errors.Is(err, auth.ErrForbidden) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, run func(pdo.Raw) enforce.ValidationResult) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	raw, err := pdo.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeValidation(w, run(raw))
}

func (h *Handler) evaluator() *cro.Evaluator {
	if h.Evaluator == nil {
		return cro.NewEvaluator(nil)
	}
	return h.Evaluator
}

func (h *Handler) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	return body, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, res enforce.ValidationResult) {
	writeJSON(w, http.StatusOK, validationResponse{ValidationResult: res, AllowsExecution: res.AllowsExecution()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
