package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// maxBodyBytes bounds every request body the gateway decodes.
const maxBodyBytes = 1 << 20

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(limitBody)

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/pdo", func(p chi.Router) {
			p.Post("/validate", h.Validate)
			p.Post("/validate/signature", h.ValidateSignature)
			p.Post("/validate/cro", h.ValidateCRO)
			p.Post("/validate/full", h.ValidateFull)
			p.Post("/validate/risk", h.ValidateRisk)
			p.Post("/decision-hash", h.DecisionHash)
		})
		v1.Post("/cro/evaluate", h.EvaluateCRO)
		v1.With(h.requireAuth).Post("/keys", h.RegisterKey)
	})

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
