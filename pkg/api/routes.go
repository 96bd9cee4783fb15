package api

import (
	"net/http"

	"github.com/favourlabs/favour/pkg/identity"
)

// RouterConfig controls the middleware applied around the favour routes.
type RouterConfig struct {
	Tokens      *identity.TokenManager
	RateLimiter *GlobalRateLimiter
	Idempotency IdempotencyStorer
}

// NewRouter builds the service mux with auth, request-id, rate limiting and
// idempotent replay applied to every favour route.
func NewRouter(svc *FavourService, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/favours", svc.HandleCreate)
	mux.HandleFunc("GET /v1/favours", svc.HandleList)
	mux.HandleFunc("GET /v1/favours/{id}", svc.HandleGet)
	mux.HandleFunc("DELETE /v1/favours/{id}", svc.HandleDelete)
	mux.HandleFunc("POST /v1/favours/{id}/evidence", svc.HandleRegisterEvidence)
	mux.HandleFunc("GET /v1/favours/{id}/evidence/url", svc.HandleEvidenceURL)

	// Order, outermost first: request-id, rate limit, auth, idempotent
	// replay. Auth runs before replay so a cached response is never served
	// to an unauthenticated caller.
	var handler http.Handler = mux
	if cfg.Idempotency != nil {
		handler = IdempotencyMiddleware(cfg.Idempotency)(handler)
	}
	handler = AuthMiddleware(cfg.Tokens)(handler)
	if cfg.RateLimiter != nil {
		handler = cfg.RateLimiter.Middleware(handler)
	}
	handler = RequestIDMiddleware(handler)

	root := http.NewServeMux()
	root.Handle("/v1/", handler)
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return root
}
