package api

import "net/http"

// Routes returns the gateway's route table. Authentication middleware is
// layered on by the caller.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/generate", h.handleGenerate)
	mux.HandleFunc("POST /v1/keys/validate", h.handleValidateKey)
	mux.HandleFunc("POST /v1/ask", h.handleAsk)
	mux.HandleFunc("POST /v1/cache/invalidate", h.handleCacheInvalidate)
	mux.HandleFunc("GET /v1/cache/stats", h.handleCacheStats)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return mux
}
