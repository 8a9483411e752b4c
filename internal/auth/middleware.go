package auth

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/errors"
)

// Middleware provides HTTP middleware for bearer token authentication.
type Middleware struct {
	resolver  *Resolver
	directory *tenant.Directory
	logger    *slog.Logger
	skipPaths map[string]bool
}

// MiddlewareConfig contains configuration for the auth middleware.
type MiddlewareConfig struct {
	Resolver  *Resolver
	Directory *tenant.Directory
	Logger    *slog.Logger
	SkipPaths []string // Paths to skip authentication (e.g., /healthz, /metrics)
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(cfg *MiddlewareConfig) *Middleware {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return &Middleware{
		resolver:  cfg.Resolver,
		directory: cfg.Directory,
		logger:    cfg.Logger,
		skipPaths: skipPaths,
	}
}

// Authenticate returns an HTTP middleware that verifies the bearer token
// and resolves the caller's tenant. Both are stored on the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			m.writeError(w, err)
			return
		}

		identity, err := m.resolver.Resolve(token)
		if err != nil {
			m.writeError(w, err)
			return
		}

		ten, err := m.directory.Resolve(r.Context(), identity.SubjectID, identity.Email, identity.DisplayName)
		if err != nil {
			m.writeError(w, err)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		ctx = WithTenant(ctx, ten)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) writeError(w http.ResponseWriter, err error) {
	ge := errors.AsGatewayError(err)
	if ge.Kind == errors.KindInternal {
		m.logger.Error("auth middleware failure", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ge.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   ge.Message,
		"details": ge.Details,
	})
}
