// Package api exposes the gateway's HTTP surface: generation, key
// validation, grounded question answering, cache control, and health.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexedge/aigateway/internal/auth"
	"github.com/lexedge/aigateway/internal/cache"
	"github.com/lexedge/aigateway/internal/meter"
	"github.com/lexedge/aigateway/internal/metrics"
	"github.com/lexedge/aigateway/internal/observability"
	"github.com/lexedge/aigateway/internal/quota"
	"github.com/lexedge/aigateway/internal/rag"
	"github.com/lexedge/aigateway/internal/router"
	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/pkg/types"
)

// probeTimeout bounds key validation calls; generation requests use the
// client's own deadline via the request context.
const probeTimeout = 10 * time.Second

// Registry is the provider lookup the handler needs.
type Registry interface {
	Get(name string) (provider.Provider, bool)
}

// Assistant answers grounded questions. Implemented by rag.Assistant.
type Assistant interface {
	Ask(ctx context.Context, question, scope string) (*rag.Answer, error)
}

// Handler implements the gateway's HTTP endpoints.
type Handler struct {
	router    *router.Router
	registry  Registry
	guard     *quota.Guard
	meter     *meter.Meter
	store     tenant.Store
	cache     cache.Store
	assistant Assistant
	client    *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
}

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Router   *router.Router
	Registry Registry
	Guard    *quota.Guard
	Meter    *meter.Meter
	Store    tenant.Store
	Cache    cache.Store
	Client   *http.Client
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// NewHandler creates the HTTP handler. The assistant is attached
// separately because it generates through the handler itself.
func NewHandler(cfg HandlerConfig) *Handler {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Handler{
		router:   cfg.Router,
		registry: cfg.Registry,
		guard:    cfg.Guard,
		meter:    cfg.Meter,
		store:    cfg.Store,
		cache:    cfg.Cache,
		client:   client,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
	}
}

// SetAssistant attaches the question answering service.
func (h *Handler) SetAssistant(a Assistant) {
	h.assistant = a
}

type operationKey struct{}

func withOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return "generate"
}

// Generate runs one non-streaming generation through the full pipeline:
// route, dispatch, parse, meter. The tenant is taken from the context and
// metered whether the attempt succeeds or fails.
func (h *Handler) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerateResult, error) {
	h.router.Normalize(req)
	p, err := h.router.Resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	spanCtx, span := observability.StartGenerationSpan(ctx, h.tracer, p.Name(), req.Model, false)
	defer span.End()

	result, genErr := h.dispatch(spanCtx, p, req)

	latency := time.Since(start)
	if ten, ok := auth.TenantFromContext(ctx); ok {
		h.meterAttempt(ctx, ten, p.Name(), req.Model, operationFrom(ctx), result, genErr, latency)
	}

	if genErr != nil {
		observability.RecordError(span, genErr)
		return nil, genErr
	}
	observability.RecordGenerationResult(span, result.Usage.Prompt, result.Usage.Completion)
	return result, nil
}

// dispatch sends the translated request upstream and normalizes the
// outcome. No locks are held across this call.
func (h *Handler) dispatch(ctx context.Context, p provider.Provider, req *types.GenerationRequest) (*types.GenerateResult, error) {
	httpReq, err := p.BuildRequest(ctx, req)
	if err != nil {
		return nil, errors.NewInternal("build provider request: " + err.Error())
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), req.Model, http.StatusBadGateway, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, p.MapError(req.Model, resp.StatusCode, body)
	}

	result, err := p.ParseResponse(resp)
	if err != nil {
		return nil, errors.NewInternal("parse provider response: " + err.Error())
	}
	return result, nil
}

func (h *Handler) meterAttempt(ctx context.Context, ten *tenant.Tenant, providerName, model, op string, result *types.GenerateResult, genErr error, latency time.Duration) {
	attempt := meter.Attempt{
		Provider:  providerName,
		Model:     model,
		Operation: op,
		Latency:   latency,
	}
	if genErr != nil {
		ge := errors.AsGatewayError(genErr)
		attempt.StatusCode = ge.HTTPStatusCode()
		attempt.ErrorMessage = ge.Message
	} else {
		attempt.Success = true
		attempt.StatusCode = http.StatusOK
		attempt.Usage = result.Usage
	}

	h.meter.Record(ctx, ten, attempt)
	metrics.RequestsTotal.WithLabelValues(providerName, model, strconv.Itoa(attempt.StatusCode)).Inc()
	metrics.RequestDuration.WithLabelValues(providerName, model).Observe(latency.Seconds())
	metrics.ObserveTokens(providerName, model, attempt.Usage.Prompt, attempt.Usage.Completion)
}

type generateResponse struct {
	Text  string          `json:"text"`
	Raw   json.RawMessage `json:"raw"`
	Usage types.Usage     `json:"usage"`
}

// handleGenerate serves POST /v1/generate.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ten, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewMissingCredential())
		return
	}

	var req types.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidRequest("malformed request body: "+err.Error()))
		return
	}
	if err := req.Contents.Validate(); err != nil {
		writeError(w, errors.NewInvalidRequest(err.Error()))
		return
	}

	release, err := h.guard.Admit(ten)
	if err != nil {
		metrics.QuotaDenials.WithLabelValues(errors.AsGatewayError(err).Reason).Inc()
		writeError(w, err)
		return
	}
	defer release()

	if req.Stream() {
		h.streamGenerate(w, r, ten, &req)
		return
	}

	result, err := h.Generate(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Text:  result.Text,
		Raw:   result.Raw,
		Usage: result.Usage,
	})
}

type validateKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

type validateKeyResponse struct {
	Valid  bool `json:"valid"`
	Status int  `json:"status,omitempty"`
}

// handleValidateKey serves POST /v1/keys/validate. The submitted key is
// probed against the provider and never persisted.
func (h *Handler) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidRequest("malformed request body: "+err.Error()))
		return
	}
	if req.Provider == "" || req.APIKey == "" {
		writeError(w, errors.NewInvalidRequest("provider and apiKey are required"))
		return
	}

	p, ok := h.registry.Get(req.Provider)
	if !ok {
		writeError(w, errors.NewInvalidRequest("unknown provider: "+req.Provider))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	probe, err := p.BuildProbe(ctx, req.APIKey)
	if err != nil {
		writeError(w, errors.NewInternal("build probe: "+err.Error()))
		return
	}

	resp, err := h.client.Do(probe)
	if err != nil {
		// An unreachable provider means the key could not be validated,
		// not that it is invalid; surface that distinction.
		writeError(w, errors.NewProviderError(req.Provider, "", http.StatusBadGateway, err.Error()))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	writeJSON(w, http.StatusOK, validateKeyResponse{
		Valid:  resp.StatusCode < 400,
		Status: resp.StatusCode,
	})
}

type askRequest struct {
	Question string `json:"question"`
	Scope    string `json:"scope"`
}

// handleAsk serves POST /v1/ask.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ten, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewMissingCredential())
		return
	}
	if h.assistant == nil {
		writeError(w, errors.NewInternal("ask endpoint is not configured"))
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidRequest("malformed request body: "+err.Error()))
		return
	}
	if req.Question == "" {
		writeError(w, errors.NewInvalidRequest("question is required"))
		return
	}

	release, err := h.guard.Admit(ten)
	if err != nil {
		metrics.QuotaDenials.WithLabelValues(errors.AsGatewayError(err).Reason).Inc()
		writeError(w, err)
		return
	}
	defer release()

	answer, err := h.assistant.Ask(withOperation(r.Context(), "ask"), req.Question, req.Scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type invalidateRequest struct {
	Scope string `json:"scope"`
}

// handleCacheInvalidate serves POST /v1/cache/invalidate. An empty scope
// clears the whole cache.
func (h *Handler) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidRequest("malformed request body: "+err.Error()))
		return
	}

	var err error
	if req.Scope == "" {
		err = h.cache.InvalidateAll(r.Context())
	} else {
		err = h.cache.Invalidate(r.Context(), req.Scope)
	}
	if err != nil {
		writeError(w, errors.NewInternal("cache invalidation failed: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleCacheStats serves GET /v1/cache/stats.
func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		writeError(w, errors.NewInternal("cache stats failed: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth serves GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
