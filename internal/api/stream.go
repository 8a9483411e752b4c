package api

import (
	"bufio"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/lexedge/aigateway/internal/observability"
	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/types"
)

type streamEvent struct {
	Text         string       `json:"text,omitempty"`
	FinishReason string       `json:"finishReason,omitempty"`
	Usage        *types.Usage `json:"usage,omitempty"`
}

// streamGenerate relays provider stream chunks to the client as SSE.
// The upstream call is bound to the client's request context, so a client
// disconnect cancels it; whatever usage was observed by then is metered.
func (h *Handler) streamGenerate(w http.ResponseWriter, r *http.Request, ten *tenant.Tenant, req *types.GenerationRequest) {
	h.router.Normalize(req)
	p, err := h.router.Resolve(req)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.NewInternal("streaming unsupported by connection"))
		return
	}

	start := time.Now()
	ctx, span := observability.StartGenerationSpan(r.Context(), h.tracer, p.Name(), req.Model, true)
	defer span.End()

	httpReq, err := p.BuildRequest(ctx, req)
	if err != nil {
		writeError(w, errors.NewInternal("build provider request: "+err.Error()))
		return
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		genErr := errors.NewProviderError(p.Name(), req.Model, http.StatusBadGateway, err.Error())
		h.meterAttempt(ctx, ten, p.Name(), req.Model, "generate", nil, genErr, time.Since(start))
		writeError(w, genErr)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		genErr := p.MapError(req.Model, resp.StatusCode, body)
		h.meterAttempt(ctx, ten, p.Name(), req.Model, "generate", nil, genErr, time.Since(start))
		writeError(w, genErr)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var usage types.Usage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		chunk, err := p.ParseStreamChunk(scanner.Bytes())
		if err != nil || chunk == nil {
			continue
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}

		data, err := json.Marshal(streamEvent{
			Text:         chunk.Text,
			FinishReason: chunk.FinishReason,
			Usage:        chunk.Usage,
		})
		if err != nil {
			continue
		}
		if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
			break
		}
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()

	// Partial usage from an interrupted stream still counts.
	result := &types.GenerateResult{Usage: usage}
	h.meterAttempt(ctx, ten, p.Name(), req.Model, "generate", result, nil, time.Since(start))
	observability.RecordGenerationResult(span, usage.Prompt, usage.Completion)
}
