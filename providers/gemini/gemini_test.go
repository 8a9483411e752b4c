package gemini

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/types"
)

func TestAPIVersionFor(t *testing.T) {
	assert.Equal(t, "v1beta", APIVersionFor("gemini-1.5-flash"))
	assert.Equal(t, "v1beta", APIVersionFor("gemini-2.0-flash"))
	assert.Equal(t, "v1alpha", APIVersionFor("gemini-3-pro-preview"))
	assert.Equal(t, "v1alpha", APIVersionFor("gemini-2.0-flash-thinking-exp"))
}

func TestBuildRequest(t *testing.T) {
	p := New(WithAPIKey("test-key"))

	req := &types.GenerationRequest{
		Model:    "gemini-1.5-flash",
		Contents: types.Contents{Turns: []types.Turn{types.UserTurn("hello")}},
	}

	httpReq, err := p.BuildRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, httpReq.Method)
	assert.Contains(t, httpReq.URL.Path, "/v1beta/models/gemini-1.5-flash:generateContent")
	assert.Equal(t, "test-key", httpReq.URL.Query().Get("key"))
	assert.Empty(t, httpReq.URL.Query().Get("alt"))

	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)

	var wire geminiRequest
	require.NoError(t, json.Unmarshal(body, &wire))
	require.Len(t, wire.Contents, 1)
	assert.Equal(t, "user", wire.Contents[0].Role)
	assert.Equal(t, "hello", wire.Contents[0].Parts[0].Text)
}

func TestBuildRequestStreaming(t *testing.T) {
	p := New(WithAPIKey("test-key"))

	req := &types.GenerationRequest{
		Model:    "gemini-1.5-flash",
		Contents: types.Contents{Turns: []types.Turn{types.UserTurn("hi")}},
		Config:   &types.GenerationConfig{Stream: true},
	}

	httpReq, err := p.BuildRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, httpReq.URL.Path, ":streamGenerateContent")
	assert.Equal(t, "sse", httpReq.URL.Query().Get("alt"))
}

func TestTransformRequestSystemInstruction(t *testing.T) {
	p := New()

	req := &types.GenerationRequest{
		Model: "gemini-1.5-flash",
		Contents: types.Contents{Turns: []types.Turn{
			{Role: types.RoleSystem, Parts: []types.Part{{Text: "be brief"}}},
			types.UserTurn("hello"),
			{Role: types.RoleModel, Parts: []types.Part{{Text: "hi"}}},
		}},
	}

	wire := p.transformRequest(req)
	require.NotNil(t, wire.SystemInstruction)
	assert.Equal(t, "be brief", wire.SystemInstruction.Parts[0].Text)
	require.Len(t, wire.Contents, 2)
	assert.Equal(t, "user", wire.Contents[0].Role)
	assert.Equal(t, "model", wire.Contents[1].Role)
}

func TestParseResponse(t *testing.T) {
	p := New()

	raw := `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "there"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
	}`

	result, err := p.ParseResponse(&http.Response{Body: io.NopCloser(strings.NewReader(raw))})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", result.Text)
	assert.Equal(t, 10, result.Usage.Prompt)
	assert.Equal(t, 5, result.Usage.Completion)
	assert.Equal(t, 15, result.Usage.Total)
	assert.JSONEq(t, raw, string(result.Raw))
}

func TestParseResponseMissingUsage(t *testing.T) {
	p := New()

	raw := `{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`
	result, err := p.ParseResponse(&http.Response{Body: io.NopCloser(strings.NewReader(raw))})
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Text)
	assert.Zero(t, result.Usage.Prompt)
	assert.Zero(t, result.Usage.Completion)
	assert.Zero(t, result.Usage.Total)
}

func TestParseStreamChunk(t *testing.T) {
	p := New()

	chunk, err := p.ParseStreamChunk([]byte(`data: {"candidates": [{"content": {"parts": [{"text": "abc"}]}}]}`))
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "abc", chunk.Text)

	chunk, err = p.ParseStreamChunk([]byte(""))
	require.NoError(t, err)
	assert.Nil(t, chunk)
}

func TestBuildProbe(t *testing.T) {
	p := New()

	req, err := p.BuildProbe(context.Background(), "probe-key")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Contains(t, req.URL.Path, "/v1beta/models")
	assert.Equal(t, "probe-key", req.URL.Query().Get("key"))
}

func TestMapError(t *testing.T) {
	p := New()

	err := p.MapError("gemini-1.5-flash", 429, []byte(`{"error": "rate limited"}`))
	require.True(t, errors.IsKind(err, errors.KindProvider))
	gwErr := errors.AsGatewayError(err)
	assert.Equal(t, 429, gwErr.HTTPStatusCode())
	assert.Equal(t, "gemini", gwErr.Provider)
	assert.Contains(t, gwErr.Details, "rate limited")
}

func TestSupportsModel(t *testing.T) {
	p := New()
	assert.True(t, p.SupportsModel("gemini-1.5-flash"))
	assert.False(t, p.SupportsModel("gpt-4o"))
}
