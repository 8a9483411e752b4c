package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/pkg/types"
)

func streamingBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":streamGenerateContent")
		require.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunks := []string{
			`data: {"candidates": [{"content": {"parts": [{"text": "hello "}]}}]}`,
			`data: {"candidates": [{"content": {"parts": [{"text": "world"}]}, "finishReason": "STOP"}], "usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}}`,
		}
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk + "\n\n"))
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStreamGenerateUpstreamError(t *testing.T) {
	const errBody = "{\n  \"error\": {\"message\": \"quota exhausted\"}\n}"
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(errBody))
	}))
	t.Cleanup(backend.Close)
	gw := newGateway(t, backend.URL)

	resp := postJSON(t, gw.server.URL+"/v1/generate", bearerToken(t, "user-1"),
		`{"model": "gemini-1.5-flash", "contents": "hi", "config": {"stream": true}}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var out struct {
		Details string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	// The upstream body survives byte for byte, newlines included.
	assert.Equal(t, errBody, out.Details)
}

func TestStreamGenerate(t *testing.T) {
	backend := streamingBackend(t)
	gw := newGateway(t, backend.URL)

	resp := postJSON(t, gw.server.URL+"/v1/generate", bearerToken(t, "user-1"),
		`{"model": "gemini-1.5-flash", "contents": "hi", "config": {"stream": true}}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var (
		text     strings.Builder
		sawDone  bool
		sawUsage *types.Usage
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			continue
		}

		var ev streamEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		text.WriteString(ev.Text)
		if ev.Usage != nil {
			sawUsage = ev.Usage
		}
	}

	assert.Equal(t, "hello world", text.String())
	assert.True(t, sawDone)
	require.NotNil(t, sawUsage)
	assert.Equal(t, 6, sawUsage.Total)

	// Streamed usage is metered once the stream ends; the meter write is
	// synchronous with the response.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if recs := gw.store.Records(); len(recs) == 1 {
			assert.True(t, recs[0].Success)
			assert.Equal(t, 6, recs[0].TotalTokens)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("usage record never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ten, err := gw.store.FindBySubject(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), ten.Quota.CurrentDailyTokens)
}
