package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRetrieverSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is go", req.Query)
		assert.Equal(t, 4, req.TopK)

		_ = json.NewEncoder(w).Encode(searchResponse{Documents: []Document{
			{ID: "d1", Title: "Intro", Type: "doc", Content: "Go is a language."},
		}})
	}))
	defer server.Close()

	r := NewHTTPRetriever(server.URL)
	docs, err := r.Search(context.Background(), "what is go", 4)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
}

func TestHTTPRetrieverErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewHTTPRetriever(server.URL)
	_, err := r.Search(context.Background(), "q", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
