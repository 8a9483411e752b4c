// Package rag answers questions against retrieved documents, with a
// response cache in front of the provider call.
package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// Document is one retrieved knowledge item.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Retriever finds documents relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// HTTPRetriever calls an external search service.
type HTTPRetriever struct {
	url    string
	client *http.Client
}

// NewHTTPRetriever creates a retriever against the given endpoint.
func NewHTTPRetriever(url string) *HTTPRetriever {
	return &HTTPRetriever{
		url:    url,
		client: &http.Client{},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

type searchResponse struct {
	Documents []Document `json:"documents"`
}

// Search posts the query and returns the service's document list.
func (r *HTTPRetriever) Search(ctx context.Context, query string, k int) ([]Document, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: k})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search service returned %d: %s", resp.StatusCode, raw)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Documents, nil
}
