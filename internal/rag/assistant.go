package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexedge/aigateway/internal/cache"
	"github.com/lexedge/aigateway/internal/config"
	"github.com/lexedge/aigateway/internal/metrics"
	"github.com/lexedge/aigateway/pkg/types"
)

// previewLength caps how much of each source's content is returned.
const previewLength = 100

// Generator runs one generation through the gateway pipeline.
type Generator interface {
	Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerateResult, error)
}

// Answer is the result of one grounded question.
type Answer struct {
	Answer  string         `json:"answer"`
	Sources []types.Source `json:"sources"`
	Cached  bool           `json:"cached"`
}

// Assistant answers questions grounded in retrieved documents.
type Assistant struct {
	retriever Retriever
	cache     cache.Store
	generator Generator
	cfg       config.AskConfig
	logger    *slog.Logger
}

// NewAssistant wires the retriever, cache, and generation pipeline.
func NewAssistant(retriever Retriever, store cache.Store, generator Generator, cfg config.AskConfig, logger *slog.Logger) *Assistant {
	return &Assistant{
		retriever: retriever,
		cache:     store,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ask answers a question, serving from the cache when the same question
// was answered recently within the same scope.
func (a *Assistant) Ask(ctx context.Context, question, scope string) (*Answer, error) {
	key := cache.Key(question, scope)
	if entry, err := a.cache.Get(ctx, key); err != nil {
		// A broken cache degrades to uncached answering.
		a.logger.Warn("cache lookup failed", "error", err)
	} else if entry != nil {
		metrics.CacheHits.Inc()
		return &Answer{Answer: entry.Answer, Sources: entry.Sources, Cached: true}, nil
	}
	metrics.CacheMisses.Inc()

	docs, err := a.retriever.Search(ctx, question, a.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	prompt := a.buildPrompt(question, docs)
	result, err := a.generator.Generate(ctx, &types.GenerationRequest{
		Model:    a.cfg.Model,
		Contents: types.UserText(prompt),
	})
	if err != nil {
		return nil, err
	}

	sources := sourcesFrom(docs)
	if err := a.cache.Set(ctx, key, &cache.Entry{
		Answer:  result.Text,
		Sources: sources,
		Scope:   scopeOrGlobal(scope),
	}); err != nil {
		a.logger.Warn("cache store failed", "error", err)
	}

	return &Answer{Answer: result.Text, Sources: sources}, nil
}

// buildPrompt numbers each document and bounds the total context size.
func (a *Assistant) buildPrompt(question string, docs []Document) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the sources below. ")
	b.WriteString("Cite sources by their number. If the sources do not contain the answer, say so.\n\n")

	// MaxContextChars of zero means no bound.
	limited := a.cfg.MaxContextChars > 0
	budget := a.cfg.MaxContextChars
	for i, doc := range docs {
		section := fmt.Sprintf("[%d] %s\n%s\n\n", i+1, doc.Title, doc.Content)
		if limited {
			if len(section) > budget {
				break
			}
			budget -= len(section)
		}
		b.WriteString(section)
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func sourcesFrom(docs []Document) []types.Source {
	sources := make([]types.Source, 0, len(docs))
	for _, doc := range docs {
		preview := doc.Content
		if len(preview) > previewLength {
			preview = preview[:previewLength] + "..."
		}
		sources = append(sources, types.Source{
			ID:      doc.ID,
			Title:   doc.Title,
			Type:    doc.Type,
			Preview: preview,
		})
	}
	return sources
}

func scopeOrGlobal(scope string) string {
	if scope == "" {
		return cache.GlobalScope
	}
	return scope
}
