package rag

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/internal/cache"
	"github.com/lexedge/aigateway/internal/config"
	"github.com/lexedge/aigateway/pkg/types"
)

type fakeRetriever struct {
	docs  []Document
	calls int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, k int) ([]Document, error) {
	f.calls++
	if len(f.docs) > k {
		return f.docs[:k], nil
	}
	return f.docs, nil
}

type fakeGenerator struct {
	text   string
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, req *types.GenerationRequest) (*types.GenerateResult, error) {
	f.calls++
	f.prompt = req.Contents.Turns[0].Text()
	return &types.GenerateResult{Text: f.text}, nil
}

func newAssistant(retriever *fakeRetriever, generator *fakeGenerator) *Assistant {
	return NewAssistant(
		retriever,
		cache.NewMemoryStore(100, time.Hour),
		generator,
		config.AskConfig{Model: "gemini-1.5-flash", TopK: 4, MaxContextChars: 12000},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestAskBuildsNumberedPromptAndSources(t *testing.T) {
	retriever := &fakeRetriever{docs: []Document{
		{ID: "d1", Title: "Intro", Type: "doc", Content: "Go is a language."},
		{ID: "d2", Title: "Deep dive", Type: "wiki", Content: strings.Repeat("x", 200)},
	}}
	generator := &fakeGenerator{text: "Go is a language. [1]"}
	a := newAssistant(retriever, generator)

	answer, err := a.Ask(context.Background(), "What is Go?", "docs")
	require.NoError(t, err)

	assert.Equal(t, "Go is a language. [1]", answer.Answer)
	assert.False(t, answer.Cached)

	assert.Contains(t, generator.prompt, "[1] Intro")
	assert.Contains(t, generator.prompt, "[2] Deep dive")
	assert.Contains(t, generator.prompt, "Question: What is Go?")

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "d1", answer.Sources[0].ID)
	assert.Equal(t, "Go is a language.", answer.Sources[0].Preview)
	// Long content is truncated to a bounded preview.
	assert.Len(t, answer.Sources[1].Preview, 103)
	assert.True(t, strings.HasSuffix(answer.Sources[1].Preview, "..."))
}

func TestAskServesRepeatFromCache(t *testing.T) {
	retriever := &fakeRetriever{docs: []Document{{ID: "d1", Title: "T", Content: "c"}}}
	generator := &fakeGenerator{text: "answer"}
	a := newAssistant(retriever, generator)

	first, err := a.Ask(context.Background(), "question?", "docs")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := a.Ask(context.Background(), "  QUESTION?", "docs")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)

	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, 1, generator.calls)
}

func TestAskScopesAreIsolated(t *testing.T) {
	retriever := &fakeRetriever{docs: []Document{{ID: "d1", Title: "T", Content: "c"}}}
	generator := &fakeGenerator{text: "answer"}
	a := newAssistant(retriever, generator)

	_, err := a.Ask(context.Background(), "question?", "docs")
	require.NoError(t, err)

	second, err := a.Ask(context.Background(), "question?", "wiki")
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, 2, generator.calls)
}

func TestAskContextBudgetTruncatesDocuments(t *testing.T) {
	retriever := &fakeRetriever{docs: []Document{
		{ID: "d1", Title: "Small", Content: "short"},
		{ID: "d2", Title: "Huge", Content: strings.Repeat("y", 5000)},
	}}
	generator := &fakeGenerator{text: "answer"}
	a := NewAssistant(
		retriever,
		cache.NewMemoryStore(100, time.Hour),
		generator,
		config.AskConfig{Model: "gemini-1.5-flash", TopK: 4, MaxContextChars: 100},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := a.Ask(context.Background(), "q?", "")
	require.NoError(t, err)
	assert.Contains(t, generator.prompt, "[1] Small")
	assert.NotContains(t, generator.prompt, "[2] Huge")
}

func TestAskContextBudgetExactExhaustion(t *testing.T) {
	// "[1] A\naa\n\n" is exactly 10 characters, leaving zero budget.
	retriever := &fakeRetriever{docs: []Document{
		{ID: "d1", Title: "A", Content: "aa"},
		{ID: "d2", Title: "B", Content: "bb"},
	}}
	generator := &fakeGenerator{text: "answer"}
	a := NewAssistant(
		retriever,
		cache.NewMemoryStore(100, time.Hour),
		generator,
		config.AskConfig{Model: "gemini-1.5-flash", TopK: 4, MaxContextChars: 10},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := a.Ask(context.Background(), "q?", "")
	require.NoError(t, err)
	assert.Contains(t, generator.prompt, "[1] A")
	assert.NotContains(t, generator.prompt, "[2] B")
}

func TestAskContextBudgetZeroMeansUnlimited(t *testing.T) {
	retriever := &fakeRetriever{docs: []Document{
		{ID: "d1", Title: "One", Content: strings.Repeat("a", 5000)},
		{ID: "d2", Title: "Two", Content: strings.Repeat("b", 5000)},
	}}
	generator := &fakeGenerator{text: "answer"}
	a := NewAssistant(
		retriever,
		cache.NewMemoryStore(100, time.Hour),
		generator,
		config.AskConfig{Model: "gemini-1.5-flash", TopK: 4},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := a.Ask(context.Background(), "q?", "")
	require.NoError(t, err)
	assert.Contains(t, generator.prompt, "[1] One")
	assert.Contains(t, generator.prompt, "[2] Two")
}
