package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds the most similar stored passages and accepts new ones.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]string, error)
	Upsert(ctx context.Context, id, text string, vector []float32, metadata map[string]any) error
}

// RAGRetriever answers queries against the vector collection and supports
// direct document insertion through the API.
type RAGRetriever struct {
	embedder Embedder
	store    Searcher
}

// NewRAGRetriever wires an embedder to a vector store.
func NewRAGRetriever(embedder Embedder, store Searcher) *RAGRetriever {
	return &RAGRetriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-k passages wrapped in the
// context preamble, or "" when nothing matches.
func (r *RAGRetriever) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("retrieve: embed query: %w", err)
	}
	passages, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return "", fmt.Errorf("retrieve: search: %w", err)
	}
	if len(passages) == 0 {
		return "", nil
	}
	return "関連情報:\n" + strings.Join(passages, "\n\n") + "\n\n", nil
}

// AddDocument embeds content and stores it under id with the given metadata.
func (r *RAGRetriever) AddDocument(ctx context.Context, id, content string, metadata map[string]any) error {
	vector, err := r.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("add document: embed: %w", err)
	}
	if err := r.store.Upsert(ctx, id, content, vector, metadata); err != nil {
		return fmt.Errorf("add document: upsert: %w", err)
	}
	return nil
}
