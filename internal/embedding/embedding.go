// Package embedding turns text into fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint, with a persistent cache in front so
// repeated chunks and queries skip the network round trip.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates embeddings through an OpenAI-compatible API.
type Client struct {
	api       *openai.Client
	model     string
	dimension int
	cache     VectorCache
}

// NewClient creates an embedding client against baseURL (e.g. a LiteLLM
// deployment). cache may be nil to disable caching.
func NewClient(baseURL, apiKey, model string, dimension int, cache VectorCache) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
		cache:     cache,
	}
}

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Cached texts
// are served locally; the remainder goes upstream in a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(text); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: missing,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding.EmbedBatch: %w", err)
	}
	if len(resp.Data) != len(missing) {
		return nil, fmt.Errorf("embedding.EmbedBatch: got %d vectors for %d texts", len(resp.Data), len(missing))
	}

	for j, d := range resp.Data {
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding.EmbedBatch: dimension %d, want %d", len(d.Embedding), c.dimension)
		}
		vectors[missingIdx[j]] = d.Embedding
		if c.cache != nil {
			c.cache.Set(missing[j], d.Embedding)
		}
	}
	return vectors, nil
}

// Close releases the cache, if any.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}
