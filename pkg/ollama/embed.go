package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// EmbedClient turns text into vectors with Ollama's /api/embed endpoint.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client.
func NewEmbedClient(baseURL, model string) *EmbedClient {
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding for text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. The i-th vector belongs to texts[i].
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out embedResp
	if err := call(ctx, c.client, http.MethodPost, c.baseURL+"/api/embed", embedReq{Model: c.model, Input: texts}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama embed: empty embedding for input %d", i)
		}
	}
	return out.Embeddings, nil
}
