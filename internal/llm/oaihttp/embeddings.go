package oaihttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/config"
)

type Embedder struct {
	client     *Client
	model      string
	dimensions int
	path       string
}

func NewEmbedder(cfg config.EmbeddingConfig) (*Embedder, error) {
	return NewEmbedderWithHTTPClient(cfg, nil)
}

func NewEmbedderWithHTTPClient(cfg config.EmbeddingConfig, httpClient *http.Client) (*Embedder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("oai_http: embedding model required")
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c, err := NewWithHTTPClient(config.LLMConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: config.D(timeout),
	}, "", httpClient)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: c, model: cfg.Model, dimensions: cfg.Dimensions, path: "/v1/embeddings"}, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	var resp embeddingsResponse
	req := embeddingsRequest{Model: e.model, Input: inputs, Dimensions: e.dimensions}
	if err := e.client.doJSON(ctx, http.MethodPost, e.path, req, &resp); err != nil {
		return nil, llm.Classify(backendName, err)
	}

	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			// Some servers omit indices but keep ordering.
			idx = i
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings missing index=%d (model=%s)", i, e.model)
		}
	}
	return out, nil
}
