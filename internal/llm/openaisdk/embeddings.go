package openaisdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/quest-backend/internal/platform/config"
)

type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

func NewEmbedder(cfg config.EmbeddingConfig) (*Embedder, error) {
	return NewEmbedderWithHTTPClient(cfg, nil)
}

func NewEmbedderWithHTTPClient(cfg config.EmbeddingConfig, httpClient *http.Client) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: embedding api_key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: embedding model required")
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Embedder{
		client:     newSDKClient(cfg.APIKey, cfg.BaseURL, httpClient),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    timeout,
	}, nil
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	ctx2, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx2, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings missing index=%d (model=%s)", i, e.model)
		}
	}
	return out, nil
}
