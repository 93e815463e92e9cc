// Package provider selects an llm backend from configuration.
package provider

import (
	"fmt"
	"strings"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/llm/anthropic"
	"github.com/yungbote/quest-backend/internal/llm/mock"
	"github.com/yungbote/quest-backend/internal/llm/oaihttp"
	"github.com/yungbote/quest-backend/internal/llm/openaisdk"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// Constructors are package vars so tests can stub a backend.
var (
	newAnthropic = func(cfg config.LLMConfig, system string) (llm.Gateway, error) { return anthropic.New(cfg, system) }
	newOAIHTTP   = func(cfg config.LLMConfig, system string) (llm.Gateway, error) { return oaihttp.New(cfg, system) }
	newOpenAI    = func(cfg config.LLMConfig, system string) (llm.Gateway, error) { return openaisdk.New(cfg, system) }
)

// New returns a gateway bound to system, wrapped with the configured retry policy.
func New(cfg config.LLMConfig, system string, log *logger.Logger) (llm.Gateway, error) {
	var (
		g   llm.Gateway
		err error
	)
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch name {
	case config.ProviderAnthropic:
		g, err = newAnthropic(cfg, system)
	case config.ProviderOAIHTTP:
		g, err = newOAIHTTP(cfg, system)
	case config.ProviderOpenAI:
		g, err = newOpenAI(cfg, system)
	case config.ProviderMock:
		g = mock.New()
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init llm provider %s: %w", name, err)
	}
	if log != nil {
		log.Info("LLM gateway ready", "provider", name, "model", cfg.Model, "max_retries", cfg.MaxRetries)
	}
	return llm.WithRetry(g, llm.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay.Duration,
	}), nil
}

func NewEmbedder(cfg config.EmbeddingConfig) (llm.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderOAIHTTP:
		return oaihttp.NewEmbedder(cfg)
	case config.ProviderOpenAI, "":
		return openaisdk.NewEmbedder(cfg)
	case config.ProviderMock:
		return mock.NewEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
