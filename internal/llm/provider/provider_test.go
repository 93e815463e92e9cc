package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/llm/mock"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

func TestNewMock(t *testing.T) {
	g, err := New(config.LLMConfig{Provider: "MOCK"}, "sys", logger.Nop())
	require.NoError(t, err)
	_, ok := g.(*mock.Gateway)
	assert.True(t, ok, "mock without retries should not be wrapped")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "carrier-pigeon"}, "", nil)
	require.Error(t, err)
}

func TestNewPropagatesInitError(t *testing.T) {
	orig := newAnthropic
	t.Cleanup(func() { newAnthropic = orig })
	newAnthropic = func(cfg config.LLMConfig, system string) (llm.Gateway, error) {
		return nil, errors.New("missing key")
	}
	_, err := New(config.LLMConfig{Provider: config.ProviderAnthropic}, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing key")
}

func TestNewWrapsRetries(t *testing.T) {
	calls := 0
	orig := newOAIHTTP
	t.Cleanup(func() { newOAIHTTP = orig })
	newOAIHTTP = func(cfg config.LLMConfig, system string) (llm.Gateway, error) {
		return &mock.Gateway{AskFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			if calls == 1 {
				return "", &llm.Error{Kind: llm.KindConnectivity, Backend: "test"}
			}
			return "ok", nil
		}}, nil
	}
	g, err := New(config.LLMConfig{
		Provider:       config.ProviderOAIHTTP,
		MaxRetries:     1,
		RetryBaseDelay: config.D(1),
	}, "", nil)
	require.NoError(t, err)
	out, err := g.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, calls)
}

func TestNewEmbedderMock(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dimensions())
}
