// Package openaisdk reaches OpenAI or an OpenAI-protocol managed gateway
// through the go-openai SDK.
package openaisdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/config"
)

const backendName = "openai"

type Client struct {
	client      *openai.Client
	model       string
	system      string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func New(cfg config.LLMConfig, system string) (*Client, error) {
	return NewWithHTTPClient(cfg, system, nil)
}

// NewWithHTTPClient is intended for tests; a nil httpClient keeps the SDK default.
func NewWithHTTPClient(cfg config.LLMConfig, system string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api_key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model required")
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		client:      newSDKClient(cfg.APIKey, cfg.BaseURL, httpClient),
		model:       cfg.Model,
		system:      system,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}, nil
}

func newSDKClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	sdkCfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		sdkCfg.BaseURL = baseURL
	}
	if httpClient != nil {
		sdkCfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(sdkCfg)
}

func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	return c.SendMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil, nil)
}

func (c *Client) SendMessages(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice *llm.ToolChoice) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toSDKMessages(c.system, messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	if choice != nil {
		req.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice.Name},
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx2, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &llm.Error{Kind: llm.KindUnknown, Backend: backendName, Err: errors.New("response has no choices")}
	}
	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if choice == nil || call.Function.Name == choice.Name {
			return call.Function.Arguments, nil
		}
	}
	return msg.Content, nil
}

func toSDKMessages(system string, messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string       { return e.err.Error() }
func (e *statusError) Unwrap() error       { return e.err }
func (e *statusError) HTTPStatusCode() int { return e.status }

// classify lifts the SDK's status-carrying errors into the shared taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.Classify(backendName, &statusError{status: apiErr.HTTPStatusCode, err: err})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.Classify(backendName, &statusError{status: reqErr.HTTPStatusCode, err: err})
	}
	return llm.Classify(backendName, err)
}
