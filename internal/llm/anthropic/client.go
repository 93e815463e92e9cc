// Package anthropic calls the Anthropic Messages API directly.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/config"
)

const (
	backendName    = "anthropic"
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultVersion = "2023-06-01"
)

type Client struct {
	baseURL     string
	apiKey      string
	version     string
	model       string
	system      string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

func New(cfg config.LLMConfig, system string) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api_key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("anthropic: model required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.TrimSpace(cfg.AnthropicVersion)
	if version == "" {
		version = defaultVersion
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		version:     version,
		model:       cfg.Model,
		system:      system,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		httpClient:  &http.Client{},
	}, nil
}

// NewWithHTTPClient is intended for tests.
func NewWithHTTPClient(cfg config.LLMConfig, system string, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg, system)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type messagesRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	Temperature *float64    `json:"temperature,omitempty"`
	System      string      `json:"system,omitempty"`
	Messages    []message   `json:"messages"`
	Tools       []tool      `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api error: status=%d type=%s message=%s", e.StatusCode, e.Type, e.Message)
}

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	return c.SendMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil, nil)
}

func (c *Client) SendMessages(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice *llm.ToolChoice) (string, error) {
	system, convo := splitSystem(c.system, messages)
	req := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  convo,
	}
	if c.temperature > 0 {
		t := c.temperature
		req.Temperature = &t
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	if choice != nil {
		req.ToolChoice = &toolChoice{Type: "tool", Name: choice.Name}
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return "", llm.Classify(backendName, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			if choice == nil || block.Name == choice.Name {
				return string(block.Input), nil
			}
		case "text":
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// splitSystem folds system messages into the top-level system field, which is
// the only place the Messages API accepts them.
func splitSystem(bound string, messages []llm.Message) (string, []message) {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(bound) != "" {
		parts = append(parts, bound)
	}
	out := make([]message, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		out = append(out, message{Role: string(m.Role), Content: m.Content})
	}
	return strings.Join(parts, "\n\n"), out
}

func (c *Client) post(ctx context.Context, body messagesRequest) (*messagesResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(payload)}
		var eb apiErrorBody
		if json.Unmarshal(payload, &eb) == nil && eb.Error.Message != "" {
			apiErr.Type = eb.Error.Type
			apiErr.Message = eb.Error.Message
		}
		return nil, apiErr
	}

	var out messagesResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
