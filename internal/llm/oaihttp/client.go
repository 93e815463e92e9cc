// Package oaihttp talks to any OpenAI-compatible chat-completions server over
// plain HTTP (vLLM, llama.cpp, hosted gateways).
package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/config"
)

const backendName = "oai_http"

type Client struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float64
	timeout     time.Duration

	chatCompletionsPath string

	httpClient *http.Client
}

func New(cfg config.LLMConfig, system string) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		model:               cfg.Model,
		system:              system,
		maxTokens:           cfg.MaxTokens,
		temperature:         cfg.Temperature,
		timeout:             timeout,
		chatCompletionsPath: "/v1/chat/completions",
		httpClient:          &http.Client{Transport: newTransport()},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
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

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Tools       []tool        `json:"tools,omitempty"`
	ToolChoice  *toolChoice   `json:"tool_choice,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content,omitempty"`
			ToolCalls []struct {
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	return c.SendMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil, nil)
}

func (c *Client) SendMessages(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice *llm.ToolChoice) (string, error) {
	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(c.system, messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}
	if choice != nil {
		tc := &toolChoice{Type: "function"}
		tc.Function.Name = choice.Name
		req.ToolChoice = tc
	}

	var resp chatCompletionResponse
	if err := c.doJSON(ctx, http.MethodPost, c.chatCompletionsPath, req, &resp); err != nil {
		return "", llm.Classify(backendName, err)
	}
	if len(resp.Choices) == 0 {
		return "", &llm.Error{Kind: llm.KindUnknown, Backend: backendName, Err: errors.New("response has no choices")}
	}
	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if choice == nil || call.Function.Name == choice.Name {
			return sanitizeJSONText(call.Function.Arguments), nil
		}
	}
	return msg.Content, nil
}

func toChatMessages(system string, messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, chatMessage{Role: string(llm.RoleSystem), Content: system})
	}
	for _, m := range messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// Some servers wrap tool arguments in a markdown fence.
func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func (c *Client) doJSON(ctx context.Context, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
