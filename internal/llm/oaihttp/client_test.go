package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/config"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		BaseURL:   "http://upstream/",
		APIKey:    "k",
		Model:     "story-model",
		MaxTokens: 512,
		Timeout:   config.D(2 * time.Second),
	}
}

func TestSendMessagesForcesTool(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer k" {
			t.Fatalf("authorization=%q", got)
		}
		var in map[string]any
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		msgs := in["messages"].([]any)
		if first := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "be a narrator" {
			t.Fatalf("system prompt not first: %v", first)
		}
		tc := in["tool_choice"].(map[string]any)
		if tc["function"].(map[string]any)["name"] != "story_response" {
			t.Fatalf("tool_choice=%v", tc)
		}
		if tools := in["tools"].([]any); len(tools) != 1 {
			t.Fatalf("tools=%v", tools)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"","tool_calls":[{"type":"function","function":{"name":"story_response","arguments":"{\"narration\":\"hi\"}"}}]}}]}`), nil
	})}

	c, err := NewWithHTTPClient(testConfig(), "be a narrator", client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	out, err := c.SendMessages(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "Wake up!"}},
		[]llm.Tool{{Name: "story_response", InputSchema: map[string]any{"type": "object"}}},
		&llm.ToolChoice{Name: "story_response"},
	)
	if err != nil {
		t.Fatalf("SendMessages: %v", err)
	}
	if out != `{"narration":"hi"}` {
		t.Fatalf("out=%q", out)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestAskReturnsText(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"a short summary"}}]}`), nil
	})}
	c, err := NewWithHTTPClient(testConfig(), "", client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	out, err := c.Ask(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out != "a short summary" {
		t.Fatalf("out=%q", out)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	cases := map[int]llm.ErrorKind{
		http.StatusTooManyRequests:    llm.KindRateLimit,
		http.StatusBadRequest:         llm.KindRejected,
		http.StatusServiceUnavailable: llm.KindConnectivity,
	}
	for status, want := range cases {
		status, want := status, want
		client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(status, `{"error":{"message":"nope"}}`), nil
		})}
		c, err := NewWithHTTPClient(testConfig(), "", client)
		if err != nil {
			t.Fatalf("NewWithHTTPClient: %v", err)
		}
		_, err = c.Ask(context.Background(), "x")
		if !llm.IsKind(err, want) {
			t.Fatalf("status %d: got %v want kind %s", status, err, want)
		}
	}
}

func TestTimeoutIsConnectivity(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	cfg := testConfig()
	cfg.Timeout = config.D(20 * time.Millisecond)
	c, err := NewWithHTTPClient(cfg, "", client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	_, err = c.Ask(context.Background(), "x")
	if !llm.IsKind(err, llm.KindConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestEmbeddings(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/embeddings" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var in embeddingsRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.Model != "embed-model" || len(in.Input) != 2 {
			t.Fatalf("unexpected request: %+v", in)
		}
		return jsonResponse(http.StatusOK, `{"data":[{"embedding":[0.3,0.4],"index":1},{"embedding":[0.1,0.2],"index":0}]}`), nil
	})}
	e, err := NewEmbedderWithHTTPClient(config.EmbeddingConfig{
		BaseURL:    "http://upstream",
		Model:      "embed-model",
		Dimensions: 2,
	}, client)
	if err != nil {
		t.Fatalf("NewEmbedderWithHTTPClient: %v", err)
	}
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != float32(0.1) || vecs[1][0] != float32(0.3) {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestSanitizeJSONText(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := sanitizeJSONText(in); strings.TrimSpace(got) != `{"a":1}` {
		t.Fatalf("got=%q", got)
	}
}
