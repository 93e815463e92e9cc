// Package mock is a deterministic, offline llm backend for local runs and tests.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/quest-backend/internal/llm"
)

type Gateway struct {
	// Optional overrides; nil falls back to the deterministic behavior.
	AskFunc          func(ctx context.Context, prompt string) (string, error)
	SendMessagesFunc func(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice *llm.ToolChoice) (string, error)
}

func New() *Gateway { return &Gateway{} }

func (g *Gateway) Ask(ctx context.Context, prompt string) (string, error) {
	if g.AskFunc != nil {
		return g.AskFunc(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := strings.TrimSpace(prompt)
	if len(p) > 200 {
		p = p[:200]
	}
	return "mock summary: " + p, nil
}

func (g *Gateway) SendMessages(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice *llm.ToolChoice) (string, error) {
	if g.SendMessagesFunc != nil {
		return g.SendMessagesFunc(ctx, messages, tools, choice)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			user = messages[i].Content
			break
		}
	}
	if choice != nil {
		for _, t := range tools {
			if t.Name == choice.Name {
				b, err := json.Marshal(fillSchema(t.InputSchema, user))
				if err != nil {
					return "", err
				}
				return string(b), nil
			}
		}
		return "", &llm.Error{Kind: llm.KindRejected, Backend: "mock", Err: fmt.Errorf("unknown tool %q", choice.Name)}
	}
	if strings.TrimSpace(user) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", user), nil
}

// fillSchema builds an object satisfying the required properties of a flat
// object schema. Arrays get max(minItems, 3) string items.
func fillSchema(schema map[string]any, user string) map[string]any {
	out := map[string]any{}
	props, _ := schema["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, _ := props[name].(map[string]any)
		switch p["type"] {
		case "string":
			out[name] = fmt.Sprintf("mock %s: %s", name, user)
		case "boolean":
			out[name] = false
		case "integer", "number":
			out[name] = 0
		case "array":
			n := 3
			if v, ok := asInt(p["minItems"]); ok && v > n {
				n = v
			}
			items := make([]string, n)
			for i := range items {
				items[i] = fmt.Sprintf("mock %s %d", name, i+1)
			}
			out[name] = items
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

type Embedder struct {
	Dims int
}

func NewEmbedder(dims int) *Embedder {
	if dims <= 0 {
		dims = 8
	}
	return &Embedder{Dims: dims}
}

func (e *Embedder) Dimensions() int { return e.Dims }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		h := sha256.Sum256([]byte(s))
		vec := make([]float32, e.Dims)
		for j := 0; j < e.Dims; j++ {
			u := binary.LittleEndian.Uint32(h[(j*4)%(len(h)-3):])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}
