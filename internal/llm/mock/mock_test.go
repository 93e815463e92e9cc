package mock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/quest-backend/internal/llm"
)

func TestForcedToolFillsSchema(t *testing.T) {
	g := New()
	tool := llm.Tool{
		Name: "story_response",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"narration": map[string]any{"type": "string"},
				"choices":   map[string]any{"type": "array", "minItems": 3, "maxItems": 6},
				"is_over":   map[string]any{"type": "boolean"},
			},
		},
	}
	out, err := g.SendMessages(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "open the door"}},
		[]llm.Tool{tool}, &llm.ToolChoice{Name: "story_response"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "mock narration: open the door", got["narration"])
	assert.Len(t, got["choices"], 3)
	assert.Equal(t, false, got["is_over"])
}

func TestUnknownToolIsRejected(t *testing.T) {
	_, err := New().SendMessages(context.Background(), nil, nil, &llm.ToolChoice{Name: "nope"})
	assert.True(t, llm.IsKind(err, llm.KindRejected))
}

func TestOverrides(t *testing.T) {
	g := &Gateway{AskFunc: func(ctx context.Context, prompt string) (string, error) { return "fixed", nil }}
	out, err := g.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}

func TestEmbedDeterministic(t *testing.T) {
	e := NewEmbedder(16)
	a, err := e.Embed(context.Background(), []string{"dragon", "dragon", "castle"})
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Len(t, a[0], 16)
	assert.Equal(t, a[0], a[1])
	assert.NotEqual(t, a[0], a[2])
}
