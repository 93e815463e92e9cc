// Package narrator forces every model reply through the story_response tool
// and validates the result before any chapter is built from it.
package narrator

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/observability"
)

const ToolName = "story_response"

const (
	MinChoices = 3
	MaxChoices = 6
)

// Response is the validated payload of one narrator turn.
type Response struct {
	Narration string   `json:"narration"`
	Outcome   string   `json:"outcome"`
	Situation string   `json:"situation"`
	Choices   []string `json:"choices"`
	IsOver    bool     `json:"is_over,omitempty"`
}

// String is the JSON form stored as the assistant message.
func (r Response) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

// Tool describes story_response to the model.
func Tool() llm.Tool {
	return llm.Tool{
		Name:        ToolName,
		Description: "Respond with the story outcome and next situation",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"narration": map[string]any{
					"type":        "string",
					"description": "A dry, sardonic comment or flavor text",
				},
				"outcome": map[string]any{
					"type":        "string",
					"description": "Description of what happened as a result of the player's action",
				},
				"situation": map[string]any{
					"type":        "string",
					"description": "The current situation the player faces",
				},
				"choices": map[string]any{
					"type":        "array",
					"description": "List of choices available to the player",
					"items":       map[string]any{"type": "string"},
					"minItems":    MinChoices,
					"maxItems":    MaxChoices,
				},
				"is_over": map[string]any{
					"type":        "boolean",
					"description": "True only when the story has reached its ending",
				},
			},
			"required": []string{"narration", "outcome", "situation", "choices"},
		},
	}
}

type Narrator interface {
	SendMessages(ctx context.Context, history []llm.Message) (Response, error)
}

type DungeonMaster struct {
	gateway llm.Gateway
}

// New expects gateway to be bound to the narrator system prompt.
func New(gateway llm.Gateway) *DungeonMaster {
	return &DungeonMaster{gateway: gateway}
}

// SendMessages returns gateway errors unchanged and a *ContractError when the
// tool payload is unusable.
func (d *DungeonMaster) SendMessages(ctx context.Context, history []llm.Message) (resp Response, err error) {
	ctx, end := observability.StartSpan(ctx, "narrator.send", attribute.Int("history_len", len(history)))
	defer func() { end(err) }()

	raw, err := d.gateway.SendMessages(ctx, history, []llm.Tool{Tool()}, &llm.ToolChoice{Name: ToolName})
	if err != nil {
		return Response{}, err
	}
	return Parse(raw)
}

// Source resolves the narrator for a caller's locale.
type Source interface {
	For(locale string) Narrator
}

type pool struct {
	gateways *llm.Pool
}

// NewSource builds narrators over gateways bound to per-locale system prompts.
func NewSource(gateways *llm.Pool) Source { return pool{gateways: gateways} }

func (p pool) For(locale string) Narrator { return New(p.gateways.For(locale)) }

type fixed struct{ n Narrator }

// Fixed serves n for every locale.
func Fixed(n Narrator) Source { return fixed{n: n} }

func (f fixed) For(string) Narrator { return f.n }
