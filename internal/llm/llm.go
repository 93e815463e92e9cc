// Package llm is the uniform contract over the language-model backends used
// by the narrator and the chapter summarizer.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tool is a function the model may call. InputSchema is a JSON Schema object.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolChoice forces the model to call the named tool.
type ToolChoice struct {
	Name string
}

// Gateway is bound to a system prompt at construction.
type Gateway interface {
	// Ask sends a single user prompt and returns the text reply.
	Ask(ctx context.Context, prompt string) (string, error)
	// SendMessages sends the conversation. When the model calls a tool, the
	// tool arguments are returned as a JSON document; otherwise the text reply.
	SendMessages(ctx context.Context, messages []Message, tools []Tool, choice *ToolChoice) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dimensions() int
}
