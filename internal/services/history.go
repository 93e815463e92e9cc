package services

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/yungbote/quest-backend/internal/llm"
)

type TokenCounter interface {
	Count(s string) int
}

type codecCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a tiktoken counter for encoding, e.g. cl100k_base.
func NewTokenCounter(encoding string) (TokenCounter, error) {
	encoding = strings.TrimSpace(encoding)
	if encoding == "" {
		encoding = string(tokenizer.Cl100kBase)
	}
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("tokenizer %q: %w", encoding, err)
	}
	return codecCounter{codec: codec}, nil
}

func (c codecCounter) Count(s string) int {
	ids, _, err := c.codec.Encode(s)
	if err != nil {
		// rough fallback of four bytes per token
		return len(s)/4 + 1
	}
	return len(ids)
}

// per-message framing overhead, as counted by chat APIs
const messageOverheadTokens = 4

// TrimHistory drops the oldest messages until the history fits budget tokens.
// The newest message is always kept and the result never starts with an
// assistant message. budget <= 0 disables trimming.
func TrimHistory(msgs []llm.Message, budget int, counter TokenCounter) []llm.Message {
	if budget <= 0 || counter == nil || len(msgs) == 0 {
		return msgs
	}
	costs := make([]int, len(msgs))
	total := 0
	for i, m := range msgs {
		costs[i] = counter.Count(m.Content) + messageOverheadTokens
		total += costs[i]
	}
	start := 0
	for total > budget && start < len(msgs)-1 {
		total -= costs[start]
		start++
	}
	for start < len(msgs)-1 && msgs[start].Role == llm.RoleAssistant {
		start++
	}
	return msgs[start:]
}
