// Package memory is the long-term, per-story semantic index of chapters.
// Every story owns one namespace; nothing crosses namespaces.
package memory

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/domain"
)

type SearchResult struct {
	ChapterNumber int     `json:"chapter_number"`
	Score         float64 `json:"relevance_score"`
}

type Store interface {
	// AddMemory indexes ch under storyID. Re-adding a chapter number overwrites it.
	AddMemory(ctx context.Context, storyID uuid.UUID, ch *domain.Chapter) error
	// SearchMemories returns at most maxResults hits, best first.
	SearchMemories(ctx context.Context, storyID uuid.UUID, query string, maxResults int) ([]SearchResult, error)
	// DeleteStoryMemories drops the namespace. A missing namespace is not an error.
	DeleteStoryMemories(ctx context.Context, storyID uuid.UUID) error
}

type Match struct {
	ChapterNumber int
	Score         float64
}

// VectorIndex stores one vector per (namespace, chapter number).
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, chapterNumber int, vec []float32) error
	Query(ctx context.Context, namespace string, vec []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Namespace is the index namespace of a story.
func Namespace(storyID uuid.UUID) string { return "story:" + storyID.String() }

type chapterDocument struct {
	Number    int      `json:"number"`
	Narration string   `json:"narration"`
	Situation string   `json:"situation"`
	Choices   []string `json:"choices"`
	Action    string   `json:"action"`
	Outcome   string   `json:"outcome"`
}

// ChapterDocument is the canonical text embedded for a chapter. Field order is
// fixed so equal chapters embed identically.
func ChapterDocument(ch *domain.Chapter) string {
	if ch == nil {
		return ""
	}
	choices := ch.ChoiceList()
	if choices == nil {
		choices = []string{}
	}
	b, _ := json.Marshal(chapterDocument{
		Number:    ch.Number,
		Narration: ch.Narration,
		Situation: ch.Situation,
		Choices:   choices,
		Action:    ch.Action,
		Outcome:   ch.Outcome,
	})
	return string(b)
}
