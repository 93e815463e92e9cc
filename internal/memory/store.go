package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type embeddingStore struct {
	log      *logger.Logger
	embedder llm.Embedder
	index    VectorIndex
}

// NewEmbeddingStore embeds with embedder and indexes into index. One embedder
// serves the whole deployment.
func NewEmbeddingStore(log *logger.Logger, embedder llm.Embedder, index VectorIndex) Store {
	return &embeddingStore{
		log:      log.With("service", "MemoryStore"),
		embedder: embedder,
		index:    index,
	}
}

func (s *embeddingStore) AddMemory(ctx context.Context, storyID uuid.UUID, ch *domain.Chapter) error {
	if ch == nil {
		return fmt.Errorf("add memory: chapter required")
	}
	vec, err := s.embedOne(ctx, ChapterDocument(ch))
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	if err := s.index.Upsert(ctx, Namespace(storyID), ch.Number, vec); err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	s.log.Debug("Memory indexed", "story_id", storyID, "chapter", ch.Number)
	return nil
}

func (s *embeddingStore) SearchMemories(ctx context.Context, storyID uuid.UUID, query string, maxResults int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" || maxResults <= 0 {
		return []SearchResult{}, nil
	}
	vec, err := s.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	matches, err := s.index.Query(ctx, Namespace(storyID), vec, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		if len(out) == maxResults {
			break
		}
		out = append(out, SearchResult{ChapterNumber: m.ChapterNumber, Score: m.Score})
	}
	return out, nil
}

func (s *embeddingStore) DeleteStoryMemories(ctx context.Context, storyID uuid.UUID) error {
	if err := s.index.DeleteNamespace(ctx, Namespace(storyID)); err != nil {
		return fmt.Errorf("delete story memories: %w", err)
	}
	return nil
}

func (s *embeddingStore) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors", len(vecs))
	}
	return vecs[0], nil
}

type noopStore struct{}

// Noop is the store used when memory is disabled.
func Noop() Store { return noopStore{} }

func (noopStore) AddMemory(context.Context, uuid.UUID, *domain.Chapter) error { return nil }

func (noopStore) SearchMemories(context.Context, uuid.UUID, string, int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

func (noopStore) DeleteStoryMemories(context.Context, uuid.UUID) error { return nil }
