package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/observability"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type instrumentedMemoryStore struct {
	log     *logger.Logger
	backend string
	inner   memory.Store
}

func instrumentMemoryStore(log *logger.Logger, backend string, inner memory.Store) memory.Store {
	if inner == nil {
		return nil
	}
	return &instrumentedMemoryStore{
		log:     log.With("component", "MemoryStore", "backend", backend),
		backend: backend,
		inner:   inner,
	}
}

func (s *instrumentedMemoryStore) AddMemory(ctx context.Context, storyID uuid.UUID, ch *types.Chapter) (err error) {
	ctx, done := s.start(ctx, "memory.add", storyID)
	defer func() { done(err) }()
	return s.inner.AddMemory(ctx, storyID, ch)
}

func (s *instrumentedMemoryStore) SearchMemories(ctx context.Context, storyID uuid.UUID, query string, maxResults int) (out []memory.SearchResult, err error) {
	ctx, done := s.start(ctx, "memory.search", storyID)
	defer func() { done(err) }()
	return s.inner.SearchMemories(ctx, storyID, query, maxResults)
}

func (s *instrumentedMemoryStore) DeleteStoryMemories(ctx context.Context, storyID uuid.UUID) (err error) {
	ctx, done := s.start(ctx, "memory.delete", storyID)
	defer func() { done(err) }()
	return s.inner.DeleteStoryMemories(ctx, storyID)
}

func (s *instrumentedMemoryStore) start(ctx context.Context, op string, storyID uuid.UUID) (context.Context, func(error)) {
	start := time.Now()
	ctx, end := observability.StartSpan(ctx, op,
		attribute.String("memory.backend", s.backend),
		attribute.String("story_id", storyID.String()),
	)
	return ctx, func(err error) {
		end(err)
		status := "success"
		if err != nil {
			status = "error"
		}
		s.log.Debug("Memory operation", "operation", op, "status", status, "story_id", storyID, "duration_ms", time.Since(start).Milliseconds())
	}
}
