package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	storyrepo "github.com/yungbote/quest-backend/internal/data/repos/story"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// StoryContextService renders the digest of past chapters relevant to a decision.
type StoryContextService interface {
	// ProvideContext never fails; any error yields the localized no-context sentinel.
	ProvideContext(ctx context.Context, storyID uuid.UUID, situation, decision, loc string) string
}

type StoryContextOptions struct {
	TopN          int
	SearchTimeout time.Duration
}

type storyContextService struct {
	log       *logger.Logger
	store     memory.Store
	chapters  storyrepo.ChapterRepo
	summaries SummaryService
	catalog   *locale.Catalog
	opts      StoryContextOptions
}

func NewStoryContextService(
	log *logger.Logger,
	store memory.Store,
	chapters storyrepo.ChapterRepo,
	summaries SummaryService,
	catalog *locale.Catalog,
	opts StoryContextOptions,
) StoryContextService {
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	return &storyContextService{
		log:       log.With("service", "StoryContextService"),
		store:     store,
		chapters:  chapters,
		summaries: summaries,
		catalog:   catalog,
		opts:      opts,
	}
}

func (s *storyContextService) ProvideContext(ctx context.Context, storyID uuid.UUID, situation, decision, loc string) string {
	digest, err := s.digest(ctx, storyID, situation, decision, loc)
	if err != nil {
		s.log.Warn("Story context unavailable", "story_id", storyID, "error", err)
		return s.catalog.T(loc, locale.KeyNoContext)
	}
	return digest
}

func (s *storyContextService) digest(ctx context.Context, storyID uuid.UUID, situation, decision, loc string) (string, error) {
	query := situation + "\n" + decision

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	results, err := s.store.SearchMemories(searchCtx, storyID, query, s.opts.TopN)
	cancel()
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	if len(results) == 0 {
		return s.catalog.T(loc, locale.KeyNoContext), nil
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].ChapterNumber < results[j].ChapterNumber })

	parts := []string{s.catalog.T(loc, locale.KeyPreviousEvents)}
	chapterLabel := s.catalog.T(loc, locale.KeyChapterLabel)
	relevanceLabel := s.catalog.T(loc, locale.KeyRelevanceLabel)
	for _, r := range results {
		ch, err := s.chapters.GetByNumber(dbctx.Context{Ctx: ctx}, storyID, r.ChapterNumber)
		if err != nil {
			return "", fmt.Errorf("load chapter %d: %w", r.ChapterNumber, err)
		}
		summary, err := s.summaries.Summarize(ctx, ch, loc)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("\n[%s %d] (%s: %.2f): %s", chapterLabel, ch.Number, relevanceLabel, r.Score, summary))
	}
	return strings.Join(parts, "\n"), nil
}
