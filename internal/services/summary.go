package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	storyrepo "github.com/yungbote/quest-backend/internal/data/repos/story"
	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// SummaryService produces a chapter's summary once and then serves the stored copy.
type SummaryService interface {
	Summarize(ctx context.Context, ch *types.Chapter, loc string) (string, error)
}

type summaryService struct {
	log      *logger.Logger
	chapters storyrepo.ChapterRepo
	gateways *llm.Pool
	catalog  *locale.Catalog
	group    singleflight.Group
}

// gateways must be bound to the dm_summarize prompt of each locale.
func NewSummaryService(log *logger.Logger, chapters storyrepo.ChapterRepo, gateways *llm.Pool, catalog *locale.Catalog) SummaryService {
	return &summaryService{
		log:      log.With("service", "SummaryService"),
		chapters: chapters,
		gateways: gateways,
		catalog:  catalog,
	}
}

func (s *summaryService) Summarize(ctx context.Context, ch *types.Chapter, loc string) (string, error) {
	if ch == nil {
		return "", fmt.Errorf("summarize: nil chapter")
	}
	if ch.Summary != nil {
		return *ch.Summary, nil
	}
	v, err, _ := s.group.Do(ch.ID.String(), func() (interface{}, error) {
		return s.summarize(ctx, ch, loc)
	})
	if err != nil {
		return "", err
	}
	summary := v.(string)
	ch.Summary = &summary
	return summary, nil
}

func (s *summaryService) summarize(ctx context.Context, ch *types.Chapter, loc string) (string, error) {
	text, err := s.gateways.For(loc).Ask(ctx, s.prompt(ch, loc))
	if err != nil {
		return "", fmt.Errorf("summarize chapter %d: %w", ch.Number, err)
	}
	text = strings.TrimSpace(text)

	dbc := dbctx.Context{Ctx: ctx}
	wrote, err := s.chapters.SetSummaryIfEmpty(dbc, ch.ID, text)
	if err != nil {
		return "", fmt.Errorf("store summary: %w", err)
	}
	if wrote {
		s.log.Debug("Chapter summary stored", "story_id", ch.StoryID, "chapter", ch.Number)
		return text, nil
	}
	// another writer got there first; its summary is the canonical one
	stored, err := s.chapters.GetByNumber(dbc, ch.StoryID, ch.Number)
	if err != nil {
		return "", fmt.Errorf("reload summary: %w", err)
	}
	if stored.Summary == nil {
		return text, nil
	}
	return *stored.Summary, nil
}

func (s *summaryService) prompt(ch *types.Chapter, loc string) string {
	t := func(key string) string { return s.catalog.T(loc, key) }
	var b strings.Builder
	b.WriteString(t(locale.KeySummaryInstruction))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n", t(locale.KeyNarrationLabel), ch.Narration)
	fmt.Fprintf(&b, "%s: %s\n", t(locale.KeySituationLabel), ch.Situation)
	fmt.Fprintf(&b, "%s: %s\n", t(locale.KeyActionLabel), ch.Action)
	fmt.Fprintf(&b, "%s: %s\n", t(locale.KeyOutcomeLabel), ch.Outcome)
	b.WriteString("\n")
	b.WriteString(t(locale.KeySummaryDirective))
	return b.String()
}
