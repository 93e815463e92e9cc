package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/quest-backend/internal/data/db"
	storyrepo "github.com/yungbote/quest-backend/internal/data/repos/story"
	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/narrator"
	"github.com/yungbote/quest-backend/internal/observability"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// FullStory is a story with every chapter and the choices open to the player.
type FullStory struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Title          *string           `json:"title"`
	Status         types.StoryStatus `json:"status"`
	IsOver         bool              `json:"is_over"`
	Chapters       []*types.Chapter  `json:"chapters"`
	CurrentChoices []string          `json:"current_choices"`
	CreatedAt      time.Time         `json:"created_at"`
}

type StorySummary struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Title     *string           `json:"title"`
	Status    types.StoryStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// MemoryScheduler accepts best-effort memory work. Implementations must not block.
type MemoryScheduler interface {
	EnqueueAdd(storyID uuid.UUID, ch *types.Chapter) bool
	EnqueueDelete(storyID uuid.UUID) bool
}

type StoryService interface {
	Init(dbc dbctx.Context, user *types.UserInfo) (*FullStory, error)
	Act(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID, decision string) (*FullStory, error)
	Get(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID) (*FullStory, error)
	Delete(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID) error
	List(dbc dbctx.Context, user *types.UserInfo) ([]*StorySummary, error)
}

type StoryOptions struct {
	OpeningDecision    string
	TitleMaxLen        int
	HistoryTokenBudget int
	NarratorTimeout    time.Duration
	MemoryEnabled      bool
}

type StoryDeps struct {
	Stories   storyrepo.StoryRepo
	Chapters  storyrepo.ChapterRepo
	Messages  storyrepo.MessageRepo
	Narrators narrator.Source
	Context   StoryContextService
	Memory    MemoryScheduler
	Locker    StoryLocker
	Tokens    TokenCounter
	Catalog   *locale.Catalog
}

type storyService struct {
	db   *gorm.DB
	log  *logger.Logger
	deps StoryDeps
	opts StoryOptions
}

func NewStoryService(db *gorm.DB, log *logger.Logger, deps StoryDeps, opts StoryOptions) StoryService {
	if opts.OpeningDecision == "" {
		opts.OpeningDecision = "Wake up!"
	}
	if opts.TitleMaxLen <= 0 {
		opts.TitleMaxLen = 256
	}
	if opts.NarratorTimeout <= 0 {
		opts.NarratorTimeout = 60 * time.Second
	}
	return &storyService{
		db:   db,
		log:  log.With("service", "StoryService"),
		deps: deps,
		opts: opts,
	}
}

func (s *storyService) Init(dbc dbctx.Context, user *types.UserInfo) (out *FullStory, err error) {
	if user == nil || user.UserID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	ctx, end := observability.StartSpan(context.WithoutCancel(dbc.Ctx), "story.init",
		attribute.String("user_id", user.UserID.String()))
	defer func() { end(err) }()

	history := []llm.Message{{Role: llm.RoleUser, Content: s.opts.OpeningDecision}}
	resp, err := s.narrate(ctx, user.Locale, history)
	if err != nil {
		return nil, err
	}

	title := truncateRunes(resp.Narration, s.opts.TitleMaxLen)
	story := &types.Story{UserID: user.UserID, Title: &title, IsOver: resp.IsOver}
	chapter := s.newChapter(resp, 1, s.opts.OpeningDecision)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.deps.Stories.Create(txc, story); err != nil {
			return fmt.Errorf("create story: %w", err)
		}
		chapter.StoryID = story.ID
		if _, err := s.deps.Chapters.Create(txc, chapter); err != nil {
			return fmt.Errorf("create chapter: %w", err)
		}
		if _, err := s.deps.Messages.Create(txc, story.ID, messagePair(s.opts.OpeningDecision, resp)); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleAdd(story.ID, chapter)
	s.log.Info("Story created", "story_id", story.ID, "user_id", user.UserID)
	return s.fullStory(story, []*types.Chapter{chapter}), nil
}

func (s *storyService) Act(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID, decision string) (out *FullStory, err error) {
	if user == nil || user.UserID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	if decision == "" {
		return nil, fmt.Errorf("%w: message is required", apperr.ErrInvalidArgument)
	}
	// the turn outlives a client disconnect; only the narrator timeout bounds it
	ctx, end := observability.StartSpan(context.WithoutCancel(dbc.Ctx), "story.act",
		attribute.String("story_id", storyID.String()))
	defer func() { end(err) }()
	rc := dbctx.Context{Ctx: ctx}

	story, err := s.deps.Stories.GetForUser(rc, user.UserID, storyID)
	if err != nil {
		return nil, err
	}
	if story.IsOver {
		return nil, apperr.ErrStoryOver
	}

	unlock, err := s.deps.Locker.Lock(dbc.Ctx, storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	last, err := s.deps.Chapters.GetLast(rc, storyID)
	if err != nil {
		return nil, fmt.Errorf("load last chapter: %w", err)
	}
	stored, err := s.deps.Messages.ListByStory(rc, storyID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	content := decision
	if s.opts.MemoryEnabled {
		digest := s.deps.Context.ProvideContext(ctx, storyID, last.Situation, decision, user.Locale)
		content = fmt.Sprintf("%s\n%s\n\n%s %s",
			s.deps.Catalog.T(user.Locale, locale.KeyRelevantPastEvents),
			digest,
			s.deps.Catalog.T(user.Locale, locale.KeyCurrentAction),
			decision,
		)
	}

	history := make([]llm.Message, 0, len(stored)+1)
	for _, m := range stored {
		history = append(history, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: content})
	history = TrimHistory(history, s.opts.HistoryTokenBudget, s.deps.Tokens)

	resp, err := s.narrate(ctx, user.Locale, history)
	if err != nil {
		return nil, err
	}

	chapter := s.newChapter(resp, last.Number+1, decision)
	chapter.StoryID = storyID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := s.deps.Stories.LockByID(txc, storyID)
		if err != nil {
			return err
		}
		if locked.IsOver {
			return apperr.ErrStoryOver
		}
		maxNumber, err := s.deps.Chapters.GetMaxNumber(txc, storyID)
		if err != nil {
			return err
		}
		if maxNumber != last.Number {
			return fmt.Errorf("%w: concurrent advance", apperr.ErrStoryBusy)
		}
		if _, err := s.deps.Chapters.Create(txc, chapter); err != nil {
			return fmt.Errorf("create chapter: %w", err)
		}
		if _, err := s.deps.Messages.Create(txc, storyID, messagePair(content, resp)); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		updates := map[string]interface{}{}
		if resp.IsOver {
			updates["is_over"] = true
		}
		return s.deps.Stories.UpdateFields(txc, storyID, updates)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: concurrent advance", apperr.ErrStoryBusy)
		}
		return nil, err
	}
	story.IsOver = resp.IsOver

	s.scheduleAdd(storyID, chapter)
	s.log.Info("Story advanced", "story_id", storyID, "chapter", chapter.Number, "is_over", resp.IsOver)

	chapters, err := s.deps.Chapters.ListByStory(rc, storyID)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	return s.fullStory(story, chapters), nil
}

func (s *storyService) Get(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID) (*FullStory, error) {
	if user == nil || user.UserID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	story, err := s.deps.Stories.GetForUser(dbc, user.UserID, storyID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.deps.Chapters.ListByStory(dbc, storyID)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	return s.fullStory(story, chapters), nil
}

func (s *storyService) Delete(dbc dbctx.Context, user *types.UserInfo, storyID uuid.UUID) error {
	if user == nil || user.UserID == uuid.Nil {
		return apperr.ErrUnauthorized
	}
	if _, err := s.deps.Stories.GetForUser(dbc, user.UserID, storyID); err != nil {
		return err
	}
	if err := s.deps.Stories.Delete(dbc, storyID); err != nil {
		return err
	}
	if s.opts.MemoryEnabled && s.deps.Memory != nil {
		s.deps.Memory.EnqueueDelete(storyID)
	}
	s.log.Info("Story deleted", "story_id", storyID, "user_id", user.UserID)
	return nil
}

func (s *storyService) List(dbc dbctx.Context, user *types.UserInfo) ([]*StorySummary, error) {
	if user == nil || user.UserID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	stories, err := s.deps.Stories.ListByUser(dbc, user.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]*StorySummary, 0, len(stories))
	for _, st := range stories {
		out = append(out, &StorySummary{
			ID:        st.ID,
			UserID:    st.UserID,
			Title:     st.Title,
			Status:    st.Status(),
			CreatedAt: st.CreatedAt,
		})
	}
	return out, nil
}

// narrate runs the narrator under its own timeout. A timeout is a connectivity failure.
func (s *storyService) narrate(ctx context.Context, loc string, history []llm.Message) (narrator.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NarratorTimeout)
	defer cancel()
	resp, err := s.deps.Narrators.For(loc).SendMessages(ctx, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && llm.KindOf(err) == "" {
			err = &llm.Error{Kind: llm.KindConnectivity, Backend: "narrator", Err: err}
		}
		s.log.Warn("Narrator call failed", "error", err)
		return narrator.Response{}, err
	}
	return resp, nil
}

func (s *storyService) newChapter(resp narrator.Response, number int, action string) *types.Chapter {
	return &types.Chapter{
		Number:    number,
		Narration: resp.Narration,
		Situation: resp.Situation,
		Choices:   types.EncodeChoices(resp.Choices),
		Action:    action,
		Outcome:   resp.Outcome,
	}
}

func (s *storyService) scheduleAdd(storyID uuid.UUID, ch *types.Chapter) {
	if !s.opts.MemoryEnabled || s.deps.Memory == nil {
		return
	}
	s.deps.Memory.EnqueueAdd(storyID, ch)
}

func (s *storyService) fullStory(story *types.Story, chapters []*types.Chapter) *FullStory {
	choices := []string{}
	if n := len(chapters); n > 0 {
		if c := chapters[n-1].ChoiceList(); c != nil {
			choices = c
		}
	}
	if chapters == nil {
		chapters = []*types.Chapter{}
	}
	return &FullStory{
		ID:             story.ID,
		UserID:         story.UserID,
		Title:          story.Title,
		Status:         story.Status(),
		IsOver:         story.IsOver,
		Chapters:       chapters,
		CurrentChoices: choices,
		CreatedAt:      story.CreatedAt,
	}
}

func messagePair(userContent string, resp narrator.Response) []*types.Message {
	return []*types.Message{
		{Role: types.RoleUser, Content: userContent},
		{Role: types.RoleAssistant, Content: resp.String()},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
