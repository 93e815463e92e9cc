package story

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type ChapterRepo interface {
	Create(dbc dbctx.Context, ch *types.Chapter) (*types.Chapter, error)
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Chapter, error)
	GetLast(dbc dbctx.Context, storyID uuid.UUID) (*types.Chapter, error)
	GetMaxNumber(dbc dbctx.Context, storyID uuid.UUID) (int, error)
	GetByNumber(dbc dbctx.Context, storyID uuid.UUID, number int) (*types.Chapter, error)
	// SetSummaryIfEmpty writes summary only while it is still null and reports
	// whether this call was the one that wrote it.
	SetSummaryIfEmpty(dbc dbctx.Context, id uuid.UUID, summary string) (bool, error)
}

type chapterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChapterRepo(db *gorm.DB, log *logger.Logger) ChapterRepo {
	return &chapterRepo{db: db, log: log.With("repo", "ChapterRepo")}
}

func (r *chapterRepo) Create(dbc dbctx.Context, ch *types.Chapter) (*types.Chapter, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil chapter")
	}
	if ch.StoryID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	if ch.Number < 1 {
		return nil, fmt.Errorf("invalid chapter number %d", ch.Number)
	}
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *chapterRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Chapter, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	var out []*types.Chapter
	if err := dbc.DB(r.db).
		Where("story_id = ?", storyID).
		Order("number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chapterRepo) GetLast(dbc dbctx.Context, storyID uuid.UUID) (*types.Chapter, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	var out types.Chapter
	if err := dbc.DB(r.db).
		Where("story_id = ?", storyID).
		Order("number DESC").
		Limit(1).
		Take(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *chapterRepo) GetMaxNumber(dbc dbctx.Context, storyID uuid.UUID) (int, error) {
	if storyID == uuid.Nil {
		return 0, fmt.Errorf("missing story_id")
	}
	var maxNumber int
	if err := dbc.DB(r.db).
		Model(&types.Chapter{}).
		Where("story_id = ?", storyID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&maxNumber).Error; err != nil {
		return 0, err
	}
	return maxNumber, nil
}

func (r *chapterRepo) GetByNumber(dbc dbctx.Context, storyID uuid.UUID, number int) (*types.Chapter, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	var out types.Chapter
	if err := dbc.DB(r.db).
		Where("story_id = ? AND number = ?", storyID, number).
		Take(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *chapterRepo) SetSummaryIfEmpty(dbc dbctx.Context, id uuid.UUID, summary string) (bool, error) {
	if id == uuid.Nil {
		return false, fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).
		Model(&types.Chapter{}).
		Where("id = ? AND summary IS NULL", id).
		Update("summary", summary)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
