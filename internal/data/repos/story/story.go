package story

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type StoryRepo interface {
	Create(dbc dbctx.Context, s *types.Story) (*types.Story, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error)
	// GetForUser returns ErrNotFound for stories owned by someone else.
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Story, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// Delete removes the story with its chapters and messages.
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, log *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: log.With("repo", "StoryRepo")}
}

func (r *storyRepo) Create(dbc dbctx.Context, s *types.Story) (*types.Story, error) {
	if s == nil {
		return nil, fmt.Errorf("nil story")
	}
	if s.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if err := dbc.DB(r.db).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *storyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error) {
	if id == uuid.Nil {
		return nil, apperr.ErrNotFound
	}
	var out types.Story
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *storyRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Story, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, apperr.ErrNotFound
	}
	var out types.Story
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *storyRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.Story
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storyRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID required dbc.Tx")
	}
	var out types.Story
	if err := dbc.DB(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *storyRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.Story{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *storyRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.ErrNotFound
	}
	run := func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id).Delete(&types.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("story_id = ?", id).Delete(&types.Chapter{}).Error; err != nil {
			return fmt.Errorf("delete chapters: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&types.Story{})
		if res.Error != nil {
			return fmt.Errorf("delete story: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.DB(nil))
	}
	return dbc.DB(r.db).Transaction(run)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}
