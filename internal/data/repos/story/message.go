package story

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type MessageRepo interface {
	// Create assigns consecutive seq values after the current max, in order.
	Create(dbc dbctx.Context, storyID uuid.UUID, msgs []*types.Message) ([]*types.Message, error)
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Message, error)
	GetMaxSeq(dbc dbctx.Context, storyID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, storyID uuid.UUID, msgs []*types.Message) ([]*types.Message, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	if len(msgs) == 0 {
		return []*types.Message{}, nil
	}
	seq, err := r.GetMaxSeq(dbc, storyID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.StoryID = storyID
		seq++
		m.Seq = seq
		if m.CreatedAt.IsZero() {
			// Strictly increasing even when the clock is coarse.
			m.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}
	if err := dbc.DB(r.db).Create(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Message, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("missing story_id")
	}
	var out []*types.Message
	if err := dbc.DB(r.db).
		Where("story_id = ?", storyID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) GetMaxSeq(dbc dbctx.Context, storyID uuid.UUID) (int64, error) {
	if storyID == uuid.Nil {
		return 0, fmt.Errorf("missing story_id")
	}
	var maxSeq int64
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("story_id = ?", storyID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq, nil
}
