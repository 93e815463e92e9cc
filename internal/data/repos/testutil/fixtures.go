package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/quest-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	now := time.Now().UTC()
	u := &types.User{ID: uuid.New(), Email: email, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedStory(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *types.Story {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Story{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed story: %v", err)
	}
	return s
}

// SeedChapters appends chapters 1..n with a message pair each.
func SeedChapters(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID uuid.UUID, n int) []*types.Chapter {
	tb.Helper()
	out := make([]*types.Chapter, 0, n)
	now := time.Now().UTC()
	for i := 1; i <= n; i++ {
		ch := &types.Chapter{
			ID:        uuid.New(),
			StoryID:   storyID,
			Number:    i,
			Narration: fmt.Sprintf("narration %d", i),
			Situation: fmt.Sprintf("situation %d", i),
			Choices:   types.EncodeChoices([]string{"a", "b", "c"}),
			Action:    fmt.Sprintf("action %d", i),
			Outcome:   fmt.Sprintf("outcome %d", i),
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(ch).Error; err != nil {
			tb.Fatalf("seed chapter %d: %v", i, err)
		}
		msgs := []*types.Message{
			{ID: uuid.New(), StoryID: storyID, Seq: int64(2*i - 1), Role: types.RoleUser, Content: ch.Action, CreatedAt: now},
			{ID: uuid.New(), StoryID: storyID, Seq: int64(2 * i), Role: types.RoleAssistant, Content: ch.Narration, CreatedAt: now},
		}
		if err := tx.WithContext(ctx).Create(&msgs).Error; err != nil {
			tb.Fatalf("seed messages %d: %v", i, err)
		}
		out = append(out, ch)
	}
	return out
}
