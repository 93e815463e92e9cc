package story

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/data/repos/testutil"
	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
)

func TestStoryRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := testutil.SeedUser(t, ctx, tx, "owner@example.com")
	other := testutil.SeedUser(t, ctx, tx, "other@example.com")

	repo := NewStoryRepo(db, testutil.Logger(t))
	title := "You wake up"
	created, err := repo.Create(dbc, &types.Story{UserID: owner.ID, Title: &title})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.Status() != types.StoryStatusActive {
		t.Fatalf("Create: unexpected story: %+v", created)
	}

	got, err := repo.GetForUser(dbc, owner.ID, created.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Title == nil || *got.Title != title {
		t.Fatalf("GetForUser: unexpected title: %v", got.Title)
	}
	if _, err := repo.GetForUser(dbc, other.ID, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetForUser (foreign): expected ErrNotFound, got %v", err)
	}

	locked, err := repo.LockByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("LockByID: %v", err)
	}
	if locked.ID != created.ID {
		t.Fatalf("LockByID: unexpected story: %+v", locked)
	}
	if _, err := repo.LockByID(dbctx.Context{Ctx: ctx}, created.ID); err == nil {
		t.Fatalf("LockByID without tx: expected error")
	}

	if err := repo.UpdateFields(dbc, created.ID, map[string]interface{}{"is_over": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status() != types.StoryStatusOver {
		t.Fatalf("UpdateFields: expected OVER, got %s", got.Status())
	}

	list, err := repo.ListByUser(dbc, owner.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("ListByUser: unexpected result: %+v", list)
	}
	list, err = repo.ListByUser(dbc, other.ID)
	if err != nil {
		t.Fatalf("ListByUser (other): %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("ListByUser (other): expected none, got %d", len(list))
	}
}

func TestStoryRepoDeleteCascades(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	owner := testutil.SeedUser(t, ctx, db, "cascade@example.com")
	keep := testutil.SeedStory(t, ctx, db, owner.ID)
	drop := testutil.SeedStory(t, ctx, db, owner.ID)
	testutil.SeedChapters(t, ctx, db, keep.ID, 2)
	testutil.SeedChapters(t, ctx, db, drop.ID, 3)

	log := testutil.Logger(t)
	stories := NewStoryRepo(db, log)
	chapters := NewChapterRepo(db, log)
	messages := NewMessageRepo(db, log)

	if err := stories.Delete(dbc, drop.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := stories.GetByID(dbc, drop.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetByID after delete: expected ErrNotFound, got %v", err)
	}
	chs, err := chapters.ListByStory(dbc, drop.ID)
	if err != nil {
		t.Fatalf("ListByStory: %v", err)
	}
	if len(chs) != 0 {
		t.Fatalf("chapters survived delete: %d", len(chs))
	}
	msgs, err := messages.ListByStory(dbc, drop.ID)
	if err != nil {
		t.Fatalf("ListByStory (messages): %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages survived delete: %d", len(msgs))
	}

	chs, err = chapters.ListByStory(dbc, keep.ID)
	if err != nil {
		t.Fatalf("ListByStory (kept): %v", err)
	}
	if len(chs) != 2 {
		t.Fatalf("kept story lost chapters: %d", len(chs))
	}

	if err := stories.Delete(dbc, drop.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Delete (again): expected ErrNotFound, got %v", err)
	}
}
