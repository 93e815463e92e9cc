package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storyrepo "github.com/yungbote/quest-backend/internal/data/repos/story"
	"github.com/yungbote/quest-backend/internal/data/repos/testutil"
	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/llm/mock"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
)

func TestSummaryServiceSummarizesOnce(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	catalog, err := locale.Load("en")
	require.NoError(t, err)

	u := testutil.SeedUser(t, ctx, db, "sum@example.com")
	st := testutil.SeedStory(t, ctx, db, u.ID)
	testutil.SeedChapters(t, ctx, db, st.ID, 2)

	var calls int32
	var prompts []string
	var mu sync.Mutex
	gw := mock.New()
	gw.AskFunc = func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		return "  The hero woke up.  ", nil
	}
	chapters := storyrepo.NewChapterRepo(db, log)
	svc := NewSummaryService(log, chapters, llm.Single(gw), catalog)

	ch, err := chapters.GetByNumber(dbctx.Context{Ctx: ctx}, st.ID, 1)
	require.NoError(t, err)

	got, err := svc.Summarize(ctx, ch, "en")
	require.NoError(t, err)
	assert.Equal(t, "The hero woke up.", got)

	// a fresh copy of the row carries the stored summary
	again, err := chapters.GetByNumber(dbctx.Context{Ctx: ctx}, st.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, again.Summary)
	got, err = svc.Summarize(ctx, again, "en")
	require.NoError(t, err)
	assert.Equal(t, "The hero woke up.", got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.True(t, strings.HasPrefix(p, "Summarize the following chapter of an interactive story."))
	assert.Contains(t, p, "Narration: narration 1\n")
	assert.Contains(t, p, "Situation: situation 1\n")
	assert.Contains(t, p, "Action: action 1\n")
	assert.Contains(t, p, "Outcome: outcome 1\n")
}

func TestSummaryServiceKeepsFirstStoredSummary(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	catalog, err := locale.Load("en")
	require.NoError(t, err)

	u := testutil.SeedUser(t, ctx, db, "race@example.com")
	st := testutil.SeedStory(t, ctx, db, u.ID)
	testutil.SeedChapters(t, ctx, db, st.ID, 1)

	chapters := storyrepo.NewChapterRepo(db, log)
	stale, err := chapters.GetByNumber(dbctx.Context{Ctx: ctx}, st.ID, 1)
	require.NoError(t, err)

	// another instance stored its summary after stale was read
	wrote, err := chapters.SetSummaryIfEmpty(dbctx.Context{Ctx: ctx}, stale.ID, "first summary")
	require.NoError(t, err)
	require.True(t, wrote)

	gw := mock.New()
	gw.AskFunc = func(context.Context, string) (string, error) { return "second summary", nil }
	svc := NewSummaryService(log, chapters, llm.Single(gw), catalog)

	got, err := svc.Summarize(ctx, stale, "en")
	require.NoError(t, err)
	assert.Equal(t, "first summary", got)
}
