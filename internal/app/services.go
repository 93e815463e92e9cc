package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/quest-backend/internal/jobs/worker"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/narrator"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
	"github.com/yungbote/quest-backend/internal/services"
)

type Services struct {
	User    services.UserService
	Summary services.SummaryService
	Context services.StoryContextService
	Story   services.StoryService

	MemoryWorker *worker.MemoryWorker
	closeMemory  func() error
}

func wireServices(
	ctx context.Context,
	db *gorm.DB,
	log *logger.Logger,
	cfg *config.Config,
	catalog *locale.Catalog,
	repos Repos,
	clients Clients,
) (Services, error) {
	log.Info("Wiring services...")

	store, closeMemory, err := resolveMemoryStore(ctx, log, cfg.Memory, cfg.Embedding)
	if err != nil {
		return Services{}, err
	}
	memWorker := worker.NewMemoryWorker(log, store, worker.Options{
		QueueSize:  cfg.Memory.QueueSize,
		Workers:    cfg.Memory.Workers,
		JobTimeout: cfg.Memory.JobTimeout.Duration,
	})

	tokens, err := services.NewTokenCounter(cfg.Story.Tokenizer)
	if err != nil {
		_ = closeMemory()
		return Services{}, fmt.Errorf("init tokenizer: %w", err)
	}

	var locker services.StoryLocker
	if clients.Redis != nil {
		locker = services.NewRedisLocker(log, clients.Redis, cfg.Redis.LockTTL.Duration, cfg.Story.LockWait.Duration)
	} else {
		locker = services.NewLocalLocker(cfg.Story.LockWait.Duration)
	}

	userService := services.NewUserService(db, log, repos.User)
	summaryService := services.NewSummaryService(log, repos.Chapter, clients.Summaries, catalog)
	contextService := services.NewStoryContextService(log, store, repos.Chapter, summaryService, catalog, services.StoryContextOptions{
		TopN:          cfg.Memory.TopN,
		SearchTimeout: cfg.Memory.SearchTimeout.Duration,
	})
	storyService := services.NewStoryService(db, log, services.StoryDeps{
		Stories:   repos.Story,
		Chapters:  repos.Chapter,
		Messages:  repos.Message,
		Narrators: narrator.NewSource(clients.Narrators),
		Context:   contextService,
		Memory:    memWorker,
		Locker:    locker,
		Tokens:    tokens,
		Catalog:   catalog,
	}, services.StoryOptions{
		OpeningDecision:    cfg.Story.OpeningDecision,
		TitleMaxLen:        cfg.Story.TitleMaxLen,
		HistoryTokenBudget: cfg.Story.HistoryTokenBudget,
		NarratorTimeout:    cfg.LLM.Timeout.Duration,
		MemoryEnabled:      cfg.Memory.Enabled(),
	})

	return Services{
		User:         userService,
		Summary:      summaryService,
		Context:      contextService,
		Story:        storyService,
		MemoryWorker: memWorker,
		closeMemory:  closeMemory,
	}, nil
}

var _ services.MemoryScheduler = (*worker.MemoryWorker)(nil)
