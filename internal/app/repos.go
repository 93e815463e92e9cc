package app

import (
	"gorm.io/gorm"

	storyrepo "github.com/yungbote/quest-backend/internal/data/repos/story"
	userrepo "github.com/yungbote/quest-backend/internal/data/repos/user"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type Repos struct {
	User    userrepo.UserRepo
	Story   storyrepo.StoryRepo
	Chapter storyrepo.ChapterRepo
	Message storyrepo.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:    userrepo.NewUserRepo(db, log),
		Story:   storyrepo.NewStoryRepo(db, log),
		Chapter: storyrepo.NewChapterRepo(db, log),
		Message: storyrepo.NewMessageRepo(db, log),
	}
}
