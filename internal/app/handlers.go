package app

import (
	httpH "github.com/yungbote/quest-backend/internal/http/handlers"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	User   *httpH.UserHandler
	Story  *httpH.StoryHandler
}

func wireHandlers(log *logger.Logger, services Services, db httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		User:   httpH.NewUserHandler(services.User),
		Story:  httpH.NewStoryHandler(services.Story),
	}
}
