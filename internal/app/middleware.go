package app

import (
	httpMW "github.com/yungbote/quest-backend/internal/http/middleware"
	"github.com/yungbote/quest-backend/internal/locale"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg config.AuthConfig, services Services, catalog *locale.Catalog) Middleware {
	log.Info("Wiring middleware...")
	if cfg.APIKeyDisabled {
		log.Warn("API key check disabled")
	}
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg, services.User, catalog),
	}
}
