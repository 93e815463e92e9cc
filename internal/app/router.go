package app

import (
	"github.com/yungbote/quest-backend/internal/http"
	"github.com/yungbote/quest-backend/internal/platform/config"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

const serviceName = "quest-backend"

func wireServer(log *logger.Logger, cfg config.HTTPConfig, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(cfg.Addr, cfg.ReadHeaderTimeout.Duration, http.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxRequestBytes,
		AuthMiddleware: middleware.Auth,
		UserHandler:    handlers.User,
		StoryHandler:   handlers.Story,
		HealthHandler:  handlers.Health,
	})
}
