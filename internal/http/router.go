package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/quest-backend/internal/http/handlers"
	httpMW "github.com/yungbote/quest-backend/internal/http/middleware"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	MaxBodyBytes   int64
	AuthMiddleware *httpMW.AuthMiddleware

	UserHandler   *httpH.UserHandler
	StoryHandler  *httpH.StoryHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.LimitRequestBody(cfg.MaxBodyBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		// Stories
		if cfg.StoryHandler != nil {
			protected.POST("/stories/init", cfg.StoryHandler.Init)
			protected.GET("/stories", cfg.StoryHandler.List)
			protected.GET("/stories/:id", cfg.StoryHandler.Get)
			protected.POST("/stories/:id/act", cfg.StoryHandler.Act)
			protected.DELETE("/stories/:id", cfg.StoryHandler.Delete)
		}
	}

	return r
}
