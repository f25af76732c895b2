package routes

import (
	"github.com/ArowuTest/study-profile-backend/internal/config"
	"github.com/ArowuTest/study-profile-backend/internal/handlers"
	"github.com/ArowuTest/study-profile-backend/internal/metrics"
	"github.com/ArowuTest/study-profile-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandlerDependencies holds the handlers and collaborators the router mounts
type HandlerDependencies struct {
	StudyHandler  *handlers.StudyHandler
	HealthHandler *handlers.HealthHandler
	// TokenVerifier checks bearer tokens; nil disables bearer auth
	TokenVerifier middleware.TokenVerifier
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies, logger *zap.Logger) *gin.Engine {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedHosts))

	router.GET("/health", deps.HealthHandler.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	study := router.Group("/api/study")
	study.Use(middleware.IdentityMiddleware(deps.TokenVerifier, cfg.Auth.TrustPrincipalHeaders, logger))
	if cfg.RateLimit.PerMinute > 0 {
		limiter := middleware.NewUserRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger)
		study.Use(limiter.Handler())
	}
	{
		study.GET("/state", deps.StudyHandler.GetState)
		study.GET("/status", deps.StudyHandler.GetState)
		study.POST("/login", deps.StudyHandler.RegisterLogin)
		study.POST("/survey", deps.StudyHandler.SetSurvey)
		study.POST("/complete-survey", deps.StudyHandler.CompleteSurvey)

		if cfg.Debug.Enabled {
			debug := study.Group("/debug")
			debug.Use(middleware.DebugTokenMiddleware(cfg.Debug.TokenHash, logger))
			{
				debug.POST("/reset", deps.StudyHandler.DebugReset)
				debug.POST("/set", deps.StudyHandler.DebugSet)
			}
		}
	}

	return router
}
