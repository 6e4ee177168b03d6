package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/config"
	"github.com/ArowuTest/tambola-backend/internal/handlers"
	"github.com/ArowuTest/tambola-backend/internal/metrics"
	"github.com/ArowuTest/tambola-backend/internal/middleware"
	"github.com/ArowuTest/tambola-backend/internal/realtime"
	tokens "github.com/ArowuTest/tambola-backend/pkg/jwt"
)

// HandlerDependencies holds everything the router needs
type HandlerDependencies struct {
	GameHandler  *handlers.GameHandler
	WSServer     *realtime.Server
	TokenService *tokens.TokenService
	Logger       *zap.Logger
	// HealthCheck reports whether backing stores are reachable
	HealthCheck func(ctx context.Context) error
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(metrics.GinMiddleware())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/ws", deps.WSServer.Handle)

	public := router.Group("/api/v1")
	{
		public.GET("/health", healthHandler(deps.HealthCheck))
		public.GET("/games/:id", deps.GameHandler.GetGame)
	}

	admin := router.Group("/api/v1/games/:id")
	admin.Use(middleware.JWTAuthMiddleware(deps.TokenService, deps.Logger), middleware.RequireAdmin())
	{
		admin.POST("/start", deps.GameHandler.StartGame)
		admin.POST("/pause", deps.GameHandler.PauseGame)
		admin.POST("/resume", deps.GameHandler.ResumeGame)
		admin.POST("/end", deps.GameHandler.EndGame)
		admin.POST("/draw", deps.GameHandler.DrawNumber)
		admin.POST("/auto-play/start", deps.GameHandler.StartAutoPlay)
		admin.POST("/auto-play/stop", deps.GameHandler.StopAutoPlay)
	}

	return router
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
