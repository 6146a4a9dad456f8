package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/handler"
	"github.com/prepmate/prepmate-backend/internal/middleware"
	"github.com/prepmate/prepmate-backend/internal/response"
	"github.com/prepmate/prepmate-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Quiz    *handler.QuizHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session mutations (120 requests per minute per user).
	sessionLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. User Group (JWT) ───────────────────────────────────────────
	userAPI := router.Group("/api/v1")
	userAPI.Use(middleware.RequireUserJWT(authService), sessionLimiter.Middleware())
	{
		userAPI.POST("/quizzes/:quiz_id/sessions", handlers.Session.CreateSession)
		userAPI.GET("/quizzes/:quiz_id/paper", handlers.Quiz.GetQuizPaper)

		userAPI.GET("/sessions/active", handlers.Session.ListActiveSessions)
		userAPI.GET("/sessions/history", handlers.Session.ListSessionHistory)

		userAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		userAPI.POST("/sessions/:session_id/start", handlers.Session.StartSession)
		userAPI.POST("/sessions/:session_id/pause", handlers.Session.PauseSession)
		userAPI.POST("/sessions/:session_id/resume", handlers.Session.ResumeSession)
		userAPI.POST("/sessions/:session_id/complete", handlers.Session.CompleteSession)
		userAPI.PUT("/sessions/:session_id/position", handlers.Session.UpdatePosition)
		userAPI.PUT("/sessions/:session_id/sync", handlers.Session.SyncSession)

		userAPI.POST("/sessions/:session_id/answers", handlers.Session.SubmitAnswer)
		userAPI.POST("/sessions/:session_id/flags", handlers.Session.ToggleFlag)
		userAPI.POST("/sessions/:session_id/skips", handlers.Session.SkipQuestion)
	}

	// ─── 2. WebSocket Group (User WS Auth) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionWebSocketStream)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/maintenance/expire-stale", handlers.Admin.ExpireStaleSessions)
		adminAPI.POST("/maintenance/purge", handlers.Admin.PurgeSessions)
	}

	return router
}
