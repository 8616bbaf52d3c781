package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/handler"
	"github.com/stemsi/tubequiz/internal/middleware"
	"github.com/stemsi/tubequiz/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Workflow *handler.WorkflowHandler
	History  *handler.HistoryHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	sessions middleware.SessionResolver,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) (*gin.Engine, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// Real client IPs for rate limiting and the activity log.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.AccessLog())
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", handlers.Health.Health)

	requireSession := middleware.RequireSession(sessions)

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())

	// ─── 1. Session + Auth (Public, Rate Limited) ──────────────────────
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitPerMin)

	api.POST("/session", authLimiter.Middleware(), handlers.Auth.CreateSession)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		auth.POST("/logout", requireSession, handlers.Auth.Logout)
		auth.GET("/me", requireSession, handlers.Auth.Me)
	}

	// ─── 2. Workflow (Any Session) ─────────────────────────────────────
	workflow := api.Group("/workflow")
	workflow.Use(requireSession)
	{
		workflow.GET("", handlers.Workflow.GetView)
		workflow.POST("/search", handlers.Workflow.Search)
		workflow.POST("/select", handlers.Workflow.SelectVideo)
		workflow.POST("/generate", handlers.Workflow.GenerateQuiz)
		workflow.POST("/submit", handlers.Workflow.SubmitQuiz)
		workflow.POST("/reset", handlers.Workflow.Reset)
		workflow.POST("/feedback/open", handlers.Workflow.OpenFeedback)
		workflow.POST("/feedback/close", handlers.Workflow.CloseFeedback)
		workflow.POST("/debug", handlers.Workflow.ToggleDebug)
	}

	api.POST("/feedback", requireSession, handlers.Workflow.SubmitFeedback)

	// ─── 3. History (Logged In) ────────────────────────────────────────
	me := api.Group("/me")
	me.Use(requireSession, middleware.RequireLogin())
	{
		me.GET("/quiz-results", handlers.History.ListResults)
		me.GET("/quiz-results/export", handlers.History.ExportResults)
	}

	// ─── 4. WebSocket (Token In Query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireSession)
	{
		ws.GET("/workflow", handlers.WS.WorkflowStream)
	}

	return router, nil
}
