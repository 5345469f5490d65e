package router

import (
	"context"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/handler"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/middleware"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/response"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health    *handler.HealthHandler
	Timetable *handler.TimetableHandler
	Job       *handler.JobHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(accessLog(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	generationLimiter := middleware.NewRateLimiter(ctx, cfg.GenerationRateLimit, time.Hour)

	// ─── Timetables (JWT) ─────────────────────────────────────────────
	api := router.Group("/api/v1/timetables")
	api.Use(middleware.RequireUser(authService), middleware.NoStore())
	{
		api.POST("/generate", generationLimiter.Middleware(), handlers.Timetable.Generate)
		api.POST("/jobs", generationLimiter.Middleware(), handlers.Job.Enqueue)
		api.GET("/jobs/:id", handlers.Job.Get)

		api.GET("", handlers.Timetable.List)
		api.GET("/:id", handlers.Timetable.Get)
		api.DELETE("/:id", handlers.Timetable.Delete)
	}

	// ─── WebSocket (token via query) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUser(authService))
	{
		ws.GET("/timetables/jobs/:id/stream", handlers.WS.JobStream)
	}

	return router
}

// accessLog writes one structured line per request.
func accessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reqID, _ := c.Get(response.ContextKeyRequestID)
		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Interface("request_id", reqID).
			Msg("request")
	}
}
