package server

import (
	"github.com/gin-gonic/gin"

	"content-analyzer/internal/shared/config"
	"content-analyzer/internal/shared/metrics"
	"content-analyzer/internal/shared/server/middleware"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg gin.IRoutes)
}

// RouterDeps lists the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config           config.Config
	AnalyzeHandler   RouteRegistrar
	AnalyticsHandler RouteRegistrar
	HealthHandler    RouteRegistrar
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Feature routes are served both at the root and under /api.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	limit := middleware.RateLimit(middleware.RateLimitRule{
		Rate:  deps.Config.RateLimitRPS,
		Burst: deps.Config.RateLimitBurst,
	}, deps.RateLimiter)

	for _, group := range []*gin.RouterGroup{r.Group(""), r.Group("/api")} {
		if deps.HealthHandler != nil {
			deps.HealthHandler.RegisterRoutes(group)
		}
		if deps.AnalyticsHandler != nil {
			deps.AnalyticsHandler.RegisterRoutes(group)
		}
		if deps.AnalyzeHandler != nil {
			deps.AnalyzeHandler.RegisterRoutes(group.Group("", limit))
		}
	}

	r.GET("/internal/metrics", metrics.Handler())

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
