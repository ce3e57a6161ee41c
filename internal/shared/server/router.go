package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wellness-backend/internal/protocols"
	"wellness-backend/internal/services/health"
	"wellness-backend/internal/shared/config"
	"wellness-backend/internal/shared/metrics"
	"wellness-backend/internal/shared/server/middleware"
	"wellness-backend/internal/shared/server/respond"
	"wellness-backend/internal/users"
)

const generateRateGroup = "GENERATE"

// RouterDeps are the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	ProtocolHandler *protocols.Handler
	UserHandler     *users.Handler
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
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

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.ProtocolHandler != nil {
		deps.ProtocolHandler.RegisterPublicRoutes(api)
	}

	authed := api.Group("")
	authed.Use(
		middleware.Auth(),
		middleware.RateLimit(rateLimitConfig(deps)),
	)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(authed)
	}
	if deps.ProtocolHandler != nil {
		deps.ProtocolHandler.RegisterRoutes(authed)
	}

	return r
}

// rateLimitConfig gives generation its own, stricter bucket than reads.
func rateLimitConfig(deps RouterDeps) middleware.RateLimitConfig {
	rps := deps.Config.RateLimitRPS
	burst := deps.Config.RateLimitBurst
	return middleware.RateLimitConfig{
		Limiter: deps.RateLimiter,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/protocols/daily" {
				return generateRateGroup
			}
			return ""
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT":         {Rate: rps * 5, Burst: burst * 5},
			generateRateGroup: {Rate: rps, Burst: burst},
		},
	}
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
