package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	ProtocolIDKey = "protocolId"
	RuleKey       = "protocolRule"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		userID, _ := c.Get(userIDKey)
		isGuest, _ := c.Get(isGuestKey)
		protocolID, _ := c.Get(ProtocolIDKey)
		rule, _ := c.Get(RuleKey)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     userID,
			"protocol_id": protocolID,
			"rule":        rule,
			"is_guest":    isGuest,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
