package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"content-analyzer/internal/shared/telemetry"
)

// Logging emits a structured log per request. Handlers may set "contentId"
// and "errorKind" on the gin context to enrich the line.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if contentID := c.GetString("contentId"); contentID != "" {
			fields["content_id"] = contentID
		}
		if kind := c.GetString("errorKind"); kind != "" {
			fields["kind"] = kind
		}
		telemetry.Info("request.complete", fields)
	}
}
