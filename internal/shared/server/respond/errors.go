package respond

import (
	"github.com/gin-gonic/gin"

	"content-analyzer/internal/shared/telemetry"
)

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error logs the failure and aborts with a JSON error body.
func Error(c *gin.Context, status int, kind, message, details string) {
	fields := map[string]any{
		"status":     status,
		"kind":       kind,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if contentID := c.GetString("contentId"); contentID != "" {
		fields["content_id"] = contentID
	}
	if details != "" {
		fields["details"] = details
	}
	telemetry.Error("http.error", fields)

	if kind != "" {
		c.Set("errorKind", kind)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   message,
		Kind:    kind,
		Details: details,
	})
}
