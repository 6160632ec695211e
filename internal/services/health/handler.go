package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"content-analyzer/internal/shared/server/respond"
)

// Handler serves GET /health.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the health route.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/health", h.health)
}

func (h *Handler) health(c *gin.Context) {
	report := h.Svc.Check(c.Request.Context())
	if !report.Healthy() {
		respond.JSON(c, http.StatusServiceUnavailable, report)
		return
	}
	respond.OK(c, report)
}
