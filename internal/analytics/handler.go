package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"content-analyzer/internal/shared/server/middleware"
	"content-analyzer/internal/shared/server/respond"
	"content-analyzer/internal/shared/telemetry"
)

// Handler serves the metrics report.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches GET /metrics.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/metrics", h.metrics)
}

type metricsResponse struct {
	Success bool   `json:"success"`
	Period  string `json:"period"`
	Metrics Report `json:"metrics"`
}

func (h *Handler) metrics(c *gin.Context) {
	period := ParsePeriod(c.Query("period"))
	report, err := h.Svc.Report(c.Request.Context(), period)
	if err != nil {
		telemetry.Error("metrics.failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"period":     period.Name,
			"error":      err,
		})
		respond.Error(c, http.StatusInternalServerError, "", "Failed to fetch metrics", "")
		return
	}
	respond.OK(c, metricsResponse{Success: true, Period: period.Name, Metrics: report})
}
