package pipeline

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"content-analyzer/internal/extract"
	"content-analyzer/internal/shared/server/middleware"
	"content-analyzer/internal/shared/server/respond"
	"content-analyzer/internal/shared/telemetry"
	"content-analyzer/internal/shared/util"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxDetailsLength      = 500
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: defaultMaxUploadBytes}
}

// RegisterRoutes attaches the analyze routes.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/analyze/file", h.analyzeFile)
}

type analyzeRequest struct {
	Content *string `json:"content"`
}

func (h *Handler) analyze(c *gin.Context) {
	// JSON escaping can expand content up to six times.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.Svc.maxContentBytes())*6+1024)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, &Error{Kind: KindValidation, Step: StepValidate, Err: ErrContentTooLarge})
			return
		}
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "Invalid request body", util.SingleLine(err.Error(), maxDetailsLength))
		return
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}
	h.run(c, content)
}

func (h *Handler) analyzeFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "File is required", "")
		return
	}
	limit := h.maxUploadBytes()
	if fh.Size > limit {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "File is too large", fmt.Sprintf("max %d bytes", limit))
		return
	}
	name, err := util.SanitizeFileName(fh.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "Invalid file name", "")
		return
	}

	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "Failed to read file", "")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "Failed to read file", "")
		return
	}
	if int64(len(data)) > limit {
		respond.Error(c, http.StatusBadRequest, string(KindValidation), "File is too large", fmt.Sprintf("max %d bytes", limit))
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	text, err := extract.FromBytes(c.Request.Context(), data, mimeType, name)
	if err != nil {
		telemetry.Warn("upload.extract_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"file_name":  name,
			"mime_type":  mimeType,
			"size_bytes": len(data),
			"error":      err,
		})
		message := "Failed to extract text from file"
		switch {
		case errors.Is(err, extract.ErrUnsupported):
			message = "Unsupported file type"
		case errors.Is(err, extract.ErrEmpty):
			message = "File contains no text"
		}
		respond.Error(c, http.StatusBadRequest, string(KindValidation), message, util.SingleLine(err.Error(), maxDetailsLength))
		return
	}
	h.run(c, text)
}

func (h *Handler) run(c *gin.Context, content string) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	result, err := h.Svc.SubmitAndAnalyze(ctx, content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("contentId", result.ID)
	respond.Success(c, result)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var perr *Error
	if !errors.As(err, &perr) {
		respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", "")
		return
	}
	if perr.ContentID != "" {
		c.Set("contentId", perr.ContentID)
	}
	details := ""
	if perr.Kind != KindValidation && perr.Err != nil {
		details = util.SingleLine(perr.Err.Error(), maxDetailsLength)
	}
	respond.Error(c, StatusFor(perr), string(perr.Kind), messageFor(perr), details)
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(perr *Error) int {
	switch perr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindProvider:
		if perr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(perr *Error) string {
	switch perr.Kind {
	case KindValidation:
		switch {
		case errors.Is(perr.Err, ErrEmptyContent):
			return "Content is required"
		case errors.Is(perr.Err, ErrInvalidEncoding):
			return "Content must be valid UTF-8"
		case errors.Is(perr.Err, ErrContentTooLarge):
			return "Content is too large"
		}
		return "Invalid content"
	case KindProvider:
		if perr.Timeout {
			return "Analysis provider timed out"
		}
		return "Analysis provider request failed"
	case KindResponseFormat:
		return "Analysis provider returned an invalid response"
	default:
		return "Failed to store analysis"
	}
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}
