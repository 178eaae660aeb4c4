package quotations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/rfqs"
	"github.com/eventmarket/backend/pkg/response"
	"github.com/eventmarket/backend/pkg/storage"
)

// Handler handles quotation HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a quotations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// SubmitRequest is the body for POST /rfq-invites/:id/quotations.
type SubmitRequest struct {
	PdfURL string `json:"pdf_url" binding:"required"`
	Notes  string `json:"notes"`
}

// Submit handles POST /rfq-invites/:id/quotations.
func (h *Handler) Submit(c *gin.Context) {
	id, ok := rfqs.ID(c, "id")
	if !ok {
		return
	}
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "pdf_url required")
		return
	}
	q, err := h.svc.Submit(c.Request.Context(), middleware.IdentityFrom(c), id,
		SubmitInput{PdfURL: body.PdfURL, Notes: body.Notes})
	if err != nil {
		h.fail(c, err, "Failed to submit quotation")
		return
	}
	response.Created(c, "Quotation submitted successfully", q)
}

// List handles GET /rfq-invites/:id/quotations.
func (h *Handler) List(c *gin.Context) {
	id, ok := rfqs.ID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		h.fail(c, err, "Failed to load quotations")
		return
	}
	response.OK(c, "", list)
}

// UploadURL handles POST /rfq-invites/:id/quotations/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	id, ok := rfqs.ID(c, "id")
	if !ok {
		return
	}
	var body rfqs.UploadURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename and size required")
		return
	}
	up, err := h.svc.UploadURL(c.Request.Context(), middleware.IdentityFrom(c), id, body.Filename, body.Size)
	if err != nil {
		h.fail(c, err, "Failed to create upload URL")
		return
	}
	response.OK(c, "", up)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	if errors.Is(err, storage.ErrDisabled) {
		response.ServiceUnavailable(c, "File uploads are not configured")
		return
	}
	h.logger.Warn(fallback, zap.Error(err), zap.String("request_id", c.GetString(middleware.ContextRequestID)))
	response.Error(c, err, fallback)
}
