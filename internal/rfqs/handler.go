package rfqs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/response"
	"github.com/eventmarket/backend/pkg/storage"
)

// Handler handles RFQ HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an RFQ handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRfqRequest is the body for POST /rfqs. An agency_id in the body is
// ignored; the RFQ always belongs to the caller's agency.
type CreateRfqRequest struct {
	Title            string            `json:"title" binding:"required"`
	ClientName       string            `json:"client_name" binding:"required"`
	EventDates       *models.DateRange `json:"event_dates"`
	Venue            string            `json:"venue"`
	Scope            string            `json:"scope" binding:"required"`
	Attachments      []string          `json:"attachments"`
	ResponseDeadline time.Time         `json:"response_deadline" binding:"required"`
}

// SendRfqRequest is the body for POST /rfqs/:id/send.
type SendRfqRequest struct {
	SupplierIDs []uuid.UUID `json:"supplier_ids" binding:"required"`
}

// AttachmentsRequest is the body for PUT /rfqs/:id/attachments.
type AttachmentsRequest struct {
	Attachments []string `json:"attachments"`
}

// UploadURLRequest is the body for upload URL endpoints.
type UploadURLRequest struct {
	Filename string `json:"filename" binding:"required"`
	Size     int64  `json:"size" binding:"required"`
}

// InviteStatusRequest is the body for PATCH /rfq-invites/:id/status.
type InviteStatusRequest struct {
	Status models.InviteStatus `json:"status" binding:"required"`
}

// ID reads a uuid path parameter. It writes a 400 and returns false when
// the parameter is malformed.
func ID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /rfqs.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRfqRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "title, client_name, scope and response_deadline are required")
		return
	}
	r, err := h.svc.Create(c.Request.Context(), middleware.IdentityFrom(c), CreateInput{
		Title:            body.Title,
		ClientName:       body.ClientName,
		EventDates:       body.EventDates,
		Venue:            body.Venue,
		Scope:            body.Scope,
		Attachments:      body.Attachments,
		ResponseDeadline: body.ResponseDeadline,
	})
	if err != nil {
		h.fail(c, err, "Failed to create RFQ")
		return
	}
	response.Created(c, "RFQ created successfully", r)
}

// List handles GET /rfqs.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		h.fail(c, err, "Failed to load RFQs")
		return
	}
	response.OK(c, "", list)
}

// Get handles GET /rfqs/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	r, err := h.svc.Get(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		h.fail(c, err, "Failed to load RFQ")
		return
	}
	response.OK(c, "", r)
}

// Update handles PATCH /rfqs/:id. Unknown fields are rejected.
func (h *Handler) Update(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	var body models.RfqUpdate
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		response.BadRequest(c, "invalid RFQ update: "+err.Error())
		return
	}
	r, err := h.svc.Update(c.Request.Context(), middleware.IdentityFrom(c), id, body)
	if err != nil {
		h.fail(c, err, "Failed to update RFQ")
		return
	}
	response.OK(c, "RFQ updated successfully", r)
}

// Delete handles DELETE /rfqs/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		h.fail(c, err, "Failed to delete RFQ")
		return
	}
	response.OK(c, "RFQ deleted successfully", nil)
}

// Send handles POST /rfqs/:id/send.
func (h *Handler) Send(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	var body SendRfqRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "supplier_ids required")
		return
	}
	report, err := h.svc.Send(c.Request.Context(), middleware.IdentityFrom(c), id, body.SupplierIDs)
	if err != nil {
		h.fail(c, err, "Failed to send RFQ")
		return
	}
	response.OK(c, sentMessage(report.InvitesCreated), report)
}

func sentMessage(n int) string {
	return fmt.Sprintf("RFQ sent to %d supplier(s) successfully", n)
}

// UpdateAttachments handles PUT /rfqs/:id/attachments.
func (h *Handler) UpdateAttachments(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	var body AttachmentsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "attachments must be a list of URLs")
		return
	}
	r, err := h.svc.UpdateAttachments(c.Request.Context(), middleware.IdentityFrom(c), id, body.Attachments)
	if err != nil {
		h.fail(c, err, "Failed to update attachments")
		return
	}
	response.OK(c, "Attachments updated", r)
}

// AttachmentUploadURL handles POST /rfqs/:id/attachments/upload-url.
func (h *Handler) AttachmentUploadURL(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	var body UploadURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename and size required")
		return
	}
	up, err := h.svc.AttachmentUploadURL(c.Request.Context(), middleware.IdentityFrom(c), id, body.Filename, body.Size)
	if err != nil {
		h.fail(c, err, "Failed to create upload URL")
		return
	}
	response.OK(c, "", up)
}

// Invites handles GET /rfqs/:id/invites.
func (h *Handler) Invites(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.InvitesForRfq(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		h.fail(c, err, "Failed to load RFQ invites")
		return
	}
	response.OK(c, "", list)
}

// SupplierInvites handles GET /rfq-invites.
func (h *Handler) SupplierInvites(c *gin.Context) {
	list, err := h.svc.InvitesForSupplier(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		h.fail(c, err, "Failed to load RFQ invites")
		return
	}
	response.OK(c, "", list)
}

// UpdateInviteStatus handles PATCH /rfq-invites/:id/status.
func (h *Handler) UpdateInviteStatus(c *gin.Context) {
	id, ok := ID(c, "id")
	if !ok {
		return
	}
	var body InviteStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	inv, err := h.svc.UpdateInviteStatus(c.Request.Context(), middleware.IdentityFrom(c), id, body.Status)
	if err != nil {
		h.fail(c, err, "Failed to update RFQ invite")
		return
	}
	response.OK(c, "RFQ invite updated", inv)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	if errors.Is(err, storage.ErrDisabled) {
		response.ServiceUnavailable(c, "File uploads are not configured")
		return
	}
	h.logger.Warn(fallback, zap.Error(err), zap.String("request_id", c.GetString(middleware.ContextRequestID)))
	response.Error(c, err, fallback)
}
