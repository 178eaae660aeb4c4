package organizations

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/response"
)

// Handler handles organization HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations/:type.
// Agencies send interest_categories and about; suppliers send
// service_categories and services_text.
type CreateOrganizationRequest struct {
	Name               string          `json:"name" binding:"required"`
	ContactName        string          `json:"contact_name" binding:"required"`
	Email              string          `json:"email" binding:"required,email"`
	Phone              string          `json:"phone"`
	Website            string          `json:"website"`
	LogoURL            string          `json:"logo_url"`
	Location           models.Location `json:"location"`
	InterestCategories []string        `json:"interest_categories"`
	About              string          `json:"about"`
	ServiceCategories  []string        `json:"service_categories"`
	ServicesText       string          `json:"services_text"`
	IsPublished        *bool           `json:"is_published"`
}

func (r CreateOrganizationRequest) input(t models.OrgType) CreateInput {
	in := CreateInput{
		Name:        r.Name,
		ContactName: r.ContactName,
		Email:       r.Email,
		Phone:       r.Phone,
		Website:     r.Website,
		LogoURL:     r.LogoURL,
		Location:    r.Location,
		Categories:  r.InterestCategories,
		About:       r.About,
		IsPublished: r.IsPublished,
	}
	if t == models.OrgTypeSupplier {
		in.Categories = r.ServiceCategories
		in.About = r.ServicesText
	}
	return in
}

// SetPublishedRequest is the body for PUT /organizations/:type/:id/published.
type SetPublishedRequest struct {
	IsPublished *bool `json:"is_published" binding:"required"`
}

// OrgType reads the :type path parameter. It writes a 404 and returns false
// for unknown types.
func OrgType(c *gin.Context) (models.OrgType, bool) {
	t, ok := models.ParseOrgType(c.Param("type"))
	if !ok {
		response.Fail(c, http.StatusNotFound, "Unknown organization type")
		return "", false
	}
	return t, true
}

// OrgID reads the :id path parameter.
func OrgID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /organizations/:type.
func (h *Handler) Create(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name, contact_name and a valid email are required")
		return
	}
	org, err := h.svc.Create(c.Request.Context(), middleware.IdentityFrom(c), t, body.input(t))
	if err != nil {
		h.fail(c, err, "Failed to create "+string(t))
		return
	}
	response.Created(c, label(t)+" created successfully", org)
}

// Update handles PATCH /organizations/:type/:id. Unknown fields are rejected.
func (h *Handler) Update(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	id, ok := OrgID(c)
	if !ok {
		return
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	var update models.OrganizationUpdate
	var err error
	switch t {
	case models.OrgTypeAgency:
		var u models.AgencyUpdate
		err = dec.Decode(&u)
		update = u
	case models.OrgTypeSupplier:
		var u models.SupplierUpdate
		err = dec.Decode(&u)
		update = u
	}
	if err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	org, err := h.svc.Update(c.Request.Context(), middleware.IdentityFrom(c), t, id, update)
	if err != nil {
		h.fail(c, err, "Failed to update "+string(t))
		return
	}
	response.OK(c, label(t)+" updated successfully", org)
}

// SetPublished handles PUT /organizations/:type/:id/published.
func (h *Handler) SetPublished(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	id, ok := OrgID(c)
	if !ok {
		return
	}
	var body SetPublishedRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "is_published required")
		return
	}
	org, err := h.svc.SetPublished(c.Request.Context(), middleware.IdentityFrom(c), t, id, *body.IsPublished)
	if err != nil {
		h.fail(c, err, "Failed to update publication status")
		return
	}
	msg := label(t) + " unpublished"
	if org.IsPublished {
		msg = label(t) + " published"
	}
	response.OK(c, msg, org)
}

// Get handles GET /organizations/:type/:id.
func (h *Handler) Get(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	id, ok := OrgID(c)
	if !ok {
		return
	}
	org, err := h.svc.Get(c.Request.Context(), middleware.IdentityFrom(c), t, id)
	if err != nil {
		h.fail(c, err, "Failed to load "+string(t))
		return
	}
	response.OK(c, "", org)
}

// ListPublished handles GET /organizations/:type?category=&location=&q=.
func (h *Handler) ListPublished(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	q := DirectoryQuery{
		Category: c.Query("category"),
		Location: c.Query("location"),
		Query:    c.Query("q"),
	}
	list, err := h.svc.ListPublished(c.Request.Context(), middleware.IdentityFrom(c), t, q)
	if err != nil {
		h.fail(c, err, "Failed to load organizations")
		return
	}
	response.OK(c, "", list)
}

// ListAll handles GET /organizations/:type/all.
func (h *Handler) ListAll(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	list, err := h.svc.ListAll(c.Request.Context(), middleware.IdentityFrom(c), t)
	if err != nil {
		h.fail(c, err, "Failed to load organizations")
		return
	}
	response.OK(c, "", list)
}

// Members handles GET /organizations/:type/:id/members.
func (h *Handler) Members(c *gin.Context) {
	t, ok := OrgType(c)
	if !ok {
		return
	}
	id, ok := OrgID(c)
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(c.Request.Context(), middleware.IdentityFrom(c), t, id)
	if err != nil {
		h.fail(c, err, "Failed to load members")
		return
	}
	response.OK(c, "", members)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	h.logger.Warn(fallback, zap.Error(err), zap.String("request_id", c.GetString(middleware.ContextRequestID)))
	response.Error(c, err, fallback)
}
