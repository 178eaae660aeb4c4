package rfqs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eventmarket/backend/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, zaptest.NewLogger(t))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.POST("/rfqs", h.Create)
	r.GET("/rfqs/:id", h.Get)
	r.PATCH("/rfqs/:id", h.Update)
	r.DELETE("/rfqs/:id", h.Delete)
	r.POST("/rfqs/:id/send", h.Send)
	r.POST("/rfqs/:id/attachments/upload-url", h.AttachmentUploadURL)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHandlerLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f.service(f.store, ScopeAny, nil))

	w, env := do(t, r, http.MethodPost, "/rfqs", "agent", map[string]any{
		"title":             "Product launch",
		"client_name":       "Fabrikam",
		"scope":             "AV and staging",
		"response_deadline": "2026-05-01T17:00:00Z",
		"agency_id":         f.otherID,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var created struct {
		ID       string `json:"id"`
		AgencyID string `json:"agency_id"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, f.agencyID.String(), created.AgencyID, "agency comes from the caller's profile")
	assert.Equal(t, "draft", created.Status)

	w, env = do(t, r, http.MethodPatch, "/rfqs/"+created.ID, "agent", map[string]any{"budget": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = do(t, r, http.MethodPost, "/rfqs/"+created.ID+"/send", "agent", map[string]any{"supplier_ids": f.suppliers})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, "RFQ sent to 3 supplier(s) successfully", env.Message)
	var report SendReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.InvitesCreated)

	w, env = do(t, r, http.MethodPost, "/rfqs/"+created.ID+"/send", "agent", map[string]any{"supplier_ids": f.suppliers})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Only draft RFQs can be sent", env.Message)

	w, _ = do(t, r, http.MethodDelete, "/rfqs/"+created.ID, "agent", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/rfqs/"+created.ID, "rival", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodGet, "/rfqs/"+created.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodGet, "/rfqs/not-a-uuid", "agent", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodPost, "/rfqs/"+created.ID+"/attachments/upload-url", "agent",
		map[string]any{"filename": "brief.pdf", "size": 1024})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
}
