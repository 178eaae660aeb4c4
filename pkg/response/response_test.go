package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindNotAuthenticated:       http.StatusUnauthorized,
		apperr.KindForbidden:              http.StatusForbidden,
		apperr.KindNotFound:               http.StatusNotFound,
		apperr.KindInvalidToken:           http.StatusNotFound,
		apperr.KindDuplicateEmail:         http.StatusConflict,
		apperr.KindEmailAlreadyRegistered: http.StatusConflict,
		apperr.KindInvalidState:           http.StatusConflict,
		apperr.KindAlreadyAccepted:        http.StatusConflict,
		apperr.KindAlreadyMember:          http.StatusConflict,
		apperr.KindExpired:                http.StatusGone,
		apperr.KindInvalidInput:           http.StatusBadRequest,
		apperr.KindInternal:               http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), kind.String())
	}
}

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(err error) (int, Body) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, err, "Failed to delete RFQ")
		var body Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	code, body := run(apperr.InvalidState("Only draft RFQs can be deleted"))
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, body.Success)
	assert.Equal(t, "Only draft RFQs can be deleted", body.Message)

	code, body = run(errors.New("pool closed"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to delete RFQ", body.Message)
}

func TestOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	OK(c, "RFQ sent to 2 supplier(s) successfully", gin.H{"invites_created": 2})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"RFQ sent to 2 supplier(s) successfully","data":{"invites_created":2}}`, w.Body.String())
}
