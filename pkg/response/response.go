package response

import (
	"net/http"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Message: message, Data: data})
}

// Fail sends a failure envelope with the given status.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Body{Success: false, Message: message})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, message)
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, message string) {
	Fail(c, http.StatusServiceUnavailable, message)
}

// Internal sends 500.
func Internal(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}

// Status maps an error kind to an HTTP status code.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotAuthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound, apperr.KindInvalidToken:
		return http.StatusNotFound
	case apperr.KindDuplicateEmail, apperr.KindEmailAlreadyRegistered,
		apperr.KindInvalidState, apperr.KindAlreadyAccepted, apperr.KindAlreadyMember:
		return http.StatusConflict
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error renders err as a failure envelope. Internal errors show fallback
// instead of their cause.
func Error(c *gin.Context, err error, fallback string) {
	Fail(c, Status(apperr.KindOf(err)), apperr.Message(err, fallback))
}
