// Package response renders the JSON envelope used by every endpoint and is
// the single place where domain error kinds become HTTP status codes.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// Success writes a 200 envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Paginated writes a 200 envelope with paging metadata.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// BadRequest writes a 400 envelope with the given message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

// Error translates a domain error to its transport status:
// NotFound 404, InvalidRequest 400, InvalidState 409, PermissionDenied 403,
// ConstraintViolation 400, TransientFailure 503, DependencyGone 410.
// Anything else is a 500.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindInvalidRequest:
		status = http.StatusBadRequest
	case domain.KindInvalidState:
		status = http.StatusConflict
	case domain.KindPermissionDenied:
		status = http.StatusForbidden
	case domain.KindConstraintViolation:
		status = http.StatusBadRequest
	case domain.KindTransientFailure:
		status = http.StatusServiceUnavailable
	case domain.KindDependencyGone:
		status = http.StatusGone
	}

	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
