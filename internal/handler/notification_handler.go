package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationHandler serves the per-user notification journal.
type NotificationHandler struct {
	service *application.PushService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(service *application.PushService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// RegisterRoutes registers the notification route family.
func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.Auth(jwtManager))
	{
		notifications.GET("", h.List)
		notifications.POST("/:id/read", h.MarkRead)
	}
}

// List returns the caller's notification journal, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxNotificationLimit {
			n = maxNotificationLimit
		}
		limit = n
	}

	notifications, err := h.service.ListNotifications(c.Request.Context(), p.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, notifications)
}

// MarkRead flags one journal entry as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(c.Request.Context(), p.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"read": true})
}
