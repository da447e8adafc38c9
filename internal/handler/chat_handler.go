package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	chatDomain "github.com/trailmark/service-telemetry/internal/domain/chat"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

const (
	defaultChatPageSize = 50
	maxChatPageSize     = 200
)

// ChatHandler serves the group chat journal.
type ChatHandler struct {
	service *application.ChatService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(service *application.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// RegisterRoutes registers the chat route family.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	chat := r.Group("/chat")
	chat.Use(middleware.Auth(jwtManager))
	{
		chat.POST("/:groupId/message/:userId", h.SendMessage)
		chat.POST("/:groupId/alert/:userId", h.SendAlert)
		chat.GET("/:groupId/history", h.History)
		chat.POST("/:groupId/read", h.MarkRead)
		chat.GET("/:groupId/unread", h.UnreadCount)
	}
}

type locationPayload struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (l *locationPayload) toDomain() *chatDomain.Location {
	if l == nil {
		return nil
	}
	return &chatDomain.Location{Lat: l.Lat, Lng: l.Lng}
}

type sendMessageRequest struct {
	Type     string           `json:"message_type"`
	Content  string           `json:"content" binding:"required"`
	Location *locationPayload `json:"location"`
}

// SendMessage appends a message to the group journal. The sender in the path
// must be the authenticated caller.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	senderID, ok := h.sender(c, p)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	msgType := chatDomain.MessageType(req.Type)
	if req.Type == "" {
		msgType = chatDomain.MessageTypeText
	}

	msg, err := h.service.SendMessage(c.Request.Context(), groupID, senderID, msgType, req.Content, req.Location.toDomain())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

type sendAlertRequest struct {
	AlertType string           `json:"alert_type" binding:"required"`
	Content   string           `json:"content"`
	Location  *locationPayload `json:"location"`
}

// SendAlert appends a structured group alert.
func (h *ChatHandler) SendAlert(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	senderID, ok := h.sender(c, p)
	if !ok {
		return
	}

	var req sendAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "alert_type is required")
		return
	}

	msg, err := h.service.SendAlert(c.Request.Context(), groupID, senderID, req.AlertType, req.Content, req.Location.toDomain())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// History returns a page of the group journal, newest first.
func (h *ChatHandler) History(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	limit := defaultChatPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxChatPageSize {
			n = maxChatPageSize
		}
		limit = n
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	messages, total, err := h.service.History(c.Request.Context(), groupID, p.UserID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"messages": messages,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

type markReadRequest struct {
	UpTo *time.Time `json:"up_to"`
}

// MarkRead adds the caller to read_by on the group's messages.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}

	if err := h.service.MarkRead(c.Request.Context(), groupID, p.UserID, req.UpTo); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"read": true})
}

// UnreadCount returns how many group messages the caller has not read.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), groupID, p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread": count})
}

// sender parses the userId path parameter and requires it to match the
// caller. Sending on someone else's behalf is forbidden.
func (h *ChatHandler) sender(c *gin.Context, p auth.Principal) (uuid.UUID, bool) {
	senderID, ok := pathUUID(c, "userId")
	if !ok {
		return uuid.Nil, false
	}
	if senderID != p.UserID {
		c.AbortWithStatusJSON(http.StatusForbidden,
			gin.H{"success": false, "error": "cannot send as another user"})
		return uuid.Nil, false
	}
	return senderID, true
}
