package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
	"github.com/trailmark/service-telemetry/internal/ws"
)

// GroupHandler serves the group position fanout over HTTP and WebSocket.
type GroupHandler struct {
	service    *application.GroupShareService
	membership auth.MembershipChecker
	hub        *ws.Hub
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(
	service *application.GroupShareService,
	membership auth.MembershipChecker,
	hub *ws.Hub,
	jwtManager *auth.JWTManager,
	logger *zap.Logger,
) *GroupHandler {
	return &GroupHandler{
		service:    service,
		membership: membership,
		hub:        hub,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// RegisterRoutes registers the group tracking route family.
func (h *GroupHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	tracking := r.Group("/tracking")
	tracking.Use(middleware.Auth(jwtManager))
	{
		tracking.GET("/group/:groupId/positions", h.GroupPositions)
		tracking.POST("/group/:groupId/share", h.SharePosition)
		tracking.DELETE("/group/:groupId/share", h.StopSharing)
	}
}

// RegisterWSRoute registers the group room WebSocket route on the engine.
func (h *GroupHandler) RegisterWSRoute(r *gin.Engine, jwtManager *auth.JWTManager) {
	r.GET("/ws/group/:groupId", h.HandleWebSocket)
}

// GroupPositions returns the sharing members seen within the grace window.
func (h *GroupHandler) GroupPositions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	positions, err := h.service.GroupPositions(c.Request.Context(), groupID, p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"positions": positions, "count": len(positions)})
}

type sharePositionRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Heading *float64 `json:"heading"`
	Status  string   `json:"status"`
}

// SharePosition upserts the caller's position and fans it out to the group.
func (h *GroupHandler) SharePosition(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	var req sharePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "lat and lng are required")
		return
	}

	position, err := h.service.SharePosition(c.Request.Context(), groupID, p.UserID, *req.Lat, *req.Lng, req.Heading, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, position)
}

// StopSharing flips the caller's row to not-sharing.
func (h *GroupHandler) StopSharing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	if err := h.service.StopSharing(c.Request.Context(), groupID, p.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"sharing": false})
}

// HandleWebSocket upgrades the connection and subscribes the caller to the
// group room. Browsers cannot set headers on WebSocket handshakes, so the
// token rides a query parameter.
func (h *GroupHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return
	}

	p, err := h.jwtManager.ResolvePrincipal(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}

	if err := h.membership.RequireMembership(c.Request.Context(), p.UserID, groupID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is not a member of this group"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &ws.Client{
		Conn:    conn,
		GroupID: groupID,
		Send:    make(chan []byte, 256),
	}

	h.hub.Register(client)

	go client.WritePump(h.hub)
	go client.ReadPump(h.hub)
}
