package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

// HeadingHandler serves the live heading sessions and their view cones.
type HeadingHandler struct {
	service *application.HeadingService
}

// NewHeadingHandler creates a HeadingHandler.
func NewHeadingHandler(service *application.HeadingService) *HeadingHandler {
	return &HeadingHandler{service: service}
}

// RegisterRoutes registers the live heading route family.
func (h *HeadingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	heading := r.Group("/live-heading")
	heading.Use(middleware.Auth(jwtManager))
	{
		heading.POST("/session", h.CreateSession)
		heading.POST("/position", h.UpdatePosition)
		heading.PUT("/settings", h.UpdateSettings)
		heading.POST("/session/:id/pause", h.Pause)
		heading.POST("/session/:id/resume", h.Resume)
		heading.POST("/session/:id/end", h.EndSession)
		heading.POST("/session/:id/alerts/:alertId/ack", h.AcknowledgeAlert)
		heading.GET("/session/:id", h.GetSession)
	}
}

type createHeadingSessionRequest struct {
	Lat         *float64 `json:"lat" binding:"required"`
	Lng         *float64 `json:"lng" binding:"required"`
	Heading     float64  `json:"heading"`
	ApertureDeg float64  `json:"aperture_deg"`
	RangeM      float64  `json:"range_m"`
}

// CreateSession opens a live heading session. Omitted aperture and range
// select the defaults.
func (h *HeadingHandler) CreateSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createHeadingSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "lat and lng are required")
		return
	}
	if !validLatLng(*req.Lat, *req.Lng) {
		response.BadRequest(c, "coordinates out of range")
		return
	}
	if !validAperture(req.ApertureDeg) || !validRange(req.RangeM) {
		response.BadRequest(c, "aperture_deg must be in (0,180] and range_m in (0,10000]")
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), p.UserID, *req.Lat, *req.Lng, req.Heading, req.ApertureDeg, req.RangeM)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

type updateHeadingPositionRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	Lat       *float64  `json:"lat" binding:"required"`
	Lng       *float64  `json:"lng" binding:"required"`
	Altitude  *float64  `json:"altitude"`
	Accuracy  *float64  `json:"accuracy"`
	Heading   float64   `json:"heading"`
	Speed     *float64  `json:"speed"`
}

// UpdatePosition moves an active session and returns the recomputed view.
func (h *HeadingHandler) UpdatePosition(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updateHeadingPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id, lat and lng are required")
		return
	}
	if !validLatLng(*req.Lat, *req.Lng) {
		response.BadRequest(c, "coordinates out of range")
		return
	}

	session, err := h.service.UpdatePosition(c.Request.Context(), p.UserID, req.SessionID, application.UpdateHeadingPositionInput{
		Lat:      *req.Lat,
		Lng:      *req.Lng,
		Altitude: req.Altitude,
		Accuracy: req.Accuracy,
		Heading:  req.Heading,
		Speed:    req.Speed,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

type updateHeadingSettingsRequest struct {
	SessionID   uuid.UUID `json:"session_id" binding:"required"`
	ApertureDeg *float64  `json:"aperture_deg"`
	RangeM      *float64  `json:"range_m"`
}

// UpdateSettings adjusts the cone aperture and/or range.
func (h *HeadingHandler) UpdateSettings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updateHeadingSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id is required")
		return
	}
	if req.ApertureDeg != nil && (*req.ApertureDeg <= 0 || *req.ApertureDeg > 180) {
		response.BadRequest(c, "aperture_deg must be in (0,180]")
		return
	}
	if req.RangeM != nil && (*req.RangeM <= 0 || *req.RangeM > 10000) {
		response.BadRequest(c, "range_m must be in (0,10000]")
		return
	}

	session, err := h.service.UpdateSettings(c.Request.Context(), p.UserID, req.SessionID, req.ApertureDeg, req.RangeM)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// Pause suspends an active session.
func (h *HeadingHandler) Pause(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.Pause(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// Resume reactivates a paused session.
func (h *HeadingHandler) Resume(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.Resume(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// EndSession closes the session and returns the summary digest.
func (h *HeadingHandler) EndSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.EndSession(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// AcknowledgeAlert marks one session alert as acknowledged.
func (h *HeadingHandler) AcknowledgeAlert(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	alertID, ok := pathUUID(c, "alertId")
	if !ok {
		return
	}

	session, err := h.service.AcknowledgeAlert(c.Request.Context(), p.UserID, sessionID, alertID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// GetSession returns the live view of a session.
func (h *HeadingHandler) GetSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// validAperture accepts zero (meaning "use the default") or a value in
// (0,180].
func validAperture(deg float64) bool {
	return deg == 0 || (deg > 0 && deg <= 180)
}

// validRange accepts zero (meaning "use the default") or a value in
// (0,10000].
func validRange(m float64) bool {
	return m == 0 || (m > 0 && m <= 10000)
}
