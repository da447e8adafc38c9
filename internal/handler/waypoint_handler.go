package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

// WaypointHandler serves the waypoint catalogue CRUD.
type WaypointHandler struct {
	service *application.WaypointService
}

// NewWaypointHandler creates a WaypointHandler.
func NewWaypointHandler(service *application.WaypointService) *WaypointHandler {
	return &WaypointHandler{service: service}
}

// RegisterRoutes registers the waypoint route family.
func (h *WaypointHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	waypoints := r.Group("/waypoints")
	waypoints.Use(middleware.Auth(jwtManager))
	{
		waypoints.POST("", h.Create)
		waypoints.GET("", h.List)
		waypoints.GET("/:id", h.Get)
		waypoints.PUT("/:id", h.Update)
		waypoints.DELETE("/:id", h.Delete)
	}
}

// waypointDTO is the transport shape of a catalogue entry.
type waypointDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Type      string    `json:"type,omitempty"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWaypointDTO(wp *waypointDomain.Waypoint) waypointDTO {
	return waypointDTO{
		ID:        wp.ID,
		Name:      wp.Name,
		Lat:       wp.Lat,
		Lng:       wp.Lng,
		Type:      wp.Type,
		Color:     wp.Color,
		Icon:      wp.Icon,
		Priority:  wp.Priority,
		CreatedAt: wp.CreatedAt,
		UpdatedAt: wp.UpdatedAt,
	}
}

type createWaypointRequest struct {
	Name     string   `json:"name" binding:"required"`
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Type     string   `json:"type"`
	Color    string   `json:"color"`
	Icon     string   `json:"icon"`
	Priority int      `json:"priority"`
}

// Create adds a waypoint to the caller's catalogue.
func (h *WaypointHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createWaypointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, lat and lng are required")
		return
	}

	wp, err := h.service.Create(c.Request.Context(), p.UserID, application.UpsertWaypointInput{
		Name:     req.Name,
		Lat:      *req.Lat,
		Lng:      *req.Lng,
		Type:     req.Type,
		Color:    req.Color,
		Icon:     req.Icon,
		Priority: req.Priority,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toWaypointDTO(wp))
}

type updateWaypointRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Priority int    `json:"priority"`
}

// Update rewrites a waypoint's mutable metadata.
func (h *WaypointHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req updateWaypointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	wp, err := h.service.Update(c.Request.Context(), p.UserID, id, application.UpsertWaypointInput{
		Name:     req.Name,
		Type:     req.Type,
		Color:    req.Color,
		Icon:     req.Icon,
		Priority: req.Priority,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toWaypointDTO(wp))
}

// Get returns one waypoint owned by the caller.
func (h *WaypointHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	wp, err := h.service.Get(c.Request.Context(), p.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toWaypointDTO(wp))
}

// List returns the caller's full catalogue.
func (h *WaypointHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	waypoints, err := h.service.List(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]waypointDTO, len(waypoints))
	for i, wp := range waypoints {
		dtos[i] = toWaypointDTO(wp)
	}
	response.Success(c, dtos)
}

// Delete removes a waypoint from the catalogue.
func (h *WaypointHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), p.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
