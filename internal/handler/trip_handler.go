package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

// TripHandler serves the trip lifecycle, visits, observations, and statistics.
type TripHandler struct {
	service *application.TripService
}

// NewTripHandler creates a TripHandler.
func NewTripHandler(service *application.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// RegisterRoutes registers the trip route family.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	trips := r.Group("/trips")
	trips.Use(middleware.Auth(jwtManager))
	{
		trips.POST("/create", h.CreateTrip)
		trips.POST("/start", h.StartTrip)
		trips.POST("/end", h.EndTrip)
		trips.POST("/cancel", h.CancelTrip)
		trips.GET("", h.ListTrips)
		trips.GET("/statistics", h.Statistics)
		trips.GET("/observations", h.ListObservations)
		trips.POST("/observations", h.LogObservation)
		trips.POST("/visits", h.LogVisit)
		trips.POST("/visits/:id/end", h.EndVisit)
		trips.GET("/:id", h.GetTrip)
	}
}

type createTripRequest struct {
	Title            string      `json:"title" binding:"required"`
	TargetSpecies    string      `json:"target_species"`
	PlannedDate      *time.Time  `json:"planned_date"`
	PlannedWaypoints []uuid.UUID `json:"planned_waypoints"`
}

// CreateTrip creates a planned trip.
func (h *TripHandler) CreateTrip(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title is required")
		return
	}

	trip, err := h.service.CreateTrip(c.Request.Context(), p.UserID, req.Title, req.TargetSpecies, req.PlannedDate, req.PlannedWaypoints)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, trip)
}

type startTripRequest struct {
	TripID      uuid.UUID `json:"trip_id" binding:"required"`
	Weather     string    `json:"weather"`
	Temperature *float64  `json:"temperature"`
	WindSpeed   *float64  `json:"wind_speed"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
}

// StartTrip transitions a planned trip to in_progress.
func (h *TripHandler) StartTrip(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req startTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "trip_id is required")
		return
	}
	if req.Lat != nil && req.Lng != nil && !validLatLng(*req.Lat, *req.Lng) {
		response.BadRequest(c, "coordinates out of range")
		return
	}

	trip, err := h.service.StartTrip(c.Request.Context(), p.UserID, req.TripID, application.StartTripInput{
		Weather:     req.Weather,
		Temperature: req.Temperature,
		WindSpeed:   req.WindSpeed,
		Lat:         req.Lat,
		Lng:         req.Lng,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, trip)
}

type endTripRequest struct {
	TripID  uuid.UUID `json:"trip_id" binding:"required"`
	Success bool      `json:"success"`
	Notes   string    `json:"notes"`
	Email   string    `json:"email"`
}

// EndTrip completes a trip and emits its analytics projection.
func (h *TripHandler) EndTrip(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req endTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "trip_id is required")
		return
	}

	trip, err := h.service.EndTrip(c.Request.Context(), p.UserID, req.TripID, req.Success, req.Notes, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, trip)
}

type cancelTripRequest struct {
	TripID uuid.UUID `json:"trip_id" binding:"required"`
}

// CancelTrip cancels a planned or in_progress trip.
func (h *TripHandler) CancelTrip(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req cancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "trip_id is required")
		return
	}

	trip, err := h.service.CancelTrip(c.Request.Context(), p.UserID, req.TripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, trip)
}

// GetTrip returns one trip owned by the caller.
func (h *TripHandler) GetTrip(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	tripID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	trip, err := h.service.GetTrip(c.Request.Context(), p.UserID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, trip)
}

// ListTrips returns the caller's trips, newest first.
func (h *TripHandler) ListTrips(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	trips, err := h.service.ListTrips(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, trips)
}

// Statistics returns the caller's aggregate trip statistics.
func (h *TripHandler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

type logObservationRequest struct {
	TripID         *uuid.UUID `json:"trip_id"`
	WaypointID     *uuid.UUID `json:"waypoint_id"`
	Type           string     `json:"type" binding:"required"`
	Species        string     `json:"species" binding:"required"`
	Count          int        `json:"count"`
	DistanceMeters *float64   `json:"distance_meters"`
	Direction      *string    `json:"direction"`
	Behavior       *string    `json:"behavior"`
	Lat            *float64   `json:"lat"`
	Lng            *float64   `json:"lng"`
}

// LogObservation appends a field observation.
func (h *TripHandler) LogObservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req logObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "type and species are required")
		return
	}
	if req.Lat != nil && req.Lng != nil && !validLatLng(*req.Lat, *req.Lng) {
		response.BadRequest(c, "coordinates out of range")
		return
	}

	count := req.Count
	if count == 0 {
		count = 1
	}

	obs, err := h.service.LogObservation(c.Request.Context(), p.UserID, application.LogObservationInput{
		TripID:         req.TripID,
		WaypointID:     req.WaypointID,
		Type:           tripDomain.ObservationType(req.Type),
		Species:        req.Species,
		Count:          count,
		DistanceMeters: req.DistanceMeters,
		Direction:      req.Direction,
		Behavior:       req.Behavior,
		Lat:            req.Lat,
		Lng:            req.Lng,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, obs)
}

// ListObservations queries observations by trip, waypoint, or species.
func (h *TripHandler) ListObservations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var tripID, waypointID *uuid.UUID
	if raw := c.Query("trip_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid trip_id format")
			return
		}
		tripID = &id
	}
	if raw := c.Query("waypoint_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid waypoint_id format")
			return
		}
		waypointID = &id
	}

	observations, err := h.service.ListObservations(c.Request.Context(), p.UserID, tripID, waypointID, c.Query("species"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, observations)
}

type logVisitRequest struct {
	WaypointID    uuid.UUID  `json:"waypoint_id" binding:"required"`
	TripID        *uuid.UUID `json:"trip_id"`
	Weather       string     `json:"weather"`
	ActivityLevel int        `json:"activity_level"`
}

// LogVisit records arrival at a waypoint.
func (h *TripHandler) LogVisit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req logVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "waypoint_id is required")
		return
	}

	visit, err := h.service.LogVisit(c.Request.Context(), p.UserID, req.WaypointID, req.TripID, req.Weather, req.ActivityLevel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visit)
}

// EndVisit closes a visit, deriving its duration.
func (h *TripHandler) EndVisit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	visitID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	visit, err := h.service.EndVisit(c.Request.Context(), p.UserID, visitID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, visit)
}
