package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000

	defaultHotspotRadiusKm = 5.0
)

// GeolocationHandler serves position ingestion, tracking sessions, push
// subscriptions, and the proximity endpoints.
type GeolocationHandler struct {
	tracking  *application.TrackingService
	proximity *application.ProximityService
	scoring   *application.ScoringService
	pushes    *application.PushService
	logger    *zap.Logger
}

// NewGeolocationHandler creates a GeolocationHandler.
func NewGeolocationHandler(
	tracking *application.TrackingService,
	proximity *application.ProximityService,
	scoring *application.ScoringService,
	pushes *application.PushService,
	logger *zap.Logger,
) *GeolocationHandler {
	return &GeolocationHandler{
		tracking:  tracking,
		proximity: proximity,
		scoring:   scoring,
		pushes:    pushes,
		logger:    logger,
	}
}

// RegisterRoutes registers the geolocation route family.
func (h *GeolocationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	g := r.Group("/geolocation")

	// Position recording is documented to accept anonymous reporters.
	g.POST("/location", middleware.AuthOrAnonymous(jwtManager), h.RecordPosition)

	authed := g.Group("")
	authed.Use(middleware.Auth(jwtManager))
	{
		authed.GET("/history", h.History)
		authed.POST("/session/start", h.StartSession)
		authed.GET("/session/active", h.ActiveSession)
		authed.POST("/session/:id/end", h.EndSession)
		authed.GET("/session/:id/route", h.SessionRoute)
		authed.POST("/subscribe", h.Subscribe)
		authed.DELETE("/subscribe", h.Unsubscribe)
		authed.GET("/nearby-hotspots", h.NearbyHotspots)
		authed.POST("/check-proximity", h.CheckProximity)
	}
}

type recordPositionRequest struct {
	Lat       *float64   `json:"lat" binding:"required"`
	Lng       *float64   `json:"lng" binding:"required"`
	Accuracy  *float64   `json:"accuracy"`
	Altitude  *float64   `json:"altitude"`
	Heading   *float64   `json:"heading"`
	Speed     *float64   `json:"speed"`
	Timestamp *time.Time `json:"timestamp"`
	SessionID *uuid.UUID `json:"session_id"`
}

// RecordPosition saves one position sample and returns it with any proximity
// alerts it triggered.
func (h *GeolocationHandler) RecordPosition(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req recordPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "lat and lng are required")
		return
	}

	sessionID := req.SessionID
	if raw := c.Query("session_id"); sessionID == nil && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid session_id format")
			return
		}
		sessionID = &id
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	result, err := h.tracking.RecordPosition(c.Request.Context(), p.UserID, application.RecordPositionInput{
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Accuracy:  req.Accuracy,
		Altitude:  req.Altitude,
		Heading:   req.Heading,
		Speed:     req.Speed,
		Timestamp: ts,
		SessionID: sessionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// History returns recent samples, for one session or across the user.
func (h *GeolocationHandler) History(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var sessionID *uuid.UUID
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid session_id format")
			return
		}
		sessionID = &id
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	samples, err := h.tracking.History(c.Request.Context(), p.UserID, sessionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, samples)
}

// StartSession opens a tracking session, closing any previous active one.
func (h *GeolocationHandler) StartSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	session, err := h.tracking.StartSession(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// ActiveSession returns the user's current active tracking session.
func (h *GeolocationHandler) ActiveSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	session, err := h.tracking.GetActiveSession(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// EndSession closes a tracking session and reports the derived distance.
func (h *GeolocationHandler) EndSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.tracking.EndSession(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// SessionRoute returns the session polyline as GeoJSON.
func (h *GeolocationHandler) SessionRoute(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	raw, err := h.tracking.SessionRouteGeoJSON(c.Request.Context(), p.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", raw)
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		Auth   string `json:"auth" binding:"required"`
		P256dh string `json:"p256dh" binding:"required"`
	} `json:"keys" binding:"required"`
}

// Subscribe stores the caller's Web Push subscription.
func (h *GeolocationHandler) Subscribe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "endpoint and keys are required")
		return
	}

	if err := h.pushes.Subscribe(c.Request.Context(), p.UserID, req.Endpoint, req.Keys.Auth, req.Keys.P256dh); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"subscribed": true})
}

// Unsubscribe removes the caller's push subscription.
func (h *GeolocationHandler) Unsubscribe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.pushes.Unsubscribe(c.Request.Context(), p.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"subscribed": false})
}

// NearbyHotspots scores the user's waypoints within a radius of the position.
func (h *GeolocationHandler) NearbyHotspots(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	lat, lng, ok := queryLatLng(c)
	if !ok {
		return
	}

	radiusKm := defaultHotspotRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			response.BadRequest(c, "radius_km must be a positive number")
			return
		}
		radiusKm = r
	}

	hotspots, err := h.scoring.NearbyHotspots(c.Request.Context(), p.UserID, lat, lng, radiusKm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, hotspots)
}

type checkProximityRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// CheckProximity runs a manual proximity scan for the given position.
func (h *GeolocationHandler) CheckProximity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req checkProximityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "lat and lng are required")
		return
	}
	if !validLatLng(*req.Lat, *req.Lng) {
		response.BadRequest(c, "coordinates out of range")
		return
	}

	alerts, err := h.proximity.EvaluatePosition(c.Request.Context(), p.UserID, *req.Lat, *req.Lng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"alerts": alerts})
}

func validLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// queryLatLng parses required lat/lng query parameters with range checks.
func queryLatLng(c *gin.Context) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "lat is required")
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		response.BadRequest(c, "lng is required")
		return 0, 0, false
	}
	if !validLatLng(lat, lng) {
		response.BadRequest(c, "coordinates out of range")
		return 0, 0, false
	}
	return lat, lng, true
}
