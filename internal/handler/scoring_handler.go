package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

// ScoringHandler serves waypoint quality scores and the heatmap projection.
type ScoringHandler struct {
	service *application.ScoringService
}

// NewScoringHandler creates a ScoringHandler.
func NewScoringHandler(service *application.ScoringService) *ScoringHandler {
	return &ScoringHandler{service: service}
}

// RegisterRoutes registers the waypoint scoring route family.
func (h *ScoringHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	scoring := r.Group("/waypoint-scoring")
	scoring.Use(middleware.Auth(jwtManager))
	{
		scoring.GET("/wqs/:id", h.Score)
		scoring.GET("/heatmap", h.Heatmap)
	}
}

// Score computes a fresh quality score for one waypoint.
func (h *ScoringHandler) Score(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	waypointID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Score(c.Request.Context(), p.UserID, waypointID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Heatmap scores the caller's whole catalogue for map rendering.
func (h *ScoringHandler) Heatmap(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	points, err := h.service.Heatmap(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"points": points, "count": len(points)})
}
