// Package handler exposes the HTTP and WebSocket surface. Handlers parse and
// validate transport input, resolve the acting principal, and delegate to the
// application services; domain errors map to statuses in internal/response.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, restrict to specific origins.
		return true
	},
}

// principal returns the resolved principal for the request. The auth
// middleware guarantees one on protected routes.
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			gin.H{"success": false, "error": "missing or invalid token"})
		return auth.Principal{}, false
	}
	return p, true
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
