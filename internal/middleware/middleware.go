// Package middleware provides the gin middleware chain: request ids, request
// logging, panic recovery, CORS, and principal resolution.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	principalKey    = "principal"
)

// RequestID assigns each request a UUID, honoring an inbound header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Logger logs each request with latency and status.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Recovery converts panics into 500 responses.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"success": false, "error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// CORS allows cross-origin requests from configured clients.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
	return cors.New(cfg)
}

// Auth resolves the bearer token to a principal and rejects requests without
// a valid one.
func Auth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := resolve(c, jwtManager)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"success": false, "error": "missing or invalid token"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// AuthOrAnonymous resolves the bearer token when present and falls back to
// the anonymous principal otherwise. Only routes documented to accept
// anonymous access (position recording, status reads) use this.
func AuthOrAnonymous(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := resolve(c, jwtManager); ok {
			c.Set(principalKey, principal)
		} else {
			c.Set(principalKey, auth.AnonymousPrincipal)
		}
		c.Next()
	}
}

func resolve(c *gin.Context, jwtManager *auth.JWTManager) (auth.Principal, bool) {
	var token string
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else {
		// Accept ?token= for WebSocket upgrades where headers are awkward.
		token = c.Query("token")
	}
	if token == "" {
		return auth.Principal{}, false
	}

	principal, err := jwtManager.ResolvePrincipal(token)
	if err != nil {
		return auth.Principal{}, false
	}
	return principal, true
}

// GetPrincipal extracts the resolved principal from the request context.
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
