// Package auth resolves request principals. Authentication itself is an
// external collaborator; this package only validates bearer tokens and
// extracts the principal the rest of the service consumes.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the coarse user role carried in the token.
type Role string

const (
	RoleHunter    Role = "hunter"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleAnonymous Role = "anonymous"
)

// Principal identifies the acting user for a request.
type Principal struct {
	UserID    uuid.UUID
	Role      Role
	Anonymous bool
}

// AnonymousPrincipal is the fallback principal for endpoints documented to
// accept unauthenticated access (position recording, status reads).
var AnonymousPrincipal = Principal{Role: RoleAnonymous, Anonymous: true}

// Claims is the JWT claim set issued by the auth service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager validates access tokens.
type JWTManager struct {
	secret []byte
}

// NewJWTManager creates a manager for the given signing secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret)}
}

// ResolvePrincipal validates the token and returns the embedded principal.
func (m *JWTManager) ResolvePrincipal(tokenStr string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return Principal{}, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid user id in token: %w", err)
	}

	role := Role(claims.Role)
	if role == "" {
		role = RoleHunter
	}
	return Principal{UserID: userID, Role: role}, nil
}

// IssueToken signs a token for a principal. Used by tests and local tooling;
// production tokens come from the auth service.
func (m *JWTManager) IssueToken(userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
