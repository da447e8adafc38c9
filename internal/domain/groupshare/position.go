// Package groupshare models last-known positions shared among members of a
// hunting group. One row exists per (group, member); successive updates
// overwrite in write-arrival order, converging to the last writer's value.
package groupshare

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// SharingGraceWindow is how long a position stays visible to the group after
// its last update. Sharing that stopped keeps its final coordinates for the
// same grace period.
const SharingGraceWindow = 30 * time.Minute

// Position is one member's shared position within a group.
type Position struct {
	GroupID   uuid.UUID
	UserID    uuid.UUID
	Lat       float64
	Lng       float64
	Heading   *float64
	Status    string
	IsSharing bool
	UpdatedAt time.Time
}

// NewPosition creates a validated shared position stamped now.
func NewPosition(groupID, userID uuid.UUID, lat, lng float64, heading *float64, status string) (*Position, error) {
	if lat < -90 || lat > 90 {
		return nil, domain.NewInvalidRequestError("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return nil, domain.NewInvalidRequestError("longitude must be between -180 and 180")
	}
	return &Position{
		GroupID:   groupID,
		UserID:    userID,
		Lat:       lat,
		Lng:       lng,
		Heading:   heading,
		Status:    status,
		IsSharing: true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
