package waypoint

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// DefaultPriority is assigned when a waypoint is created without an explicit
// priority. Priorities run 1 (lowest) to 10 (highest).
const DefaultPriority = 5

// Waypoint is a user-owned, fixed geographic point of interest.
// Coordinates are treated as immutable once created; name and metadata are
// mutable.
type Waypoint struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Lat       float64
	Lng       float64
	Type      string
	Color     string
	Icon      string
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a validated Waypoint with a generated UUID.
func New(userID uuid.UUID, name string, lat, lng float64) (*Waypoint, error) {
	if name == "" {
		return nil, domain.NewInvalidRequestError("waypoint name is required")
	}
	if lat < -90 || lat > 90 {
		return nil, domain.NewInvalidRequestError("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return nil, domain.NewInvalidRequestError("longitude must be between -180 and 180")
	}

	now := time.Now().UTC()
	return &Waypoint{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Lat:       lat,
		Lng:       lng,
		Priority:  DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rename updates the waypoint's mutable metadata.
func (w *Waypoint) Rename(name string) error {
	if name == "" {
		return domain.NewInvalidRequestError("waypoint name is required")
	}
	w.Name = name
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPriority clamps and assigns the waypoint's intrinsic priority.
func (w *Waypoint) SetPriority(p int) {
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	w.Priority = p
	w.UpdatedAt = time.Now().UTC()
}
