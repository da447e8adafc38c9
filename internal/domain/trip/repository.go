package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Projection is the denormalized analytics record emitted when a trip
// completes, shaped for read-heavy consumers.
type Projection struct {
	TripID            uuid.UUID
	UserID            uuid.UUID
	Title             string
	TargetSpecies     string
	Status            string
	StartTime         *time.Time
	EndTime           *time.Time
	DurationHours     float64
	Weather           string
	Temperature       *float64
	WindSpeed         *float64
	Success           bool
	ObservationsCount int
	VisitedCount      int
	ProjectedAt       time.Time
}

// Repository defines persistence operations for trips.
type Repository interface {
	Save(ctx context.Context, t *Trip) error
	Update(ctx context.Context, t *Trip) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Trip, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Trip, error)

	// ListStartedInBoundingBox returns the user's started trips whose recorded
	// start coordinates fall inside the box. Used as the WQS prefilter before
	// the exact haversine pass.
	ListStartedInBoundingBox(ctx context.Context, userID uuid.UUID, minLat, maxLat, minLng, maxLng float64) ([]*Trip, error)

	// SaveProjection persists the analytics projection for a completed trip.
	SaveProjection(ctx context.Context, p *Projection) error

	// FindProjection retrieves the analytics projection for a trip.
	FindProjection(ctx context.Context, tripID uuid.UUID) (*Projection, error)
}

// VisitRepository defines persistence operations for waypoint visits.
type VisitRepository interface {
	Save(ctx context.Context, v *Visit) error
	Update(ctx context.Context, v *Visit) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Visit, error)
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*Visit, error)
	ListByWaypoint(ctx context.Context, userID, waypointID uuid.UUID) ([]*Visit, error)
}

// ObservationRepository defines persistence operations for observations.
// Observations are append-only; there is no update.
type ObservationRepository interface {
	Save(ctx context.Context, o *Observation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Observation, error)
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*Observation, error)
	ListByWaypoint(ctx context.Context, userID, waypointID uuid.UUID) ([]*Observation, error)
	ListBySpecies(ctx context.Context, userID uuid.UUID, species string) ([]*Observation, error)
	CountByTrip(ctx context.Context, tripID uuid.UUID) (int64, error)
}
