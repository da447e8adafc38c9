package trip

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// Visit records time spent at a waypoint, optionally attached to a trip.
type Visit struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	WaypointID        uuid.UUID
	TripID            *uuid.UUID
	ArrivalTime       time.Time
	DepartureTime     *time.Time
	DurationMinutes   *float64
	Weather           string
	ActivityLevel     int // 0-10
	Success           bool
	ObservationsCount int
}

// NewVisit creates a visit starting now.
func NewVisit(userID, waypointID uuid.UUID, tripID *uuid.UUID, weather string, activityLevel int) (*Visit, error) {
	if activityLevel < 0 || activityLevel > 10 {
		return nil, domain.NewInvalidRequestError("activity level must be between 0 and 10")
	}
	return &Visit{
		ID:            uuid.New(),
		UserID:        userID,
		WaypointID:    waypointID,
		TripID:        tripID,
		ArrivalTime:   time.Now().UTC(),
		Weather:       weather,
		ActivityLevel: activityLevel,
	}, nil
}

// Depart closes the visit, deriving duration_minutes. Departing an already
// closed visit is an invalid transition.
func (v *Visit) Depart(at time.Time) error {
	if v.DepartureTime != nil {
		return domain.NewInvalidStateError("departed", "departed")
	}
	departure := at.UTC()
	if departure.Before(v.ArrivalTime) {
		return domain.NewInvalidRequestError("departure time precedes arrival time")
	}
	minutes := math.Round(departure.Sub(v.ArrivalTime).Minutes()*100) / 100
	v.DepartureTime = &departure
	v.DurationMinutes = &minutes
	return nil
}
