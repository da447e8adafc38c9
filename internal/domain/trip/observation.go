package trip

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// ObservationType classifies a field observation.
type ObservationType string

const (
	ObservationSighting ObservationType = "sighting"
	ObservationTracks   ObservationType = "tracks"
	ObservationSounds   ObservationType = "sounds"
	ObservationSigns    ObservationType = "signs"
	ObservationHarvest  ObservationType = "harvest"
)

// IsValid returns true if the observation type is recognized.
func (o ObservationType) IsValid() bool {
	switch o {
	case ObservationSighting, ObservationTracks, ObservationSounds, ObservationSigns, ObservationHarvest:
		return true
	}
	return false
}

// Observation is an append-only record of something seen, heard, or taken in
// the field.
type Observation struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TripID         *uuid.UUID
	WaypointID     *uuid.UUID
	Type           ObservationType
	Species        string
	Count          int
	DistanceMeters *float64
	Direction      *string
	Behavior       *string
	Lat            *float64
	Lng            *float64
	Timestamp      time.Time
}

// NewObservation creates a validated observation timestamped now.
func NewObservation(userID uuid.UUID, obsType ObservationType, species string, count int) (*Observation, error) {
	if !obsType.IsValid() {
		return nil, domain.NewInvalidRequestError("invalid observation type: " + string(obsType))
	}
	if species == "" {
		return nil, domain.NewInvalidRequestError("species is required")
	}
	if count < 1 {
		count = 1
	}
	return &Observation{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      obsType,
		Species:   species,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}, nil
}
