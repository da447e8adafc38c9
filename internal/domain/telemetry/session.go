// Package telemetry models raw position ingestion: append-only location
// samples and the tracking sessions that segment them into outings.
package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// TrackingSession groups a user's positions into one contiguous outing.
// At most one session per user is active at any time.
type TrackingSession struct {
	id             uuid.UUID
	userID         uuid.UUID
	startedAt      time.Time
	endedAt        *time.Time
	active         bool
	locationsCount int
	distanceKm     float64
}

// NewTrackingSession creates an active session starting at the given instant.
func NewTrackingSession(userID uuid.UUID, startedAt time.Time) *TrackingSession {
	return &TrackingSession{
		id:        uuid.New(),
		userID:    userID,
		startedAt: startedAt.UTC(),
		active:    true,
	}
}

// --- Getters ---

func (s *TrackingSession) ID() uuid.UUID        { return s.id }
func (s *TrackingSession) UserID() uuid.UUID    { return s.userID }
func (s *TrackingSession) StartedAt() time.Time { return s.startedAt }
func (s *TrackingSession) EndedAt() *time.Time  { return s.endedAt }
func (s *TrackingSession) Active() bool         { return s.active }
func (s *TrackingSession) LocationsCount() int  { return s.locationsCount }
func (s *TrackingSession) DistanceKm() float64  { return s.distanceKm }

// --- Behavior ---

// End deactivates the session and records the total distance covered.
// Ending an already-ended session is idempotent.
func (s *TrackingSession) End(at time.Time, distanceKm float64) {
	if !s.active {
		return
	}
	ended := at.UTC()
	s.active = false
	s.endedAt = &ended
	s.distanceKm = distanceKm
}

// RecordSample increments the session's sample counter.
func (s *TrackingSession) RecordSample() {
	s.locationsCount++
}

// Reconstruct rebuilds a TrackingSession from persisted data.
func Reconstruct(
	id, userID uuid.UUID,
	startedAt time.Time,
	endedAt *time.Time,
	active bool,
	locationsCount int,
	distanceKm float64,
) *TrackingSession {
	return &TrackingSession{
		id:             id,
		userID:         userID,
		startedAt:      startedAt,
		endedAt:        endedAt,
		active:         active,
		locationsCount: locationsCount,
		distanceKm:     distanceKm,
	}
}

// LocationSample is one raw position report. Samples are append-only and
// never mutated after write.
type LocationSample struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SessionID *uuid.UUID
	Lat       float64
	Lng       float64
	Accuracy  *float64
	Altitude  *float64
	Heading   *float64
	Speed     *float64
	Timestamp time.Time
}

// NewLocationSample creates a validated sample with a generated UUID. A zero
// timestamp defaults to now.
func NewLocationSample(userID uuid.UUID, lat, lng float64, timestamp time.Time) (*LocationSample, error) {
	if lat < -90 || lat > 90 {
		return nil, domain.NewInvalidRequestError("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return nil, domain.NewInvalidRequestError("longitude must be between -180 and 180")
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return &LocationSample{
		ID:        uuid.New(),
		UserID:    userID,
		Lat:       lat,
		Lng:       lng,
		Timestamp: timestamp.UTC(),
	}, nil
}
