// Package events defines the telemetry event stream: CloudEvent envelopes,
// the kafka producer, and the topics and event types this service emits.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicTrackingEvents = "telemetry.tracking"
	TopicTripEvents     = "telemetry.trips"
	TopicPositionStream = "telemetry.positions"
)

// Event types.
const (
	TrackingSessionStarted = "telemetry.tracking.session_started"
	TrackingSessionEnded   = "telemetry.tracking.session_ended"
	ProximityAlertEmitted  = "telemetry.tracking.proximity_alert"
	TripCompleted          = "telemetry.trip.completed"
)

// CloudEvent is the JSON envelope used on every topic.
type CloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`
}

// NewCloudEvent wraps a payload in a CloudEvent envelope.
func NewCloudEvent(source, eventType string, data interface{}) (*CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &CloudEvent{
		SpecVersion: "1.0",
		ID:          uuid.NewString(),
		Source:      source,
		Type:        eventType,
		Time:        time.Now().UTC(),
		Data:        raw,
	}, nil
}

// ParseCloudEvent decodes a CloudEvent envelope from raw bytes.
func ParseCloudEvent(raw []byte) (*CloudEvent, error) {
	var evt CloudEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// ParseData decodes the event payload into out.
func (e *CloudEvent) ParseData(out interface{}) error {
	return json.Unmarshal(e.Data, out)
}

// SessionStartedEvent is emitted when a tracking session begins.
type SessionStartedEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	UserID     uuid.UUID `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionEndedEvent is emitted when a tracking session ends.
type SessionEndedEvent struct {
	SessionID      uuid.UUID `json:"session_id"`
	UserID         uuid.UUID `json:"user_id"`
	DistanceKm     float64   `json:"distance_km"`
	LocationsCount int       `json:"locations_count"`
	EndedAt        time.Time `json:"ended_at"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ProximityAlertEvent is emitted when a proximity alert fires.
type ProximityAlertEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	WaypointID     uuid.UUID `json:"waypoint_id"`
	Classification string    `json:"classification"`
	DistanceMeters float64   `json:"distance_meters"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TripCompletedEvent mirrors the analytics projection for stream consumers.
type TripCompletedEvent struct {
	TripID            uuid.UUID `json:"trip_id"`
	UserID            uuid.UUID `json:"user_id"`
	TargetSpecies     string    `json:"target_species"`
	DurationHours     float64   `json:"duration_hours"`
	Success           bool      `json:"success"`
	ObservationsCount int       `json:"observations_count"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// PositionReportedEvent is the inbound payload on the position stream; mobile
// gateways publish here when clients batch-report instead of calling HTTP.
type PositionReportedEvent struct {
	UserID    uuid.UUID  `json:"user_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
