// Package alerting models proximity alerts, the dedup ledger that implements
// the per-waypoint cool-down, the notifications journal, and push
// subscriptions.
package alerting

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Classification is the banded label of a waypoint quality score.
type Classification string

const (
	ClassHotspot  Classification = "hotspot"
	ClassGood     Classification = "good"
	ClassStandard Classification = "standard"
	ClassWeak     Classification = "weak"
)

// ProximityAlert is the payload emitted when a user comes within a waypoint's
// alert radius.
type ProximityAlert struct {
	WaypointID     uuid.UUID      `json:"waypoint_id"`
	WaypointName   string         `json:"waypoint_name"`
	WaypointType   string         `json:"waypoint_type,omitempty"`
	DistanceMeters float64        `json:"distance_meters"`
	WQSScore       float64        `json:"wqs_score"`
	Classification Classification `json:"classification"`
	AlertType      string         `json:"alert_type"`
	Message        string         `json:"message"`
}

// FormatDistance renders a distance for alert messages: "<int>m" below one
// kilometer, "X.Xkm" above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(meters))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// NewProximityAlert builds the alert payload for a waypoint at the given
// distance, with the message derived from the classification.
func NewProximityAlert(waypointID uuid.UUID, name, wpType string, distanceM, score float64, class Classification) ProximityAlert {
	fd := FormatDistance(distanceM)
	var message string
	switch class {
	case ClassHotspot:
		message = fmt.Sprintf("Hotspot '%s' at %s — excellent spot.", name, fd)
	case ClassGood:
		message = fmt.Sprintf("Waypoint '%s' at %s — strong potential.", name, fd)
	default:
		message = fmt.Sprintf("Approaching '%s' (%s).", name, fd)
	}

	return ProximityAlert{
		WaypointID:     waypointID,
		WaypointName:   name,
		WaypointType:   wpType,
		DistanceMeters: roundTenth(distanceM),
		WQSScore:       score,
		Classification: class,
		AlertType:      "proximity",
		Message:        message,
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// AlertRecord is the persisted dedup ledger entry for one emitted alert.
// A record exists for (user, waypoint) iff an alert was emitted for that pair
// within the cool-down window.
type AlertRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	WaypointID uuid.UUID
	Alert      ProximityAlert
	CreatedAt  time.Time
}

// Notification is the durable journal row behind every outbound push.
type Notification struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Payload []byte // JSON
	SentAt  time.Time
	Read    bool
}

// PushSubscription holds a user's single current Web Push subscription.
// Re-subscribing overwrites the previous endpoint.
type PushSubscription struct {
	UserID    uuid.UUID
	Endpoint  string
	KeyAuth   string
	KeyP256dh string
	CreatedAt time.Time
}

// DeliveryOutcome describes the result of pushing one notification.
type DeliveryOutcome string

const (
	DeliveryDelivered        DeliveryOutcome = "delivered"
	DeliveryDeferred         DeliveryOutcome = "deferred"
	DeliveryTransientFailure DeliveryOutcome = "failed_transient"
	DeliverySubscriptionGone DeliveryOutcome = "failed_subscription_gone"
)
