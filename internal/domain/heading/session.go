// Package heading models short-lived interactive heading sessions: a view
// cone anchored at the user's position, the POIs visible inside it, and the
// rolling alert list. Sessions live in an in-process cache owned by the
// heading service; this package only defines the data and its local behavior.
package heading

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/geo"
)

// State is the lifecycle state of a heading session.
type State string

const (
	StateActive State = "active"
	StatePaused State = "paused"
	StateEnded  State = "ended"
)

// Defaults for a new view cone.
const (
	DefaultApertureDeg = 60.0
	DefaultRangeM      = 500.0

	// ArcPoints is the number of arc vertices generated along the cone rim,
	// in addition to the apex.
	ArcPoints = 9

	// MaxUnacknowledgedAlerts bounds the rolling alert list.
	MaxUnacknowledgedAlerts = 5
)

// Position is the session holder's last reported position.
type Position struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Altitude *float64 `json:"altitude,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Heading  float64  `json:"heading"`
	Speed    *float64 `json:"speed,omitempty"`
}

// Vertex is one polygon point of the rendered view cone.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ViewCone is the circular sector filtering visible POIs.
type ViewCone struct {
	ApertureDeg float64  `json:"aperture_degrees"`
	RangeM      float64  `json:"range_meters"`
	Direction   float64  `json:"direction"`
	Vertices    []Vertex `json:"vertices"`
}

// Recompute regenerates the cone polygon: the apex plus ArcPoints points
// stepped linearly across the aperture, each RangeM away. Bearings are
// reduced mod 360.
func (c *ViewCone) Recompute(apex geo.Point, headingDeg float64) {
	c.Direction = math.Mod(headingDeg+360, 360)

	vertices := make([]Vertex, 0, 1+ArcPoints)
	vertices = append(vertices, Vertex{Lat: apex.Lat, Lng: apex.Lng})

	start := headingDeg - c.ApertureDeg/2
	step := c.ApertureDeg / float64(ArcPoints-1)
	for i := 0; i < ArcPoints; i++ {
		bearing := math.Mod(start+step*float64(i)+360, 360)
		p := geo.Destination(apex, bearing, c.RangeM)
		vertices = append(vertices, Vertex{Lat: p.Lat, Lng: p.Lng})
	}
	c.Vertices = vertices
}

// Wind is the last wind reading attached to the session.
type Wind struct {
	DirectionDeg float64 `json:"direction_deg"`
	SpeedKmh     float64 `json:"speed_kmh"`
	GustsKmh     float64 `json:"gusts_kmh"`
	Favorable    bool    `json:"favorable"`
}

// VisiblePOI is a catalogue entry projected into the live view.
type VisiblePOI struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type,omitempty"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	VisibleInCone bool      `json:"visible_in_cone"`
	DistanceM     float64   `json:"distance_m"`
	Bearing       float64   `json:"bearing"`
	RelativeAngle float64   `json:"relative_angle"`
	Priority      int       `json:"priority"`
	Icon          string    `json:"icon,omitempty"`
	Color         string    `json:"color,omitempty"`
}

// Alert is a session-scoped advisory shown in the live view.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"` // wind_change | poi_nearby
	Priority     string    `json:"priority"`
	Message      string    `json:"message"`
	POIName      string    `json:"poi_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// Session is one live heading session. Mutation happens only through the
// heading service, which guards the cache with its own lock.
type Session struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	State             State
	Position          Position
	ViewCone          ViewCone
	Wind              Wind
	VisiblePOIs       []VisiblePOI
	Alerts            []Alert
	POIsVisited       int
	AlertsTotal       int
	StartedAt         time.Time
	LastUpdate        time.Time
	EndedAt           *time.Time
	DurationSeconds   int64
	DistanceTraveledM float64
}

// NewSession creates an active heading session with the cone vertices
// precomputed.
func NewSession(userID uuid.UUID, lat, lng, headingDeg, apertureDeg, rangeM float64) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:     uuid.New(),
		UserID: userID,
		State:  StateActive,
		Position: Position{
			Lat:     lat,
			Lng:     lng,
			Heading: headingDeg,
		},
		ViewCone: ViewCone{
			ApertureDeg: apertureDeg,
			RangeM:      rangeM,
		},
		StartedAt:  now,
		LastUpdate: now,
	}
	s.ViewCone.Recompute(geo.Point{Lat: lat, Lng: lng}, headingDeg)
	return s
}

// Apex returns the cone apex, i.e. the current position.
func (s *Session) Apex() geo.Point {
	return geo.Point{Lat: s.Position.Lat, Lng: s.Position.Lng}
}

// Touch refreshes the last-update stamp and the derived duration.
func (s *Session) Touch(now time.Time) {
	s.LastUpdate = now.UTC()
	s.DurationSeconds = int64(s.LastUpdate.Sub(s.StartedAt).Seconds())
}

// UnacknowledgedOfType reports whether an unacknowledged alert of the given
// type is currently present.
func (s *Session) UnacknowledgedOfType(alertType string) bool {
	for _, a := range s.Alerts {
		if a.Type == alertType && !a.Acknowledged {
			return true
		}
	}
	return false
}

// HasAlertForPOI reports whether any current alert references the POI name.
func (s *Session) HasAlertForPOI(name string) bool {
	for _, a := range s.Alerts {
		if a.POIName == name {
			return true
		}
	}
	return false
}

// PushAlert appends an alert and trims the list to the most recent
// MaxUnacknowledgedAlerts unacknowledged entries (acknowledged ones drop out
// first).
func (s *Session) PushAlert(a Alert) {
	s.Alerts = append(s.Alerts, a)
	s.AlertsTotal++

	unack := make([]Alert, 0, len(s.Alerts))
	for _, al := range s.Alerts {
		if !al.Acknowledged {
			unack = append(unack, al)
		}
	}
	if len(unack) > MaxUnacknowledgedAlerts {
		unack = unack[len(unack)-MaxUnacknowledgedAlerts:]
	}
	s.Alerts = unack
}

// Summary is the digest returned when a session ends.
type Summary struct {
	SessionID         uuid.UUID  `json:"session_id"`
	DurationSeconds   int64      `json:"duration_seconds"`
	DistanceTraveledM float64    `json:"distance_traveled_m"`
	POIsVisited       int        `json:"pois_visited"`
	AlertsCount       int        `json:"alerts_count"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at"`
}
