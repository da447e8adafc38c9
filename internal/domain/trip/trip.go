package trip

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// Status represents the lifecycle state of a trip. Transitions are monotone:
// planned -> in_progress -> completed, with cancelled as a terminal branch.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Trip is the aggregate root for a single hunting outing.
type Trip struct {
	id                uuid.UUID
	userID            uuid.UUID
	title             string
	targetSpecies     string
	status            Status
	plannedDate       *time.Time
	startTime         *time.Time
	endTime           *time.Time
	durationHours     float64
	weather           string
	temperature       *float64
	windSpeed         *float64
	lat               *float64
	lng               *float64
	success           bool
	plannedWaypoints  []uuid.UUID
	visitedWaypoints  []uuid.UUID
	observationsCount int
	notes             string
	createdAt         time.Time
	updatedAt         time.Time
}

// New creates a planned trip.
func New(userID uuid.UUID, title, targetSpecies string, plannedDate *time.Time, plannedWaypoints []uuid.UUID) (*Trip, error) {
	if title == "" {
		return nil, domain.NewInvalidRequestError("trip title is required")
	}

	now := time.Now().UTC()
	return &Trip{
		id:               uuid.New(),
		userID:           userID,
		title:            title,
		targetSpecies:    targetSpecies,
		status:           StatusPlanned,
		plannedDate:      plannedDate,
		plannedWaypoints: plannedWaypoints,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// --- Getters ---

func (t *Trip) ID() uuid.UUID                 { return t.id }
func (t *Trip) UserID() uuid.UUID             { return t.userID }
func (t *Trip) Title() string                 { return t.title }
func (t *Trip) TargetSpecies() string         { return t.targetSpecies }
func (t *Trip) Status() Status                { return t.status }
func (t *Trip) PlannedDate() *time.Time       { return t.plannedDate }
func (t *Trip) StartTime() *time.Time         { return t.startTime }
func (t *Trip) EndTime() *time.Time           { return t.endTime }
func (t *Trip) DurationHours() float64        { return t.durationHours }
func (t *Trip) Weather() string               { return t.weather }
func (t *Trip) Temperature() *float64         { return t.temperature }
func (t *Trip) WindSpeed() *float64           { return t.windSpeed }
func (t *Trip) Lat() *float64                 { return t.lat }
func (t *Trip) Lng() *float64                 { return t.lng }
func (t *Trip) Success() bool                 { return t.success }
func (t *Trip) PlannedWaypoints() []uuid.UUID { return t.plannedWaypoints }
func (t *Trip) VisitedWaypoints() []uuid.UUID { return t.visitedWaypoints }
func (t *Trip) ObservationsCount() int        { return t.observationsCount }
func (t *Trip) Notes() string                 { return t.notes }
func (t *Trip) CreatedAt() time.Time          { return t.createdAt }
func (t *Trip) UpdatedAt() time.Time          { return t.updatedAt }

// --- Behavior ---

// Start transitions the trip from planned to in_progress, recording field
// conditions and the starting coordinates. A trip can only be started once.
func (t *Trip) Start(at time.Time, weather string, temperature, windSpeed, lat, lng *float64) error {
	if t.status != StatusPlanned {
		return domain.NewInvalidStateError(string(t.status), string(StatusInProgress))
	}
	start := at.UTC()
	t.status = StatusInProgress
	t.startTime = &start
	t.weather = weather
	t.temperature = temperature
	t.windSpeed = windSpeed
	t.lat = lat
	t.lng = lng
	t.updatedAt = start
	return nil
}

// End transitions the trip from in_progress to completed, deriving
// duration_hours from the start time rounded to 0.01.
func (t *Trip) End(at time.Time, success bool, notes string, observationsCount int) error {
	if t.status != StatusInProgress {
		return domain.NewInvalidStateError(string(t.status), string(StatusCompleted))
	}
	end := at.UTC()
	t.status = StatusCompleted
	t.endTime = &end
	t.success = success
	if notes != "" {
		t.notes = notes
	}
	t.observationsCount = observationsCount
	t.durationHours = math.Round(end.Sub(*t.startTime).Seconds()/3600*100) / 100
	t.updatedAt = end
	return nil
}

// Cancel transitions a planned or in_progress trip to cancelled.
func (t *Trip) Cancel() error {
	if t.status == StatusCompleted || t.status == StatusCancelled {
		return domain.NewInvalidStateError(string(t.status), string(StatusCancelled))
	}
	t.status = StatusCancelled
	t.updatedAt = time.Now().UTC()
	return nil
}

// MarkVisited records a waypoint as visited during the trip. Duplicates are
// collapsed; visited waypoints form a set.
func (t *Trip) MarkVisited(waypointID uuid.UUID) {
	for _, id := range t.visitedWaypoints {
		if id == waypointID {
			return
		}
	}
	t.visitedWaypoints = append(t.visitedWaypoints, waypointID)
	t.updatedAt = time.Now().UTC()
}

// --- Reconstruction from persistence ---

// Reconstruct rebuilds a Trip from persisted data (used by repositories).
func Reconstruct(
	id, userID uuid.UUID,
	title, targetSpecies string,
	status Status,
	plannedDate, startTime, endTime *time.Time,
	durationHours float64,
	weather string,
	temperature, windSpeed, lat, lng *float64,
	success bool,
	plannedWaypoints, visitedWaypoints []uuid.UUID,
	observationsCount int,
	notes string,
	createdAt, updatedAt time.Time,
) *Trip {
	return &Trip{
		id:                id,
		userID:            userID,
		title:             title,
		targetSpecies:     targetSpecies,
		status:            status,
		plannedDate:       plannedDate,
		startTime:         startTime,
		endTime:           endTime,
		durationHours:     durationHours,
		weather:           weather,
		temperature:       temperature,
		windSpeed:         windSpeed,
		lat:               lat,
		lng:               lng,
		success:           success,
		plannedWaypoints:  plannedWaypoints,
		visitedWaypoints:  visitedWaypoints,
		observationsCount: observationsCount,
		notes:             notes,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}
