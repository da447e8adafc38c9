package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/mail"
)

// TripDTO represents a trip in API responses.
type TripDTO struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	Title             string      `json:"title"`
	TargetSpecies     string      `json:"target_species,omitempty"`
	Status            string      `json:"status"`
	PlannedDate       *time.Time  `json:"planned_date,omitempty"`
	StartTime         *time.Time  `json:"start_time,omitempty"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	DurationHours     float64     `json:"duration_hours"`
	Weather           string      `json:"weather,omitempty"`
	Temperature       *float64    `json:"temperature,omitempty"`
	WindSpeed         *float64    `json:"wind_speed,omitempty"`
	Success           bool        `json:"success"`
	PlannedWaypoints  []uuid.UUID `json:"planned_waypoints"`
	VisitedWaypoints  []uuid.UUID `json:"visited_waypoints"`
	ObservationsCount int         `json:"observations_count"`
	Notes             string      `json:"notes,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// StartTripInput carries the field conditions recorded when a trip starts.
type StartTripInput struct {
	Weather     string
	Temperature *float64
	WindSpeed   *float64
	Lat         *float64
	Lng         *float64
}

// TripStatistics aggregates the user's completed trips.
type TripStatistics struct {
	TotalTrips        int            `json:"total_trips"`
	CompletedTrips    int            `json:"completed_trips"`
	SuccessfulTrips   int            `json:"successful_trips"`
	SuccessRate       float64        `json:"success_rate"`
	TotalHours        float64        `json:"total_hours"`
	TotalObservations int            `json:"total_observations"`
	BySpecies         map[string]int `json:"by_species"`
}

// TripService implements the trip, visit, and observation use cases.
type TripService struct {
	trips        tripDomain.Repository
	visits       tripDomain.VisitRepository
	observations tripDomain.ObservationRepository
	mailer       mail.Mailer
	producer     events.Publisher
	logger       *zap.Logger

	now func() time.Time
}

// NewTripService creates a TripService.
func NewTripService(
	trips tripDomain.Repository,
	visits tripDomain.VisitRepository,
	observations tripDomain.ObservationRepository,
	mailer mail.Mailer,
	producer events.Publisher,
	logger *zap.Logger,
) *TripService {
	return &TripService{
		trips:        trips,
		visits:       visits,
		observations: observations,
		mailer:       mailer,
		producer:     producer,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateTrip creates a planned trip.
func (s *TripService) CreateTrip(ctx context.Context, userID uuid.UUID, title, targetSpecies string, plannedDate *time.Time, plannedWaypoints []uuid.UUID) (*TripDTO, error) {
	t, err := tripDomain.New(userID, title, targetSpecies, plannedDate, plannedWaypoints)
	if err != nil {
		return nil, err
	}
	if err := s.trips.Save(ctx, t); err != nil {
		return nil, err
	}
	dto := toTripDTO(t)
	return &dto, nil
}

// StartTrip transitions a planned trip to in_progress.
func (s *TripService) StartTrip(ctx context.Context, userID, tripID uuid.UUID, in StartTripInput) (*TripDTO, error) {
	t, err := s.trips.FindByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if err := t.Start(s.now(), in.Weather, in.Temperature, in.WindSpeed, in.Lat, in.Lng); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, t); err != nil {
		return nil, err
	}
	dto := toTripDTO(t)
	return &dto, nil
}

// EndTrip completes a trip: derives its duration, counts observations, emits
// the analytics projection, back-fills the trip's visits with the outcome,
// and requests the summary mail. Mail failure never fails the trip end.
func (s *TripService) EndTrip(ctx context.Context, userID, tripID uuid.UUID, success bool, notes, email string) (*TripDTO, error) {
	t, err := s.trips.FindByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	obsCount, err := s.observations.CountByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := t.End(now, success, notes, int(obsCount)); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, t); err != nil {
		return nil, err
	}

	projection := &tripDomain.Projection{
		TripID:            t.ID(),
		UserID:            t.UserID(),
		Title:             t.Title(),
		TargetSpecies:     t.TargetSpecies(),
		Status:            string(t.Status()),
		StartTime:         t.StartTime(),
		EndTime:           t.EndTime(),
		DurationHours:     t.DurationHours(),
		Weather:           t.Weather(),
		Temperature:       t.Temperature(),
		WindSpeed:         t.WindSpeed(),
		Success:           t.Success(),
		ObservationsCount: t.ObservationsCount(),
		VisitedCount:      len(t.VisitedWaypoints()),
		ProjectedAt:       now.UTC(),
	}
	if err := s.trips.SaveProjection(ctx, projection); err != nil {
		return nil, err
	}

	if err := s.backfillVisits(ctx, t); err != nil {
		s.logger.Warn("failed to back-fill trip visits",
			zap.String("trip_id", tripID.String()),
			zap.Error(err),
		)
	}

	if email != "" {
		go s.sendSummary(t, email)
	}

	s.publishTripCompleted(ctx, t, now.UTC())

	s.logger.Info("trip completed",
		zap.String("trip_id", tripID.String()),
		zap.Bool("success", success),
		zap.Float64("duration_hours", t.DurationHours()),
	)

	dto := toTripDTO(t)
	return &dto, nil
}

// CancelTrip cancels a planned or in_progress trip.
func (s *TripService) CancelTrip(ctx context.Context, userID, tripID uuid.UUID) (*TripDTO, error) {
	t, err := s.trips.FindByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if err := t.Cancel(); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, t); err != nil {
		return nil, err
	}
	dto := toTripDTO(t)
	return &dto, nil
}

// GetTrip returns one trip owned by the user.
func (s *TripService) GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*TripDTO, error) {
	t, err := s.trips.FindByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	dto := toTripDTO(t)
	return &dto, nil
}

// ListTrips returns the user's trips, newest first.
func (s *TripService) ListTrips(ctx context.Context, userID uuid.UUID) ([]TripDTO, error) {
	trips, err := s.trips.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]TripDTO, len(trips))
	for i, t := range trips {
		dtos[i] = toTripDTO(t)
	}
	return dtos, nil
}

// LogVisit records arrival at a waypoint, optionally attached to a trip the
// user owns.
func (s *TripService) LogVisit(ctx context.Context, userID, waypointID uuid.UUID, tripID *uuid.UUID, weather string, activityLevel int) (*tripDomain.Visit, error) {
	if tripID != nil {
		t, err := s.trips.FindByID(ctx, userID, *tripID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.NewConstraintViolationError("trip does not belong to the acting user")
			}
			return nil, err
		}
		t.MarkVisited(waypointID)
		if err := s.trips.Update(ctx, t); err != nil {
			return nil, err
		}
	}

	v, err := tripDomain.NewVisit(userID, waypointID, tripID, weather, activityLevel)
	if err != nil {
		return nil, err
	}
	if err := s.visits.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EndVisit closes a visit, deriving its duration.
func (s *TripService) EndVisit(ctx context.Context, userID, visitID uuid.UUID) (*tripDomain.Visit, error) {
	v, err := s.visits.FindByID(ctx, userID, visitID)
	if err != nil {
		return nil, err
	}
	if err := v.Depart(s.now()); err != nil {
		return nil, err
	}
	if err := s.visits.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// LogObservationInput carries the optional detail of a field observation.
type LogObservationInput struct {
	TripID         *uuid.UUID
	WaypointID     *uuid.UUID
	Type           tripDomain.ObservationType
	Species        string
	Count          int
	DistanceMeters *float64
	Direction      *string
	Behavior       *string
	Lat            *float64
	Lng            *float64
}

// LogObservation appends an observation, enforcing trip ownership.
func (s *TripService) LogObservation(ctx context.Context, userID uuid.UUID, in LogObservationInput) (*tripDomain.Observation, error) {
	if in.TripID != nil {
		if _, err := s.trips.FindByID(ctx, userID, *in.TripID); err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.NewConstraintViolationError("trip does not belong to the acting user")
			}
			return nil, err
		}
	}

	o, err := tripDomain.NewObservation(userID, in.Type, in.Species, in.Count)
	if err != nil {
		return nil, err
	}
	o.TripID = in.TripID
	o.WaypointID = in.WaypointID
	o.DistanceMeters = in.DistanceMeters
	o.Direction = in.Direction
	o.Behavior = in.Behavior
	o.Lat = in.Lat
	o.Lng = in.Lng

	if err := s.observations.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListObservations queries observations by the given optional filters.
func (s *TripService) ListObservations(ctx context.Context, userID uuid.UUID, tripID, waypointID *uuid.UUID, species string) ([]*tripDomain.Observation, error) {
	switch {
	case tripID != nil:
		if _, err := s.trips.FindByID(ctx, userID, *tripID); err != nil {
			return nil, err
		}
		return s.observations.ListByTrip(ctx, *tripID)
	case waypointID != nil:
		return s.observations.ListByWaypoint(ctx, userID, *waypointID)
	case species != "":
		return s.observations.ListBySpecies(ctx, userID, species)
	default:
		return s.observations.ListByUser(ctx, userID)
	}
}

// Statistics aggregates the user's trips and observations.
func (s *TripService) Statistics(ctx context.Context, userID uuid.UUID) (*TripStatistics, error) {
	trips, err := s.trips.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &TripStatistics{BySpecies: make(map[string]int)}
	for _, t := range trips {
		stats.TotalTrips++
		if t.Status() != tripDomain.StatusCompleted {
			continue
		}
		stats.CompletedTrips++
		if t.Success() {
			stats.SuccessfulTrips++
		}
		stats.TotalHours += t.DurationHours()
		stats.TotalObservations += t.ObservationsCount()
		if sp := t.TargetSpecies(); sp != "" {
			stats.BySpecies[sp]++
		}
	}
	if stats.CompletedTrips > 0 {
		stats.SuccessRate = float64(stats.SuccessfulTrips) / float64(stats.CompletedTrips)
	}
	return stats, nil
}

// backfillVisits stamps every visit of the trip with the trip's outcome.
func (s *TripService) backfillVisits(ctx context.Context, t *tripDomain.Trip) error {
	visits, err := s.visits.ListByTrip(ctx, t.ID())
	if err != nil {
		return err
	}
	for _, v := range visits {
		v.Success = t.Success()
		v.Weather = t.Weather()
		if err := s.visits.Update(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// sendSummary is fire-and-forget; it runs off the request path with its own
// deadline.
func (s *TripService) sendSummary(t *tripDomain.Trip, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := s.mailer.SendTripSummary(ctx, email, mail.TripSummary{
		TripID:            t.ID().String(),
		Title:             t.Title(),
		TargetSpecies:     t.TargetSpecies(),
		DurationHours:     t.DurationHours(),
		Success:           t.Success(),
		ObservationsCount: t.ObservationsCount(),
		VisitedWaypoints:  len(t.VisitedWaypoints()),
	})
	if err != nil {
		s.logger.Warn("trip summary mail failed",
			zap.String("trip_id", t.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *TripService) publishTripCompleted(ctx context.Context, t *tripDomain.Trip, now time.Time) {
	evt := events.TripCompletedEvent{
		TripID:            t.ID(),
		UserID:            t.UserID(),
		TargetSpecies:     t.TargetSpecies(),
		DurationHours:     t.DurationHours(),
		Success:           t.Success(),
		ObservationsCount: t.ObservationsCount(),
		OccurredAt:        now,
	}
	cloudEvt, err := events.NewCloudEvent("service-telemetry", events.TripCompleted, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicTripEvents, cloudEvt); err != nil {
		s.logger.Error("failed to publish trip completed event", zap.Error(err))
	}
}

func toTripDTO(t *tripDomain.Trip) TripDTO {
	planned := t.PlannedWaypoints()
	if planned == nil {
		planned = []uuid.UUID{}
	}
	visited := t.VisitedWaypoints()
	if visited == nil {
		visited = []uuid.UUID{}
	}
	return TripDTO{
		ID:                t.ID(),
		UserID:            t.UserID(),
		Title:             t.Title(),
		TargetSpecies:     t.TargetSpecies(),
		Status:            string(t.Status()),
		PlannedDate:       t.PlannedDate(),
		StartTime:         t.StartTime(),
		EndTime:           t.EndTime(),
		DurationHours:     t.DurationHours(),
		Weather:           t.Weather(),
		Temperature:       t.Temperature(),
		WindSpeed:         t.WindSpeed(),
		Success:           t.Success(),
		PlannedWaypoints:  planned,
		VisitedWaypoints:  visited,
		ObservationsCount: t.ObservationsCount(),
		Notes:             t.Notes(),
		CreatedAt:         t.CreatedAt(),
	}
}
