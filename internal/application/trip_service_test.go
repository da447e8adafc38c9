package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/mail"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func newTripFixture(t *testing.T) (*TripService, *repository.GormTripRepository) {
	db := repotest.Open(t)
	logger := zap.NewNop()
	trips := repository.NewGormTripRepository(db)
	svc := NewTripService(
		trips,
		repository.NewGormVisitRepository(db),
		repository.NewGormObservationRepository(db),
		&mail.LogMailer{Logger: logger},
		events.NoopPublisher{},
		logger,
	)
	return svc, trips
}

func TestTripService_FullLifecycle(t *testing.T) {
	svc, trips := newTripFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	t0 := time.Date(2025, 11, 10, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	created, err := svc.CreateTrip(ctx, userID, "Morning sit", "deer", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "planned", created.Status)

	temp := 5.0
	started, err := svc.StartTrip(ctx, userID, created.ID, StartTripInput{
		Weather:     "Cloudy",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "in_progress", started.Status)
	assert.Equal(t, "Cloudy", started.Weather)

	_, err = svc.LogObservation(ctx, userID, LogObservationInput{
		TripID:  &created.ID,
		Type:    tripDomain.ObservationSighting,
		Species: "white-tailed deer",
		Count:   2,
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return t0.Add(2 * time.Hour) }
	ended, err := svc.EndTrip(ctx, userID, created.ID, true, "two came through the cut", "")
	require.NoError(t, err)

	assert.Equal(t, "completed", ended.Status)
	assert.True(t, ended.Success)
	assert.Equal(t, 1, ended.ObservationsCount)
	assert.Equal(t, 2.0, ended.DurationHours)

	// Completion emits the analytics projection.
	projection, err := trips.FindProjection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", projection.Status)
	assert.True(t, projection.Success)
	assert.Equal(t, 1, projection.ObservationsCount)
	assert.Equal(t, 2.0, projection.DurationHours)
}

func TestTripService_EndBeforeStartIsInvalidState(t *testing.T) {
	svc, _ := newTripFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateTrip(ctx, userID, "Unstarted", "", nil, nil)
	require.NoError(t, err)

	_, err = svc.EndTrip(ctx, userID, created.ID, false, "", "")
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestTripService_CancelCompletedIsInvalidState(t *testing.T) {
	svc, _ := newTripFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateTrip(ctx, userID, "Short outing", "", nil, nil)
	require.NoError(t, err)
	_, err = svc.StartTrip(ctx, userID, created.ID, StartTripInput{})
	require.NoError(t, err)
	_, err = svc.EndTrip(ctx, userID, created.ID, false, "", "")
	require.NoError(t, err)

	_, err = svc.CancelTrip(ctx, userID, created.ID)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestTripService_ForeignTripReferenceIsConstraintViolation(t *testing.T) {
	svc, _ := newTripFixture(t)
	owner := uuid.New()
	stranger := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateTrip(ctx, owner, "Private trip", "", nil, nil)
	require.NoError(t, err)

	_, err = svc.LogObservation(ctx, stranger, LogObservationInput{
		TripID:  &created.ID,
		Type:    tripDomain.ObservationTracks,
		Species: "moose",
		Count:   1,
	})
	assert.Equal(t, domain.KindConstraintViolation, domain.KindOf(err))

	_, err = svc.LogVisit(ctx, stranger, uuid.New(), &created.ID, "", 5)
	assert.Equal(t, domain.KindConstraintViolation, domain.KindOf(err))
}

func TestTripService_VisitsMarkWaypointsAndBackfill(t *testing.T) {
	svc, trips := newTripFixture(t)
	userID := uuid.New()
	waypointID := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateTrip(ctx, userID, "Loop walk", "", nil, nil)
	require.NoError(t, err)
	_, err = svc.StartTrip(ctx, userID, created.ID, StartTripInput{Weather: "Foggy"})
	require.NoError(t, err)

	visit, err := svc.LogVisit(ctx, userID, waypointID, &created.ID, "", 6)
	require.NoError(t, err)

	// Duplicate arrivals collapse into one visited waypoint.
	_, err = svc.LogVisit(ctx, userID, waypointID, &created.ID, "", 6)
	require.NoError(t, err)

	got, err := svc.GetTrip(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{waypointID}, got.VisitedWaypoints)

	_, err = svc.EndTrip(ctx, userID, created.ID, true, "", "")
	require.NoError(t, err)

	// Visits inherit the trip outcome on completion.
	reloaded, err := trips.FindByID(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Success())

	ended, err := svc.EndVisit(ctx, userID, visit.ID)
	require.NoError(t, err)
	assert.True(t, ended.Success)
	assert.Equal(t, "Foggy", ended.Weather)
}

func TestTripService_Statistics(t *testing.T) {
	svc, _ := newTripFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	t0 := time.Date(2025, 11, 10, 6, 0, 0, 0, time.UTC)
	outcomes := []bool{true, false, true}
	for i, success := range outcomes {
		svc.now = func() time.Time { return t0 }
		created, err := svc.CreateTrip(ctx, userID, "Outing", "deer", nil, nil)
		require.NoError(t, err)
		_, err = svc.StartTrip(ctx, userID, created.ID, StartTripInput{})
		require.NoError(t, err)
		svc.now = func() time.Time { return t0.Add(time.Duration(i+1) * time.Hour) }
		_, err = svc.EndTrip(ctx, userID, created.ID, success, "", "")
		require.NoError(t, err)
	}

	// One planned trip that never ran.
	_, err := svc.CreateTrip(ctx, userID, "Someday", "elk", nil, nil)
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalTrips)
	assert.Equal(t, 3, stats.CompletedTrips)
	assert.Equal(t, 2, stats.SuccessfulTrips)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, 6.0, stats.TotalHours)
	assert.Equal(t, 3, stats.BySpecies["deer"])
}

func TestTripService_ObservationFilters(t *testing.T) {
	svc, _ := newTripFixture(t)
	userID := uuid.New()
	waypointID := uuid.New()
	ctx := context.Background()

	for _, species := range []string{"deer", "deer", "moose"} {
		_, err := svc.LogObservation(ctx, userID, LogObservationInput{
			WaypointID: &waypointID,
			Type:       tripDomain.ObservationSighting,
			Species:    species,
			Count:      1,
		})
		require.NoError(t, err)
	}

	all, err := svc.ListObservations(ctx, userID, nil, nil, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	deer, err := svc.ListObservations(ctx, userID, nil, nil, "deer")
	require.NoError(t, err)
	assert.Len(t, deer, 2)

	byWaypoint, err := svc.ListObservations(ctx, userID, nil, &waypointID, "")
	require.NoError(t, err)
	assert.Len(t, byWaypoint, 3)
}
