package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func newScoringFixture(t *testing.T) (*ScoringService, *repository.GormWaypointRepository, *repository.GormTripRepository) {
	db := repotest.Open(t)
	waypoints := repository.NewGormWaypointRepository(db)
	trips := repository.NewGormTripRepository(db)
	svc := NewScoringService(waypoints, trips, 5*time.Minute, zap.NewNop())
	return svc, waypoints, trips
}

// seedTrip persists a started trip at the given coordinates.
func seedTrip(t *testing.T, trips *repository.GormTripRepository, userID uuid.UUID, lat, lng float64, startedAt time.Time, weather string, success bool, observations int) {
	t.Helper()

	tr, err := tripDomain.New(userID, "outing", "deer", nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Start(startedAt, weather, nil, nil, &lat, &lng))
	if success || observations > 0 {
		require.NoError(t, tr.End(startedAt.Add(2*time.Hour), success, "", observations))
	}
	require.NoError(t, trips.Save(context.Background(), tr))
}

func TestScoringService_NoTripsBaseline(t *testing.T) {
	svc, waypoints, _ := newScoringFixture(t)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Fresh spot", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(context.Background(), wp))

	result, err := svc.Score(context.Background(), userID, wp.ID)
	require.NoError(t, err)

	assert.Equal(t, 46.0, result.TotalScore)
	assert.Equal(t, alerting.ClassStandard, result.Classification)
	assert.Equal(t, 0, result.TripsTotal)
}

func TestScoringService_Determinism(t *testing.T) {
	svc, waypoints, trips := newScoringFixture(t)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Ridge line", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(context.Background(), wp))

	now := time.Now().UTC()
	weathers := []string{"Cloudy", "Rainy", "Sunny", "Foggy"}
	for i, w := range weathers {
		seedTrip(t, trips, userID, wp.Lat, wp.Lng, now.Add(-time.Duration(i*24)*time.Hour), w, i%2 == 0, i+1)
	}

	first, err := svc.Score(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	second, err := svc.Score(context.Background(), userID, wp.ID)
	require.NoError(t, err)

	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.Classification, second.Classification)
	assert.Equal(t, first.SubScores, second.SubScores)
}

func TestScoringService_HotspotFromStrongHistory(t *testing.T) {
	svc, waypoints, trips := newScoringFixture(t)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Clearing A", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(context.Background(), wp))

	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		seedTrip(t, trips, userID, wp.Lat, wp.Lng, now.Add(-time.Duration(i*24)*time.Hour), "Cloudy", true, 5)
	}

	result, err := svc.Score(context.Background(), userID, wp.ID)
	require.NoError(t, err)

	assert.Equal(t, alerting.ClassHotspot, result.Classification)
	assert.GreaterOrEqual(t, result.TotalScore, 75.0)
	assert.Equal(t, 20, result.TripsTotal)
	assert.Equal(t, 20, result.TripsSuccessful)
	assert.Equal(t, 1.0, result.SuccessRate)
	assert.Equal(t, 100.0, result.SubScores.SuccessHistory)
}

func TestScoringService_FarTripsDoNotCount(t *testing.T) {
	svc, waypoints, trips := newScoringFixture(t)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Isolated stand", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(context.Background(), wp))

	// 2 km east is well outside the 0.5 km scoring radius.
	seedTrip(t, trips, userID, wp.Lat, wp.Lng+0.026, time.Now().UTC(), "Sunny", true, 3)

	result, err := svc.Score(context.Background(), userID, wp.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TripsTotal)
	assert.Equal(t, 46.0, result.TotalScore)
}

func TestScoringService_CachedScoreHonorsTTL(t *testing.T) {
	svc, waypoints, trips := newScoringFixture(t)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Cache check", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(context.Background(), wp))

	base := time.Date(2025, 11, 1, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first, err := svc.CachedScore(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	assert.Equal(t, 46.0, first.TotalScore)

	// New trips do not show up while the cache entry is fresh.
	seedTrip(t, trips, userID, wp.Lat, wp.Lng, base.Add(-time.Hour), "Cloudy", true, 4)

	cached, err := svc.CachedScore(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	assert.Equal(t, 46.0, cached.TotalScore)

	// Past the TTL the score is recomputed.
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	fresh, err := svc.CachedScore(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TripsTotal)
	assert.NotEqual(t, 46.0, fresh.TotalScore)
}

func TestClassifyBands(t *testing.T) {
	assert.Equal(t, alerting.ClassHotspot, Classify(75))
	assert.Equal(t, alerting.ClassGood, Classify(74.9))
	assert.Equal(t, alerting.ClassGood, Classify(55))
	assert.Equal(t, alerting.ClassStandard, Classify(54.9))
	assert.Equal(t, alerting.ClassStandard, Classify(35))
	assert.Equal(t, alerting.ClassWeak, Classify(34.9))
}
