package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/config"
	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/geo"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func newTrackingFixture(t *testing.T) *TrackingService {
	db := repotest.Open(t)
	logger := zap.NewNop()

	waypoints := repository.NewGormWaypointRepository(db)
	trips := repository.NewGormTripRepository(db)
	scoring := NewScoringService(waypoints, trips, 5*time.Minute, logger)
	pushes := NewPushService(
		repository.NewGormNotificationRepository(db),
		repository.NewGormSubscriptionRepository(db),
		nil,
		logger,
	)
	proximity := NewProximityService(
		waypoints, scoring,
		repository.NewGormLedgerRepository(db),
		pushes, events.NoopPublisher{},
		config.ProximityConfig{BaseRadiusM: 500, HotspotBonusM: 200, Cooldown: 30 * time.Minute},
		logger,
	)

	return NewTrackingService(
		repository.NewGormSessionRepository(db),
		repository.NewGormSampleRepository(db),
		proximity,
		events.NoopPublisher{},
		logger,
	)
}

func TestTrackingService_RecordPosition(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	session, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)

	result, err := svc.RecordPosition(ctx, userID, RecordPositionInput{
		Lat:       46.8139,
		Lng:       -71.2080,
		Timestamp: time.Now(),
		SessionID: &session.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 46.8139, result.Sample.Lat)
	require.NotNil(t, result.Sample.SessionID)
	assert.Equal(t, session.ID, *result.Sample.SessionID)
	// No waypoints yet, so the scan finds nothing but still returns a slice.
	assert.NotNil(t, result.Alerts)
	assert.Empty(t, result.Alerts)

	active, err := svc.GetActiveSession(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, active.LocationsCount)
}

func TestTrackingService_UnknownSessionIDRecordsUnattached(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	bogus := uuid.New()

	result, err := svc.RecordPosition(context.Background(), userID, RecordPositionInput{
		Lat:       46.8139,
		Lng:       -71.2080,
		Timestamp: time.Now(),
		SessionID: &bogus,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Sample.SessionID)
}

func TestTrackingService_RecordPositionRejectsBadCoordinates(t *testing.T) {
	svc := newTrackingFixture(t)

	_, err := svc.RecordPosition(context.Background(), uuid.New(), RecordPositionInput{
		Lat:       95,
		Lng:       -71.2080,
		Timestamp: time.Now(),
	})
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestTrackingService_SingleActiveSession(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	first, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)

	second, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := svc.GetActiveSession(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	// The first session was closed by the restart.
	ended, err := svc.EndSession(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
}

func TestTrackingService_EndSessionDerivesDistance(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	session, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)

	// Three samples walking due north, 100 m between each.
	point := geo.Point{Lat: 46.8139, Lng: -71.2080}
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := svc.RecordPosition(ctx, userID, RecordPositionInput{
			Lat:       point.Lat,
			Lng:       point.Lng,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			SessionID: &session.ID,
		})
		require.NoError(t, err)
		point = geo.Destination(point, 0, 100)
	}

	ended, err := svc.EndSession(ctx, userID, session.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	assert.NotNil(t, ended.EndedAt)
	assert.InDelta(t, 0.2, ended.DistanceKm, 0.01)

	// Ending again is idempotent.
	again, err := svc.EndSession(ctx, userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, ended.DistanceKm, again.DistanceKm)
}

func TestTrackingService_HistoryForSessionIsChronological(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	session, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)

	base := time.Date(2025, 10, 12, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := svc.RecordPosition(ctx, userID, RecordPositionInput{
			Lat:       46.8139 + float64(i)*0.001,
			Lng:       -71.2080,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			SessionID: &session.ID,
		})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, userID, &session.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Timestamp.Before(history[1].Timestamp))
	assert.True(t, history[1].Timestamp.Before(history[2].Timestamp))
}

func TestTrackingService_SessionRouteGeoJSON(t *testing.T) {
	svc := newTrackingFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	session, err := svc.StartSession(ctx, userID)
	require.NoError(t, err)

	// Route export needs at least one sample.
	_, err = svc.SessionRouteGeoJSON(ctx, userID, session.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	base := time.Now().UTC()
	for i := 0; i < 2; i++ {
		_, err := svc.RecordPosition(ctx, userID, RecordPositionInput{
			Lat:       46.8139 + float64(i)*0.001,
			Lng:       -71.2080,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			SessionID: &session.ID,
		})
		require.NoError(t, err)
	}

	raw, err := svc.SessionRouteGeoJSON(ctx, userID, session.ID)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)
	require.Len(t, fc.Features[0].Geometry.Coordinates, 2)
	// GeoJSON positions are [lng, lat].
	assert.InDelta(t, -71.2080, fc.Features[0].Geometry.Coordinates[0][0], 1e-9)
	assert.InDelta(t, 46.8139, fc.Features[0].Geometry.Coordinates[0][1], 1e-9)
	assert.Equal(t, session.ID.String(), fc.Features[0].Properties["session_id"])
}
