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
	headingDomain "github.com/trailmark/service-telemetry/internal/domain/heading"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/geo"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
	"github.com/trailmark/service-telemetry/internal/weather"
)

// fixedWind answers every reading with the same wind.
type fixedWind struct {
	wind weather.Wind
}

func (f fixedWind) CurrentWind(ctx context.Context, lat, lng float64) (weather.Wind, error) {
	return f.wind, nil
}

func newHeadingFixture(t *testing.T, wind weather.Provider) (*HeadingService, *repository.GormWaypointRepository) {
	db := repotest.Open(t)
	waypoints := repository.NewGormWaypointRepository(db)
	svc := NewHeadingService(
		repository.NewGormHeadingRepository(db),
		waypoints,
		wind,
		false,
		zap.NewNop(),
	)
	return svc, waypoints
}

func TestHeadingService_CreateSessionDefaults(t *testing.T) {
	svc, _ := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()

	dto, err := svc.CreateSession(context.Background(), userID, 46.8, -71.2, 0, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, "active", dto.State)
	assert.Equal(t, headingDomain.DefaultApertureDeg, dto.ViewCone.ApertureDeg)
	assert.Equal(t, headingDomain.DefaultRangeM, dto.ViewCone.RangeM)
	// Apex plus the arc points.
	assert.Len(t, dto.ViewCone.Vertices, 1+headingDomain.ArcPoints)
	assert.Equal(t, 46.8, dto.ViewCone.Vertices[0].Lat)

	// Stub wind comes from 270 with heading 0: relative -90, still favorable,
	// so no wind alert fires.
	assert.True(t, dto.Wind.Favorable)
	assert.Empty(t, dto.Alerts)
}

func TestHeadingService_ConeVisibility(t *testing.T) {
	svc, waypoints := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}

	// Aperture 60 looking north: half-angle 30. Bearing 20 is inside,
	// bearing 40 is out.
	inside := geo.Destination(apex, 20, 300)
	outside := geo.Destination(apex, 40, 300)

	wpIn, err := waypointDomain.New(userID, "In the cone", inside.Lat, inside.Lng)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(ctx, wpIn))

	wpOut, err := waypointDomain.New(userID, "Off to the side", outside.Lat, outside.Lng)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(ctx, wpOut))

	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)

	require.Len(t, dto.VisiblePOIs, 1)
	poi := dto.VisiblePOIs[0]
	assert.Equal(t, wpIn.ID, poi.ID)
	assert.True(t, poi.VisibleInCone)
	assert.InDelta(t, 300, poi.DistanceM, 1)
	assert.InDelta(t, 20, poi.RelativeAngle, 0.5)
}

func TestHeadingService_TurningChangesVisibility(t *testing.T) {
	svc, waypoints := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}
	east := geo.Destination(apex, 90, 300)

	wp, err := waypointDomain.New(userID, "East marker", east.Lat, east.Lng)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(ctx, wp))

	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)
	assert.Empty(t, dto.VisiblePOIs)

	// Turn toward the marker without moving.
	dto, err = svc.UpdatePosition(ctx, userID, dto.ID, UpdateHeadingPositionInput{
		Lat:     apex.Lat,
		Lng:     apex.Lng,
		Heading: 90,
	})
	require.NoError(t, err)
	require.Len(t, dto.VisiblePOIs, 1)
	assert.Equal(t, wp.ID, dto.VisiblePOIs[0].ID)
	assert.Equal(t, 90.0, dto.ViewCone.Direction)
}

func TestHeadingService_UnfavorableWindAlertsOnce(t *testing.T) {
	// Wind from dead astern of the view direction.
	svc, _ := newHeadingFixture(t, fixedWind{wind: weather.Wind{DirectionDeg: 180, SpeedKmh: 14}})
	userID := uuid.New()
	ctx := context.Background()

	dto, err := svc.CreateSession(ctx, userID, 46.8, -71.2, 0, 60, 500)
	require.NoError(t, err)

	assert.False(t, dto.Wind.Favorable)
	require.Len(t, dto.Alerts, 1)
	alert := dto.Alerts[0]
	assert.Equal(t, "wind_change", alert.Type)
	assert.Equal(t, "high", alert.Priority)

	// The advisory is not re-raised while one is unacknowledged.
	dto, err = svc.UpdatePosition(ctx, userID, dto.ID, UpdateHeadingPositionInput{
		Lat: 46.8001, Lng: -71.2, Heading: 0,
	})
	require.NoError(t, err)
	assert.Len(t, dto.Alerts, 1)

	dto, err = svc.AcknowledgeAlert(ctx, userID, dto.ID, alert.ID)
	require.NoError(t, err)
	assert.True(t, dto.Alerts[0].Acknowledged)

	// Once acknowledged, a persisting bad wind raises a fresh advisory.
	dto, err = svc.UpdatePosition(ctx, userID, dto.ID, UpdateHeadingPositionInput{
		Lat: 46.8002, Lng: -71.2, Heading: 0,
	})
	require.NoError(t, err)
	found := false
	for _, a := range dto.Alerts {
		if a.Type == "wind_change" && !a.Acknowledged {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHeadingService_POINearbyAlert(t *testing.T) {
	svc, waypoints := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}
	near := geo.Destination(apex, 0, 60)

	wp, err := waypointDomain.New(userID, "Feeder", near.Lat, near.Lng)
	require.NoError(t, err)
	wp.SetPriority(9)
	require.NoError(t, waypoints.Upsert(ctx, wp))

	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)

	require.Len(t, dto.Alerts, 1)
	assert.Equal(t, "poi_nearby", dto.Alerts[0].Type)
	assert.Equal(t, "medium", dto.Alerts[0].Priority)
	assert.Contains(t, dto.Alerts[0].Message, "Feeder")
}

func TestHeadingService_LowPriorityPOIStaysQuiet(t *testing.T) {
	svc, waypoints := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}
	near := geo.Destination(apex, 0, 60)

	wp, err := waypointDomain.New(userID, "Ordinary marker", near.Lat, near.Lng)
	require.NoError(t, err)
	wp.SetPriority(4)
	require.NoError(t, waypoints.Upsert(ctx, wp))

	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)

	require.Len(t, dto.VisiblePOIs, 1)
	assert.Empty(t, dto.Alerts)
}

func TestHeadingService_PauseResumeAndEnd(t *testing.T) {
	svc, _ := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	dto, err := svc.CreateSession(ctx, userID, 46.8, -71.2, 0, 60, 500)
	require.NoError(t, err)

	paused, err := svc.Pause(ctx, userID, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.State)

	// No movement while paused.
	_, err = svc.UpdatePosition(ctx, userID, dto.ID, UpdateHeadingPositionInput{
		Lat: 46.8001, Lng: -71.2, Heading: 0,
	})
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	// Pausing twice is invalid too.
	_, err = svc.Pause(ctx, userID, dto.ID)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	resumed, err := svc.Resume(ctx, userID, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", resumed.State)

	summary, err := svc.EndSession(ctx, userID, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, summary.SessionID)
	assert.NotNil(t, summary.EndedAt)

	// The session is evicted from the live cache.
	_, err = svc.GetSession(ctx, userID, dto.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestHeadingService_DistanceAccumulates(t *testing.T) {
	svc, _ := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}
	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)

	point := apex
	for i := 0; i < 3; i++ {
		point = geo.Destination(point, 0, 50)
		dto, err = svc.UpdatePosition(ctx, userID, dto.ID, UpdateHeadingPositionInput{
			Lat: point.Lat, Lng: point.Lng, Heading: 0,
		})
		require.NoError(t, err)
	}
	assert.InDelta(t, 150, dto.DistanceTraveledM, 1)

	summary, err := svc.EndSession(ctx, userID, dto.ID)
	require.NoError(t, err)
	assert.InDelta(t, 150, summary.DistanceTraveledM, 1)
}

func TestHeadingService_SettingsRecomputeCone(t *testing.T) {
	svc, waypoints := newHeadingFixture(t, weather.StubProvider{})
	userID := uuid.New()
	ctx := context.Background()

	apex := geo.Point{Lat: 46.8, Lng: -71.2}
	far := geo.Destination(apex, 0, 800)

	wp, err := waypointDomain.New(userID, "Distant ridge", far.Lat, far.Lng)
	require.NoError(t, err)
	require.NoError(t, waypoints.Upsert(ctx, wp))

	dto, err := svc.CreateSession(ctx, userID, apex.Lat, apex.Lng, 0, 60, 500)
	require.NoError(t, err)
	assert.Empty(t, dto.VisiblePOIs)

	rangeM := 1000.0
	dto, err = svc.UpdateSettings(ctx, userID, dto.ID, nil, &rangeM)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, dto.ViewCone.RangeM)
	require.Len(t, dto.VisiblePOIs, 1)
	assert.Equal(t, wp.ID, dto.VisiblePOIs[0].ID)
}

func TestHeadingService_CrossUserSessionIsNotFound(t *testing.T) {
	svc, _ := newHeadingFixture(t, weather.StubProvider{})
	ctx := context.Background()

	dto, err := svc.CreateSession(ctx, uuid.New(), 46.8, -71.2, 0, 60, 500)
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, uuid.New(), dto.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestSessionAlertListCap(t *testing.T) {
	session := headingDomain.NewSession(uuid.New(), 46.8, -71.2, 0, 60, 500)

	for i := 0; i < 8; i++ {
		session.PushAlert(headingDomain.Alert{
			ID:        uuid.New(),
			Type:      "poi_nearby",
			CreatedAt: time.Now(),
		})
	}

	assert.Len(t, session.Alerts, headingDomain.MaxUnacknowledgedAlerts)
	assert.Equal(t, 8, session.AlertsTotal)
}
