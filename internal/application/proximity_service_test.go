package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/config"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

type proximityFixture struct {
	svc       *ProximityService
	scoring   *ScoringService
	waypoints *repository.GormWaypointRepository
	trips     *repository.GormTripRepository
	ledger    *repository.GormLedgerRepository
}

func newProximityFixture(t *testing.T) *proximityFixture {
	db := repotest.Open(t)
	logger := zap.NewNop()

	waypoints := repository.NewGormWaypointRepository(db)
	trips := repository.NewGormTripRepository(db)
	ledger := repository.NewGormLedgerRepository(db)
	scoring := NewScoringService(waypoints, trips, 5*time.Minute, logger)
	pushes := NewPushService(
		repository.NewGormNotificationRepository(db),
		repository.NewGormSubscriptionRepository(db),
		nil,
		logger,
	)

	cfg := config.ProximityConfig{
		BaseRadiusM:   500,
		HotspotBonusM: 200,
		Cooldown:      30 * time.Minute,
	}
	svc := NewProximityService(waypoints, scoring, ledger, pushes, events.NoopPublisher{}, cfg, logger)

	return &proximityFixture{
		svc:       svc,
		scoring:   scoring,
		waypoints: waypoints,
		trips:     trips,
		ledger:    ledger,
	}
}

func TestProximityService_AlertWithinBaseRadius(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	wp, err := waypointDomain.New(userID, "Clearing A", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, wp))

	// 0.0006 degrees of latitude is roughly 67 meters.
	alerts, err := fx.svc.EvaluatePosition(ctx, userID, 46.8145, -71.2080)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, wp.ID, alert.WaypointID)
	assert.Equal(t, "proximity", alert.AlertType)
	assert.InDelta(t, 66.8, alert.DistanceMeters, 1.0)
	assert.True(t, strings.HasPrefix(alert.Message, "Approaching 'Clearing A'"), alert.Message)
}

func TestProximityService_OutsideRadiusIsSilent(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	wp, err := waypointDomain.New(userID, "Far stand", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, wp))

	// Roughly 1.1 km north.
	alerts, err := fx.svc.EvaluatePosition(ctx, userID, 46.8239, -71.2080)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestProximityService_HotspotExtendsRadius(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	wp, err := waypointDomain.New(userID, "Clearing A", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, wp))

	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		seedTrip(t, fx.trips, userID, wp.Lat, wp.Lng, now.Add(-time.Duration(i*24)*time.Hour), "Cloudy", true, 5)
	}
	score, err := fx.scoring.Score(ctx, userID, wp.ID)
	require.NoError(t, err)
	require.Equal(t, alerting.ClassHotspot, score.Classification)

	// 0.0054 degrees of latitude is roughly 600 meters: past the base radius,
	// inside the hotspot one.
	alerts, err := fx.svc.EvaluatePosition(ctx, userID, 46.8193, -71.2080)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, strings.HasPrefix(alerts[0].Message, "Hotspot 'Clearing A'"), alerts[0].Message)
}

func TestProximityService_CooldownDedup(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	wp, err := waypointDomain.New(userID, "Creek bend", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, wp))

	t0 := time.Date(2025, 11, 15, 6, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return t0 }

	alerts, err := fx.svc.EvaluatePosition(ctx, userID, 46.8145, -71.2080)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	// Still inside the cool-down window: suppressed.
	fx.svc.now = func() time.Time { return t0.Add(10 * time.Minute) }
	alerts, err = fx.svc.EvaluatePosition(ctx, userID, 46.8145, -71.2080)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// Window elapsed: the pair alerts again.
	fx.svc.now = func() time.Time { return t0.Add(31 * time.Minute) }
	alerts, err = fx.svc.EvaluatePosition(ctx, userID, 46.8145, -71.2080)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestProximityService_AlertsSortedByDistance(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	near, err := waypointDomain.New(userID, "Near marker", 46.8142, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, near))

	far, err := waypointDomain.New(userID, "Far marker", 46.8170, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, far))

	alerts, err := fx.svc.EvaluatePosition(ctx, userID, 46.8139, -71.2080)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, near.ID, alerts[0].WaypointID)
	assert.Equal(t, far.ID, alerts[1].WaypointID)
	assert.Less(t, alerts[0].DistanceMeters, alerts[1].DistanceMeters)
}

func TestProximityService_PurgeLedger(t *testing.T) {
	fx := newProximityFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	wp, err := waypointDomain.New(userID, "Old spot", 46.8139, -71.2080)
	require.NoError(t, err)
	require.NoError(t, fx.waypoints.Upsert(ctx, wp))

	t0 := time.Date(2025, 11, 15, 6, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return t0 }
	_, err = fx.svc.EvaluatePosition(ctx, userID, 46.8145, -71.2080)
	require.NoError(t, err)

	fx.svc.now = func() time.Time { return t0.Add(2 * time.Hour) }
	fx.svc.PurgeLedger(ctx)

	_, err = fx.ledger.LastForPair(ctx, userID, wp.ID)
	assert.Error(t, err)
}
