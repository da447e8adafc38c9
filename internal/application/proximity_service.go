package application

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/config"
	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/geo"
)

// ProximityService scans a position against the user's waypoint catalogue and
// emits deduplicated proximity alerts.
type ProximityService struct {
	waypoints waypointDomain.Repository
	scoring   *ScoringService
	ledger    alerting.LedgerRepository
	pushes    *PushService
	producer  events.Publisher
	cfg       config.ProximityConfig
	logger    *zap.Logger

	now func() time.Time
}

// NewProximityService creates a ProximityService.
func NewProximityService(
	waypoints waypointDomain.Repository,
	scoring *ScoringService,
	ledger alerting.LedgerRepository,
	pushes *PushService,
	producer events.Publisher,
	cfg config.ProximityConfig,
	logger *zap.Logger,
) *ProximityService {
	return &ProximityService{
		waypoints: waypoints,
		scoring:   scoring,
		ledger:    ledger,
		pushes:    pushes,
		producer:  producer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluatePosition checks the position against every waypoint of the user and
// returns the alerts emitted by this call, sorted by ascending distance.
// Ledger writes follow the same order so replays stay deterministic.
func (s *ProximityService) EvaluatePosition(ctx context.Context, userID uuid.UUID, lat, lng float64) ([]alerting.ProximityAlert, error) {
	waypoints, err := s.waypoints.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	position := geo.Point{Lat: lat, Lng: lng}
	now := s.now().UTC()

	type candidate struct {
		alert    alerting.ProximityAlert
		distance float64
	}
	var candidates []candidate

	for _, wp := range waypoints {
		d := geo.Distance(position, geo.Point{Lat: wp.Lat, Lng: wp.Lng})

		score, err := s.scoring.CachedScore(ctx, userID, wp.ID)
		if err != nil {
			s.logger.Warn("failed to score waypoint for proximity check",
				zap.String("waypoint_id", wp.ID.String()),
				zap.Error(err),
			)
			continue
		}

		radius := s.cfg.BaseRadiusM
		if score.Classification == alerting.ClassHotspot {
			radius += s.cfg.HotspotBonusM
		}
		if d > radius {
			continue
		}

		if s.withinCooldown(ctx, userID, wp.ID, now) {
			continue
		}

		candidates = append(candidates, candidate{
			alert:    alerting.NewProximityAlert(wp.ID, wp.Name, wp.Type, d, score.TotalScore, score.Classification),
			distance: d,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	alerts := make([]alerting.ProximityAlert, 0, len(candidates))
	for _, c := range candidates {
		rec := &alerting.AlertRecord{
			ID:         uuid.New(),
			UserID:     userID,
			WaypointID: c.alert.WaypointID,
			Alert:      c.alert,
			CreatedAt:  now,
		}
		if err := s.ledger.Save(ctx, rec); err != nil {
			return alerts, err
		}
		alerts = append(alerts, c.alert)

		s.pushes.Enqueue(ctx, userID, c.alert)
		s.publishAlertEvent(ctx, userID, c.alert, now)
	}

	return alerts, nil
}

// PurgeLedger drops cool-down records older than the window. Meant to run on
// a timer from main.
func (s *ProximityService) PurgeLedger(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.cfg.Cooldown)
	purged, err := s.ledger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("failed to purge alert ledger", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Debug("purged alert ledger", zap.Int64("records", purged))
	}
}

// withinCooldown reports whether an alert for (user, waypoint) was emitted
// inside the cool-down window.
func (s *ProximityService) withinCooldown(ctx context.Context, userID, waypointID uuid.UUID, now time.Time) bool {
	last, err := s.ledger.LastForPair(ctx, userID, waypointID)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			s.logger.Warn("failed to read alert ledger",
				zap.String("waypoint_id", waypointID.String()),
				zap.Error(err),
			)
		}
		return false
	}
	return now.Sub(last.CreatedAt) < s.cfg.Cooldown
}

func (s *ProximityService) publishAlertEvent(ctx context.Context, userID uuid.UUID, alert alerting.ProximityAlert, now time.Time) {
	evt := events.ProximityAlertEvent{
		UserID:         userID,
		WaypointID:     alert.WaypointID,
		Classification: string(alert.Classification),
		DistanceMeters: alert.DistanceMeters,
		OccurredAt:     now,
	}
	cloudEvt, err := events.NewCloudEvent("service-telemetry", events.ProximityAlertEmitted, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicTrackingEvents, cloudEvt); err != nil {
		s.logger.Error("failed to publish proximity alert event", zap.Error(err))
	}
}
