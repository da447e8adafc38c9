package application

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	telemetryDomain "github.com/trailmark/service-telemetry/internal/domain/telemetry"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/geo"
)

// RecordPositionInput carries one raw position report.
type RecordPositionInput struct {
	Lat       float64
	Lng       float64
	Accuracy  *float64
	Altitude  *float64
	Heading   *float64
	Speed     *float64
	Timestamp time.Time
	SessionID *uuid.UUID
}

// SampleDTO represents a persisted location sample in API responses.
type SampleDTO struct {
	ID        uuid.UUID  `json:"id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// SessionDTO represents a tracking session in API responses.
type SessionDTO struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Active         bool       `json:"active"`
	LocationsCount int        `json:"locations_count"`
	DistanceKm     float64    `json:"distance_km"`
}

// RecordPositionResult pairs the saved sample with the alerts it triggered.
type RecordPositionResult struct {
	Sample SampleDTO                 `json:"sample"`
	Alerts []alerting.ProximityAlert `json:"alerts"`
}

// TrackingService is the position ingester: it appends samples, maintains
// tracking sessions, and hands every position to the proximity engine.
type TrackingService struct {
	sessions  telemetryDomain.SessionRepository
	samples   telemetryDomain.SampleRepository
	proximity *ProximityService
	producer  events.Publisher
	logger    *zap.Logger

	now func() time.Time
}

// NewTrackingService creates a TrackingService.
func NewTrackingService(
	sessions telemetryDomain.SessionRepository,
	samples telemetryDomain.SampleRepository,
	proximity *ProximityService,
	producer events.Publisher,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		sessions:  sessions,
		samples:   samples,
		proximity: proximity,
		producer:  producer,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordPosition appends the sample, bumps the session counter when the
// sample names an active session of the user, and runs the proximity scan.
func (s *TrackingService) RecordPosition(ctx context.Context, userID uuid.UUID, in RecordPositionInput) (*RecordPositionResult, error) {
	sample, err := telemetryDomain.NewLocationSample(userID, in.Lat, in.Lng, in.Timestamp)
	if err != nil {
		return nil, err
	}
	sample.Accuracy = in.Accuracy
	sample.Altitude = in.Altitude
	sample.Heading = in.Heading
	sample.Speed = in.Speed

	if in.SessionID != nil {
		// An unknown or ended session id is not an error: the sample is
		// still recorded, just unattached.
		session, err := s.sessions.FindByID(ctx, userID, *in.SessionID)
		switch {
		case err != nil:
			s.logger.Debug("session lookup failed, recording sample unattached",
				zap.String("session_id", in.SessionID.String()),
				zap.Error(err),
			)
		case session.Active():
			sample.SessionID = in.SessionID
		}
	}

	if err := s.samples.Save(ctx, sample); err != nil {
		return nil, err
	}

	if sample.SessionID != nil {
		if err := s.sessions.IncrementLocations(ctx, *sample.SessionID); err != nil {
			s.logger.Warn("failed to increment session counter",
				zap.String("session_id", sample.SessionID.String()),
				zap.Error(err),
			)
		}
	}

	alerts, err := s.proximity.EvaluatePosition(ctx, userID, sample.Lat, sample.Lng)
	if err != nil {
		// The sample is already durable; surface what we have.
		s.logger.Warn("proximity scan failed", zap.Error(err))
	}
	if alerts == nil {
		alerts = []alerting.ProximityAlert{}
	}

	return &RecordPositionResult{
		Sample: toSampleDTO(sample),
		Alerts: alerts,
	}, nil
}

// RecordPositionFromStream ingests one batched position from the kafka
// position stream, reusing the HTTP path's semantics.
func (s *TrackingService) RecordPositionFromStream(ctx context.Context, evt events.PositionReportedEvent) error {
	_, err := s.RecordPosition(ctx, evt.UserID, RecordPositionInput{
		Lat:       evt.Lat,
		Lng:       evt.Lng,
		Accuracy:  evt.Accuracy,
		Altitude:  evt.Altitude,
		Heading:   evt.Heading,
		Speed:     evt.Speed,
		Timestamp: evt.Timestamp,
		SessionID: evt.SessionID,
	})
	return err
}

// StartSession closes any active session for the user and opens a new one.
func (s *TrackingService) StartSession(ctx context.Context, userID uuid.UUID) (*SessionDTO, error) {
	now := s.now().UTC()
	if err := s.sessions.DeactivateAllForUser(ctx, userID, now); err != nil {
		return nil, err
	}

	session := telemetryDomain.NewTrackingSession(userID, now)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.publishSessionEvent(ctx, events.TrackingSessionStarted, events.SessionStartedEvent{
		SessionID:  session.ID(),
		UserID:     userID,
		StartedAt:  session.StartedAt(),
		OccurredAt: now,
	})

	s.logger.Info("tracking session started",
		zap.String("session_id", session.ID().String()),
		zap.String("user_id", userID.String()),
	)

	dto := toSessionDTO(session)
	return &dto, nil
}

// EndSession closes a session the user owns, deriving distance_km by walking
// the session's samples in time order. Ending an ended session is idempotent.
func (s *TrackingService) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*SessionDTO, error) {
	session, err := s.sessions.FindByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Active() {
		samples, err := s.samples.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		var totalM float64
		for i := 1; i < len(samples); i++ {
			totalM += geo.Distance(
				geo.Point{Lat: samples[i-1].Lat, Lng: samples[i-1].Lng},
				geo.Point{Lat: samples[i].Lat, Lng: samples[i].Lng},
			)
		}
		distanceKm := math.Round(totalM/1000*100) / 100

		now := s.now().UTC()
		session.End(now, distanceKm)
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, err
		}

		s.publishSessionEvent(ctx, events.TrackingSessionEnded, events.SessionEndedEvent{
			SessionID:      session.ID(),
			UserID:         userID,
			DistanceKm:     distanceKm,
			LocationsCount: session.LocationsCount(),
			EndedAt:        now,
			OccurredAt:     now,
		})

		s.logger.Info("tracking session ended",
			zap.String("session_id", sessionID.String()),
			zap.Float64("distance_km", distanceKm),
		)
	}

	dto := toSessionDTO(session)
	return &dto, nil
}

// GetActiveSession returns the user's single active session.
func (s *TrackingService) GetActiveSession(ctx context.Context, userID uuid.UUID) (*SessionDTO, error) {
	session, err := s.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toSessionDTO(session)
	return &dto, nil
}

// History returns recent samples, either for one session in ascending time
// order, or across the user newest first.
func (s *TrackingService) History(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]SampleDTO, error) {
	var samples []*telemetryDomain.LocationSample
	var err error
	if sessionID != nil {
		if _, err = s.sessions.FindByID(ctx, userID, *sessionID); err != nil {
			return nil, err
		}
		samples, err = s.samples.ListBySession(ctx, *sessionID)
	} else {
		samples, err = s.samples.ListByUser(ctx, userID, limit)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]SampleDTO, len(samples))
	for i, sample := range samples {
		dtos[i] = toSampleDTO(sample)
	}
	return dtos, nil
}

// SessionRouteGeoJSON renders a session's samples as a GeoJSON LineString
// feature collection.
func (s *TrackingService) SessionRouteGeoJSON(ctx context.Context, userID, sessionID uuid.UUID) ([]byte, error) {
	session, err := s.sessions.FindByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	samples, err := s.samples.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, domain.NewNotFoundError("route for session", sessionID.String())
	}

	line := make(orb.LineString, len(samples))
	for i, sample := range samples {
		line[i] = orb.Point{sample.Lng, sample.Lat}
	}

	feature := geojson.NewFeature(line)
	feature.Properties["session_id"] = sessionID.String()
	feature.Properties["started_at"] = session.StartedAt().Format(time.RFC3339)
	feature.Properties["locations_count"] = len(samples)
	feature.Properties["distance_km"] = session.DistanceKm()

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)

	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route geojson: %w", err)
	}
	return raw, nil
}

func (s *TrackingService) publishSessionEvent(ctx context.Context, eventType string, payload interface{}) {
	cloudEvt, err := events.NewCloudEvent("service-telemetry", eventType, payload)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicTrackingEvents, cloudEvt); err != nil {
		s.logger.Error("failed to publish session event", zap.Error(err))
	}
}

func toSampleDTO(sample *telemetryDomain.LocationSample) SampleDTO {
	return SampleDTO{
		ID:        sample.ID,
		SessionID: sample.SessionID,
		Lat:       sample.Lat,
		Lng:       sample.Lng,
		Accuracy:  sample.Accuracy,
		Altitude:  sample.Altitude,
		Heading:   sample.Heading,
		Speed:     sample.Speed,
		Timestamp: sample.Timestamp,
	}
}

func toSessionDTO(session *telemetryDomain.TrackingSession) SessionDTO {
	return SessionDTO{
		ID:             session.ID(),
		UserID:         session.UserID(),
		StartedAt:      session.StartedAt(),
		EndedAt:        session.EndedAt(),
		Active:         session.Active(),
		LocationsCount: session.LocationsCount(),
		DistanceKm:     session.DistanceKm(),
	}
}
