package application

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	headingDomain "github.com/trailmark/service-telemetry/internal/domain/heading"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/geo"
	"github.com/trailmark/service-telemetry/internal/weather"
)

const (
	// maxCandidatePOIs bounds the catalogue scan per refresh.
	maxCandidatePOIs = 100

	// maxVisiblePOIs truncates the sorted visibility list.
	maxVisiblePOIs = 20

	// poiNearbyDistanceM and poiNearbyMinPriority gate poi_nearby alerts.
	poiNearbyDistanceM   = 100.0
	poiNearbyMinPriority = 8

	// weatherTimeout bounds the wind refresh on the update path.
	weatherTimeout = 5 * time.Second
)

// HeadingSessionDTO is the live view returned on every heading operation.
type HeadingSessionDTO struct {
	ID                uuid.UUID                  `json:"id"`
	State             string                     `json:"state"`
	Position          headingDomain.Position    `json:"position"`
	ViewCone          headingDomain.ViewCone    `json:"view_cone"`
	Wind              headingDomain.Wind        `json:"wind"`
	VisiblePOIs       []headingDomain.VisiblePOI `json:"visible_pois"`
	Alerts            []headingDomain.Alert     `json:"alerts"`
	DistanceTraveledM float64                    `json:"distance_traveled_m"`
	DurationSeconds   int64                      `json:"duration_seconds"`
	StartedAt         time.Time                  `json:"started_at"`
	LastUpdate        time.Time                  `json:"last_update"`
}

// UpdateHeadingPositionInput carries a heading session position update.
type UpdateHeadingPositionInput struct {
	Lat      float64
	Lng      float64
	Altitude *float64
	Accuracy *float64
	Heading  float64
	Speed    *float64
}

// HeadingService owns the live heading sessions: an in-process cache with
// write-through persistence. The cache is authoritative while a session is
// live; multi-process deployments need sticky routing.
type HeadingService struct {
	repo      headingDomain.Repository
	waypoints waypointDomain.Repository
	wind      weather.Provider
	demoPOIs  bool
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*headingDomain.Session

	now func() time.Time
}

// NewHeadingService creates a HeadingService. demoPOIs enables synthesizing
// placeholder POIs for empty cones and must stay off in production.
func NewHeadingService(
	repo headingDomain.Repository,
	waypoints waypointDomain.Repository,
	wind weather.Provider,
	demoPOIs bool,
	logger *zap.Logger,
) *HeadingService {
	return &HeadingService{
		repo:      repo,
		waypoints: waypoints,
		wind:      wind,
		demoPOIs:  demoPOIs,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*headingDomain.Session),
		now:       time.Now,
	}
}

// CreateSession opens a live heading session with precomputed cone vertices.
// Zero aperture or range select the defaults.
func (s *HeadingService) CreateSession(ctx context.Context, userID uuid.UUID, lat, lng, headingDeg, apertureDeg, rangeM float64) (*HeadingSessionDTO, error) {
	if apertureDeg == 0 {
		apertureDeg = headingDomain.DefaultApertureDeg
	}
	if rangeM == 0 {
		rangeM = headingDomain.DefaultRangeM
	}

	session := headingDomain.NewSession(userID, lat, lng, headingDeg, apertureDeg, rangeM)
	s.refreshWind(ctx, session)
	s.refreshVisiblePOIs(ctx, session)
	s.synthesizeAlerts(session)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	if err := s.repo.Save(ctx, session); err != nil {
		s.logger.Warn("failed to persist heading session",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("heading session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return toHeadingDTO(session), nil
}

// UpdatePosition moves an active session: accumulates traveled distance,
// regenerates the cone, refreshes wind, recomputes visibility, and collects
// alerts.
func (s *HeadingService) UpdatePosition(ctx context.Context, userID, sessionID uuid.UUID, in UpdateHeadingPositionInput) (*HeadingSessionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != headingDomain.StateActive {
		return nil, domain.NewInvalidStateError(string(session.State), string(headingDomain.StateActive))
	}

	prev := session.Apex()
	next := geo.Point{Lat: in.Lat, Lng: in.Lng}
	session.DistanceTraveledM += geo.Distance(prev, next)

	session.Position = headingDomain.Position{
		Lat:      in.Lat,
		Lng:      in.Lng,
		Altitude: in.Altitude,
		Accuracy: in.Accuracy,
		Heading:  in.Heading,
		Speed:    in.Speed,
	}
	session.ViewCone.Recompute(next, in.Heading)

	s.refreshWind(ctx, session)
	s.refreshVisiblePOIs(ctx, session)
	s.synthesizeAlerts(session)
	session.Touch(s.now())

	s.writeThrough(ctx, session)
	return toHeadingDTO(session), nil
}

// UpdateSettings adjusts the cone aperture and/or range, then recomputes the
// vertices and visibility.
func (s *HeadingService) UpdateSettings(ctx context.Context, userID, sessionID uuid.UUID, apertureDeg, rangeM *float64) (*HeadingSessionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	if apertureDeg != nil {
		session.ViewCone.ApertureDeg = *apertureDeg
	}
	if rangeM != nil {
		session.ViewCone.RangeM = *rangeM
	}
	session.ViewCone.Recompute(session.Apex(), session.Position.Heading)
	s.refreshVisiblePOIs(ctx, session)
	session.Touch(s.now())

	s.writeThrough(ctx, session)
	return toHeadingDTO(session), nil
}

// Pause suspends an active session.
func (s *HeadingService) Pause(ctx context.Context, userID, sessionID uuid.UUID) (*HeadingSessionDTO, error) {
	return s.setState(ctx, userID, sessionID, headingDomain.StateActive, headingDomain.StatePaused)
}

// Resume reactivates a paused session.
func (s *HeadingService) Resume(ctx context.Context, userID, sessionID uuid.UUID) (*HeadingSessionDTO, error) {
	return s.setState(ctx, userID, sessionID, headingDomain.StatePaused, headingDomain.StateActive)
}

// AcknowledgeAlert marks one session alert as acknowledged.
func (s *HeadingService) AcknowledgeAlert(ctx context.Context, userID, sessionID, alertID uuid.UUID) (*HeadingSessionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range session.Alerts {
		if session.Alerts[i].ID == alertID {
			session.Alerts[i].Acknowledged = true
			found = true
			break
		}
	}
	if !found {
		return nil, domain.NewNotFoundError("alert", alertID.String())
	}

	s.writeThrough(ctx, session)
	return toHeadingDTO(session), nil
}

// EndSession closes the session, evicts it from the cache, and returns the
// summary digest.
func (s *HeadingService) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*headingDomain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session.State = headingDomain.StateEnded
	session.EndedAt = &now
	session.Touch(now)
	delete(s.sessions, sessionID)

	s.writeThrough(ctx, session)

	s.logger.Info("heading session ended",
		zap.String("session_id", sessionID.String()),
		zap.Int64("duration_seconds", session.DurationSeconds),
	)

	return &headingDomain.Summary{
		SessionID:         session.ID,
		DurationSeconds:   session.DurationSeconds,
		DistanceTraveledM: math.Round(session.DistanceTraveledM*10) / 10,
		POIsVisited:       session.POIsVisited,
		AlertsCount:       session.AlertsTotal,
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
	}, nil
}

// GetSession returns the live view of a cached session.
func (s *HeadingService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*HeadingSessionDTO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return toHeadingDTO(session), nil
}

func (s *HeadingService) setState(ctx context.Context, userID, sessionID uuid.UUID, from, to headingDomain.State) (*HeadingSessionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lockedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != from {
		return nil, domain.NewInvalidStateError(string(session.State), string(to))
	}
	session.State = to
	session.Touch(s.now())

	s.writeThrough(ctx, session)
	return toHeadingDTO(session), nil
}

// lockedSession resolves a session the caller owns. The caller holds s.mu.
func (s *HeadingService) lockedSession(userID, sessionID uuid.UUID) (*headingDomain.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, domain.NewNotFoundError("heading session", sessionID.String())
	}
	return session, nil
}

// refreshWind pulls current wind with its own deadline. A provider failure
// keeps the previous reading.
func (s *HeadingService) refreshWind(ctx context.Context, session *headingDomain.Session) {
	wctx, cancel := context.WithTimeout(ctx, weatherTimeout)
	defer cancel()

	w, err := s.wind.CurrentWind(wctx, session.Position.Lat, session.Position.Lng)
	if err != nil {
		s.logger.Warn("wind refresh failed", zap.Error(err))
		return
	}

	session.Wind = headingDomain.Wind{
		DirectionDeg: w.DirectionDeg,
		SpeedKmh:     w.SpeedKmh,
		GustsKmh:     w.GustsKmh,
		Favorable:    windFavorable(w.DirectionDeg, session.Position.Heading),
	}
}

// windFavorable: wind blowing in from the view direction carries the hunter's
// scent away from the cone.
func windFavorable(windFromDeg, headingDeg float64) bool {
	rel := geo.NormalizeRelativeAngle(windFromDeg - headingDeg)
	return math.Abs(rel) <= 90
}

// refreshVisiblePOIs projects the catalogue into the cone: up to
// maxCandidatePOIs scanned, the ones inside kept, sorted by ascending
// distance with input order as tie-break, truncated to maxVisiblePOIs.
func (s *HeadingService) refreshVisiblePOIs(ctx context.Context, session *headingDomain.Session) {
	waypoints, err := s.waypoints.ListByUser(ctx, session.UserID)
	if err != nil {
		s.logger.Warn("failed to load waypoints for visibility", zap.Error(err))
		return
	}
	if len(waypoints) > maxCandidatePOIs {
		waypoints = waypoints[:maxCandidatePOIs]
	}

	apex := session.Apex()
	cone := session.ViewCone
	heading := session.Position.Heading

	visible := make([]headingDomain.VisiblePOI, 0)
	for _, wp := range waypoints {
		target := geo.Point{Lat: wp.Lat, Lng: wp.Lng}
		res := geo.PointInCone(apex, heading, cone.ApertureDeg, cone.RangeM, target)
		if !res.In {
			continue
		}
		visible = append(visible, headingDomain.VisiblePOI{
			ID:            wp.ID,
			Name:          wp.Name,
			Type:          wp.Type,
			Lat:           wp.Lat,
			Lng:           wp.Lng,
			VisibleInCone: true,
			DistanceM:     math.Round(res.DistanceM*10) / 10,
			Bearing:       math.Round(geo.InitialBearing(apex, target)*10) / 10,
			RelativeAngle: math.Round(res.RelativeAngle*10) / 10,
			Priority:      wp.Priority,
			Icon:          wp.Icon,
			Color:         wp.Color,
		})
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].DistanceM < visible[j].DistanceM
	})
	if len(visible) > maxVisiblePOIs {
		visible = visible[:maxVisiblePOIs]
	}

	if len(visible) == 0 && s.demoPOIs {
		visible = s.demoSet(session)
	}

	session.VisiblePOIs = visible
	session.POIsVisited = len(visible)
}

// demoSet synthesizes placeholder POIs inside the cone. Development only.
func (s *HeadingService) demoSet(session *headingDomain.Session) []headingDomain.VisiblePOI {
	apex := session.Apex()
	heading := session.Position.Heading
	cone := session.ViewCone

	names := []string{"Demo stand", "Demo feeder", "Demo crossing"}
	offsets := []float64{-cone.ApertureDeg / 4, 0, cone.ApertureDeg / 4}

	pois := make([]headingDomain.VisiblePOI, 0, len(names))
	for i, name := range names {
		d := cone.RangeM * float64(i+1) / 4
		p := geo.Destination(apex, math.Mod(heading+offsets[i]+360, 360), d)
		pois = append(pois, headingDomain.VisiblePOI{
			ID:            uuid.New(),
			Name:          name,
			Type:          "demo",
			Lat:           p.Lat,
			Lng:           p.Lng,
			VisibleInCone: true,
			DistanceM:     math.Round(d*10) / 10,
			Bearing:       math.Round(geo.InitialBearing(apex, p)*10) / 10,
			RelativeAngle: offsets[i],
			Priority:      5,
		})
	}
	return pois
}

// synthesizeAlerts pushes wind_change and poi_nearby advisories per the
// session's current state.
func (s *HeadingService) synthesizeAlerts(session *headingDomain.Session) {
	now := s.now().UTC()

	if !session.Wind.Favorable && !session.UnacknowledgedOfType("wind_change") {
		session.PushAlert(headingDomain.Alert{
			ID:        uuid.New(),
			Type:      "wind_change",
			Priority:  "high",
			Message:   "Wind shifted against you — your scent is carrying into the cone.",
			CreatedAt: now,
		})
	}

	count := 0
	for _, poi := range session.VisiblePOIs {
		if count >= 3 {
			break
		}
		if poi.DistanceM >= poiNearbyDistanceM || poi.Priority < poiNearbyMinPriority {
			continue
		}
		count++
		if session.HasAlertForPOI(poi.Name) {
			continue
		}
		session.PushAlert(headingDomain.Alert{
			ID:        uuid.New(),
			Type:      "poi_nearby",
			Priority:  "medium",
			Message:   "Close to '" + poi.Name + "' (" + alerting.FormatDistance(poi.DistanceM) + ").",
			POIName:   poi.Name,
			CreatedAt: now,
		})
	}
}

func (s *HeadingService) writeThrough(ctx context.Context, session *headingDomain.Session) {
	if err := s.repo.Update(ctx, session); err != nil {
		s.logger.Warn("heading write-through failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
}

func toHeadingDTO(session *headingDomain.Session) *HeadingSessionDTO {
	pois := session.VisiblePOIs
	if pois == nil {
		pois = []headingDomain.VisiblePOI{}
	}
	alerts := session.Alerts
	if alerts == nil {
		alerts = []headingDomain.Alert{}
	}
	return &HeadingSessionDTO{
		ID:                session.ID,
		State:             string(session.State),
		Position:          session.Position,
		ViewCone:          session.ViewCone,
		Wind:              session.Wind,
		VisiblePOIs:       pois,
		Alerts:            alerts,
		DistanceTraveledM: math.Round(session.DistanceTraveledM*10) / 10,
		DurationSeconds:   session.DurationSeconds,
		StartedAt:         session.StartedAt,
		LastUpdate:        session.LastUpdate,
	}
}
