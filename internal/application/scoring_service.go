package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/geo"
)

// NearbyTripRadiusM bounds which trips count toward a waypoint's score.
const NearbyTripRadiusM = 500.0

// Sub-score weights. They sum to 1.
const (
	weightSuccess       = 0.40
	weightWeather       = 0.25
	weightActivity      = 0.20
	weightAccessibility = 0.15
)

// expectedWeatherRates is the fixed expectation table the weather correlation
// sub-score compares against. Unlisted labels fall back to 0.5.
var expectedWeatherRates = map[string]float64{
	"Sunny":  0.75,
	"Cloudy": 0.85,
	"Rainy":  0.45,
	"Foggy":  0.65,
	"Snowy":  0.55,
}

// SubScores are the four weighted components of a waypoint quality score.
type SubScores struct {
	SuccessHistory     float64 `json:"success_history"`
	WeatherCorrelation float64 `json:"weather_correlation"`
	Activity           float64 `json:"activity"`
	Accessibility      float64 `json:"accessibility"`
}

// WQSResult is the full scoring output for one waypoint.
type WQSResult struct {
	WaypointID      uuid.UUID               `json:"waypoint_id"`
	WaypointName    string                  `json:"waypoint_name"`
	TotalScore      float64                 `json:"total_score"`
	Classification  alerting.Classification `json:"classification"`
	SubScores       SubScores               `json:"sub_scores"`
	TripsTotal      int                     `json:"trips_total"`
	TripsSuccessful int                     `json:"trips_successful"`
	SuccessRate     float64                 `json:"success_rate"`
	LastTripDate    *time.Time              `json:"last_trip_date,omitempty"`
	ComputedAt      time.Time               `json:"computed_at"`
}

// HeatmapPoint is one waypoint with its score as map intensity.
type HeatmapPoint struct {
	WaypointID     uuid.UUID               `json:"waypoint_id"`
	Name           string                  `json:"name"`
	Lat            float64                 `json:"lat"`
	Lng            float64                 `json:"lng"`
	Score          float64                 `json:"score"`
	Classification alerting.Classification `json:"classification"`
}

// NearbyHotspot is a scored waypoint within a search radius.
type NearbyHotspot struct {
	WaypointID     uuid.UUID               `json:"waypoint_id"`
	Name           string                  `json:"name"`
	Lat            float64                 `json:"lat"`
	Lng            float64                 `json:"lng"`
	DistanceM      float64                 `json:"distance_m"`
	Score          float64                 `json:"score"`
	Classification alerting.Classification `json:"classification"`
}

type scoreCacheEntry struct {
	result    *WQSResult
	expiresAt time.Time
}

// ScoringService computes waypoint quality scores. Classification lookups are
// cached per (user, waypoint) with a coarse TTL for the proximity hot path.
type ScoringService struct {
	waypoints waypointDomain.Repository
	trips     tripDomain.Repository
	logger    *zap.Logger

	cacheTTL time.Duration
	mu       sync.RWMutex
	cache    map[string]scoreCacheEntry

	now func() time.Time
}

// NewScoringService creates a ScoringService with the given classification
// cache TTL.
func NewScoringService(
	waypoints waypointDomain.Repository,
	trips tripDomain.Repository,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ScoringService {
	return &ScoringService{
		waypoints: waypoints,
		trips:     trips,
		logger:    logger,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]scoreCacheEntry),
		now:       time.Now,
	}
}

// Score computes a fresh waypoint quality score and refreshes the cache.
func (s *ScoringService) Score(ctx context.Context, userID, waypointID uuid.UUID) (*WQSResult, error) {
	wp, err := s.waypoints.FindByID(ctx, userID, waypointID)
	if err != nil {
		return nil, err
	}

	trips, err := s.nearbyTrips(ctx, userID, wp)
	if err != nil {
		return nil, err
	}

	result := s.compute(wp, trips)

	s.mu.Lock()
	s.cache[cacheKey(userID, waypointID)] = scoreCacheEntry{
		result:    result,
		expiresAt: s.now().Add(s.cacheTTL),
	}
	s.mu.Unlock()

	return result, nil
}

// CachedScore serves from the cache when fresh and recomputes otherwise.
// The proximity engine only needs eventual freshness.
func (s *ScoringService) CachedScore(ctx context.Context, userID, waypointID uuid.UUID) (*WQSResult, error) {
	key := cacheKey(userID, waypointID)

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.result, nil
	}

	return s.Score(ctx, userID, waypointID)
}

// Heatmap scores the user's whole catalogue for map rendering.
func (s *ScoringService) Heatmap(ctx context.Context, userID uuid.UUID) ([]HeatmapPoint, error) {
	waypoints, err := s.waypoints.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	points := make([]HeatmapPoint, 0, len(waypoints))
	for _, wp := range waypoints {
		result, err := s.CachedScore(ctx, userID, wp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to score waypoint %s: %w", wp.ID, err)
		}
		points = append(points, HeatmapPoint{
			WaypointID:     wp.ID,
			Name:           wp.Name,
			Lat:            wp.Lat,
			Lng:            wp.Lng,
			Score:          result.TotalScore,
			Classification: result.Classification,
		})
	}
	return points, nil
}

// NearbyHotspots returns the user's scored waypoints within radiusKm of the
// position, best score first.
func (s *ScoringService) NearbyHotspots(ctx context.Context, userID uuid.UUID, lat, lng, radiusKm float64) ([]NearbyHotspot, error) {
	waypoints, err := s.waypoints.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	origin := geo.Point{Lat: lat, Lng: lng}
	radiusM := radiusKm * 1000

	hotspots := make([]NearbyHotspot, 0)
	for _, wp := range waypoints {
		d := geo.Distance(origin, geo.Point{Lat: wp.Lat, Lng: wp.Lng})
		if d > radiusM {
			continue
		}
		result, err := s.CachedScore(ctx, userID, wp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to score waypoint %s: %w", wp.ID, err)
		}
		hotspots = append(hotspots, NearbyHotspot{
			WaypointID:     wp.ID,
			Name:           wp.Name,
			Lat:            wp.Lat,
			Lng:            wp.Lng,
			DistanceM:      math.Round(d*10) / 10,
			Score:          result.TotalScore,
			Classification: result.Classification,
		})
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].Score > hotspots[j].Score
	})
	return hotspots, nil
}

// nearbyTrips loads the trips counted toward the waypoint's score: a
// bounding-box prefilter in the store, then the exact haversine pass.
func (s *ScoringService) nearbyTrips(ctx context.Context, userID uuid.UUID, wp *waypointDomain.Waypoint) ([]*tripDomain.Trip, error) {
	dLat := NearbyTripRadiusM / 111_320.0
	dLng := NearbyTripRadiusM / (111_320.0 * math.Cos(wp.Lat*math.Pi/180))

	candidates, err := s.trips.ListStartedInBoundingBox(ctx, userID,
		wp.Lat-dLat, wp.Lat+dLat, wp.Lng-dLng, wp.Lng+dLng)
	if err != nil {
		return nil, err
	}

	center := geo.Point{Lat: wp.Lat, Lng: wp.Lng}
	nearby := make([]*tripDomain.Trip, 0, len(candidates))
	for _, t := range candidates {
		if t.Lat() == nil || t.Lng() == nil {
			continue
		}
		if geo.Distance(center, geo.Point{Lat: *t.Lat(), Lng: *t.Lng()}) <= NearbyTripRadiusM {
			nearby = append(nearby, t)
		}
	}
	return nearby, nil
}

func (s *ScoringService) compute(wp *waypointDomain.Waypoint, trips []*tripDomain.Trip) *WQSResult {
	result := &WQSResult{
		WaypointID:   wp.ID,
		WaypointName: wp.Name,
		TripsTotal:   len(trips),
		ComputedAt:   s.now().UTC(),
	}

	if len(trips) == 0 {
		// With nothing to go on, each component sits at its neutral default.
		// Weather and accessibility deliberately default to 40, not 50: the
		// weighted total must come out at exactly 46.0 so every unscored
		// waypoint lands in the standard band. Do not "fix" them to 50.
		result.SubScores = SubScores{
			SuccessHistory:     50,
			WeatherCorrelation: 40,
			Activity:           50,
			Accessibility:      40,
		}
		result.TotalScore = weightedTotal(result.SubScores)
		result.Classification = Classify(result.TotalScore)
		return result
	}

	var successful int
	var lastTrip *time.Time
	for _, t := range trips {
		if t.Success() {
			successful++
		}
		if st := t.StartTime(); st != nil && (lastTrip == nil || st.After(*lastTrip)) {
			lastTrip = st
		}
	}
	result.TripsSuccessful = successful
	result.SuccessRate = float64(successful) / float64(len(trips))
	result.LastTripDate = lastTrip

	now := s.now().UTC()
	result.SubScores = SubScores{
		SuccessHistory:     successHistoryScore(trips),
		WeatherCorrelation: weatherCorrelationScore(trips),
		Activity:           activityScore(trips, now),
		Accessibility:      accessibilityScore(trips, now),
	}
	result.TotalScore = weightedTotal(result.SubScores)
	result.Classification = Classify(result.TotalScore)
	return result
}

func weightedTotal(s SubScores) float64 {
	total := s.SuccessHistory*weightSuccess +
		s.WeatherCorrelation*weightWeather +
		s.Activity*weightActivity +
		s.Accessibility*weightAccessibility
	return math.Round(total*10) / 10
}

// Classify maps a total score onto its classification band.
func Classify(score float64) alerting.Classification {
	switch {
	case score >= 75:
		return alerting.ClassHotspot
	case score >= 55:
		return alerting.ClassGood
	case score >= 35:
		return alerting.ClassStandard
	default:
		return alerting.ClassWeak
	}
}

func successHistoryScore(trips []*tripDomain.Trip) float64 {
	var successful int
	for _, t := range trips {
		if t.Success() {
			successful++
		}
	}
	base := float64(successful) / float64(len(trips)) * 100
	volumeBonus := math.Min(10, float64(len(trips))*0.5)
	return math.Min(100, base+volumeBonus)
}

func weatherCorrelationScore(trips []*tripDomain.Trip) float64 {
	type tally struct{ total, successful int }
	byWeather := make(map[string]*tally)
	for _, t := range trips {
		w := t.Weather()
		if w == "" {
			continue
		}
		if byWeather[w] == nil {
			byWeather[w] = &tally{}
		}
		byWeather[w].total++
		if t.Success() {
			byWeather[w].successful++
		}
	}
	if len(byWeather) == 0 {
		return 50
	}

	// Stable iteration keeps the score bit-exact across runs.
	weathers := make([]string, 0, len(byWeather))
	for w := range byWeather {
		weathers = append(weathers, w)
	}
	sort.Strings(weathers)

	var sum float64
	for _, w := range weathers {
		c := byWeather[w]
		actual := float64(c.successful) / float64(c.total)
		expected, ok := expectedWeatherRates[w]
		if !ok {
			expected = 0.5
		}
		score := actual/math.Max(expected, 0.1)*50 + 25
		sum += clamp(score, 0, 100)
	}
	return sum / float64(len(weathers))
}

func activityScore(trips []*tripDomain.Trip, now time.Time) float64 {
	var totalObs int
	recent := false
	for _, t := range trips {
		totalObs += t.ObservationsCount()
		if st := t.StartTime(); st != nil && now.Sub(*st) <= 30*24*time.Hour {
			recent = true
		}
	}
	avgObs := float64(totalObs) / float64(len(trips))
	score := math.Min(100, avgObs*20)
	if recent {
		score = math.Min(100, score+10)
	}
	return score
}

func accessibilityScore(trips []*tripDomain.Trip, now time.Time) float64 {
	var recent90d int
	for _, t := range trips {
		if st := t.StartTime(); st != nil && now.Sub(*st) <= 90*24*time.Hour {
			recent90d++
		}
	}
	frequency := math.Min(50, float64(len(trips))*5)
	recency := math.Min(50, float64(recent90d)*10)
	return frequency + recency
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cacheKey(userID, waypointID uuid.UUID) string {
	return userID.String() + ":" + waypointID.String()
}
