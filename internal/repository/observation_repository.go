package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
)

// ObservationModel is the GORM model for the observations table.
type ObservationModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	TripID         *uuid.UUID `gorm:"type:uuid;index"`
	WaypointID     *uuid.UUID `gorm:"type:uuid;index"`
	Type           string     `gorm:"column:observation_type;type:varchar(20);not null"`
	Species        string     `gorm:"type:varchar(80);not null;index"`
	Count          int        `gorm:"not null;default:1"`
	DistanceMeters *float64   `gorm:"type:decimal(8,1)"`
	Direction      *string    `gorm:"type:varchar(20)"`
	Behavior       *string    `gorm:"type:varchar(200)"`
	Lat            *float64   `gorm:"type:double precision"`
	Lng            *float64   `gorm:"type:double precision"`
	Timestamp      time.Time  `gorm:"not null"`
}

// TableName overrides the default table name.
func (ObservationModel) TableName() string { return "observations" }

// GormObservationRepository implements trip.ObservationRepository using GORM.
type GormObservationRepository struct {
	db *gorm.DB
}

// NewGormObservationRepository creates a new GORM-based observation repository.
func NewGormObservationRepository(db *gorm.DB) *GormObservationRepository {
	return &GormObservationRepository{db: db}
}

// Save appends a new observation.
func (r *GormObservationRepository) Save(ctx context.Context, o *tripDomain.Observation) error {
	model := toObservationModel(o)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}
	return nil
}

// ListByUser returns the user's observations, newest first.
func (r *GormObservationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*tripDomain.Observation, error) {
	return r.list(ctx, "user_id = ?", userID)
}

// ListByTrip returns all observations attached to a trip.
func (r *GormObservationRepository) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*tripDomain.Observation, error) {
	return r.list(ctx, "trip_id = ?", tripID)
}

// ListByWaypoint returns the user's observations attached to a waypoint.
func (r *GormObservationRepository) ListByWaypoint(ctx context.Context, userID, waypointID uuid.UUID) ([]*tripDomain.Observation, error) {
	return r.list(ctx, "user_id = ? AND waypoint_id = ?", userID, waypointID)
}

// ListBySpecies returns the user's observations of a species.
func (r *GormObservationRepository) ListBySpecies(ctx context.Context, userID uuid.UUID, species string) ([]*tripDomain.Observation, error) {
	return r.list(ctx, "user_id = ? AND species = ?", userID, species)
}

// CountByTrip returns the number of observations attached to a trip.
func (r *GormObservationRepository) CountByTrip(ctx context.Context, tripID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ObservationModel{}).
		Where("trip_id = ?", tripID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

func (r *GormObservationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*tripDomain.Observation, error) {
	var models []ObservationModel
	err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("timestamp DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	observations := make([]*tripDomain.Observation, len(models))
	for i, m := range models {
		observations[i] = toObservationDomain(&m)
	}
	return observations, nil
}

func toObservationModel(o *tripDomain.Observation) ObservationModel {
	return ObservationModel{
		ID:             o.ID,
		UserID:         o.UserID,
		TripID:         o.TripID,
		WaypointID:     o.WaypointID,
		Type:           string(o.Type),
		Species:        o.Species,
		Count:          o.Count,
		DistanceMeters: o.DistanceMeters,
		Direction:      o.Direction,
		Behavior:       o.Behavior,
		Lat:            o.Lat,
		Lng:            o.Lng,
		Timestamp:      o.Timestamp,
	}
}

func toObservationDomain(m *ObservationModel) *tripDomain.Observation {
	return &tripDomain.Observation{
		ID:             m.ID,
		UserID:         m.UserID,
		TripID:         m.TripID,
		WaypointID:     m.WaypointID,
		Type:           tripDomain.ObservationType(m.Type),
		Species:        m.Species,
		Count:          m.Count,
		DistanceMeters: m.DistanceMeters,
		Direction:      m.Direction,
		Behavior:       m.Behavior,
		Lat:            m.Lat,
		Lng:            m.Lng,
		Timestamp:      m.Timestamp,
	}
}
