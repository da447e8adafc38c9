package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trailmark/service-telemetry/internal/domain"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
)

// VisitModel is the GORM model for the waypoint_visits table.
type VisitModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	WaypointID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	TripID            *uuid.UUID `gorm:"type:uuid;index"`
	ArrivalTime       time.Time  `gorm:"not null"`
	DepartureTime     *time.Time
	DurationMinutes   *float64   `gorm:"type:decimal(8,2)"`
	Weather           string     `gorm:"type:varchar(40)"`
	ActivityLevel     int        `gorm:"not null;default:0"`
	Success           bool       `gorm:"not null;default:false"`
	ObservationsCount int        `gorm:"not null;default:0"`
}

// TableName overrides the default table name.
func (VisitModel) TableName() string { return "waypoint_visits" }

// GormVisitRepository implements trip.VisitRepository using GORM.
type GormVisitRepository struct {
	db *gorm.DB
}

// NewGormVisitRepository creates a new GORM-based visit repository.
func NewGormVisitRepository(db *gorm.DB) *GormVisitRepository {
	return &GormVisitRepository{db: db}
}

// Save persists a new visit.
func (r *GormVisitRepository) Save(ctx context.Context, v *tripDomain.Visit) error {
	model := toVisitModel(v)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save visit: %w", err)
	}
	return nil
}

// Update persists changes to an existing visit.
func (r *GormVisitRepository) Update(ctx context.Context, v *tripDomain.Visit) error {
	model := toVisitModel(v)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}
	return nil
}

// FindByID retrieves a visit scoped by owner.
func (r *GormVisitRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*tripDomain.Visit, error) {
	var model VisitModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("visit", id.String())
		}
		return nil, fmt.Errorf("failed to find visit: %w", err)
	}
	return toVisitDomain(&model), nil
}

// ListByTrip returns all visits belonging to a trip, in arrival order.
func (r *GormVisitRepository) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*tripDomain.Visit, error) {
	var models []VisitModel
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("arrival_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visits by trip: %w", err)
	}
	return visitModelsToDomain(models), nil
}

// ListByWaypoint returns the user's visits to a waypoint, newest first.
func (r *GormVisitRepository) ListByWaypoint(ctx context.Context, userID, waypointID uuid.UUID) ([]*tripDomain.Visit, error) {
	var models []VisitModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND waypoint_id = ?", userID, waypointID).
		Order("arrival_time DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visits by waypoint: %w", err)
	}
	return visitModelsToDomain(models), nil
}

func visitModelsToDomain(models []VisitModel) []*tripDomain.Visit {
	visits := make([]*tripDomain.Visit, len(models))
	for i, m := range models {
		visits[i] = toVisitDomain(&m)
	}
	return visits
}

func toVisitModel(v *tripDomain.Visit) VisitModel {
	return VisitModel{
		ID:                v.ID,
		UserID:            v.UserID,
		WaypointID:        v.WaypointID,
		TripID:            v.TripID,
		ArrivalTime:       v.ArrivalTime,
		DepartureTime:     v.DepartureTime,
		DurationMinutes:   v.DurationMinutes,
		Weather:           v.Weather,
		ActivityLevel:     v.ActivityLevel,
		Success:           v.Success,
		ObservationsCount: v.ObservationsCount,
	}
}

func toVisitDomain(m *VisitModel) *tripDomain.Visit {
	return &tripDomain.Visit{
		ID:                m.ID,
		UserID:            m.UserID,
		WaypointID:        m.WaypointID,
		TripID:            m.TripID,
		ArrivalTime:       m.ArrivalTime,
		DepartureTime:     m.DepartureTime,
		DurationMinutes:   m.DurationMinutes,
		Weather:           m.Weather,
		ActivityLevel:     m.ActivityLevel,
		Success:           m.Success,
		ObservationsCount: m.ObservationsCount,
	}
}
