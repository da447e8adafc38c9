package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trailmark/service-telemetry/internal/domain"
	tripDomain "github.com/trailmark/service-telemetry/internal/domain/trip"
)

// TripModel is the GORM model for the trips table.
type TripModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_trips_user"`
	Title             string     `gorm:"type:varchar(200);not null"`
	TargetSpecies     string     `gorm:"type:varchar(80)"`
	Status            string     `gorm:"type:varchar(20);not null;index"`
	PlannedDate       *time.Time
	StartTime         *time.Time
	EndTime           *time.Time
	DurationHours     float64    `gorm:"type:decimal(8,2);default:0"`
	Weather           string     `gorm:"type:varchar(40)"`
	Temperature       *float64   `gorm:"type:decimal(5,1)"`
	WindSpeed         *float64   `gorm:"type:decimal(6,1)"`
	Lat               *float64   `gorm:"type:double precision"`
	Lng               *float64   `gorm:"type:double precision"`
	Success           bool       `gorm:"not null;default:false"`
	PlannedWaypoints  string     `gorm:"type:text"` // JSON array of waypoint ids, order preserved
	VisitedWaypoints  string     `gorm:"type:text"` // JSON array of waypoint ids, set semantics
	ObservationsCount int        `gorm:"not null;default:0"`
	Notes             string     `gorm:"type:text"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName overrides the default table name.
func (TripModel) TableName() string { return "trips" }

// TripProjectionModel is the GORM model for the denormalized analytics table.
type TripProjectionModel struct {
	TripID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title             string     `gorm:"type:varchar(200);not null"`
	TargetSpecies     string     `gorm:"type:varchar(80)"`
	Status            string     `gorm:"type:varchar(20);not null"`
	StartTime         *time.Time
	EndTime           *time.Time
	DurationHours     float64    `gorm:"type:decimal(8,2);default:0"`
	Weather           string     `gorm:"type:varchar(40)"`
	Temperature       *float64   `gorm:"type:decimal(5,1)"`
	WindSpeed         *float64   `gorm:"type:decimal(6,1)"`
	Success           bool       `gorm:"not null"`
	ObservationsCount int        `gorm:"not null;default:0"`
	VisitedCount      int        `gorm:"not null;default:0"`
	ProjectedAt       time.Time  `gorm:"not null"`
}

// TableName overrides the default table name.
func (TripProjectionModel) TableName() string { return "trip_projections" }

// GormTripRepository implements trip.Repository using GORM.
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GORM-based trip repository.
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

// Save persists a new trip.
func (r *GormTripRepository) Save(ctx context.Context, t *tripDomain.Trip) error {
	model, err := toTripModel(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

// Update persists changes to an existing trip.
func (r *GormTripRepository) Update(ctx context.Context, t *tripDomain.Trip) error {
	model, err := toTripModel(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return nil
}

// FindByID retrieves a trip scoped by owner.
func (r *GormTripRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*tripDomain.Trip, error) {
	var model TripModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("trip", id.String())
		}
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}
	return toTripDomain(&model)
}

// ListByUser returns the user's trips, newest first.
func (r *GormTripRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*tripDomain.Trip, error) {
	var models []TripModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return tripModelsToDomain(models)
}

// ListStartedInBoundingBox returns started trips with coordinates inside the
// box. The exact haversine pass happens in the scoring service.
func (r *GormTripRepository) ListStartedInBoundingBox(ctx context.Context, userID uuid.UUID, minLat, maxLat, minLng, maxLng float64) ([]*tripDomain.Trip, error) {
	var models []TripModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_time IS NOT NULL AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?",
			userID, minLat, maxLat, minLng, maxLng).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trips in bounding box: %w", err)
	}
	return tripModelsToDomain(models)
}

// SaveProjection upserts the analytics projection row for a completed trip.
func (r *GormTripRepository) SaveProjection(ctx context.Context, p *tripDomain.Projection) error {
	model := TripProjectionModel{
		TripID:            p.TripID,
		UserID:            p.UserID,
		Title:             p.Title,
		TargetSpecies:     p.TargetSpecies,
		Status:            p.Status,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		DurationHours:     p.DurationHours,
		Weather:           p.Weather,
		Temperature:       p.Temperature,
		WindSpeed:         p.WindSpeed,
		Success:           p.Success,
		ObservationsCount: p.ObservationsCount,
		VisitedCount:      p.VisitedCount,
		ProjectedAt:       p.ProjectedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trip_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save trip projection: %w", err)
	}
	return nil
}

// FindProjection retrieves the analytics projection for a trip.
func (r *GormTripRepository) FindProjection(ctx context.Context, tripID uuid.UUID) (*tripDomain.Projection, error) {
	var model TripProjectionModel
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("trip projection", tripID.String())
		}
		return nil, fmt.Errorf("failed to find trip projection: %w", err)
	}
	return &tripDomain.Projection{
		TripID:            model.TripID,
		UserID:            model.UserID,
		Title:             model.Title,
		TargetSpecies:     model.TargetSpecies,
		Status:            model.Status,
		StartTime:         model.StartTime,
		EndTime:           model.EndTime,
		DurationHours:     model.DurationHours,
		Weather:           model.Weather,
		Temperature:       model.Temperature,
		WindSpeed:         model.WindSpeed,
		Success:           model.Success,
		ObservationsCount: model.ObservationsCount,
		VisitedCount:      model.VisitedCount,
		ProjectedAt:       model.ProjectedAt,
	}, nil
}

func tripModelsToDomain(models []TripModel) ([]*tripDomain.Trip, error) {
	trips := make([]*tripDomain.Trip, len(models))
	for i, m := range models {
		t, err := toTripDomain(&m)
		if err != nil {
			return nil, err
		}
		trips[i] = t
	}
	return trips, nil
}

func toTripModel(t *tripDomain.Trip) (TripModel, error) {
	planned, err := marshalUUIDs(t.PlannedWaypoints())
	if err != nil {
		return TripModel{}, err
	}
	visited, err := marshalUUIDs(t.VisitedWaypoints())
	if err != nil {
		return TripModel{}, err
	}

	return TripModel{
		ID:                t.ID(),
		UserID:            t.UserID(),
		Title:             t.Title(),
		TargetSpecies:     t.TargetSpecies(),
		Status:            string(t.Status()),
		PlannedDate:       t.PlannedDate(),
		StartTime:         t.StartTime(),
		EndTime:           t.EndTime(),
		DurationHours:     t.DurationHours(),
		Weather:           t.Weather(),
		Temperature:       t.Temperature(),
		WindSpeed:         t.WindSpeed(),
		Lat:               t.Lat(),
		Lng:               t.Lng(),
		Success:           t.Success(),
		PlannedWaypoints:  planned,
		VisitedWaypoints:  visited,
		ObservationsCount: t.ObservationsCount(),
		Notes:             t.Notes(),
		CreatedAt:         t.CreatedAt(),
		UpdatedAt:         t.UpdatedAt(),
	}, nil
}

func toTripDomain(m *TripModel) (*tripDomain.Trip, error) {
	planned, err := unmarshalUUIDs(m.PlannedWaypoints)
	if err != nil {
		return nil, err
	}
	visited, err := unmarshalUUIDs(m.VisitedWaypoints)
	if err != nil {
		return nil, err
	}

	return tripDomain.Reconstruct(
		m.ID,
		m.UserID,
		m.Title,
		m.TargetSpecies,
		tripDomain.Status(m.Status),
		m.PlannedDate,
		m.StartTime,
		m.EndTime,
		m.DurationHours,
		m.Weather,
		m.Temperature,
		m.WindSpeed,
		m.Lat,
		m.Lng,
		m.Success,
		planned,
		visited,
		m.ObservationsCount,
		m.Notes,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func marshalUUIDs(ids []uuid.UUID) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to marshal uuid list: %w", err)
	}
	return string(raw), nil
}

func unmarshalUUIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal uuid list: %w", err)
	}
	return ids, nil
}
