package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trailmark/service-telemetry/internal/domain"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
)

// WaypointModel is the GORM model for the waypoints table.
type WaypointModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_waypoints_user"`
	Name      string    `gorm:"type:varchar(120);not null"`
	Lat       float64   `gorm:"type:double precision;not null"`
	Lng       float64   `gorm:"type:double precision;not null"`
	Type      string    `gorm:"type:varchar(40)"`
	Color     string    `gorm:"type:varchar(20)"`
	Icon      string    `gorm:"type:varchar(40)"`
	Priority  int       `gorm:"not null;default:5"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName overrides the default table name.
func (WaypointModel) TableName() string { return "waypoints" }

// GormWaypointRepository implements waypoint.Repository using GORM.
type GormWaypointRepository struct {
	db *gorm.DB
}

// NewGormWaypointRepository creates a new GORM-based waypoint repository.
func NewGormWaypointRepository(db *gorm.DB) *GormWaypointRepository {
	return &GormWaypointRepository{db: db}
}

// Upsert creates or replaces a waypoint keyed by id.
func (r *GormWaypointRepository) Upsert(ctx context.Context, wp *waypointDomain.Waypoint) error {
	model := toWaypointModel(wp)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert waypoint: %w", err)
	}
	return nil
}

// FindByID retrieves one waypoint scoped by owner. A waypoint owned by
// another user is NotFound, never PermissionDenied.
func (r *GormWaypointRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*waypointDomain.Waypoint, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("waypoint", id.String())
		}
		return nil, fmt.Errorf("failed to find waypoint: %w", err)
	}
	return toWaypointDomain(&model), nil
}

// ListByUser returns the user's full catalogue, oldest first.
func (r *GormWaypointRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*waypointDomain.Waypoint, error) {
	var models []WaypointModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints: %w", err)
	}

	waypoints := make([]*waypointDomain.Waypoint, len(models))
	for i, m := range models {
		waypoints[i] = toWaypointDomain(&m)
	}
	return waypoints, nil
}

// Delete removes a waypoint scoped by owner.
func (r *GormWaypointRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&WaypointModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete waypoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("waypoint", id.String())
	}
	return nil
}

func toWaypointModel(w *waypointDomain.Waypoint) WaypointModel {
	return WaypointModel{
		ID:        w.ID,
		UserID:    w.UserID,
		Name:      w.Name,
		Lat:       w.Lat,
		Lng:       w.Lng,
		Type:      w.Type,
		Color:     w.Color,
		Icon:      w.Icon,
		Priority:  w.Priority,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toWaypointDomain(m *WaypointModel) *waypointDomain.Waypoint {
	return &waypointDomain.Waypoint{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Lat:       m.Lat,
		Lng:       m.Lng,
		Type:      m.Type,
		Color:     m.Color,
		Icon:      m.Icon,
		Priority:  m.Priority,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
