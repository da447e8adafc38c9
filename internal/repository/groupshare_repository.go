package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trailmark/service-telemetry/internal/domain"
	groupshareDomain "github.com/trailmark/service-telemetry/internal/domain/groupshare"
)

// GroupPositionModel is the GORM model for the group_positions table.
// One row per (group, member), overwritten on every update.
type GroupPositionModel struct {
	GroupID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Lat       float64   `gorm:"type:double precision;not null"`
	Lng       float64   `gorm:"type:double precision;not null"`
	Heading   *float64  `gorm:"type:decimal(6,2)"`
	Status    string    `gorm:"type:varchar(40)"`
	IsSharing bool      `gorm:"not null;default:true"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// TableName overrides the default table name.
func (GroupPositionModel) TableName() string { return "group_positions" }

// GormGroupShareRepository implements groupshare.Repository using GORM.
type GormGroupShareRepository struct {
	db *gorm.DB
}

// NewGormGroupShareRepository creates a new GORM-based group position repository.
func NewGormGroupShareRepository(db *gorm.DB) *GormGroupShareRepository {
	return &GormGroupShareRepository{db: db}
}

// Upsert writes the (group, user) row, overwriting any previous value.
func (r *GormGroupShareRepository) Upsert(ctx context.Context, p *groupshareDomain.Position) error {
	model := GroupPositionModel{
		GroupID:   p.GroupID,
		UserID:    p.UserID,
		Lat:       p.Lat,
		Lng:       p.Lng,
		Heading:   p.Heading,
		Status:    p.Status,
		IsSharing: p.IsSharing,
		UpdatedAt: p.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert group position: %w", err)
	}
	return nil
}

// ListRecentByGroup returns sharing members updated at or after the cutoff,
// newest first.
func (r *GormGroupShareRepository) ListRecentByGroup(ctx context.Context, groupID uuid.UUID, since time.Time) ([]*groupshareDomain.Position, error) {
	var models []GroupPositionModel
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND is_sharing = ? AND updated_at >= ?", groupID, true, since).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list group positions: %w", err)
	}

	positions := make([]*groupshareDomain.Position, len(models))
	for i, m := range models {
		positions[i] = &groupshareDomain.Position{
			GroupID:   m.GroupID,
			UserID:    m.UserID,
			Lat:       m.Lat,
			Lng:       m.Lng,
			Heading:   m.Heading,
			Status:    m.Status,
			IsSharing: m.IsSharing,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return positions, nil
}

// StopSharing flips is_sharing to false, leaving the last coordinates in
// place for the grace window.
func (r *GormGroupShareRepository) StopSharing(ctx context.Context, groupID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&GroupPositionModel{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_sharing", false)
	if result.Error != nil {
		return fmt.Errorf("failed to stop sharing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("group position", userID.String())
	}
	return nil
}
