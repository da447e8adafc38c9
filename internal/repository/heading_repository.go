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
	headingDomain "github.com/trailmark/service-telemetry/internal/domain/heading"
)

// HeadingSessionModel is the GORM model for the heading_sessions table. The
// live session state is stored as one JSON snapshot; the scalar columns exist
// for queries over ended sessions.
type HeadingSessionModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	State      string     `gorm:"type:varchar(20);not null"`
	Snapshot   string     `gorm:"type:text;not null"`
	StartedAt  time.Time  `gorm:"not null"`
	LastUpdate time.Time  `gorm:"not null"`
	EndedAt    *time.Time
}

// TableName overrides the default table name.
func (HeadingSessionModel) TableName() string { return "heading_sessions" }

// GormHeadingRepository implements heading.Repository using GORM.
type GormHeadingRepository struct {
	db *gorm.DB
}

// NewGormHeadingRepository creates a new GORM-based heading session repository.
func NewGormHeadingRepository(db *gorm.DB) *GormHeadingRepository {
	return &GormHeadingRepository{db: db}
}

// Save persists a new heading session snapshot.
func (r *GormHeadingRepository) Save(ctx context.Context, s *headingDomain.Session) error {
	model, err := toHeadingModel(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save heading session: %w", err)
	}
	return nil
}

// Update overwrites the session snapshot. Upsert semantics cover the case of
// a write-through against a row the process has not persisted yet.
func (r *GormHeadingRepository) Update(ctx context.Context, s *headingDomain.Session) error {
	model, err := toHeadingModel(s)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to update heading session: %w", err)
	}
	return nil
}

// FindByID retrieves a persisted heading session.
func (r *GormHeadingRepository) FindByID(ctx context.Context, id uuid.UUID) (*headingDomain.Session, error) {
	var model HeadingSessionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("heading session", id.String())
		}
		return nil, fmt.Errorf("failed to find heading session: %w", err)
	}

	var session headingDomain.Session
	if err := json.Unmarshal([]byte(model.Snapshot), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal heading session snapshot: %w", err)
	}
	return &session, nil
}

func toHeadingModel(s *headingDomain.Session) (HeadingSessionModel, error) {
	snapshot, err := json.Marshal(s)
	if err != nil {
		return HeadingSessionModel{}, fmt.Errorf("failed to marshal heading session snapshot: %w", err)
	}
	return HeadingSessionModel{
		ID:         s.ID,
		UserID:     s.UserID,
		State:      string(s.State),
		Snapshot:   string(snapshot),
		StartedAt:  s.StartedAt,
		LastUpdate: s.LastUpdate,
		EndedAt:    s.EndedAt,
	}, nil
}
