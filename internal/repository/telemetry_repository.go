package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trailmark/service-telemetry/internal/domain"
	telemetryDomain "github.com/trailmark/service-telemetry/internal/domain/telemetry"
)

// TrackingSessionModel is the GORM model for the tracking_sessions table.
type TrackingSessionModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_sessions_user_active"`
	StartedAt      time.Time  `gorm:"not null"`
	EndedAt        *time.Time
	Active         bool       `gorm:"not null;default:true;index:idx_sessions_user_active"`
	LocationsCount int        `gorm:"not null;default:0"`
	DistanceKm     float64    `gorm:"type:decimal(10,3);default:0"`
}

// TableName overrides the default table name.
func (TrackingSessionModel) TableName() string { return "tracking_sessions" }

// LocationSampleModel is the GORM model for the location_samples table.
type LocationSampleModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_samples_user_ts"`
	SessionID *uuid.UUID `gorm:"type:uuid;index:idx_samples_session_ts"`
	Lat       float64    `gorm:"type:double precision;not null"`
	Lng       float64    `gorm:"type:double precision;not null"`
	Accuracy  *float64   `gorm:"type:decimal(8,2)"`
	Altitude  *float64   `gorm:"type:decimal(8,2)"`
	Heading   *float64   `gorm:"type:decimal(6,2)"`
	Speed     *float64   `gorm:"type:decimal(8,2)"`
	Timestamp time.Time  `gorm:"not null;index:idx_samples_user_ts;index:idx_samples_session_ts"`
}

// TableName overrides the default table name.
func (LocationSampleModel) TableName() string { return "location_samples" }

// GormSessionRepository implements telemetry.SessionRepository using GORM.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GORM-based session repository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Save persists a new tracking session.
func (r *GormSessionRepository) Save(ctx context.Context, s *telemetryDomain.TrackingSession) error {
	model := toSessionModel(s)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save tracking session: %w", err)
	}
	return nil
}

// Update persists changes to an existing tracking session.
func (r *GormSessionRepository) Update(ctx context.Context, s *telemetryDomain.TrackingSession) error {
	model := toSessionModel(s)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to update tracking session: %w", err)
	}
	return nil
}

// FindByID retrieves a session scoped by owner.
func (r *GormSessionRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*telemetryDomain.TrackingSession, error) {
	var model TrackingSessionModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("tracking session", id.String())
		}
		return nil, fmt.Errorf("failed to find tracking session: %w", err)
	}
	return toSessionDomain(&model), nil
}

// FindActiveByUser retrieves the user's single active session.
func (r *GormSessionRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*telemetryDomain.TrackingSession, error) {
	var model TrackingSessionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("started_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("active tracking session", userID.String())
		}
		return nil, fmt.Errorf("failed to find active tracking session: %w", err)
	}
	return toSessionDomain(&model), nil
}

// DeactivateAllForUser closes every active session for the user.
func (r *GormSessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, endedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&TrackingSessionModel{}).
		Where("user_id = ? AND active = ?", userID, true).
		Updates(map[string]interface{}{
			"active":   false,
			"ended_at": endedAt.UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate tracking sessions: %w", err)
	}
	return nil
}

// IncrementLocations bumps the session's sample counter in place.
func (r *GormSessionRepository) IncrementLocations(ctx context.Context, sessionID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&TrackingSessionModel{}).
		Where("id = ?", sessionID).
		UpdateColumn("locations_count", gorm.Expr("locations_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment locations count: %w", err)
	}
	return nil
}

func toSessionModel(s *telemetryDomain.TrackingSession) TrackingSessionModel {
	return TrackingSessionModel{
		ID:             s.ID(),
		UserID:         s.UserID(),
		StartedAt:      s.StartedAt(),
		EndedAt:        s.EndedAt(),
		Active:         s.Active(),
		LocationsCount: s.LocationsCount(),
		DistanceKm:     s.DistanceKm(),
	}
}

func toSessionDomain(m *TrackingSessionModel) *telemetryDomain.TrackingSession {
	return telemetryDomain.Reconstruct(
		m.ID,
		m.UserID,
		m.StartedAt,
		m.EndedAt,
		m.Active,
		m.LocationsCount,
		m.DistanceKm,
	)
}

// GormSampleRepository implements telemetry.SampleRepository using GORM.
type GormSampleRepository struct {
	db *gorm.DB
}

// NewGormSampleRepository creates a new GORM-based sample repository.
func NewGormSampleRepository(db *gorm.DB) *GormSampleRepository {
	return &GormSampleRepository{db: db}
}

// Save appends a sample. Samples are never updated after write.
func (r *GormSampleRepository) Save(ctx context.Context, sample *telemetryDomain.LocationSample) error {
	model := toSampleModel(sample)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save location sample: %w", err)
	}
	return nil
}

// ListBySession returns a session's samples in ascending time order.
func (r *GormSampleRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*telemetryDomain.LocationSample, error) {
	var models []LocationSampleModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list samples by session: %w", err)
	}
	return sampleModelsToDomain(models), nil
}

// ListByUser returns the user's most recent samples, newest first.
func (r *GormSampleRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*telemetryDomain.LocationSample, error) {
	var models []LocationSampleModel
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list samples by user: %w", err)
	}
	return sampleModelsToDomain(models), nil
}

func sampleModelsToDomain(models []LocationSampleModel) []*telemetryDomain.LocationSample {
	samples := make([]*telemetryDomain.LocationSample, len(models))
	for i, m := range models {
		samples[i] = toSampleDomain(&m)
	}
	return samples
}

func toSampleModel(s *telemetryDomain.LocationSample) LocationSampleModel {
	return LocationSampleModel{
		ID:        s.ID,
		UserID:    s.UserID,
		SessionID: s.SessionID,
		Lat:       s.Lat,
		Lng:       s.Lng,
		Accuracy:  s.Accuracy,
		Altitude:  s.Altitude,
		Heading:   s.Heading,
		Speed:     s.Speed,
		Timestamp: s.Timestamp,
	}
}

func toSampleDomain(m *LocationSampleModel) *telemetryDomain.LocationSample {
	return &telemetryDomain.LocationSample{
		ID:        m.ID,
		UserID:    m.UserID,
		SessionID: m.SessionID,
		Lat:       m.Lat,
		Lng:       m.Lng,
		Accuracy:  m.Accuracy,
		Altitude:  m.Altitude,
		Heading:   m.Heading,
		Speed:     m.Speed,
		Timestamp: m.Timestamp,
	}
}
