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
	alertingDomain "github.com/trailmark/service-telemetry/internal/domain/alerting"
)

// AlertRecordModel is the GORM model for the proximity_alert_ledger table.
type AlertRecordModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_alert_ledger_pair"`
	WaypointID uuid.UUID `gorm:"type:uuid;not null;index:idx_alert_ledger_pair"`
	Payload    string    `gorm:"type:text;not null"` // JSON-encoded alert
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName overrides the default table name.
func (AlertRecordModel) TableName() string { return "proximity_alert_ledger" }

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_user_sent"`
	Payload string    `gorm:"type:text;not null"`
	SentAt  time.Time `gorm:"not null;index:idx_notifications_user_sent"`
	Read    bool      `gorm:"not null;default:false"`
}

// TableName overrides the default table name.
func (NotificationModel) TableName() string { return "notifications" }

// PushSubscriptionModel is the GORM model for the push_subscriptions table.
// One row per user; re-subscribing replaces the row.
type PushSubscriptionModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Endpoint  string    `gorm:"type:text;not null"`
	KeyAuth   string    `gorm:"type:text;not null"`
	KeyP256dh string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the default table name.
func (PushSubscriptionModel) TableName() string { return "push_subscriptions" }

// GormLedgerRepository implements alerting.LedgerRepository using GORM.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GORM-based alert ledger repository.
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Save appends a ledger entry for an emitted alert.
func (r *GormLedgerRepository) Save(ctx context.Context, rec *alertingDomain.AlertRecord) error {
	payload, err := json.Marshal(rec.Alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	model := AlertRecordModel{
		ID:         rec.ID,
		UserID:     rec.UserID,
		WaypointID: rec.WaypointID,
		Payload:    string(payload),
		CreatedAt:  rec.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save alert record: %w", err)
	}
	return nil
}

// LastForPair returns the most recent ledger entry for (user, waypoint).
func (r *GormLedgerRepository) LastForPair(ctx context.Context, userID, waypointID uuid.UUID) (*alertingDomain.AlertRecord, error) {
	var model AlertRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND waypoint_id = ?", userID, waypointID).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("alert record", waypointID.String())
		}
		return nil, fmt.Errorf("failed to find alert record: %w", err)
	}

	var alert alertingDomain.ProximityAlert
	if err := json.Unmarshal([]byte(model.Payload), &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert payload: %w", err)
	}
	return &alertingDomain.AlertRecord{
		ID:         model.ID,
		UserID:     model.UserID,
		WaypointID: model.WaypointID,
		Alert:      alert,
		CreatedAt:  model.CreatedAt,
	}, nil
}

// PurgeOlderThan removes ledger entries created before the cutoff.
func (r *GormLedgerRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&AlertRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge alert ledger: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GormNotificationRepository implements alerting.NotificationRepository using GORM.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based notification repository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save journals an outbound notification.
func (r *GormNotificationRepository) Save(ctx context.Context, n *alertingDomain.Notification) error {
	model := NotificationModel{
		ID:      n.ID,
		UserID:  n.UserID,
		Payload: string(n.Payload),
		SentAt:  n.SentAt,
		Read:    n.Read,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*alertingDomain.Notification, error) {
	var models []NotificationModel
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*alertingDomain.Notification, len(models))
	for i, m := range models {
		notifications[i] = &alertingDomain.Notification{
			ID:      m.ID,
			UserID:  m.UserID,
			Payload: []byte(m.Payload),
			SentAt:  m.SentAt,
			Read:    m.Read,
		}
	}
	return notifications, nil
}

// MarkRead flags one notification as read, scoped by owner.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("notification", id.String())
	}
	return nil
}

// GormSubscriptionRepository implements alerting.SubscriptionRepository using GORM.
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GORM-based push subscription repository.
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Upsert replaces the user's push subscription.
func (r *GormSubscriptionRepository) Upsert(ctx context.Context, sub *alertingDomain.PushSubscription) error {
	model := PushSubscriptionModel{
		UserID:    sub.UserID,
		Endpoint:  sub.Endpoint,
		KeyAuth:   sub.KeyAuth,
		KeyP256dh: sub.KeyP256dh,
		CreatedAt: sub.CreatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

// Find retrieves the user's current push subscription.
func (r *GormSubscriptionRepository) Find(ctx context.Context, userID uuid.UUID) (*alertingDomain.PushSubscription, error) {
	var model PushSubscriptionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("push subscription", userID.String())
		}
		return nil, fmt.Errorf("failed to find push subscription: %w", err)
	}
	return &alertingDomain.PushSubscription{
		UserID:    model.UserID,
		Endpoint:  model.Endpoint,
		KeyAuth:   model.KeyAuth,
		KeyP256dh: model.KeyP256dh,
		CreatedAt: model.CreatedAt,
	}, nil
}

// Delete removes the user's push subscription. Deleting a missing
// subscription is a no-op.
func (r *GormSubscriptionRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&PushSubscriptionModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
