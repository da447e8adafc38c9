package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatDomain "github.com/trailmark/service-telemetry/internal/domain/chat"
)

// ChatMessageModel is the GORM model for the group_messages table. The read
// set is a JSON array of user ids; membership tests happen in Go so the
// column works the same on every backend.
type ChatMessageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_group_created"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Type      string    `gorm:"column:message_type;type:varchar(20);not null"`
	Content   string    `gorm:"type:text;not null"`
	Lat       *float64  `gorm:"type:double precision"`
	Lng       *float64  `gorm:"type:double precision"`
	AlertType string    `gorm:"type:varchar(40)"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_group_created"`
	ReadBy    string    `gorm:"type:text;not null"` // JSON array of user ids
	IsDeleted bool      `gorm:"not null;default:false"`
}

// TableName overrides the default table name.
func (ChatMessageModel) TableName() string { return "group_messages" }

// GormChatRepository implements chat.Repository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// Save appends a message to the group journal.
func (r *GormChatRepository) Save(ctx context.Context, msg *chatDomain.Message) error {
	model, err := toChatModel(msg)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// FindByGroupID returns a page of the group's messages, newest first, plus
// the total count. Soft-deleted messages stay in the journal but are
// excluded here.
func (r *GormChatRepository) FindByGroupID(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*chatDomain.Message, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&ChatMessageModel{}).
		Where("group_id = ? AND is_deleted = ?", groupID, false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var models []ChatMessageModel
	q := r.db.WithContext(ctx).
		Where("group_id = ? AND is_deleted = ?", groupID, false).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*chatDomain.Message, len(models))
	for i, m := range models {
		msg, err := toChatDomain(&m)
		if err != nil {
			return nil, 0, err
		}
		messages[i] = msg
	}
	return messages, total, nil
}

// MarkRead adds the user to read_by on all group messages, optionally bounded
// to messages created at or before uptoTS. The read set lives in a JSON
// column, so membership is updated row by row inside one transaction.
func (r *GormChatRepository) MarkRead(ctx context.Context, groupID, userID uuid.UUID, uptoTS *time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("group_id = ? AND is_deleted = ?", groupID, false)
		if uptoTS != nil {
			q = q.Where("created_at <= ?", *uptoTS)
		}

		var models []ChatMessageModel
		if err := q.Find(&models).Error; err != nil {
			return fmt.Errorf("failed to load messages for mark-read: %w", err)
		}

		for _, m := range models {
			readBy, err := unmarshalUUIDs(m.ReadBy)
			if err != nil {
				return err
			}
			if containsUUID(readBy, userID) {
				continue
			}
			updated, err := marshalUUIDs(append(readBy, userID))
			if err != nil {
				return err
			}
			err = tx.Model(&ChatMessageModel{}).
				Where("id = ?", m.ID).
				Update("read_by", updated).Error
			if err != nil {
				return fmt.Errorf("failed to mark message read: %w", err)
			}
		}
		return nil
	})
}

// UnreadCount returns the number of group messages the user has not read.
func (r *GormChatRepository) UnreadCount(ctx context.Context, groupID, userID uuid.UUID) (int64, error) {
	var models []ChatMessageModel
	err := r.db.WithContext(ctx).
		Select("id", "read_by").
		Where("group_id = ? AND is_deleted = ?", groupID, false).
		Find(&models).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	var unread int64
	for _, m := range models {
		readBy, err := unmarshalUUIDs(m.ReadBy)
		if err != nil {
			return 0, err
		}
		if !containsUUID(readBy, userID) {
			unread++
		}
	}
	return unread, nil
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func toChatModel(msg *chatDomain.Message) (ChatMessageModel, error) {
	readBy, err := marshalUUIDs(msg.ReadBy())
	if err != nil {
		return ChatMessageModel{}, err
	}

	model := ChatMessageModel{
		ID:        msg.ID(),
		GroupID:   msg.GroupID(),
		SenderID:  msg.SenderID(),
		Type:      string(msg.MessageType()),
		Content:   msg.Content(),
		AlertType: msg.AlertType(),
		CreatedAt: msg.CreatedAt(),
		ReadBy:    readBy,
		IsDeleted: msg.IsDeleted(),
	}
	if loc := msg.Location(); loc != nil {
		model.Lat = &loc.Lat
		model.Lng = &loc.Lng
	}
	return model, nil
}

func toChatDomain(m *ChatMessageModel) (*chatDomain.Message, error) {
	readBy, err := unmarshalUUIDs(m.ReadBy)
	if err != nil {
		return nil, err
	}

	var location *chatDomain.Location
	if m.Lat != nil && m.Lng != nil {
		location = &chatDomain.Location{Lat: *m.Lat, Lng: *m.Lng}
	}

	return chatDomain.Reconstruct(
		m.ID,
		m.GroupID,
		m.SenderID,
		chatDomain.MessageType(m.Type),
		m.Content,
		location,
		m.AlertType,
		m.CreatedAt,
		readBy,
		m.IsDeleted,
	), nil
}