package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for the group chat journal.
type Repository interface {
	Save(ctx context.Context, msg *Message) error
	FindByGroupID(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*Message, int64, error)

	// MarkRead adds the user to read_by on all group messages, optionally
	// bounded to messages created at or before uptoTS.
	MarkRead(ctx context.Context, groupID, userID uuid.UUID, uptoTS *time.Time) error

	// UnreadCount returns the number of group messages the user has not read.
	UnreadCount(ctx context.Context, groupID, userID uuid.UUID) (int64, error)
}
