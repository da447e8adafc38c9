package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerRepository persists emitted alerts to implement the cool-down window.
type LedgerRepository interface {
	Save(ctx context.Context, rec *AlertRecord) error

	// LastForPair returns the most recent alert record for (user, waypoint),
	// or NotFound if none exists.
	LastForPair(ctx context.Context, userID, waypointID uuid.UUID) (*AlertRecord, error)

	// PurgeOlderThan removes ledger entries created before the cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRepository persists the notifications journal.
type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// SubscriptionRepository persists push subscriptions, one per user.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *PushSubscription) error
	Find(ctx context.Context, userID uuid.UUID) (*PushSubscription, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}
