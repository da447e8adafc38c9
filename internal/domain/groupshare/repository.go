package groupshare

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for group position shares.
type Repository interface {
	// Upsert writes the (group, user) row, overwriting any previous value.
	Upsert(ctx context.Context, p *Position) error

	// ListRecentByGroup returns rows with is_sharing=true updated at or after
	// the cutoff, newest first.
	ListRecentByGroup(ctx context.Context, groupID uuid.UUID, since time.Time) ([]*Position, error)

	// StopSharing flips is_sharing to false, leaving the last coordinates in
	// place for the grace window.
	StopSharing(ctx context.Context, groupID, userID uuid.UUID) error
}
