package waypoint

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for the waypoint catalogue.
// All lookups are scoped by user; a cross-user read fails with NotFound,
// never PermissionDenied — the authorization layer runs earlier.
type Repository interface {
	// Upsert creates or replaces a waypoint.
	Upsert(ctx context.Context, wp *Waypoint) error

	// FindByID retrieves one waypoint owned by the user.
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Waypoint, error)

	// ListByUser returns every waypoint in the user's catalogue.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Waypoint, error)

	// Delete removes a waypoint owned by the user.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
