package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRepository defines persistence operations for tracking sessions.
type SessionRepository interface {
	Save(ctx context.Context, s *TrackingSession) error
	Update(ctx context.Context, s *TrackingSession) error

	// FindByID retrieves a session owned by the user.
	FindByID(ctx context.Context, userID, id uuid.UUID) (*TrackingSession, error)

	// FindActiveByUser retrieves the user's single active session.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*TrackingSession, error)

	// DeactivateAllForUser closes every active session for the user, stamping
	// the given end time. Used to enforce the single-active-session invariant
	// before a new session is created.
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, endedAt time.Time) error

	// IncrementLocations bumps the session's sample counter in place.
	IncrementLocations(ctx context.Context, sessionID uuid.UUID) error
}

// SampleRepository defines persistence operations for location samples.
// Samples are append-only.
type SampleRepository interface {
	Save(ctx context.Context, sample *LocationSample) error

	// ListBySession returns a session's samples in ascending time order.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*LocationSample, error)

	// ListByUser returns the user's most recent samples, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*LocationSample, error)
}
