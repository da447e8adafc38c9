package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
)

// UpsertWaypointInput carries a waypoint create or update.
type UpsertWaypointInput struct {
	Name     string
	Lat      float64
	Lng      float64
	Type     string
	Color    string
	Icon     string
	Priority int
}

// WaypointService implements the waypoint catalogue use cases.
type WaypointService struct {
	repo   waypointDomain.Repository
	logger *zap.Logger
}

// NewWaypointService creates a WaypointService.
func NewWaypointService(repo waypointDomain.Repository, logger *zap.Logger) *WaypointService {
	return &WaypointService{repo: repo, logger: logger}
}

// Create adds a waypoint to the user's catalogue.
func (s *WaypointService) Create(ctx context.Context, userID uuid.UUID, in UpsertWaypointInput) (*waypointDomain.Waypoint, error) {
	wp, err := waypointDomain.New(userID, in.Name, in.Lat, in.Lng)
	if err != nil {
		return nil, err
	}
	wp.Type = in.Type
	wp.Color = in.Color
	wp.Icon = in.Icon
	if in.Priority != 0 {
		wp.SetPriority(in.Priority)
	}

	if err := s.repo.Upsert(ctx, wp); err != nil {
		return nil, err
	}
	return wp, nil
}

// Update rewrites a waypoint's mutable metadata. Coordinates are immutable.
func (s *WaypointService) Update(ctx context.Context, userID, id uuid.UUID, in UpsertWaypointInput) (*waypointDomain.Waypoint, error) {
	wp, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		if err := wp.Rename(in.Name); err != nil {
			return nil, err
		}
	}
	if in.Type != "" {
		wp.Type = in.Type
	}
	if in.Color != "" {
		wp.Color = in.Color
	}
	if in.Icon != "" {
		wp.Icon = in.Icon
	}
	if in.Priority != 0 {
		wp.SetPriority(in.Priority)
	}

	if err := s.repo.Upsert(ctx, wp); err != nil {
		return nil, err
	}
	return wp, nil
}

// Get returns one waypoint owned by the user.
func (s *WaypointService) Get(ctx context.Context, userID, id uuid.UUID) (*waypointDomain.Waypoint, error) {
	return s.repo.FindByID(ctx, userID, id)
}

// List returns the user's full catalogue.
func (s *WaypointService) List(ctx context.Context, userID uuid.UUID) ([]*waypointDomain.Waypoint, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes a waypoint from the catalogue.
func (s *WaypointService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
