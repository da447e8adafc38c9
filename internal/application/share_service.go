package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/auth"
	groupshareDomain "github.com/trailmark/service-telemetry/internal/domain/groupshare"
	"github.com/trailmark/service-telemetry/internal/ws"
)

// GroupPositionDTO represents one member's shared position in API responses.
type GroupPositionDTO struct {
	UserID    uuid.UUID `json:"user_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   *float64  `json:"heading,omitempty"`
	Status    string    `json:"status,omitempty"`
	IsSharing bool      `json:"is_sharing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupShareService implements the group position fanout: last-writer-wins
// upserts, a 30-minute visibility window, and live WebSocket fanout to the
// group room.
type GroupShareService struct {
	repo       groupshareDomain.Repository
	membership auth.MembershipChecker
	hub        *ws.Hub
	logger     *zap.Logger

	now func() time.Time
}

// NewGroupShareService creates a GroupShareService.
func NewGroupShareService(
	repo groupshareDomain.Repository,
	membership auth.MembershipChecker,
	hub *ws.Hub,
	logger *zap.Logger,
) *GroupShareService {
	return &GroupShareService{
		repo:       repo,
		membership: membership,
		hub:        hub,
		logger:     logger,
		now:        time.Now,
	}
}

// SharePosition upserts the member's position and fans it out to the group.
func (s *GroupShareService) SharePosition(ctx context.Context, groupID, userID uuid.UUID, lat, lng float64, heading *float64, status string) (*GroupPositionDTO, error) {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return nil, err
	}

	p, err := groupshareDomain.NewPosition(groupID, userID, lat, lng, heading, status)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	s.hub.BroadcastPosition(&ws.PositionUpdate{
		GroupID:   groupID,
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Heading:   heading,
		Status:    status,
		IsSharing: true,
		Timestamp: p.UpdatedAt,
	})

	dto := toGroupPositionDTO(p)
	return &dto, nil
}

// GroupPositions returns the sharing members seen within the grace window,
// newest first.
func (s *GroupShareService) GroupPositions(ctx context.Context, groupID, userID uuid.UUID) ([]GroupPositionDTO, error) {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return nil, err
	}

	since := s.now().UTC().Add(-groupshareDomain.SharingGraceWindow)
	positions, err := s.repo.ListRecentByGroup(ctx, groupID, since)
	if err != nil {
		return nil, err
	}

	dtos := make([]GroupPositionDTO, len(positions))
	for i, p := range positions {
		dtos[i] = toGroupPositionDTO(p)
	}
	return dtos, nil
}

// StopSharing flips the member's row to not-sharing and tells the room. The
// last coordinates stay visible for the grace window.
func (s *GroupShareService) StopSharing(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return err
	}
	if err := s.repo.StopSharing(ctx, groupID, userID); err != nil {
		return err
	}

	s.hub.BroadcastPosition(&ws.PositionUpdate{
		GroupID:   groupID,
		UserID:    userID,
		IsSharing: false,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func toGroupPositionDTO(p *groupshareDomain.Position) GroupPositionDTO {
	return GroupPositionDTO{
		UserID:    p.UserID,
		Lat:       p.Lat,
		Lng:       p.Lng,
		Heading:   p.Heading,
		Status:    p.Status,
		IsSharing: p.IsSharing,
		UpdatedAt: p.UpdatedAt,
	}
}
