package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/auth"
	chatDomain "github.com/trailmark/service-telemetry/internal/domain/chat"
	"github.com/trailmark/service-telemetry/internal/ws"
)

// ChatMessageDTO represents a group message in API responses.
type ChatMessageDTO struct {
	ID        uuid.UUID            `json:"id"`
	GroupID   uuid.UUID            `json:"group_id"`
	SenderID  uuid.UUID            `json:"sender_id"`
	Type      string               `json:"message_type"`
	Content   string               `json:"content"`
	Location  *chatDomain.Location `json:"location,omitempty"`
	AlertType string               `json:"alert_type,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	ReadBy    []uuid.UUID          `json:"read_by"`
}

// ChatService implements the group chat journal and its live fanout.
type ChatService struct {
	repo       chatDomain.Repository
	membership auth.MembershipChecker
	hub        *ws.Hub
	logger     *zap.Logger
}

// NewChatService creates a ChatService.
func NewChatService(
	repo chatDomain.Repository,
	membership auth.MembershipChecker,
	hub *ws.Hub,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		repo:       repo,
		membership: membership,
		hub:        hub,
		logger:     logger,
	}
}

// SendMessage appends a message to the group journal and fans it out.
func (s *ChatService) SendMessage(ctx context.Context, groupID, senderID uuid.UUID, msgType chatDomain.MessageType, content string, location *chatDomain.Location) (*ChatMessageDTO, error) {
	if err := s.membership.RequireMembership(ctx, senderID, groupID); err != nil {
		return nil, err
	}

	msg, err := chatDomain.NewMessage(groupID, senderID, msgType, content, location)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.broadcast(msg, "chat_message")
	dto := toChatDTO(msg)
	return &dto, nil
}

// SendAlert appends a structured group alert. The content is prefixed with
// the alert type's standard emoji; unknown types are rejected.
func (s *ChatService) SendAlert(ctx context.Context, groupID, senderID uuid.UUID, alertType, content string, location *chatDomain.Location) (*ChatMessageDTO, error) {
	if err := s.membership.RequireMembership(ctx, senderID, groupID); err != nil {
		return nil, err
	}

	msg, err := chatDomain.NewAlert(groupID, senderID, alertType, content, location)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.broadcast(msg, "group_alert")

	s.logger.Info("group alert sent",
		zap.String("group_id", groupID.String()),
		zap.String("alert_type", alertType),
	)
	dto := toChatDTO(msg)
	return &dto, nil
}

// History returns a page of the group journal, newest first, plus the total.
func (s *ChatService) History(ctx context.Context, groupID, userID uuid.UUID, limit, offset int) ([]ChatMessageDTO, int64, error) {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return nil, 0, err
	}

	messages, total, err := s.repo.FindByGroupID(ctx, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]ChatMessageDTO, len(messages))
	for i, msg := range messages {
		dtos[i] = toChatDTO(msg)
	}
	return dtos, total, nil
}

// MarkRead adds the user to read_by on the group's messages, optionally
// bounded to messages created at or before uptoTS.
func (s *ChatService) MarkRead(ctx context.Context, groupID, userID uuid.UUID, uptoTS *time.Time) error {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, groupID, userID, uptoTS)
}

// UnreadCount returns how many group messages the user has not read.
func (s *ChatService) UnreadCount(ctx context.Context, groupID, userID uuid.UUID) (int64, error) {
	if err := s.membership.RequireMembership(ctx, userID, groupID); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, groupID, userID)
}

func (s *ChatService) broadcast(msg *chatDomain.Message, eventType string) {
	event := &ws.ChatEvent{
		Type:      eventType,
		GroupID:   msg.GroupID(),
		MessageID: msg.ID(),
		SenderID:  msg.SenderID(),
		MsgType:   string(msg.MessageType()),
		AlertType: msg.AlertType(),
		Content:   msg.Content(),
		CreatedAt: msg.CreatedAt(),
	}
	if loc := msg.Location(); loc != nil {
		event.Lat = &loc.Lat
		event.Lng = &loc.Lng
	}
	s.hub.BroadcastChat(event)
}

func toChatDTO(msg *chatDomain.Message) ChatMessageDTO {
	readBy := msg.ReadBy()
	if readBy == nil {
		readBy = []uuid.UUID{}
	}
	return ChatMessageDTO{
		ID:        msg.ID(),
		GroupID:   msg.GroupID(),
		SenderID:  msg.SenderID(),
		Type:      string(msg.MessageType()),
		Content:   msg.Content(),
		Location:  msg.Location(),
		AlertType: msg.AlertType(),
		CreatedAt: msg.CreatedAt(),
		ReadBy:    readBy,
	}
}
