package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// MessageType represents the type of group message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
	MessageTypeSpot     MessageType = "spot"
	MessageTypeEvent    MessageType = "event"
	MessageTypeAlert    MessageType = "alert"
)

// IsValid returns true if the message type is recognized.
func (m MessageType) IsValid() bool {
	switch m {
	case MessageTypeText, MessageTypeImage, MessageTypeLocation,
		MessageTypeSpot, MessageTypeEvent, MessageTypeAlert:
		return true
	}
	return false
}

// alertEmojis is the wire vocabulary for structured group alerts. Clients
// depend on these prefixes; the table is part of the protocol.
var alertEmojis = map[string]string{
	"animal_spotted":  "🦌",
	"position_marked": "📍",
	"need_help":       "🆘",
	"shot_fired":      "🎯",
	"returning":       "🏠",
	"break_time":      "☕",
	"silence":         "🤫",
	"meeting_point":   "📌",
}

// AlertEmoji returns the standard emoji prefix for a group alert type.
func AlertEmoji(alertType string) (string, bool) {
	e, ok := alertEmojis[alertType]
	return e, ok
}

// Location is the optional coordinate attached to location-bearing messages.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Message is the aggregate root for group chat messages and structured group
// alerts. Messages are append-only; deletion is a soft flag.
type Message struct {
	id        uuid.UUID
	groupID   uuid.UUID
	senderID  uuid.UUID
	msgType   MessageType
	content   string
	location  *Location
	alertType string
	createdAt time.Time
	readBy    []uuid.UUID
	isDeleted bool
}

// NewMessage creates a new group message.
func NewMessage(groupID, senderID uuid.UUID, msgType MessageType, content string, location *Location) (*Message, error) {
	if !msgType.IsValid() {
		return nil, domain.NewInvalidRequestError("invalid message type: " + string(msgType))
	}
	if content == "" {
		return nil, domain.NewInvalidRequestError("message content is required")
	}

	return &Message{
		id:        uuid.New(),
		groupID:   groupID,
		senderID:  senderID,
		msgType:   msgType,
		content:   content,
		location:  location,
		createdAt: time.Now().UTC(),
		readBy:    []uuid.UUID{senderID},
	}, nil
}

// NewAlert creates a structured group alert. The content is prefixed with the
// alert type's standard emoji; an unknown alert type is rejected.
func NewAlert(groupID, senderID uuid.UUID, alertType, content string, location *Location) (*Message, error) {
	emoji, ok := AlertEmoji(alertType)
	if !ok {
		return nil, domain.NewInvalidRequestError("unknown alert type: " + alertType)
	}
	if content == "" {
		content = alertType
	}

	return &Message{
		id:        uuid.New(),
		groupID:   groupID,
		senderID:  senderID,
		msgType:   MessageTypeAlert,
		content:   emoji + " " + content,
		location:  location,
		alertType: alertType,
		createdAt: time.Now().UTC(),
		readBy:    []uuid.UUID{senderID},
	}, nil
}

// Reconstruct rebuilds a Message from persistence.
func Reconstruct(id, groupID, senderID uuid.UUID, msgType MessageType, content string, location *Location, alertType string, createdAt time.Time, readBy []uuid.UUID, isDeleted bool) *Message {
	return &Message{
		id:        id,
		groupID:   groupID,
		senderID:  senderID,
		msgType:   msgType,
		content:   content,
		location:  location,
		alertType: alertType,
		createdAt: createdAt,
		readBy:    readBy,
		isDeleted: isDeleted,
	}
}

// Getters.
func (m *Message) ID() uuid.UUID            { return m.id }
func (m *Message) GroupID() uuid.UUID       { return m.groupID }
func (m *Message) SenderID() uuid.UUID      { return m.senderID }
func (m *Message) MessageType() MessageType { return m.msgType }
func (m *Message) Content() string          { return m.content }
func (m *Message) Location() *Location      { return m.location }
func (m *Message) AlertType() string        { return m.alertType }
func (m *Message) CreatedAt() time.Time     { return m.createdAt }
func (m *Message) ReadBy() []uuid.UUID      { return m.readBy }
func (m *Message) IsDeleted() bool          { return m.isDeleted }

// ReadByUser reports whether the user has read the message.
func (m *Message) ReadByUser(userID uuid.UUID) bool {
	for _, id := range m.readBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkRead adds the user to the read set.
func (m *Message) MarkRead(userID uuid.UUID) {
	if !m.ReadByUser(userID) {
		m.readBy = append(m.readBy, userID)
	}
}

// SoftDelete flags the message as deleted without removing the row.
func (m *Message) SoftDelete() { m.isDeleted = true }
