package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/domain"
	chatDomain "github.com/trailmark/service-telemetry/internal/domain/chat"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
	"github.com/trailmark/service-telemetry/internal/ws"
)

func newChatFixture(t *testing.T, membership auth.MembershipChecker) *ChatService {
	db := repotest.Open(t)
	return NewChatService(
		repository.NewGormChatRepository(db),
		membership,
		ws.NewHub(zap.NewNop()),
		zap.NewNop(),
	)
}

func TestChatService_SendAndHistory(t *testing.T) {
	svc := newChatFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	sender := uuid.New()
	ctx := context.Background()

	sent, err := svc.SendMessage(ctx, groupID, sender, chatDomain.MessageTypeText, "anyone seeing movement?", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", sent.Type)
	assert.Contains(t, sent.ReadBy, sender)

	history, total, err := svc.History(ctx, groupID, sender, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestChatService_AlertGetsEmojiPrefix(t *testing.T) {
	svc := newChatFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	sender := uuid.New()
	ctx := context.Background()

	loc := &chatDomain.Location{Lat: 46.8, Lng: -71.2}
	alert, err := svc.SendAlert(ctx, groupID, sender, "animal_spotted", "big buck heading west", loc)
	require.NoError(t, err)

	assert.Equal(t, "alert", alert.Type)
	assert.Equal(t, "animal_spotted", alert.AlertType)
	assert.Equal(t, "🦌 big buck heading west", alert.Content)
	require.NotNil(t, alert.Location)
	assert.InDelta(t, 46.8, alert.Location.Lat, 1e-9)
}

func TestChatService_AlertWithEmptyContentUsesTypeName(t *testing.T) {
	svc := newChatFixture(t, auth.AllowAllMemberships{})

	alert, err := svc.SendAlert(context.Background(), uuid.New(), uuid.New(), "need_help", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "🆘 need_help", alert.Content)
}

func TestChatService_UnknownAlertTypeRejected(t *testing.T) {
	svc := newChatFixture(t, auth.AllowAllMemberships{})

	_, err := svc.SendAlert(context.Background(), uuid.New(), uuid.New(), "alien_sighting", "??", nil)
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestChatService_MembershipIsEnforced(t *testing.T) {
	groupID := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	svc := newChatFixture(t, auth.StaticMemberships{groupID: {member}})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, groupID, outsider, chatDomain.MessageTypeText, "let me in", nil)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))

	_, _, err = svc.History(ctx, groupID, outsider, 10, 0)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))

	_, err = svc.SendMessage(ctx, groupID, member, chatDomain.MessageTypeText, "on my way", nil)
	assert.NoError(t, err)
}

func TestChatService_UnreadAndMarkRead(t *testing.T) {
	groupID := uuid.New()
	sender := uuid.New()
	reader := uuid.New()
	svc := newChatFixture(t, auth.StaticMemberships{groupID: {sender, reader}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, groupID, sender, chatDomain.MessageTypeText, "ping", nil)
		require.NoError(t, err)
	}

	unread, err := svc.UnreadCount(ctx, groupID, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	// The sender's own messages are already read.
	unread, err = svc.UnreadCount(ctx, groupID, sender)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	require.NoError(t, svc.MarkRead(ctx, groupID, reader, nil))

	unread, err = svc.UnreadCount(ctx, groupID, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}
