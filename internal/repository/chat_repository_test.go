package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatDomain "github.com/trailmark/service-telemetry/internal/domain/chat"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func TestChatRepository_SaveAndPage(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormChatRepository(db)
	groupID := uuid.New()
	sender := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg, err := chatDomain.NewMessage(groupID, sender, chatDomain.MessageTypeText, "message", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, msg))
	}

	page, total, err := repo.FindByGroupID(ctx, groupID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
}

func TestChatRepository_ReadMarkers(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormChatRepository(db)
	groupID := uuid.New()
	sender := uuid.New()
	reader := uuid.New()
	ctx := context.Background()

	first, err := chatDomain.NewMessage(groupID, sender, chatDomain.MessageTypeText, "first", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	second, err := chatDomain.NewMessage(groupID, sender, chatDomain.MessageTypeText, "second", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, second))

	// Sender reads their own messages at send time.
	senderUnread, err := repo.UnreadCount(ctx, groupID, sender)
	require.NoError(t, err)
	assert.Equal(t, int64(0), senderUnread)

	unread, err := repo.UnreadCount(ctx, groupID, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkRead(ctx, groupID, reader, nil))

	unread, err = repo.UnreadCount(ctx, groupID, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// Marking read is idempotent.
	require.NoError(t, repo.MarkRead(ctx, groupID, reader, nil))
	messages, _, err := repo.FindByGroupID(ctx, groupID, 10, 0)
	require.NoError(t, err)
	for _, msg := range messages {
		count := 0
		for _, id := range msg.ReadBy() {
			if id == reader {
				count++
			}
		}
		assert.Equal(t, 1, count)
	}
}

func TestChatRepository_AlertRoundTrip(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormChatRepository(db)
	groupID := uuid.New()
	sender := uuid.New()
	ctx := context.Background()

	loc := &chatDomain.Location{Lat: 46.8, Lng: -71.2}
	alert, err := chatDomain.NewAlert(groupID, sender, "animal_spotted", "big buck", loc)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, alert))

	messages, _, err := repo.FindByGroupID(ctx, groupID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	got := messages[0]
	assert.Equal(t, chatDomain.MessageTypeAlert, got.MessageType())
	assert.Equal(t, "animal_spotted", got.AlertType())
	assert.Equal(t, "🦌 big buck", got.Content())
	require.NotNil(t, got.Location())
	assert.InDelta(t, 46.8, got.Location().Lat, 1e-9)
}
