package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	"github.com/trailmark/service-telemetry/internal/push"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

// fakeTransport answers every delivery with a fixed result.
type fakeTransport struct {
	result push.Result
	calls  int
}

func (f *fakeTransport) Deliver(ctx context.Context, sub *alerting.PushSubscription, payload []byte) push.Result {
	f.calls++
	return f.result
}

func newPushFixture(t *testing.T, transport push.Transport) (*PushService, *repository.GormSubscriptionRepository) {
	db := repotest.Open(t)
	subs := repository.NewGormSubscriptionRepository(db)
	svc := NewPushService(repository.NewGormNotificationRepository(db), subs, transport, zap.NewNop())
	return svc, subs
}

func TestPushService_NoSubscriptionDefersButJournals(t *testing.T) {
	svc, _ := newPushFixture(t, &fakeTransport{result: push.Delivered})
	userID := uuid.New()
	ctx := context.Background()

	outcome, err := svc.Notify(ctx, userID, []byte(`{"message":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.DeliveryDeferred, outcome)

	journal, err := svc.ListNotifications(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.JSONEq(t, `{"message":"hello"}`, string(journal[0].Payload))
	assert.False(t, journal[0].Read)
}

func TestPushService_EnqueueJournalsBeforeDispatch(t *testing.T) {
	// No workers running: the journal row must exist as soon as Enqueue
	// returns, dispatch or not.
	svc, _ := newPushFixture(t, &fakeTransport{result: push.Delivered})
	userID := uuid.New()
	ctx := context.Background()

	svc.Enqueue(ctx, userID, map[string]string{"message": "nearby"})

	journal, err := svc.ListNotifications(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.JSONEq(t, `{"message":"nearby"}`, string(journal[0].Payload))
}

func TestPushService_DeliveredOutcome(t *testing.T) {
	transport := &fakeTransport{result: push.Delivered}
	svc, _ := newPushFixture(t, transport)
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, userID, "https://push.example/ep", "auth", "p256dh"))

	outcome, err := svc.Notify(ctx, userID, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.DeliveryDelivered, outcome)
	assert.Equal(t, 1, transport.calls)
}

func TestPushService_GoneSubscriptionIsDropped(t *testing.T) {
	svc, subs := newPushFixture(t, &fakeTransport{result: push.SubscriptionGone})
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, userID, "https://push.example/ep", "auth", "p256dh"))

	outcome, err := svc.Notify(ctx, userID, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.DeliverySubscriptionGone, outcome)

	_, err = subs.Find(ctx, userID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPushService_TransientFailureKeepsSubscription(t *testing.T) {
	svc, subs := newPushFixture(t, &fakeTransport{result: push.Transient})
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, userID, "https://push.example/ep", "auth", "p256dh"))

	outcome, err := svc.Notify(ctx, userID, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.DeliveryTransientFailure, outcome)

	_, err = subs.Find(ctx, userID)
	assert.NoError(t, err)
}

func TestPushService_NilTransportDefers(t *testing.T) {
	svc, _ := newPushFixture(t, nil)
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, userID, "https://push.example/ep", "auth", "p256dh"))

	outcome, err := svc.Notify(ctx, userID, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.DeliveryDeferred, outcome)
}

func TestPushService_SubscribeValidation(t *testing.T) {
	svc, _ := newPushFixture(t, nil)

	err := svc.Subscribe(context.Background(), uuid.New(), "", "auth", "p256dh")
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestPushService_MarkNotificationRead(t *testing.T) {
	svc, _ := newPushFixture(t, nil)
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.Notify(ctx, userID, []byte(`{"message":"seen"}`))
	require.NoError(t, err)

	journal, err := svc.ListNotifications(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, journal, 1)

	require.NoError(t, svc.MarkNotificationRead(ctx, userID, journal[0].ID))

	journal, err = svc.ListNotifications(ctx, userID, 10)
	require.NoError(t, err)
	assert.True(t, journal[0].Read)

	// Unknown id is a not-found, not a silent no-op.
	err = svc.MarkNotificationRead(ctx, userID, uuid.New())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
