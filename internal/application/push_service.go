package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/domain/alerting"
	"github.com/trailmark/service-telemetry/internal/push"
)

// dispatchTimeout bounds one outbound push call.
const dispatchTimeout = 10 * time.Second

// pushJob is one queued delivery for the async workers. The notification is
// already journaled by the time a job enters the queue.
type pushJob struct {
	userID  uuid.UUID
	payload []byte
}

// PushService is the outbound push outbox: every notification is journaled
// first, then delivered best-effort. Dispatch never blocks the request path;
// callers enqueue and a worker pool drains.
type PushService struct {
	notifications alerting.NotificationRepository
	subscriptions alerting.SubscriptionRepository
	transport     push.Transport
	logger        *zap.Logger

	jobs chan pushJob
	now  func() time.Time
}

// NewPushService creates a PushService. A nil transport means push is not
// configured; notifications are journaled only.
func NewPushService(
	notifications alerting.NotificationRepository,
	subscriptions alerting.SubscriptionRepository,
	transport push.Transport,
	logger *zap.Logger,
) *PushService {
	return &PushService{
		notifications: notifications,
		subscriptions: subscriptions,
		transport:     transport,
		logger:        logger,
		jobs:          make(chan pushJob, 256),
		now:           time.Now,
	}
}

// StartWorkers launches the dispatch worker pool. Workers exit when the
// context is cancelled.
func (s *PushService) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-s.jobs:
					dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
					outcome, err := s.dispatch(dctx, job.userID, job.payload)
					cancel()
					if err != nil {
						s.logger.Warn("push dispatch failed",
							zap.String("user_id", job.userID.String()),
							zap.Error(err),
						)
						continue
					}
					s.logger.Debug("push dispatched",
						zap.String("user_id", job.userID.String()),
						zap.String("outcome", string(outcome)),
					)
				}
			}
		}()
	}
}

// Enqueue journals the notification on the caller's path, then hands the
// delivery to the worker pool. The journal row is the acknowledgement; only
// the outbound dispatch is offloaded. When the queue is full the dispatch is
// skipped (deferred), never the journal.
func (s *PushService) Enqueue(ctx context.Context, userID uuid.UUID, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal push payload", zap.Error(err))
		return
	}

	if err := s.journal(ctx, userID, raw); err != nil {
		s.logger.Error("failed to journal notification", zap.Error(err))
		return
	}

	select {
	case s.jobs <- pushJob{userID: userID, payload: raw}:
	default:
		s.logger.Warn("push queue full, dispatch skipped",
			zap.String("user_id", userID.String()),
		)
	}
}

// Notify journals the notification and attempts delivery synchronously.
// Absence of a subscription defers to journal-only; a gone subscription is
// deleted as a side-effect. Notify never retries.
func (s *PushService) Notify(ctx context.Context, userID uuid.UUID, payload []byte) (alerting.DeliveryOutcome, error) {
	if err := s.journal(ctx, userID, payload); err != nil {
		return "", err
	}
	return s.dispatch(ctx, userID, payload)
}

// dispatch attempts the outbound delivery for an already-journaled
// notification.
func (s *PushService) dispatch(ctx context.Context, userID uuid.UUID, payload []byte) (alerting.DeliveryOutcome, error) {
	sub, err := s.subscriptions.Find(ctx, userID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return alerting.DeliveryDeferred, nil
		}
		return "", err
	}

	if s.transport == nil {
		return alerting.DeliveryDeferred, nil
	}

	switch s.transport.Deliver(ctx, sub, payload) {
	case push.Delivered:
		return alerting.DeliveryDelivered, nil
	case push.SubscriptionGone:
		if err := s.subscriptions.Delete(ctx, userID); err != nil {
			s.logger.Warn("failed to delete gone subscription",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
		return alerting.DeliverySubscriptionGone, nil
	default:
		return alerting.DeliveryTransientFailure, nil
	}
}

// Subscribe stores the user's push subscription, replacing any previous one.
func (s *PushService) Subscribe(ctx context.Context, userID uuid.UUID, endpoint, keyAuth, keyP256dh string) error {
	if endpoint == "" || keyAuth == "" || keyP256dh == "" {
		return domain.NewInvalidRequestError("endpoint and keys are required")
	}
	return s.subscriptions.Upsert(ctx, &alerting.PushSubscription{
		UserID:    userID,
		Endpoint:  endpoint,
		KeyAuth:   keyAuth,
		KeyP256dh: keyP256dh,
		CreatedAt: s.now().UTC(),
	})
}

// Unsubscribe removes the user's push subscription.
func (s *PushService) Unsubscribe(ctx context.Context, userID uuid.UUID) error {
	return s.subscriptions.Delete(ctx, userID)
}

// ListNotifications returns the user's journal, newest first.
func (s *PushService) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*alerting.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, limit)
}

// MarkNotificationRead flags one journal entry as read.
func (s *PushService) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func (s *PushService) journal(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return s.notifications.Save(ctx, &alerting.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Payload: payload,
		SentAt:  s.now().UTC(),
	})
}
