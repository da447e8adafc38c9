// Package push adapts the Web Push protocol behind the transport port the
// outbox consumes.
package push

import (
	"context"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/domain/alerting"
)

// Result classifies the outcome of one delivery attempt.
type Result int

const (
	Delivered Result = iota
	SubscriptionGone
	Transient
)

// Transport delivers one payload to one subscription.
type Transport interface {
	Deliver(ctx context.Context, sub *alerting.PushSubscription, payload []byte) Result
}

// WebPushTransport sends VAPID-signed Web Push messages.
type WebPushTransport struct {
	publicKey    string
	privateKey   string
	contactEmail string
	logger       *zap.Logger
}

// NewWebPushTransport creates a transport for the given VAPID keypair.
func NewWebPushTransport(publicKey, privateKey, contactEmail string, logger *zap.Logger) *WebPushTransport {
	return &WebPushTransport{
		publicKey:    publicKey,
		privateKey:   privateKey,
		contactEmail: contactEmail,
		logger:       logger,
	}
}

// Deliver pushes the payload. 404/410 from the push service mean the
// subscription no longer exists; everything else non-2xx is transient.
func (t *WebPushTransport) Deliver(ctx context.Context, sub *alerting.PushSubscription, payload []byte) Result {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.KeyAuth,
			P256dh: sub.KeyP256dh,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		Subscriber:      t.contactEmail,
		VAPIDPublicKey:  t.publicKey,
		VAPIDPrivateKey: t.privateKey,
		TTL:             60,
	})
	if err != nil {
		t.logger.Warn("web push delivery failed",
			zap.String("user_id", sub.UserID.String()),
			zap.Error(err),
		)
		return Transient
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return SubscriptionGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Delivered
	default:
		t.logger.Warn("web push non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("user_id", sub.UserID.String()),
		)
		return Transient
	}
}
