// Package notify delivers browser notifications over the Web Push protocol.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrSubscriptionGone is returned when the push service reports the
// subscription expired or was revoked by the browser
var ErrSubscriptionGone = errors.New("push subscription is gone")

// VAPIDConfig identifies this server to push services
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	// Subject is a contact email or https URL
	Subject string
	// TTL is how long, in seconds, the push service keeps an undelivered message
	TTL int
}

// Sender delivers one encrypted payload to a push subscription
type Sender interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error
}

// WebPushSender is the Sender backed by webpush-go
type WebPushSender struct {
	config VAPIDConfig
	client webpush.HTTPClient
}

// NewWebPushSender creates a WebPushSender; client may be nil
func NewWebPushSender(config VAPIDConfig, client webpush.HTTPClient) (*WebPushSender, error) {
	if config.PublicKey == "" || config.PrivateKey == "" {
		return nil, errors.New("VAPID public and private keys are required")
	}
	if config.TTL <= 0 {
		config.TTL = 24 * 60 * 60
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebPushSender{config: config, client: client}, nil
}

// Send implements Sender
func (s *WebPushSender) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "notify.webpush.send")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", sub.UserID))

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.config.Subject,
		TTL:             s.config.TTL,
		Urgency:         webpush.UrgencyNormal,
		VAPIDPublicKey:  s.config.PublicKey,
		VAPIDPrivateKey: s.config.PrivateKey,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "push request failed")
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		span.SetStatus(codes.Error, "subscription gone")
		return ErrSubscriptionGone
	case resp.StatusCode >= 300:
		err := fmt.Errorf("push service responded %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "push rejected")
		return err
	}
	return nil
}
