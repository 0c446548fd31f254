package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/notify"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func subscriptionRequest() *dto.PushSubscriptionRequest {
	return &dto.PushSubscriptionRequest{
		Endpoint: "https://push.example.com/abc",
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	}
}

func TestNotificationService_Subscriptions(t *testing.T) {
	repo := newMockPushSubscriptionRepository()
	svc := NewNotificationService(repo, &fakeBroadcaster{}, nil, nil)
	ctx := context.Background()

	t.Run("none stored", func(t *testing.T) {
		sub, err := svc.GetSubscription(ctx, "user-1")
		if err != nil || sub != nil {
			t.Errorf("GetSubscription() = %+v, %v, want nil, nil", sub, err)
		}
	})

	var firstID string
	t.Run("subscribe", func(t *testing.T) {
		sub, err := svc.Subscribe(ctx, "user-1", subscriptionRequest())
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if sub.ID == "" || sub.UserID != "user-1" || sub.Endpoint != "https://push.example.com/abc" {
			t.Errorf("Subscribe() = %+v", sub)
		}
		firstID = sub.ID
	})

	t.Run("resubscribe replaces keys", func(t *testing.T) {
		req := subscriptionRequest()
		req.Endpoint = "https://push.example.com/def"
		sub, err := svc.Subscribe(ctx, "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if sub.ID != firstID || sub.Endpoint != "https://push.example.com/def" {
			t.Errorf("Subscribe() = %+v, want id %s with new endpoint", sub, firstID)
		}

		got, _ := svc.GetSubscription(ctx, "user-1")
		if got == nil || got.Endpoint != "https://push.example.com/def" {
			t.Errorf("GetSubscription() = %+v", got)
		}
	})

	t.Run("unsubscribe", func(t *testing.T) {
		if err := svc.Unsubscribe(ctx, "user-1"); err != nil {
			t.Fatalf("Unsubscribe() error = %v", err)
		}
		if err := svc.Unsubscribe(ctx, "user-1"); !errors.Is(err, ErrSubscriptionNotFound) {
			t.Errorf("second Unsubscribe() error = %v, want ErrSubscriptionNotFound", err)
		}
	})
}

func TestNotificationService_Notify(t *testing.T) {
	ctx := context.Background()
	n := domain.Notification{Kind: "morning", Title: "Good Morning!", Body: "Plan your day", Tag: "morning-reminder"}

	t.Run("open sessions only", func(t *testing.T) {
		sessions := &fakeBroadcaster{connections: map[string]int{"user-1": 2}}
		svc := NewNotificationService(newMockPushSubscriptionRepository(), sessions, nil, nil)

		if got := svc.Notify(ctx, "user-1", n); got != 2 {
			t.Errorf("Notify() = %d, want 2", got)
		}
		evt, ok := sessions.calls[0].payload.(realtime.ReminderEvent)
		if !ok || evt.Type != realtime.TypeReminder || evt.Tag != "morning-reminder" {
			t.Errorf("session payload = %+v", sessions.calls[0].payload)
		}
	})

	t.Run("offline without subscription", func(t *testing.T) {
		svc := NewNotificationService(newMockPushSubscriptionRepository(), &fakeBroadcaster{}, &fakeSender{}, nil)
		if got := svc.Notify(ctx, "user-1", n); got != 0 {
			t.Errorf("Notify() = %d, want 0", got)
		}
	})

	t.Run("offline with subscription", func(t *testing.T) {
		repo := newMockPushSubscriptionRepository()
		sender := &fakeSender{}
		reg := prometheus.NewRegistry()
		m := metrics.New(reg, reg)
		svc := NewNotificationService(repo, &fakeBroadcaster{}, sender, m)
		if _, err := svc.Subscribe(ctx, "user-1", subscriptionRequest()); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		if got := svc.Notify(ctx, "user-1", n); got != 1 {
			t.Errorf("Notify() = %d, want 1", got)
		}
		if len(sender.payloads) != 1 {
			t.Fatalf("sent %d payloads, want 1", len(sender.payloads))
		}
		var payload map[string]string
		if err := json.Unmarshal(sender.payloads[0], &payload); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if payload["title"] != "Good Morning!" || payload["tag"] != "morning-reminder" {
			t.Errorf("payload = %v", payload)
		}
		if v := testutil.ToFloat64(m.PushDeliveries.WithLabelValues("ok")); v != 1 {
			t.Errorf("push ok count = %v, want 1", v)
		}
	})

	t.Run("gone subscription is removed", func(t *testing.T) {
		repo := newMockPushSubscriptionRepository()
		svc := NewNotificationService(repo, &fakeBroadcaster{}, &fakeSender{err: notify.ErrSubscriptionGone}, nil)
		if _, err := svc.Subscribe(ctx, "user-1", subscriptionRequest()); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		if got := svc.Notify(ctx, "user-1", n); got != 0 {
			t.Errorf("Notify() = %d, want 0", got)
		}
		if sub, _ := svc.GetSubscription(ctx, "user-1"); sub != nil {
			t.Errorf("subscription still stored: %+v", sub)
		}
	})

	t.Run("push failure keeps subscription", func(t *testing.T) {
		repo := newMockPushSubscriptionRepository()
		sessions := &fakeBroadcaster{connections: map[string]int{"user-1": 1}}
		svc := NewNotificationService(repo, sessions, &fakeSender{err: errors.New("timeout")}, nil)
		if _, err := svc.Subscribe(ctx, "user-1", subscriptionRequest()); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		if got := svc.Notify(ctx, "user-1", n); got != 1 {
			t.Errorf("Notify() = %d, want 1", got)
		}
		if sub, _ := svc.GetSubscription(ctx, "user-1"); sub == nil {
			t.Error("subscription removed after a transient failure")
		}
	})

	t.Run("subscription lookup failure still reaches sessions", func(t *testing.T) {
		repo := newMockPushSubscriptionRepository()
		repo.getErr = errors.New("db down")
		sessions := &fakeBroadcaster{connections: map[string]int{"user-1": 1}}
		svc := NewNotificationService(repo, sessions, &fakeSender{}, nil)

		if got := svc.Notify(ctx, "user-1", n); got != 1 {
			t.Errorf("Notify() = %d, want 1", got)
		}
	})
}

func TestNotificationService_SendTest(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		sessions := &fakeBroadcaster{connections: map[string]int{"user-1": 1}}
		svc := NewNotificationService(newMockPushSubscriptionRepository(), sessions, nil, nil)

		if err := svc.SendTest(ctx, "user-1"); err != nil {
			t.Fatalf("SendTest() error = %v", err)
		}
		evt := sessions.calls[0].payload.(realtime.ReminderEvent)
		if evt.Type != realtime.TypeNotification || evt.Title != "Test Notification" || evt.Tag != "test-notification" {
			t.Errorf("SendTest() payload = %+v", evt)
		}
	})

	t.Run("nobody listening", func(t *testing.T) {
		svc := NewNotificationService(newMockPushSubscriptionRepository(), &fakeBroadcaster{}, nil, nil)
		if err := svc.SendTest(ctx, "user-1"); !errors.Is(err, ErrNotificationNotDelivered) {
			t.Errorf("SendTest() error = %v, want ErrNotificationNotDelivered", err)
		}
	})
}

func TestNotificationService_SendTestReminder(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeBroadcaster{connections: map[string]int{"user-1": 1}}
	svc := NewNotificationService(newMockPushSubscriptionRepository(), sessions, nil, nil)

	tests := []struct {
		kind      string
		wantTitle string
	}{
		{"morning", "Test Morning Reminder"},
		{"evening", "Test Evening Reminder"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if err := svc.SendTestReminder(ctx, "user-1", tt.kind); err != nil {
				t.Fatalf("SendTestReminder() error = %v", err)
			}
			evt := sessions.calls[len(sessions.calls)-1].payload.(realtime.ReminderEvent)
			if evt.Type != realtime.TypeReminder || evt.Kind != tt.kind || evt.Title != tt.wantTitle || evt.Tag != "test-reminder" {
				t.Errorf("SendTestReminder() payload = %+v", evt)
			}
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		if err := svc.SendTestReminder(ctx, "user-1", "noon"); !errors.Is(err, ErrInvalidReminderKind) {
			t.Errorf("SendTestReminder() error = %v, want ErrInvalidReminderKind", err)
		}
	})
}
