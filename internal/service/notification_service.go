package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/notify"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const notificationIcon = "/losicon.svg"

var testReminderTexts = map[string][2]string{
	"morning": {"Test Morning Reminder", "This is a test morning reminder notification."},
	"evening": {"Test Evening Reminder", "This is a test evening reminder notification."},
}

// NotificationService defines the interface for push subscriptions and notification delivery
type NotificationService interface {
	Subscribe(ctx context.Context, userID string, req *dto.PushSubscriptionRequest) (*dto.PushSubscriptionResponse, error)
	GetSubscription(ctx context.Context, userID string) (*dto.PushSubscriptionResponse, error)
	Unsubscribe(ctx context.Context, userID string) error
	SendTest(ctx context.Context, userID string) error
	SendTestReminder(ctx context.Context, userID, kind string) error
	// Notify delivers n to the user's open sessions and push subscription and
	// returns how many of them it reached
	Notify(ctx context.Context, userID string, n domain.Notification) int
}

type notificationService struct {
	pushRepo repository.PushSubscriptionRepository
	sessions realtime.Deliverer
	sender   notify.Sender
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewNotificationService creates a new NotificationService. sender may be nil
// when no VAPID keys are configured; notifications then only reach open sessions.
func NewNotificationService(
	pushRepo repository.PushSubscriptionRepository,
	sessions realtime.Deliverer,
	sender notify.Sender,
	m *metrics.Metrics,
) NotificationService {
	return &notificationService{
		pushRepo: pushRepo,
		sessions: sessions,
		sender:   sender,
		metrics:  m,
		log:      logger.Get(),
		now:      time.Now,
	}
}

// Subscribe stores the user's push subscription, replacing any previous one
func (s *notificationService) Subscribe(ctx context.Context, userID string, req *dto.PushSubscriptionRequest) (*dto.PushSubscriptionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.subscribe")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	now := s.now()
	sub, err := s.pushRepo.Upsert(ctx, &domain.PushSubscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.P256dh,
		Auth:      req.Auth,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return toPushSubscriptionResponse(sub), nil
}

// GetSubscription returns nil when the user has not subscribed
func (s *notificationService) GetSubscription(ctx context.Context, userID string) (*dto.PushSubscriptionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.get_subscription")
	defer span.End()

	sub, err := s.pushRepo.GetByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	return toPushSubscriptionResponse(sub), nil
}

// Unsubscribe removes the user's push subscription
func (s *notificationService) Unsubscribe(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.unsubscribe")
	defer span.End()

	if err := s.pushRepo.DeleteByUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// SendTest sends a fixed test notification to the user
func (s *notificationService) SendTest(ctx context.Context, userID string) error {
	n := domain.Notification{
		Kind:  "test",
		Title: "Test Notification",
		Body:  "This is a test notification from LOS!",
		Icon:  notificationIcon,
		Tag:   "test-notification",
	}
	if s.Notify(ctx, userID, n) == 0 {
		return ErrNotificationNotDelivered
	}
	return nil
}

// SendTestReminder sends a morning or evening reminder outside its window
func (s *notificationService) SendTestReminder(ctx context.Context, userID, kind string) error {
	text, ok := testReminderTexts[kind]
	if !ok {
		return ErrInvalidReminderKind
	}
	n := domain.Notification{
		Kind:  kind,
		Title: text[0],
		Body:  text[1],
		Icon:  notificationIcon,
		Badge: notificationIcon,
		Tag:   "test-reminder",
	}
	if s.Notify(ctx, userID, n) == 0 {
		return ErrNotificationNotDelivered
	}
	return nil
}

// Notify implements NotificationService; delivery failures are logged, never returned
func (s *notificationService) Notify(ctx context.Context, userID string, n domain.Notification) int {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.notify")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("kind", n.Kind))

	eventType := realtime.TypeNotification
	if _, ok := testReminderTexts[n.Kind]; ok {
		eventType = realtime.TypeReminder
	}
	reached := s.sessions.Deliver(ctx, userID, realtime.ReminderEvent{
		Type:  eventType,
		Kind:  n.Kind,
		Title: n.Title,
		Body:  n.Body,
		Tag:   n.Tag,
	})

	if s.push(ctx, userID, n) {
		reached++
	}
	span.SetAttributes(attribute.Int("reached", reached))
	return reached
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Kind  string `json:"kind"`
}

func (s *notificationService) push(ctx context.Context, userID string, n domain.Notification) bool {
	if s.sender == nil {
		return false
	}

	sub, err := s.pushRepo.GetByUser(ctx, userID)
	if err != nil {
		s.log.Warn("Failed to load push subscription", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if sub == nil {
		return false
	}

	payload, err := json.Marshal(pushPayload{
		Title: n.Title,
		Body:  n.Body,
		Icon:  n.Icon,
		Badge: n.Badge,
		Tag:   n.Tag,
		Kind:  n.Kind,
	})
	if err != nil {
		s.log.Error("Failed to marshal push payload", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	err = s.sender.Send(ctx, sub, payload)
	switch {
	case err == nil:
		s.metrics.RecordPush("ok")
		return true
	case errors.Is(err, notify.ErrSubscriptionGone):
		s.metrics.RecordPush("gone")
		s.log.Info("Removing expired push subscription", zap.String("user_id", userID))
		if err := s.pushRepo.DeleteByUser(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("Failed to remove expired push subscription", zap.String("user_id", userID), zap.Error(err))
		}
	default:
		s.metrics.RecordPush("error")
		s.log.Warn("Web push delivery failed", zap.String("user_id", userID), zap.Error(err))
	}
	return false
}

func toPushSubscriptionResponse(sub *domain.PushSubscription) *dto.PushSubscriptionResponse {
	return &dto.PushSubscriptionResponse{
		ID:        sub.ID,
		UserID:    sub.UserID,
		Endpoint:  sub.Endpoint,
		P256dh:    sub.P256dh,
		Auth:      sub.Auth,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}
