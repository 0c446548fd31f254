package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"go.uber.org/zap"
)

const (
	ReminderMorning = "morning"
	ReminderEvening = "evening"

	// NotificationIcon is the icon and badge shown with browser notifications
	NotificationIcon = "/losicon.svg"

	reminderKeyPrefix = "reminder:"
	reminderClaimTTL  = 26 * time.Hour
)

var reminderTexts = map[string][2]string{
	ReminderMorning: {"Good Morning!", "Time to set your tasks for today! Don't forget to plan your day ahead."},
	ReminderEvening: {"Good Evening!", "Time to review your task status for today. How did you do?"},
}

// ReminderUserSource lists users who opted in to reminders
type ReminderUserSource interface {
	ListForReminders(ctx context.Context) ([]*domain.User, error)
}

// ReminderNotifier delivers a notification to a user and returns how many
// channels (open sessions and push subscriptions) it reached
type ReminderNotifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) int
}

// ReminderWorkerConfig contains configuration for the reminder worker
type ReminderWorkerConfig struct {
	// ScanInterval is the interval between scans
	ScanInterval time.Duration
	// Location is the zone deadlines are interpreted in
	Location *time.Location
	// LeadTime is how long before a deadline the reminder goes out
	LeadTime time.Duration
}

// DefaultReminderWorkerConfig returns default configuration
func DefaultReminderWorkerConfig() *ReminderWorkerConfig {
	return &ReminderWorkerConfig{
		ScanInterval: time.Minute,
		Location:     time.FixedZone("UTC+8", 8*3600),
		LeadTime:     15 * time.Minute,
	}
}

// ReminderWorker pushes deadline reminders to users' open sessions and push subscriptions
type ReminderWorker struct {
	users    ReminderUserSource
	notifier ReminderNotifier
	dedup    Deduplicator
	metrics  *metrics.Metrics
	config   *ReminderWorkerConfig
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	// Stats
	totalSent    int64
	lastScanTime time.Time
}

// NewReminderWorker creates a new reminder worker; m may be nil
func NewReminderWorker(
	users ReminderUserSource,
	notifier ReminderNotifier,
	dedup Deduplicator,
	m *metrics.Metrics,
	config *ReminderWorkerConfig,
) *ReminderWorker {
	if config == nil {
		config = DefaultReminderWorkerConfig()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = time.Minute
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if dedup == nil {
		dedup = NewMemoryDeduplicator()
	}

	return &ReminderWorker{
		users:    users,
		notifier: notifier,
		dedup:    dedup,
		metrics:  m,
		config:   config,
		log:      logger.Get(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the reminder worker
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reminder worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting reminder worker",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.String("location", w.config.Location.String()),
	)

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the reminder worker
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Reminder worker stopped")
}

func (w *ReminderWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce scans opted-in users and sends every reminder that is due. It
// returns the number of reminders sent.
func (w *ReminderWorker) RunOnce(ctx context.Context) int {
	now := w.now().In(w.config.Location)

	w.mu.Lock()
	w.lastScanTime = now
	w.mu.Unlock()

	users, err := w.users.ListForReminders(ctx)
	if err != nil {
		w.log.Error("Failed to list users for reminders", zap.Error(err))
		return 0
	}

	sent := 0
	for _, user := range users {
		for _, kind := range []string{ReminderMorning, ReminderEvening} {
			if w.remind(ctx, user, kind, now) {
				sent++
			}
		}
	}

	if sent > 0 {
		w.mu.Lock()
		w.totalSent += int64(sent)
		w.mu.Unlock()
		w.log.Info("Reminders sent", zap.Int("count", sent))
	}
	return sent
}

func (w *ReminderWorker) remind(ctx context.Context, user *domain.User, kind string, now time.Time) bool {
	raw := user.Preferences.MorningDeadline
	if kind == ReminderEvening {
		raw = user.Preferences.EveningDeadline
	}

	deadline, ok := DeadlineOn(raw, kind, now)
	if !ok || !Due(deadline, now, w.config.LeadTime) {
		return false
	}

	key := fmt.Sprintf("%s%s:%s:%s", reminderKeyPrefix, user.ID, kind, now.Format("2006-01-02"))
	claimed, err := w.dedup.Claim(ctx, key, reminderClaimTTL)
	if err != nil {
		w.log.Warn("Reminder de-duplication failed", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	text := reminderTexts[kind]
	reached := w.notifier.Notify(ctx, user.ID, domain.Notification{
		Kind:  kind,
		Title: text[0],
		Body:  text[1],
		Icon:  NotificationIcon,
		Badge: NotificationIcon,
		Tag:   kind + "-reminder",
	})
	if reached == 0 {
		// Nobody was listening; a later scan inside the window may still deliver it
		if err := w.dedup.Release(ctx, key); err != nil {
			w.log.Warn("Failed to release reminder claim", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	w.metrics.RecordReminder(kind)
	return true
}

// DeadlineOn resolves a "hh:mm AM/PM" deadline to that clock time on now's
// date. Morning deadlines must fall before noon and evening ones after.
func DeadlineOn(raw, kind string, now time.Time) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dto.ParseDeadline(raw)
	if err != nil {
		return time.Time{}, false
	}
	if kind == ReminderMorning && t.Hour() >= 12 {
		return time.Time{}, false
	}
	if kind == ReminderEvening && t.Hour() < 12 {
		return time.Time{}, false
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), true
}

// Due reports whether now falls in [deadline-lead, deadline)
func Due(deadline, now time.Time, lead time.Duration) bool {
	return !now.Before(deadline.Add(-lead)) && now.Before(deadline)
}

// ReminderWorkerStats contains reminder worker statistics
type ReminderWorkerStats struct {
	IsRunning    bool
	TotalSent    int64
	LastScanTime time.Time
}

// GetStats returns worker statistics
func (w *ReminderWorker) GetStats() *ReminderWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &ReminderWorkerStats{
		IsRunning:    w.running,
		TotalSent:    w.totalSent,
		LastScanTime: w.lastScanTime,
	}
}
