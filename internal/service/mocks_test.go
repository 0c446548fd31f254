package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/repository"
)

// mockUserRepository is a mock implementation of UserRepository
type mockUserRepository struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	emailIndex map[string]*domain.User
	createErr  error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:      make(map[string]*domain.User),
		emailIndex: make(map[string]*domain.User),
	}
}

func (r *mockUserRepository) put(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user
}

// snapshot returns a copy so callers cannot race with later writes
func (r *mockUserRepository) snapshot(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	cp.RefreshTokens = append([]domain.RefreshTokenEntry(nil), u.RefreshTokens...)
	return &cp
}

func (r *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emailIndex[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	cp := *user
	r.users[user.ID] = &cp
	r.emailIndex[user.Email] = &cp
	return nil
}

func (r *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.snapshot(id), nil
}

func (r *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	u, ok := r.emailIndex[email]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.snapshot(u.ID), nil
}

func (r *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.emailIndex[email]
	return exists, nil
}

func (r *mockUserRepository) AddRefreshToken(ctx context.Context, userID string, entry domain.RefreshTokenEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshTokens = append(u.RefreshTokens, entry)
	return nil
}

func (r *mockUserRepository) RotateRefreshToken(ctx context.Context, userID, oldToken string, next domain.RefreshTokenEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrRefreshTokenNotPresent
	}
	kept := make([]domain.RefreshTokenEntry, 0, len(u.RefreshTokens))
	found := false
	for _, e := range u.RefreshTokens {
		if e.Token == oldToken {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return repository.ErrRefreshTokenNotPresent
	}
	u.RefreshTokens = append(kept, next)
	return nil
}

func (r *mockUserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.RefreshTokens = []domain.RefreshTokenEntry{}
	}
	return nil
}

func (r *mockUserRepository) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		kept := u.RefreshTokens[:0]
		for _, e := range u.RefreshTokens {
			if e.ExpiresAt.After(now) {
				kept = append(kept, e)
			}
		}
		if len(kept) != len(u.RefreshTokens) {
			n++
		}
		u.RefreshTokens = kept
	}
	return n, nil
}

func (r *mockUserRepository) UpdateName(ctx context.Context, userID, name string) (*domain.User, error) {
	r.mu.Lock()
	u, ok := r.users[userID]
	if ok {
		u.Name = name
	}
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.snapshot(userID), nil
}

func (r *mockUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.RefreshTokens = []domain.RefreshTokenEntry{}
	return nil
}

func (r *mockUserRepository) UpdatePreferences(ctx context.Context, userID string, update domain.PreferencesUpdate) (*domain.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Language != nil {
		u.Preferences.Language = *update.Language
	}
	if update.MorningDeadline != nil {
		u.Preferences.MorningDeadline = *update.MorningDeadline
	}
	if update.EveningDeadline != nil {
		u.Preferences.EveningDeadline = *update.EveningDeadline
	}
	if update.NotificationsEnabled != nil {
		u.Preferences.NotificationsEnabled = *update.NotificationsEnabled
	}
	prefs := u.Preferences
	return &prefs, nil
}

func (r *mockUserRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	u, ok := r.users[userID]
	if ok {
		u.Role = role
	}
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.snapshot(userID), nil
}

func (r *mockUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.emailIndex, u.Email)
	delete(r.users, id)
	return nil
}

func (r *mockUserRepository) List(ctx context.Context, filter repository.UserListFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	var matched []*domain.User
	for _, u := range r.users {
		if filter.Role != "" && string(u.Role) != filter.Role {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, u)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []*domain.User{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (r *mockUserRepository) ListForReminders(ctx context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.User
	for _, u := range r.users {
		if u.Preferences.NotificationsEnabled {
			result = append(result, u)
		}
	}
	return result, nil
}

// mockGoalRepository is a mock implementation of GoalRepository
type mockGoalRepository struct {
	goals map[string]*domain.Goal
}

func newMockGoalRepository() *mockGoalRepository {
	return &mockGoalRepository{goals: make(map[string]*domain.Goal)}
}

func (r *mockGoalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	cp := *goal
	r.goals[goal.ID] = &cp
	return nil
}

func (r *mockGoalRepository) GetByID(ctx context.Context, id, userID string) (*domain.Goal, error) {
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *mockGoalRepository) ListByUser(ctx context.Context, userID string, status *domain.GoalStatus) ([]*domain.Goal, error) {
	var result []*domain.Goal
	for _, g := range r.goals {
		if g.UserID != userID {
			continue
		}
		if status != nil && g.Status != *status {
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

func (r *mockGoalRepository) Update(ctx context.Context, goal *domain.Goal) error {
	existing, ok := r.goals[goal.ID]
	if !ok || existing.UserID != goal.UserID {
		return fmt.Errorf("update goal %s: %w", goal.ID, repository.ErrNotFound)
	}
	cp := *goal
	r.goals[goal.ID] = &cp
	return nil
}

func (r *mockGoalRepository) Delete(ctx context.Context, id, userID string) error {
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return fmt.Errorf("delete goal %s: %w", id, repository.ErrNotFound)
	}
	delete(r.goals, id)
	return nil
}

func (r *mockGoalRepository) CountActiveByCategory(ctx context.Context, userID string, category domain.GoalCategory, excludeID string) (int, error) {
	n := 0
	for _, g := range r.goals {
		if g.UserID == userID && g.Category == category && g.Status == domain.GoalStatusActive && g.ID != excludeID {
			n++
		}
	}
	return n, nil
}

// mockTaskRepository is a mock implementation of TaskRepository
type mockTaskRepository struct {
	tasks      map[string]*domain.Task
	lastFilter domain.TaskFilter
}

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{tasks: make(map[string]*domain.Task)}
}

func (r *mockTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *mockTaskRepository) GetByID(ctx context.Context, id, userID string) (*domain.Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *mockTaskRepository) List(ctx context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.lastFilter = filter
	var result []*domain.Task
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.GoalID != nil && t.GoalID != *filter.GoalID {
			continue
		}
		if filter.Date != nil && t.ScheduledDate.Format("2006-01-02") != filter.Date.Format("2006-01-02") {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (r *mockTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return fmt.Errorf("update task %s: %w", task.ID, repository.ErrNotFound)
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *mockTaskRepository) Delete(ctx context.Context, id, userID string) error {
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("delete task %s: %w", id, repository.ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

// fakeBroadcaster records every broadcast
type fakeBroadcaster struct {
	mu          sync.Mutex
	calls       []broadcastCall
	connections map[string]int
}

type broadcastCall struct {
	identityID string
	payload    interface{}
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, identityID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{identityID: identityID, payload: payload})
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Deliver records the payload and reports the identity's configured connection count
func (b *fakeBroadcaster) Deliver(ctx context.Context, identityID string, payload interface{}) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{identityID: identityID, payload: payload})
	return b.connections[identityID]
}

// mockPushSubscriptionRepository is a mock implementation of PushSubscriptionRepository
type mockPushSubscriptionRepository struct {
	mu     sync.Mutex
	subs   map[string]*domain.PushSubscription
	getErr error
}

func newMockPushSubscriptionRepository() *mockPushSubscriptionRepository {
	return &mockPushSubscriptionRepository{subs: make(map[string]*domain.PushSubscription)}
}

func (r *mockPushSubscriptionRepository) Upsert(ctx context.Context, sub *domain.PushSubscription) (*domain.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	if existing, ok := r.subs[sub.UserID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	r.subs[sub.UserID] = &cp
	out := cp
	return &out, nil
}

func (r *mockPushSubscriptionRepository) GetByUser(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (r *mockPushSubscriptionRepository) DeleteByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[userID]; !ok {
		return fmt.Errorf("delete push subscription %s: %w", userID, repository.ErrNotFound)
	}
	delete(r.subs, userID)
	return nil
}

// fakeSender records payloads and returns err for every send
type fakeSender struct {
	mu       sync.Mutex
	err      error
	payloads [][]byte
}

func (s *fakeSender) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}
