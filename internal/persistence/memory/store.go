// Package memory implements the domain repositories in process for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/events"
)

// DefaultEventLimit is how many recent events a Store retains.
const DefaultEventLimit = 1024

// Store keeps all state in maps guarded by one mutex. Published events are collected in order and only
// the most recent ones are retained, since nothing drains them.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	routines      map[string]domain.Routine
	enrollments   map[string]domain.UserChallenge
	subscriptions map[string]domain.Subscription
	events        []events.Envelope
	eventLimit    int
}

// Option configures a Store.
type Option func(*Store)

// WithEventLimit bounds the retained event backlog. Values below one keep no events.
func WithEventLimit(n int) Option {
	return func(s *Store) { s.eventLimit = n }
}

var _ domain.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		users:         make(map[string]domain.User),
		routines:      make(map[string]domain.Routine),
		enrollments:   make(map[string]domain.UserChallenge),
		subscriptions: make(map[string]domain.Subscription),
		eventLimit:    DefaultEventLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record appends an event, dropping the oldest beyond the limit. Callers hold s.mu.
func (s *Store) record(ev events.Envelope) {
	if s.eventLimit < 1 {
		return
	}
	if len(s.events) >= s.eventLimit {
		n := copy(s.events, s.events[len(s.events)-s.eventLimit+1:])
		s.events = s.events[:n]
	}
	s.events = append(s.events, ev)
}

// Events returns a copy of the recorded outbox events.
func (s *Store) Events() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Envelope(nil), s.events...)
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrEmailTaken
	}
	s.users[user.ID] = cloneUser(user)
	s.record(events.ForUser(user))
	return nil
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	u = cloneUser(u)
	return &u, nil
}

// GetUserByEmail implements domain.UserRepository.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, nil
}

// UpdateUser implements domain.UserRepository.
func (s *Store) UpdateUser(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.FitnessLevel != nil {
		u.FitnessLevel = *patch.FitnessLevel
	}
	if patch.Preferences != nil {
		u.Preferences = *patch.Preferences
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	s.users[userID] = cloneUser(u)
	u = cloneUser(u)
	return &u, nil
}

// TouchUser implements domain.UserRepository.
func (s *Store) TouchUser(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	at = at.UTC()
	u.LastActiveAt = &at
	s.users[userID] = u
	return nil
}

// ListUsers implements domain.UserRepository.
func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	var matched []domain.User
	for _, u := range s.users {
		if filter.FitnessLevel != "" && u.FitnessLevel != filter.FitnessLevel {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) && !strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Offset(), filter.Limit), len(matched), nil
}

// TopUsers implements domain.UserRepository.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	s.mu.RLock()
	all := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.IsActive {
			all = append(all, cloneUser(u))
		}
	}
	s.mu.RUnlock()

	ranked := domain.RankUsers(all, "")
	byID := make(map[string]domain.User, len(all))
	for _, u := range all {
		byID[u.ID] = u
	}
	out := make([]domain.User, 0, limit)
	for _, e := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, byID[e.UserID])
	}
	return out, nil
}

// DeleteUser implements domain.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return false, nil
	}
	delete(s.users, userID)
	for id, r := range s.routines {
		if r.UserID == userID {
			delete(s.routines, id)
		}
	}
	for id, uc := range s.enrollments {
		if uc.UserID == userID {
			delete(s.enrollments, id)
		}
	}
	return true, nil
}

// InsertRoutine implements domain.RoutineRepository.
func (s *Store) InsertRoutine(ctx context.Context, routine domain.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[routine.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	day := domain.DayOf(routine.Day)
	for _, r := range s.routines {
		if r.UserID == routine.UserID && r.Day.Equal(day) {
			return domain.ErrRoutineExists
		}
	}
	routine.Day = day
	s.routines[routine.ID] = cloneRoutine(routine)
	return nil
}

// GetRoutine implements domain.RoutineRepository.
func (s *Store) GetRoutine(ctx context.Context, userID, routineID string) (*domain.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routines[routineID]
	if !ok || r.UserID != userID {
		return nil, nil
	}
	r = cloneRoutine(r)
	return &r, nil
}

// FindRoutineForDay implements domain.RoutineRepository.
func (s *Store) FindRoutineForDay(ctx context.Context, userID string, day time.Time) (*domain.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day = domain.DayOf(day)
	for _, r := range s.routines {
		if r.UserID == userID && r.Day.Equal(day) {
			r = cloneRoutine(r)
			return &r, nil
		}
	}
	return nil, nil
}

// ListRoutines implements domain.RoutineRepository.
func (s *Store) ListRoutines(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Routine, *domain.Cursor, error) {
	s.mu.RLock()
	var mine []domain.Routine
	for _, r := range s.routines {
		if r.UserID == userID {
			mine = append(mine, cloneRoutine(r))
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(mine)
	start := 0
	if cursor != nil {
		start = len(mine)
		for i, r := range mine {
			if r.CreatedAt.Before(cursor.CreatedAt) || (r.CreatedAt.Equal(cursor.CreatedAt) && r.ID < cursor.ID) {
				start = i
				break
			}
		}
	}
	mine = mine[start:]
	if len(mine) <= limit {
		return mine, nil, nil
	}
	page := mine[:limit]
	last := page[len(page)-1]
	return page, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// ListCompletedRoutines implements domain.RoutineRepository.
func (s *Store) ListCompletedRoutines(ctx context.Context, userID string, since time.Time) ([]domain.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Routine
	for _, r := range s.routines {
		if r.UserID != userID || r.CompletedAt == nil || r.CompletedAt.Before(since) {
			continue
		}
		out = append(out, cloneRoutine(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, nil
}

// ListAllRoutines implements domain.RoutineRepository.
func (s *Store) ListAllRoutines(ctx context.Context, filter domain.RoutineFilter) ([]domain.Routine, int, error) {
	s.mu.RLock()
	var matched []domain.Routine
	for _, r := range s.routines {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.CompletedOnly && r.CompletedAt == nil {
			continue
		}
		matched = append(matched, cloneRoutine(r))
	}
	s.mu.RUnlock()
	sortNewestFirst(matched)
	return paginate(matched, filter.Offset(), filter.Limit), len(matched), nil
}

// CommitCompletion implements domain.RoutineRepository.
func (s *Store) CommitCompletion(ctx context.Context, commit domain.CompletionCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.routines[commit.Routine.ID]
	if !ok || current.UserID != commit.UserID {
		return domain.ErrRoutineNotFound
	}
	if current.CompletedAt != nil {
		return domain.ErrRoutineAlreadyCompleted
	}
	user, ok := s.users[commit.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.Version != commit.ExpectedVersion {
		return domain.ErrVersionConflict
	}

	user.Streak = commit.Progress.Streak
	user.TotalXP = commit.Progress.TotalXP
	user.Version++
	s.users[user.ID] = cloneUser(user)
	s.routines[current.ID] = cloneRoutine(commit.Routine)
	s.record(events.ForCompletion(commit))
	return nil
}

// GetEnrollment implements domain.ChallengeRepository.
func (s *Store) GetEnrollment(ctx context.Context, userID, challengeID string) (*domain.UserChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, uc := range s.enrollments {
		if uc.UserID == userID && uc.ChallengeID == challengeID && uc.Active {
			uc = cloneEnrollment(uc)
			return &uc, nil
		}
	}
	return nil, nil
}

// ListEnrollments implements domain.ChallengeRepository.
func (s *Store) ListEnrollments(ctx context.Context, userID string) ([]domain.UserChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserChallenge
	for _, uc := range s.enrollments {
		if uc.UserID == userID && uc.Active {
			out = append(out, cloneEnrollment(uc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

// ListChallengeParticipants implements domain.ChallengeRepository.
func (s *Store) ListChallengeParticipants(ctx context.Context, challengeID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, uc := range s.enrollments {
		if uc.ChallengeID != challengeID || !uc.Active {
			continue
		}
		user, ok := s.users[uc.UserID]
		if !ok {
			continue
		}
		out = append(out, domain.Participant{
			UserID:        uc.UserID,
			Username:      user.Username,
			CompletedDays: uc.CompletedDays(),
			CurrentStreak: uc.CurrentStreak,
			JoinedAt:      uc.JoinedAt,
		})
	}
	return out, nil
}

// CountParticipants implements domain.ChallengeRepository.
func (s *Store) CountParticipants(ctx context.Context, challengeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, uc := range s.enrollments {
		if uc.ChallengeID == challengeID && uc.Active {
			n++
		}
	}
	return n, nil
}

// CreateEnrollment implements domain.ChallengeRepository.
func (s *Store) CreateEnrollment(ctx context.Context, enrollment domain.UserChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uc := range s.enrollments {
		if uc.UserID == enrollment.UserID && uc.ChallengeID == enrollment.ChallengeID && uc.Active {
			return domain.ErrAlreadyJoined
		}
	}
	s.enrollments[enrollment.ID] = cloneEnrollment(enrollment)
	return nil
}

// SaveEnrollment implements domain.ChallengeRepository.
func (s *Store) SaveEnrollment(ctx context.Context, enrollment domain.UserChallenge, expectedVersion int64, xpAward int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.enrollments[enrollment.ID]
	if !ok {
		return domain.ErrNotJoined
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	if xpAward > 0 {
		user, ok := s.users[enrollment.UserID]
		if !ok {
			return domain.ErrUserNotFound
		}
		user.TotalXP += xpAward
		user.Version++
		s.users[user.ID] = user
	}
	enrollment.Version = expectedVersion + 1
	s.enrollments[enrollment.ID] = cloneEnrollment(enrollment)
	return nil
}

// GetSubscription implements domain.NewsletterRepository.
func (s *Store) GetSubscription(ctx context.Context, email string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[email]
	if !ok {
		return nil, nil
	}
	sub.Topics = append([]string(nil), sub.Topics...)
	return &sub, nil
}

// CreateSubscription implements domain.NewsletterRepository.
func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[sub.Email]; ok {
		return false, nil
	}
	sub.Topics = append([]string(nil), sub.Topics...)
	s.subscriptions[sub.Email] = sub
	s.record(events.ForSubscription(sub))
	return true, nil
}

// ReactivateSubscription implements domain.NewsletterRepository.
func (s *Store) ReactivateSubscription(ctx context.Context, email string, topics []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[email]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	at = at.UTC()
	sub.Active = true
	sub.ResubscribedAt = &at
	sub.Topics = append([]string(nil), topics...)
	s.subscriptions[email] = sub
	return nil
}

// DeactivateSubscription implements domain.NewsletterRepository.
func (s *Store) DeactivateSubscription(ctx context.Context, email string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[email]
	if !ok || !sub.Active {
		return false, nil
	}
	at = at.UTC()
	sub.Active = false
	sub.UnsubscribedAt = &at
	s.subscriptions[email] = sub
	return true, nil
}

// SubscriptionStats implements domain.NewsletterRepository.
func (s *Store) SubscriptionStats(ctx context.Context, since time.Time) (domain.SubscriptionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats domain.SubscriptionStats
	for _, sub := range s.subscriptions {
		if !sub.Active {
			stats.Unsubscribed++
			continue
		}
		stats.Active++
		if !sub.SubscribedAt.Before(since) {
			stats.RecentActive++
		}
	}
	return stats, nil
}

// PlatformStats implements domain.AdminRepository.
func (s *Store) PlatformStats(ctx context.Context, weekAgo, monthAgo time.Time) (domain.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.PlatformStats{FitnessDistribution: map[domain.FitnessLevel]int{}}
	for _, level := range domain.FitnessLevels {
		stats.FitnessDistribution[level] = 0
	}
	for _, u := range s.users {
		stats.TotalUsers++
		if !u.CreatedAt.Before(weekAgo) {
			stats.NewUsersWeek++
		}
		if !u.CreatedAt.Before(monthAgo) {
			stats.NewUsersMonth++
		}
		if u.FitnessLevel.Valid() {
			stats.FitnessDistribution[u.FitnessLevel]++
		}
	}

	active := map[string]bool{}
	var rateSum float64
	for _, r := range s.routines {
		stats.TotalRoutines++
		if !r.CreatedAt.Before(weekAgo) {
			stats.RoutinesWeek++
		}
		if r.CompletedAt == nil {
			continue
		}
		stats.CompletedRoutines++
		if r.TotalBlocks > 0 {
			rateSum += float64(r.CompletedBlocks) / float64(r.TotalBlocks)
		}
		if !r.CompletedAt.Before(weekAgo) {
			active[r.UserID] = true
		}
	}
	stats.ActiveUsersWeek = len(active)
	if stats.CompletedRoutines > 0 {
		stats.AvgCompletionRate = rateSum / float64(stats.CompletedRoutines)
	}
	return stats, nil
}

// RecordBroadcast implements domain.AdminRepository.
func (s *Store) RecordBroadcast(ctx context.Context, b domain.Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(events.ForBroadcast(b))
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sortNewestFirst(routines []domain.Routine) {
	sort.Slice(routines, func(i, j int) bool {
		if !routines[i].CreatedAt.Equal(routines[j].CreatedAt) {
			return routines[i].CreatedAt.After(routines[j].CreatedAt)
		}
		return routines[i].ID > routines[j].ID
	})
}

func cloneUser(u domain.User) domain.User {
	u.Preferences.FocusAreas = append([]string(nil), u.Preferences.FocusAreas...)
	if u.Streak.LastCompletedAt != nil {
		t := *u.Streak.LastCompletedAt
		u.Streak.LastCompletedAt = &t
	}
	return u
}

func cloneRoutine(r domain.Routine) domain.Routine {
	blocks := make([]domain.ExerciseBlock, len(r.Blocks))
	for i, b := range r.Blocks {
		b.Instructions = append([]string(nil), b.Instructions...)
		b.Benefits = append([]string(nil), b.Benefits...)
		blocks[i] = b
	}
	r.Blocks = blocks
	return r
}

func cloneEnrollment(uc domain.UserChallenge) domain.UserChallenge {
	uc.Days = append([]domain.DayProgress(nil), uc.Days...)
	return uc
}
