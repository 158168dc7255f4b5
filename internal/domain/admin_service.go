package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// AdminService backs the admin console.
type AdminService struct {
	users    UserRepository
	routines RoutineRepository
	admin    AdminRepository
	options
}

// NewAdminService constructs an AdminService.
func NewAdminService(users UserRepository, routines RoutineRepository, admin AdminRepository, opts ...Option) *AdminService {
	return &AdminService{users: users, routines: routines, admin: admin, options: buildOptions(opts)}
}

// Page describes a page of a listing.
type Page struct {
	Page  int
	Limit int
	Total int
}

// Pages is the number of pages needed for Total rows.
func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		return 0, 0, invalid("page", "must be at least 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, 0, invalid("limit", "must be between 1 and 100")
	}
	return page, limit, nil
}

// ListUsers pages through accounts, newest first.
func (s *AdminService) ListUsers(ctx context.Context, filter UserFilter) ([]User, Page, error) {
	page, limit, err := normalizePage(filter.Page, filter.Limit)
	if err != nil {
		return nil, Page{}, err
	}
	if filter.FitnessLevel != "" && !filter.FitnessLevel.Valid() {
		return nil, Page{}, invalid("fitness_level", "must be beginner, intermediate or advanced")
	}
	filter.Page, filter.Limit = page, limit
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list users: %w", err)
	}
	return users, Page{Page: page, Limit: limit, Total: total}, nil
}

// GetUser loads one account.
func (s *AdminService) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser applies an admin patch. Progress fields cannot be patched.
func (s *AdminService) UpdateUser(ctx context.Context, userID string, patch UserPatch) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Preferences != nil {
		prefs := patch.Preferences.WithDefaults()
		patch.Preferences = &prefs
	}
	if patch.Empty() {
		return s.GetUser(ctx, userID)
	}
	user, err := s.users.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteUser removes an account and everything it owns. Admins cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfDeletion
	}
	deleted, err := s.users.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "actor_id": actorID}).Warn("user deleted")
	return nil
}

// ListRoutines pages through all routines, newest first.
func (s *AdminService) ListRoutines(ctx context.Context, filter RoutineFilter) ([]Routine, Page, error) {
	page, limit, err := normalizePage(filter.Page, filter.Limit)
	if err != nil {
		return nil, Page{}, err
	}
	filter.Page, filter.Limit = page, limit
	routines, total, err := s.routines.ListAllRoutines(ctx, filter)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list routines: %w", err)
	}
	return routines, Page{Page: page, Limit: limit, Total: total}, nil
}

// Analytics is the platform overview.
type Analytics struct {
	PlatformStats
	// CompletionRatePercent is AvgCompletionRate as a percentage rounded to one decimal.
	CompletionRatePercent float64
	// RetentionRate is active users over total users as a percentage. Active means completed a routine
	// in the last seven days.
	RetentionRate float64
}

// Analytics aggregates platform statistics.
func (s *AdminService) Analytics(ctx context.Context) (*Analytics, error) {
	today := DayOf(s.now())
	stats, err := s.admin.PlatformStats(ctx, today.AddDate(0, 0, -7), today.AddDate(0, 0, -30))
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	return &Analytics{
		PlatformStats:         stats,
		CompletionRatePercent: round1(stats.AvgCompletionRate * 100),
		RetentionRate:         percentOf(stats.ActiveUsersWeek, stats.TotalUsers),
	}, nil
}

// Broadcast records an announcement for asynchronous fan-out.
func (s *AdminService) Broadcast(ctx context.Context, actorID, message string) (*Broadcast, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	b := Broadcast{
		ID:        uuid.NewString(),
		Message:   message,
		Audience:  "all_users",
		CreatedBy: actorID,
		CreatedAt: s.now(),
	}
	if err := s.admin.RecordBroadcast(ctx, b); err != nil {
		return nil, fmt.Errorf("record broadcast: %w", err)
	}
	return &b, nil
}
