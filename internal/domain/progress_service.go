package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100

	defaultFocus = "mindfulness"
)

// ProgressService derives progress views from stored state.
type ProgressService struct {
	users    UserRepository
	routines RoutineRepository
	options
}

// NewProgressService constructs a ProgressService.
func NewProgressService(users UserRepository, routines RoutineRepository, opts ...Option) *ProgressService {
	return &ProgressService{users: users, routines: routines, options: buildOptions(opts)}
}

// MonthlyStats covers the trailing 30 days.
type MonthlyStats struct {
	Sessions      int
	AvgDuration   int
	FavoriteFocus string
	XPEarned      int
}

// ProgressSummary is the dashboard view of a user's progress.
type ProgressSummary struct {
	CurrentStreak  int
	LongestStreak  int
	TotalXP        int
	Level          int
	XPToNextLevel  int
	TotalSessions  int
	CompletionRate float64
	// Last7Days is oldest first, today last.
	Last7Days [7]bool
	Monthly   MonthlyStats
}

// Summary builds the progress dashboard for user.
func (s *ProgressService) Summary(ctx context.Context, user User) (*ProgressSummary, error) {
	completed, err := s.routines.ListCompletedRoutines(ctx, user.ID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list completed routines: %w", err)
	}
	return summarize(user, completed, s.now()), nil
}

func summarize(user User, completed []Routine, now time.Time) *ProgressSummary {
	out := &ProgressSummary{
		CurrentStreak: user.Streak.Current,
		LongestStreak: user.Streak.Longest,
		TotalXP:       user.TotalXP,
		Level:         Level(user.TotalXP),
		XPToNextLevel: XPToNextLevel(user.TotalXP),
		TotalSessions: len(completed),
	}

	today := DayOf(now)
	monthStart := today.AddDate(0, 0, -30)
	var rateSum float64
	var durationSum int
	focus := map[string]int{}

	for _, r := range completed {
		if r.TotalBlocks > 0 {
			rateSum += float64(r.CompletedBlocks) / float64(r.TotalBlocks)
		}
		day := DayOf(*r.CompletedAt)
		if back := daysBetween(day, today); back >= 0 && back < len(out.Last7Days) {
			out.Last7Days[len(out.Last7Days)-1-back] = true
		}
		if r.CompletedAt.Before(monthStart) {
			continue
		}
		out.Monthly.Sessions++
		out.Monthly.XPEarned += r.XPEarned
		durationSum += r.TotalDurationMinutes
		if r.FocusArea != "" {
			focus[r.FocusArea]++
		}
	}

	if len(completed) > 0 {
		out.CompletionRate = round1(rateSum / float64(len(completed)) * 100)
	}
	if out.Monthly.Sessions > 0 {
		out.Monthly.AvgDuration = durationSum / out.Monthly.Sessions
	}
	out.Monthly.FavoriteFocus = favorite(focus)
	return out
}

// favorite picks the most frequent focus area, breaking ties alphabetically.
func favorite(counts map[string]int) string {
	best, bestN := defaultFocus, 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// AchievementReport lists unlocked badges alongside the counters they depend on.
type AchievementReport struct {
	Achievements  []Achievement
	CurrentStreak int
	TotalSessions int
	TotalXP       int
}

// Achievements evaluates the badges unlocked by user.
func (s *ProgressService) Achievements(ctx context.Context, user User) (*AchievementReport, error) {
	completed, err := s.routines.ListCompletedRoutines(ctx, user.ID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list completed routines: %w", err)
	}
	return &AchievementReport{
		Achievements:  EvaluateAchievements(user, completed),
		CurrentStreak: user.Streak.Current,
		TotalSessions: len(completed),
		TotalXP:       user.TotalXP,
	}, nil
}

// Leaderboard is the global XP board.
type Leaderboard struct {
	Entries []LeaderboardEntry
	// CallerRank is zero when the caller is outside the returned entries.
	CallerRank int
}

// Leaderboard ranks the top users by XP, then streak, then account age.
func (s *ProgressService) Leaderboard(ctx context.Context, callerID string, limit int) (*Leaderboard, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}
	users, err := s.users.TopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	board := &Leaderboard{Entries: RankUsers(users, callerID)}
	for _, e := range board.Entries {
		if e.IsCurrentUser {
			board.CallerRank = e.Rank
		}
	}
	return board, nil
}
