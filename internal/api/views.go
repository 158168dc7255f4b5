package api

import (
	"time"

	"example.com/chizen/internal/domain"
)

// UserView is the public representation of an account.
type UserView struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	FitnessLevel string          `json:"fitness_level"`
	Preferences  PreferencesView `json:"preferences"`
	StreakData   StreakView      `json:"streak_data"`
	TotalXP      int             `json:"total_xp"`
	Level        int             `json:"level"`
	IsAdmin      bool            `json:"is_admin"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActiveAt *time.Time      `json:"last_active,omitempty"`
}

// PreferencesView carries routine preferences on the wire.
type PreferencesView struct {
	Duration   int      `json:"duration"`
	FocusAreas []string `json:"focus_areas"`
	Language   string   `json:"language"`
}

// StreakView describes a streak record.
type StreakView struct {
	Current       int        `json:"current"`
	Longest       int        `json:"longest"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
}

func toUserView(u domain.User) UserView {
	return UserView{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FitnessLevel: string(u.FitnessLevel),
		Preferences:  toPreferencesView(u.Preferences),
		StreakData:   StreakView{Current: u.Streak.Current, Longest: u.Streak.Longest, LastCompleted: u.Streak.LastCompletedAt},
		TotalXP:      u.TotalXP,
		Level:        domain.Level(u.TotalXP),
		IsAdmin:      u.IsAdmin,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		LastActiveAt: u.LastActiveAt,
	}
}

func toPreferencesView(p domain.Preferences) PreferencesView {
	return PreferencesView{Duration: p.DurationMinutes, FocusAreas: p.FocusAreas, Language: string(p.Language)}
}

func (p *PreferencesView) toDomain() *domain.Preferences {
	if p == nil {
		return nil
	}
	return &domain.Preferences{DurationMinutes: p.Duration, FocusAreas: p.FocusAreas, Language: domain.Language(p.Language)}
}

// BlockView is one exercise block of a routine.
type BlockView struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	DurationSeconds int      `json:"duration_seconds"`
	Instructions    []string `json:"instructions"`
	Difficulty      int      `json:"difficulty"`
	AudioCue        string   `json:"audio_cue,omitempty"`
	AudioURL        string   `json:"audio_url,omitempty"`
	Benefits        []string `json:"benefits"`
}

// RoutineView is the public representation of a routine.
type RoutineView struct {
	RoutineID       string      `json:"routine_id,omitempty"`
	Title           string      `json:"title"`
	TotalDuration   int         `json:"total_duration"`
	FocusArea       string      `json:"focus_area"`
	DifficultyLevel int         `json:"difficulty_level"`
	Blocks          []BlockView `json:"blocks"`
	CompletionXP    int         `json:"completion_xp"`
	DailyWisdom     string      `json:"daily_wisdom"`
	Source          string      `json:"generated_by"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	XPEarned        int         `json:"xp_earned,omitempty"`
	FeedbackRating  *int        `json:"feedback_rating,omitempty"`
	FeedbackComment string      `json:"feedback_comment,omitempty"`
}

func toRoutineView(r domain.Routine) RoutineView {
	v := RoutineView{
		RoutineID:       r.ID,
		Title:           r.Title,
		TotalDuration:   r.TotalDurationMinutes,
		FocusArea:       r.FocusArea,
		DifficultyLevel: r.DifficultyLevel,
		Blocks:          make([]BlockView, 0, len(r.Blocks)),
		CompletionXP:    r.CompletionXP,
		DailyWisdom:     r.DailyWisdom,
		Source:          string(r.Source),
		CompletedAt:     r.CompletedAt,
		XPEarned:        r.XPEarned,
		FeedbackRating:  r.FeedbackRating,
		FeedbackComment: r.FeedbackComment,
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt
		v.CreatedAt = &created
	}
	for _, b := range r.Blocks {
		v.Blocks = append(v.Blocks, BlockView{
			Type:            string(b.Category),
			Name:            b.Name,
			DurationSeconds: b.DurationSeconds,
			Instructions:    b.Instructions,
			Difficulty:      b.Difficulty,
			AudioCue:        b.AudioCue,
			AudioURL:        b.AudioURL,
			Benefits:        b.Benefits,
		})
	}
	return v
}

// ChallengeView describes a catalog entry.
type ChallengeView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	DurationDays int      `json:"duration_days"`
	Category     string   `json:"category"`
	Difficulty   int      `json:"difficulty"`
	XPReward     int      `json:"xp_reward"`
	Icon         string   `json:"icon"`
	Color        string   `json:"color"`
	Goals        []string `json:"goals"`
	Benefits     []string `json:"benefits"`
}

func toChallengeView(c domain.Challenge) ChallengeView {
	return ChallengeView{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		DurationDays: c.DurationDays,
		Category:     c.Category,
		Difficulty:   c.Difficulty,
		XPReward:     c.XPReward,
		Icon:         c.Icon,
		Color:        c.Color,
		Goals:        c.Goals,
		Benefits:     c.Benefits,
	}
}

// ChallengeProgressView summarises a user's progress in one challenge.
type ChallengeProgressView struct {
	CompletedDays int       `json:"completed_days"`
	TotalDays     int       `json:"total_days"`
	Percentage    float64   `json:"percentage"`
	CurrentStreak int       `json:"current_streak"`
	JoinedDate    time.Time `json:"joined_date"`
	IsCompleted   bool      `json:"is_completed"`
}

func toChallengeProgressView(p domain.ChallengeProgress) ChallengeProgressView {
	return ChallengeProgressView{
		CompletedDays: p.CompletedDays,
		TotalDays:     p.TotalDays,
		Percentage:    p.Percentage,
		CurrentStreak: p.CurrentStreak,
		JoinedDate:    p.JoinedAt,
		IsCompleted:   p.IsCompleted,
	}
}

// ChallengeListItem is a catalog entry annotated for the caller.
type ChallengeListItem struct {
	ChallengeView
	Status            string                 `json:"status"`
	Progress          *ChallengeProgressView `json:"progress,omitempty"`
	ParticipantsCount *int                   `json:"participants_count,omitempty"`
}

// LeaderboardEntryView is one row of the global leaderboard.
type LeaderboardEntryView struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	TotalXP       int    `json:"total_xp"`
	Level         int    `json:"level"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// AchievementView is one achievement with its unlock state.
type AchievementView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}
