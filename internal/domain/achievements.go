package domain

import "time"

// Achievement is an unlocked badge.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Icon        string
	UnlockedAt  *time.Time
}

// achievementRule unlocks a badge from a user and their completed routines, oldest first.
type achievementRule struct {
	id, title, description, icon string
	unlocked                     func(u User, completed []Routine) (bool, *time.Time)
}

var achievementRules = []achievementRule{
	{"week_warrior", "Week Warrior", "Complete 7 days in a row", "🔥", streakAtLeast(7)},
	{"month_master", "Month Master", "Complete 30 days in a row", "👑", streakAtLeast(30)},
	{"getting_started", "Getting Started", "Complete 10 practice sessions", "🌱", sessionsAtLeast(10)},
	{"dedicated_practitioner", "Dedicated Practitioner", "Complete 50 practice sessions", "🥋", sessionsAtLeast(50)},
	{"xp_collector", "XP Collector", "Earn 1000 XP total", "💎", func(u User, _ []Routine) (bool, *time.Time) {
		return u.TotalXP >= 1000, nil
	}},
}

func streakAtLeast(n int) func(User, []Routine) (bool, *time.Time) {
	return func(u User, _ []Routine) (bool, *time.Time) {
		return u.Streak.Current >= n, u.Streak.LastCompletedAt
	}
}

// sessionsAtLeast dates the badge by the n-th completion.
func sessionsAtLeast(n int) func(User, []Routine) (bool, *time.Time) {
	return func(_ User, completed []Routine) (bool, *time.Time) {
		if len(completed) < n {
			return false, nil
		}
		return true, completed[n-1].CompletedAt
	}
}

// EvaluateAchievements lists the badges a user has unlocked. completed must be ordered by completion time.
func EvaluateAchievements(u User, completed []Routine) []Achievement {
	var out []Achievement
	for _, rule := range achievementRules {
		ok, at := rule.unlocked(u, completed)
		if !ok {
			continue
		}
		out = append(out, Achievement{
			ID:          rule.id,
			Title:       rule.title,
			Description: rule.description,
			Icon:        rule.icon,
			UnlockedAt:  at,
		})
	}
	return out
}
