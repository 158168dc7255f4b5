package domain

import (
	"sort"
	"time"
)

// Participant is one entrant in a ranked board.
type Participant struct {
	UserID        string
	Username      string
	CompletedDays int
	CurrentStreak int
	JoinedAt      time.Time
}

// RankedParticipant pairs a participant with its 1-based position.
type RankedParticipant struct {
	Participant
	Rank int
}

// RankParticipants orders by completed days, then current streak (both descending), then earliest join.
// Ranks are consecutive positions; equal scores never share a rank. The input slice is not modified.
func RankParticipants(participants []Participant) []RankedParticipant {
	sorted := append([]Participant(nil), participants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CompletedDays != b.CompletedDays {
			return a.CompletedDays > b.CompletedDays
		}
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})

	ranked := make([]RankedParticipant, len(sorted))
	for i, p := range sorted {
		ranked[i] = RankedParticipant{Participant: p, Rank: i + 1}
	}
	return ranked
}

// LeaderboardEntry is one row of the global XP board.
type LeaderboardEntry struct {
	Rank          int
	UserID        string
	Username      string
	TotalXP       int
	Level         int
	CurrentStreak int
	LongestStreak int
	IsCurrentUser bool
}

// RankUsers orders users by total XP, then current streak (both descending), then earliest account creation.
func RankUsers(users []User, callerID string) []LeaderboardEntry {
	sorted := append([]User(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalXP != b.TotalXP {
			return a.TotalXP > b.TotalXP
		}
		if a.Streak.Current != b.Streak.Current {
			return a.Streak.Current > b.Streak.Current
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, u := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:          i + 1,
			UserID:        u.ID,
			Username:      u.Username,
			TotalXP:       u.TotalXP,
			Level:         Level(u.TotalXP),
			CurrentStreak: u.Streak.Current,
			LongestStreak: u.Streak.Longest,
			IsCurrentUser: u.ID == callerID,
		}
	}
	return entries
}
