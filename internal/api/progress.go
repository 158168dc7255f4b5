package api

import (
	"net/http"

	"example.com/chizen/internal/domain"
)

type monthlyStatsView struct {
	Sessions      int     `json:"sessions"`
	AvgDuration   int     `json:"avg_duration"`
	FavoriteFocus string  `json:"favorite_focus"`
	XPEarned      int     `json:"xp_earned"`
}

type progressResponse struct {
	CurrentStreak  int              `json:"current_streak"`
	LongestStreak  int              `json:"longest_streak"`
	TotalXP        int              `json:"total_xp"`
	Level          int              `json:"level"`
	XPToNextLevel  int              `json:"xp_to_next_level"`
	TotalSessions  int              `json:"total_sessions"`
	CompletionRate float64          `json:"completion_rate"`
	Last7Days      []bool           `json:"last_7_days"`
	MonthlyStats   monthlyStatsView `json:"monthly_stats"`
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Progress.Summary(r.Context(), *user)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		CurrentStreak:  s.CurrentStreak,
		LongestStreak:  s.LongestStreak,
		TotalXP:        s.TotalXP,
		Level:          s.Level,
		XPToNextLevel:  s.XPToNextLevel,
		TotalSessions:  s.TotalSessions,
		CompletionRate: s.CompletionRate,
		Last7Days:      s.Last7Days[:],
		MonthlyStats: monthlyStatsView{
			Sessions:      s.Monthly.Sessions,
			AvgDuration:   s.Monthly.AvgDuration,
			FavoriteFocus: s.Monthly.FavoriteFocus,
			XPEarned:      s.Monthly.XPEarned,
		},
	})
}

type achievementsResponse struct {
	Achievements  []AchievementView `json:"achievements"`
	CurrentStreak int               `json:"current_streak"`
	TotalSessions int               `json:"total_sessions"`
	TotalXP       int               `json:"total_xp"`
}

func (h *Handler) achievements(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Progress.Achievements(r.Context(), *user)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	resp := achievementsResponse{
		Achievements:  make([]AchievementView, 0, len(report.Achievements)),
		CurrentStreak: report.CurrentStreak,
		TotalSessions: report.TotalSessions,
		TotalXP:       report.TotalXP,
	}
	for _, a := range report.Achievements {
		resp.Achievements = append(resp.Achievements, AchievementView{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Icon:        a.Icon,
			Unlocked:    true,
			UnlockedAt:  a.UnlockedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type leaderboardResponse struct {
	Leaderboard []LeaderboardEntryView `json:"leaderboard"`
	UserRank    *int                   `json:"user_rank"`
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", domain.DefaultLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	board, err := h.svc.Progress.Leaderboard(r.Context(), user.ID, limit)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	resp := leaderboardResponse{Leaderboard: make([]LeaderboardEntryView, 0, len(board.Entries))}
	for _, e := range board.Entries {
		resp.Leaderboard = append(resp.Leaderboard, LeaderboardEntryView{
			Rank:          e.Rank,
			UserID:        e.UserID,
			Username:      e.Username,
			TotalXP:       e.TotalXP,
			Level:         e.Level,
			CurrentStreak: e.CurrentStreak,
			LongestStreak: e.LongestStreak,
			IsCurrentUser: e.IsCurrentUser,
		})
	}
	if board.CallerRank > 0 {
		rank := board.CallerRank
		resp.UserRank = &rank
	}
	writeJSON(w, http.StatusOK, resp)
}
