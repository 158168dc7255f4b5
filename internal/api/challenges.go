package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"example.com/chizen/internal/domain"
)

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	views, err := h.svc.Challenges.List(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	items := make([]ChallengeListItem, 0, len(views))
	for _, v := range views {
		item := ChallengeListItem{ChallengeView: toChallengeView(v.Challenge), Status: "available"}
		if v.Joined && v.Progress != nil {
			p := toChallengeProgressView(*v.Progress)
			item.Status = "joined"
			item.Progress = &p
		} else {
			n := v.ParticipantCount
			item.ParticipantsCount = &n
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"challenges": items})
}

type joinRequest struct {
	ChallengeID string `json:"challenge_id"`
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ch, err := h.svc.Challenges.Join(r.Context(), user.ID, req.ChallengeID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"challenge": toChallengeView(ch),
	})
}

type challengeProgressRequest struct {
	ChallengeID string `json:"challenge_id"`
	Day         int    `json:"day"`
	Completed   *bool  `json:"completed"`
}

type challengeProgressResponse struct {
	Success   bool                  `json:"success"`
	Progress  ChallengeProgressView `json:"progress"`
	XPAwarded int                   `json:"xp_awarded"`
}

func (h *Handler) challengeProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req challengeProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	upd, err := h.svc.Challenges.RecordProgress(r.Context(), user.ID, req.ChallengeID, req.Day, completed)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeProgressResponse{
		Success:   true,
		Progress:  toChallengeProgressView(upd.Progress),
		XPAwarded: upd.XPAwarded,
	})
}

type enrollmentView struct {
	Challenge ChallengeView         `json:"challenge"`
	Progress  ChallengeProgressView `json:"progress"`
}

func (h *Handler) myChallenges(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Challenges.Mine(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	out := make([]enrollmentView, 0, len(list))
	for _, e := range list {
		out = append(out, enrollmentView{Challenge: toChallengeView(e.Challenge), Progress: toChallengeProgressView(e.Progress)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"challenges": out})
}

type standingView struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	Username      string  `json:"username"`
	CompletedDays int     `json:"completed_days"`
	CurrentStreak int     `json:"current_streak"`
	Percentage    float64 `json:"percentage"`
	IsCompleted   bool    `json:"is_completed"`
}

type challengeBoardResponse struct {
	ChallengeID       string         `json:"challenge_id"`
	Leaderboard       []standingView `json:"leaderboard"`
	TotalParticipants int            `json:"total_participants"`
}

func (h *Handler) challengeLeaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	limit, err := intParam(r, "limit", domain.DefaultLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	board, err := h.svc.Challenges.Leaderboard(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	resp := challengeBoardResponse{
		ChallengeID:       board.ChallengeID,
		Leaderboard:       make([]standingView, 0, len(board.Standings)),
		TotalParticipants: board.TotalParticipants,
	}
	for _, s := range board.Standings {
		resp.Leaderboard = append(resp.Leaderboard, standingView{
			Rank:          s.Rank,
			UserID:        s.UserID,
			Username:      s.Username,
			CompletedDays: s.CompletedDays,
			CurrentStreak: s.CurrentStreak,
			Percentage:    s.Percentage,
			IsCompleted:   s.IsCompleted,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
