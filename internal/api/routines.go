package api

import (
	"net/http"

	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/persistence"
)

type todayResponse struct {
	Routine     RoutineView `json:"routine"`
	IsCompleted bool        `json:"is_completed"`
	Source      string      `json:"source"`
}

func (h *Handler) todayRoutine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	daily, err := h.svc.Routines.Today(r.Context(), *user)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todayResponse{
		Routine:     toRoutineView(daily.Routine),
		IsCompleted: daily.Routine.Completed(),
		Source:      daily.Source,
	})
}

type generateResponse struct {
	Routine  RoutineView `json:"routine"`
	Fallback bool        `json:"fallback"`
}

func (h *Handler) generateRoutine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	routine, fallback := h.svc.Routines.Regenerate(r.Context(), *user)
	writeJSON(w, http.StatusOK, generateResponse{Routine: toRoutineView(routine), Fallback: fallback})
}

type completeRequest struct {
	RoutineID       string `json:"routine_id"`
	CompletedBlocks *int   `json:"completed_blocks"`
	TotalBlocks     *int   `json:"total_blocks"`
	FeedbackRating  *int   `json:"feedback_rating"`
	FeedbackComment string `json:"feedback_comment"`
}

type completeResponse struct {
	Success        bool       `json:"success"`
	Replay         bool       `json:"replay"`
	XPEarned       int        `json:"xp_earned"`
	CompletionRate float64    `json:"completion_rate"`
	FullCompletion bool       `json:"full_completion"`
	StreakChange   string     `json:"streak_change,omitempty"`
	Streak         StreakView `json:"streak"`
	TotalXP        int        `json:"total_xp"`
	Level          int        `json:"level"`
	XPToNextLevel  int        `json:"xp_to_next_level"`
}

func (h *Handler) completeRoutine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CompletedBlocks == nil || req.TotalBlocks == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "completed_blocks and total_blocks are required")
		return
	}

	out, err := h.svc.Routines.Complete(r.Context(), user.ID, domain.CompletionEvent{
		RoutineID:       req.RoutineID,
		CompletedBlocks: *req.CompletedBlocks,
		TotalBlocks:     *req.TotalBlocks,
		FeedbackRating:  req.FeedbackRating,
		FeedbackComment: req.FeedbackComment,
	})
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	u := out.User
	writeJSON(w, http.StatusOK, completeResponse{
		Success:        true,
		Replay:         out.Replay,
		XPEarned:       out.Result.XPAwarded,
		CompletionRate: out.Result.CompletionRate,
		FullCompletion: out.Result.FullCompletion,
		StreakChange:   string(out.Result.Transition),
		Streak:         StreakView{Current: u.Streak.Current, Longest: u.Streak.Longest, LastCompleted: u.Streak.LastCompletedAt},
		TotalXP:        u.TotalXP,
		Level:          domain.Level(u.TotalXP),
		XPToNextLevel:  domain.XPToNextLevel(u.TotalXP),
	})
}

type historyResponse struct {
	Routines   []RoutineView `json:"routines"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func (h *Handler) routineHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", domain.DefaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid cursor")
		return
	}

	routines, next, err := h.svc.Routines.History(r.Context(), user.ID, cursor, limit)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	resp := historyResponse{Routines: make([]RoutineView, 0, len(routines)), NextCursor: persistence.EncodeCursor(next)}
	for _, rt := range routines {
		resp.Routines = append(resp.Routines, toRoutineView(rt))
	}
	writeJSON(w, http.StatusOK, resp)
}
