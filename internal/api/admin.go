package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/domain"
)

type pageView struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func toPageView(p domain.Page) pageView {
	return pageView{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages()}
}

// pageParams reads page and limit, writing a 400 on malformed input.
func pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return 0, 0, false
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return 0, 0, false
	}
	return page, limit, true
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	users, p, err := h.svc.Admin.ListUsers(r.Context(), domain.UserFilter{
		Search:       q.Get("search"),
		FitnessLevel: domain.FitnessLevel(q.Get("fitness_level")),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": views, "pagination": toPageView(p)})
}

func (h *Handler) adminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Admin.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

type userPatchRequest struct {
	Username     *string          `json:"username"`
	FitnessLevel *string          `json:"fitness_level"`
	Preferences  *PreferencesView `json:"preferences"`
	IsAdmin      *bool            `json:"is_admin"`
	IsActive     *bool            `json:"is_active"`
}

func (req userPatchRequest) toDomain() domain.UserPatch {
	patch := domain.UserPatch{
		Username:    req.Username,
		Preferences: req.Preferences.toDomain(),
		IsAdmin:     req.IsAdmin,
		IsActive:    req.IsActive,
	}
	if req.FitnessLevel != nil {
		level := domain.FitnessLevel(*req.FitnessLevel)
		patch.FitnessLevel = &level
	}
	return patch
}

func (h *Handler) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Admin.UpdateUser(r.Context(), mux.Vars(r)["id"], req.toDomain())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.svc.Admin.DeleteUser(r.Context(), actor.ID, id); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"actor_id": actor.ID, "user_id": id}).Warn("user deleted")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type adminRoutineView struct {
	RoutineView
	UserID string `json:"user_id"`
}

func (h *Handler) adminListRoutines(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	routines, p, err := h.svc.Admin.ListRoutines(r.Context(), domain.RoutineFilter{
		UserID:        q.Get("user_id"),
		CompletedOnly: q.Get("completed_only") == "true",
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	views := make([]adminRoutineView, 0, len(routines))
	for _, rt := range routines {
		views = append(views, adminRoutineView{RoutineView: toRoutineView(rt), UserID: rt.UserID})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"routines": views, "pagination": toPageView(p)})
}

type analyticsResponse struct {
	Users struct {
		Total               int            `json:"total"`
		NewThisWeek         int            `json:"new_this_week"`
		NewThisMonth        int            `json:"new_this_month"`
		ActiveThisWeek      int            `json:"active_this_week"`
		FitnessDistribution map[string]int `json:"fitness_distribution"`
	} `json:"users"`
	Routines struct {
		Total          int     `json:"total"`
		Completed      int     `json:"completed"`
		ThisWeek       int     `json:"this_week"`
		CompletionRate float64 `json:"avg_completion_rate"`
	} `json:"routines"`
	Engagement struct {
		RetentionRate float64 `json:"retention_rate"`
	} `json:"engagement"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (h *Handler) adminAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Admin.Analytics(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	var resp analyticsResponse
	resp.Users.Total = a.TotalUsers
	resp.Users.NewThisWeek = a.NewUsersWeek
	resp.Users.NewThisMonth = a.NewUsersMonth
	resp.Users.ActiveThisWeek = a.ActiveUsersWeek
	resp.Users.FitnessDistribution = make(map[string]int, len(a.FitnessDistribution))
	for level, n := range a.FitnessDistribution {
		resp.Users.FitnessDistribution[string(level)] = n
	}
	resp.Routines.Total = a.TotalRoutines
	resp.Routines.Completed = a.CompletedRoutines
	resp.Routines.ThisWeek = a.RoutinesWeek
	resp.Routines.CompletionRate = a.CompletionRatePercent
	resp.Engagement.RetentionRate = a.RetentionRate
	resp.GeneratedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, resp)
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (h *Handler) adminBroadcast(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req broadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.Admin.Broadcast(r.Context(), actor.ID, req.Message)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":      true,
		"broadcast_id": b.ID,
		"audience":     b.Audience,
		"created_at":   b.CreatedAt,
	})
}
