package api

import (
	"net/http"
	"time"

	"example.com/chizen/internal/domain"
)

type registerRequest struct {
	Email        string           `json:"email"`
	Username     string           `json:"username"`
	Password     string           `json:"password"`
	FitnessLevel string           `json:"fitness_level"`
	Preferences  *PreferencesView `json:"preferences"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserView  `json:"user"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		AccessToken: s.Token,
		TokenType:   "bearer",
		ExpiresAt:   s.ExpiresAt,
		User:        toUserView(s.User),
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.Accounts.Register(r.Context(), domain.RegisterInput{
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		FitnessLevel: domain.FitnessLevel(req.FitnessLevel),
		Preferences:  req.Preferences.toDomain(),
	})
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}
