package api

import (
	"net/http"

	"example.com/chizen/internal/domain"
)

type subscribeRequest struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := h.svc.Newsletter.Subscribe(r.Context(), req.Email, req.Name, req.Topics)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	code, message := http.StatusCreated, "Subscribed. Check your inbox for a welcome e-mail."
	switch status {
	case domain.SubscribeExisting:
		code, message = http.StatusOK, "You are already subscribed."
	case domain.SubscribeReactivated:
		code, message = http.StatusOK, "Welcome back! Your subscription has been reactivated."
	}
	writeJSON(w, code, map[string]interface{}{
		"success": true,
		"status":  string(status),
		"message": message,
	})
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Newsletter.Unsubscribe(r.Context(), req.Email); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "You have been unsubscribed.",
	})
}

type newsletterStatsResponse struct {
	ActiveSubscribers       int     `json:"active_subscribers"`
	Unsubscribed            int     `json:"unsubscribed"`
	RecentSubscribers30Days int     `json:"recent_subscribers_30_days"`
	ConversionRate          float64 `json:"conversion_rate"`
}

func (h *Handler) newsletterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Newsletter.Stats(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newsletterStatsResponse{
		ActiveSubscribers:       stats.Active,
		Unsubscribed:            stats.Unsubscribed,
		RecentSubscribers30Days: stats.RecentActive,
		ConversionRate:          stats.ConversionRate,
	})
}
