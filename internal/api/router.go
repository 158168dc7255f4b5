// Package api exposes the ChiZen HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/auth"
	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/narration"
)

// Services bundles the domain services the handlers call.
type Services struct {
	Accounts   *domain.AccountService
	Routines   *domain.RoutineService
	Progress   *domain.ProgressService
	Challenges *domain.ChallengeService
	Newsletter *domain.NewsletterService
	Admin      *domain.AdminService
	Voice      *narration.Service
}

// Options tunes the router.
type Options struct {
	CORSOrigins []string
	// GeneratePerMinute bounds routine regeneration and voice synthesis per user.
	GeneratePerMinute int
	// MediaDir is served at /media/ when set.
	MediaDir string
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	svc     Services
	tokens  *auth.Tokens
	limiter *userLimiter
	opts    Options
	log     logrus.FieldLogger
}

// NewHandler builds a Handler.
func NewHandler(svc Services, tokens *auth.Tokens, opts Options, log logrus.FieldLogger) *Handler {
	if opts.GeneratePerMinute <= 0 {
		opts.GeneratePerMinute = 6
	}
	return &Handler{
		svc:     svc,
		tokens:  tokens,
		limiter: newUserLimiter(opts.GeneratePerMinute, time.Minute),
		opts:    opts,
		log:     log,
	}
}

// Routes returns the complete HTTP handler.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if h.opts.MediaDir != "" {
		r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(h.opts.MediaDir))))
	}

	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	public.HandleFunc("/newsletter/subscribe", h.subscribe).Methods(http.MethodPost)
	public.HandleFunc("/newsletter/unsubscribe", h.unsubscribe).Methods(http.MethodPost)

	private := r.PathPrefix("/api").Subrouter()
	private.Use(auth.NewMiddleware(h.tokens, h.svc.Accounts, nil, h.log).Wrap)

	private.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)

	private.HandleFunc("/routine/today", h.todayRoutine).Methods(http.MethodGet)
	private.Handle("/routine/generate", h.limited(h.generateRoutine)).Methods(http.MethodPost)
	private.HandleFunc("/routine/complete", h.completeRoutine).Methods(http.MethodPost)
	private.HandleFunc("/routine/history", h.routineHistory).Methods(http.MethodGet)

	private.HandleFunc("/progress", h.progress).Methods(http.MethodGet)
	private.HandleFunc("/progress/achievements", h.achievements).Methods(http.MethodGet)
	private.HandleFunc("/progress/leaderboard", h.leaderboard).Methods(http.MethodGet)

	private.HandleFunc("/challenges", h.listChallenges).Methods(http.MethodGet)
	private.HandleFunc("/challenges/join", h.joinChallenge).Methods(http.MethodPost)
	private.HandleFunc("/challenges/progress", h.challengeProgress).Methods(http.MethodPost)
	private.HandleFunc("/challenges/mine", h.myChallenges).Methods(http.MethodGet)
	private.HandleFunc("/challenges/{id}/leaderboard", h.challengeLeaderboard).Methods(http.MethodGet)

	private.Handle("/voice/generate", h.limited(h.generateVoice)).Methods(http.MethodPost)
	private.Handle("/voice/batch", h.limited(h.batchVoice)).Methods(http.MethodPost)
	private.HandleFunc("/voice/voices", h.voices).Methods(http.MethodGet)

	admin := private.NewRoute().Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("/newsletter/stats", h.newsletterStats).Methods(http.MethodGet)
	admin.HandleFunc("/admin/users", h.adminListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/admin/users/{id}", h.adminGetUser).Methods(http.MethodGet)
	admin.HandleFunc("/admin/users/{id}", h.adminUpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/admin/users/{id}", h.adminDeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/admin/routines", h.adminListRoutines).Methods(http.MethodGet)
	admin.HandleFunc("/admin/analytics", h.adminAnalytics).Methods(http.MethodGet)
	admin.HandleFunc("/admin/broadcast", h.adminBroadcast).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})

	return requestLogger(h.log, cors(h.opts.CORSOrigins, r))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "chizen-api",
		"narration": h.svc.Voice != nil && h.svc.Voice.Enabled(),
	})
}

// currentUser returns the caller loaded by the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
	}
	return user, ok
}
