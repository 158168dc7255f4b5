package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"example.com/chizen/internal/auth"
	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/narration"
	"example.com/chizen/internal/persistence/memory"
)

type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, profile domain.Profile) (domain.Routine, error) {
	return domain.Routine{
		Title:                "Morning Flow",
		FocusArea:            "balance",
		TotalDurationMinutes: profile.DurationMinutes,
		DifficultyLevel:      2,
		CompletionXP:         60,
		Blocks: []domain.ExerciseBlock{
			{Category: domain.CategoryMove, Name: "Cloud Hands", DurationSeconds: 300, Difficulty: 2},
			{Category: domain.CategoryMind, Name: "Box Breath", DurationSeconds: 240, Difficulty: 1},
			{Category: domain.CategoryCore, Name: "Plank", DurationSeconds: 180, Difficulty: 3},
		},
	}, nil
}

type testServer struct {
	store   *memory.Store
	handler http.Handler
	logs    *logtest.Hook
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	hook := logtest.NewLocal(log)

	store := memory.NewStore()
	tokens, err := auth.NewTokens(auth.Config{Secret: "0123456789abcdef-test", Issuer: "chizen-test", TTL: time.Hour})
	require.NoError(t, err)
	locks := domain.NewUserLocks()

	svc := Services{
		Accounts: domain.NewAccountService(store, auth.Bcrypt{Cost: 4}, tokens, false, domain.WithLogger(log)),
		Routines: domain.NewRoutineService(domain.RoutineDeps{
			Routines:  store,
			Users:     store,
			Generator: fixedGenerator{},
			Locks:     locks,
		}, domain.WithLogger(log)),
		Progress:   domain.NewProgressService(store, store, domain.WithLogger(log)),
		Challenges: domain.NewChallengeService(domain.DefaultCatalog(), store, locks, domain.WithLogger(log)),
		Newsletter: domain.NewNewsletterService(store, domain.WithLogger(log)),
		Admin:      domain.NewAdminService(store, store, store, domain.WithLogger(log)),
		Voice:      narration.NewService(nil, nil, time.Second, log),
	}
	return &testServer{store: store, handler: NewHandler(svc, tokens, opts, log).Routes(), logs: hook}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (s *testServer) register(t *testing.T, email string) (string, UserView) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":    email,
		"password": "tai-chi-forever",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken, resp.User
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, user := srv.register(t, "Mei@Example.com")
	require.Equal(t, "mei@example.com", user.Email)
	require.Equal(t, 1, user.Level)

	rec := srv.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserView
	decode(t, rec, &me)
	require.Equal(t, user.ID, me.ID)

	rec = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "mei@example.com", "password": "another-one"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "short@example.com", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "mei@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "mei@example.com", "password": "tai-chi-forever"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/auth/me", "demo-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "demo tokens are refused unless demo mode is on")
}

func TestRoutineLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, _ := srv.register(t, "lin@example.com")

	rec := srv.do(t, http.MethodGet, "/api/routine/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var today todayResponse
	decode(t, rec, &today)
	require.Equal(t, domain.ServedGenerated, today.Source)
	require.False(t, today.IsCompleted)
	require.Len(t, today.Routine.Blocks, 3)

	rec = srv.do(t, http.MethodGet, "/api/routine/today", token, nil)
	decode(t, rec, &today)
	require.Equal(t, domain.ServedExisting, today.Source)

	rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{
		"routine_id": today.Routine.RoutineID, "completed_blocks": 4, "total_blocks": 3,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{"routine_id": today.Routine.RoutineID})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{
		"routine_id": "missing", "completed_blocks": 3, "total_blocks": 3,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{
		"routine_id": today.Routine.RoutineID, "completed_blocks": 3, "total_blocks": 3, "feedback_rating": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var done completeResponse
	decode(t, rec, &done)
	require.False(t, done.Replay)
	require.True(t, done.FullCompletion)
	require.Equal(t, 1, done.Streak.Current)
	require.Positive(t, done.XPEarned)
	require.Equal(t, done.XPEarned, done.TotalXP)

	rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{
		"routine_id": today.Routine.RoutineID, "completed_blocks": 3, "total_blocks": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var replay completeResponse
	decode(t, rec, &replay)
	require.True(t, replay.Replay)
	require.Equal(t, done.TotalXP, replay.TotalXP)
	require.Equal(t, 1, replay.Streak.Current)

	rec = srv.do(t, http.MethodGet, "/api/routine/history?limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history historyResponse
	decode(t, rec, &history)
	require.Len(t, history.Routines, 1)
	require.Empty(t, history.NextCursor)

	rec = srv.do(t, http.MethodGet, "/api/routine/history?cursor=not-a-cursor", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary progressResponse
	decode(t, rec, &summary)
	require.Equal(t, 1, summary.TotalSessions)
	require.Equal(t, done.TotalXP, summary.TotalXP)
	require.Len(t, summary.Last7Days, 7)
	require.True(t, summary.Last7Days[6])

	rec = srv.do(t, http.MethodGet, "/api/progress/leaderboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board leaderboardResponse
	decode(t, rec, &board)
	require.Len(t, board.Leaderboard, 1)
	require.True(t, board.Leaderboard[0].IsCurrentUser)
	require.NotNil(t, board.UserRank)
	require.Equal(t, 1, *board.UserRank)
}

func TestCompletionIsLoggedOnce(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, _ := srv.register(t, "yun@example.com")

	rec := srv.do(t, http.MethodGet, "/api/routine/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var today todayResponse
	decode(t, rec, &today)

	srv.logs.Reset()
	for i := 0; i < 2; i++ {
		rec = srv.do(t, http.MethodPost, "/api/routine/complete", token, map[string]interface{}{
			"routine_id": today.Routine.RoutineID, "completed_blocks": 3, "total_blocks": 3,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	completed := 0
	for _, entry := range srv.logs.AllEntries() {
		if entry.Message == "routine completed" {
			completed++
		}
	}
	require.Equal(t, 1, completed, "a replayed completion is not logged")
}

func TestGenerateIsRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{GeneratePerMinute: 2})
	token, _ := srv.register(t, "rate@example.com")

	for i := 0; i < 2; i++ {
		rec := srv.do(t, http.MethodPost, "/api/routine/generate", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/api/routine/generate", token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	other, _ := srv.register(t, "other@example.com")
	rec = srv.do(t, http.MethodPost, "/api/routine/generate", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChallengeEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, _ := srv.register(t, "ada@example.com")

	rec := srv.do(t, http.MethodPost, "/api/challenges/join", token, map[string]string{"challenge_id": "no-such-thing"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/challenges/progress", token, map[string]interface{}{"challenge_id": "weekend-warrior", "day": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/challenges/join", token, map[string]string{"challenge_id": "weekend-warrior"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = srv.do(t, http.MethodPost, "/api/challenges/join", token, map[string]string{"challenge_id": "weekend-warrior"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/challenges/progress", token, map[string]interface{}{"challenge_id": "weekend-warrior", "day": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/challenges/progress", token, map[string]interface{}{"challenge_id": "weekend-warrior", "day": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var upd challengeProgressResponse
	decode(t, rec, &upd)
	require.Equal(t, 1, upd.Progress.CompletedDays)
	require.Equal(t, 1, upd.Progress.CurrentStreak)

	rec = srv.do(t, http.MethodGet, "/api/challenges", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Challenges []ChallengeListItem `json:"challenges"`
	}
	decode(t, rec, &list)
	require.NotEmpty(t, list.Challenges)
	for _, c := range list.Challenges {
		if c.ID == "weekend-warrior" {
			require.Equal(t, "joined", c.Status)
			require.NotNil(t, c.Progress)
		} else {
			require.Equal(t, "available", c.Status)
			require.NotNil(t, c.ParticipantsCount)
		}
	}

	rec = srv.do(t, http.MethodGet, "/api/challenges/mine", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/challenges/weekend-warrior/leaderboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board challengeBoardResponse
	decode(t, rec, &board)
	require.Equal(t, 1, board.TotalParticipants)
	require.Equal(t, 1, board.Leaderboard[0].Rank)
}

func TestNewsletterEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/newsletter/subscribe", "", map[string]interface{}{"email": "fan@example.com", "name": "Fan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/newsletter/subscribe", "", map[string]interface{}{"email": "fan@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	require.Equal(t, "existing", body["status"])

	rec = srv.do(t, http.MethodPost, "/api/newsletter/subscribe", "", map[string]interface{}{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/newsletter/unsubscribe", "", map[string]string{"email": "fan@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/newsletter/unsubscribe", "", map[string]string{"email": "fan@example.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, admin := srv.register(t, "root@example.com")
	_, member := srv.register(t, "member@example.com")

	rec := srv.do(t, http.MethodGet, "/api/admin/analytics", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	yes := true
	_, err := srv.store.UpdateUser(context.Background(), admin.ID, domain.UserPatch{IsAdmin: &yes})
	require.NoError(t, err)

	rec = srv.do(t, http.MethodGet, "/api/admin/users?search=MEMBER", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users struct {
		Users      []UserView `json:"users"`
		Pagination pageView   `json:"pagination"`
	}
	decode(t, rec, &users)
	require.Len(t, users.Users, 1)
	require.Equal(t, member.ID, users.Users[0].ID)
	require.Equal(t, 1, users.Pagination.Total)

	rec = srv.do(t, http.MethodGet, "/api/admin/users?page=-1", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/admin/users/"+member.ID, token, map[string]interface{}{"fitness_level": "advanced"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated UserView
	decode(t, rec, &updated)
	require.Equal(t, "advanced", updated.FitnessLevel)

	rec = srv.do(t, http.MethodGet, "/api/admin/analytics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var analytics analyticsResponse
	decode(t, rec, &analytics)
	require.Equal(t, 2, analytics.Users.Total)

	rec = srv.do(t, http.MethodGet, "/api/newsletter/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/admin/broadcast", token, map[string]string{"message": "Practice at dawn"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodDelete, "/api/admin/users/"+admin.ID, token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/admin/users/"+member.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/admin/users/"+member.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoiceWithoutSpeaker(t *testing.T) {
	srv := newTestServer(t, Options{})
	token, _ := srv.register(t, "voice@example.com")

	rec := srv.do(t, http.MethodGet, "/api/voice/voices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "master-lee")

	rec = srv.do(t, http.MethodPost, "/api/voice/generate", token, map[string]string{"text": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/voice/generate", token, map[string]string{"text": "Breathe"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	texts := make([]string, narration.MaxBatch+1)
	rec = srv.do(t, http.MethodPost, "/api/voice/batch", token, map[string]interface{}{"texts": texts})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteAndCORS(t *testing.T) {
	srv := newTestServer(t, Options{CORSOrigins: []string{"http://localhost:3000"}})

	rec := srv.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not_found")

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	rec = srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}
