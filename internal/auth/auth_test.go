package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/chizen/internal/domain"
)

const secret = "0123456789abcdef0123456789abcdef"

func newTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(Config{Secret: secret, Issuer: "chizen.api", TTL: time.Minute})
	require.NoError(t, err)
	return tokens
}

func TestIssueAndParse(t *testing.T) {
	tokens := newTokens(t)
	token, exp, err := tokens.Issue(domain.User{ID: "u1", Email: "ana@example.com", IsAdmin: true})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "ana@example.com", claims.Email)
	require.True(t, claims.Admin)
}

func TestParseRejects(t *testing.T) {
	tokens := newTokens(t)

	_, err := tokens.Parse("  ")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = tokens.Parse("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokens(Config{Secret: secret, Issuer: "someone.else"})
	require.NoError(t, err)
	foreign, _, err := other.Issue(domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = tokens.Parse(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, _, err := tokens.Issue(domain.User{ID: "u1"})
	require.NoError(t, err)
	tokens.now = time.Now
	_, err = tokens.Parse(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": "chizen.api"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens(Config{Secret: "short"})
	require.Error(t, err)
}

func TestBcrypt(t *testing.T) {
	h := Bcrypt{Cost: 4}
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	require.True(t, h.Compare(hash, "correct horse"))
	require.False(t, h.Compare(hash, "wrong horse"))
	require.False(t, h.Compare("garbage", "correct horse"))
}

type stubAccounts struct {
	users    map[string]*domain.User
	demo     *domain.User
	demoErr  error
	demoSeen string
}

func (s *stubAccounts) Current(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *stubAccounts) ResolveDemo(_ context.Context, token string) (*domain.User, error) {
	s.demoSeen = token
	return s.demo, s.demoErr
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(user.ID))
	})
}

func serve(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	tokens := newTokens(t)
	accounts := &stubAccounts{
		users: map[string]*domain.User{"u1": {ID: "u1"}},
		demo:  &domain.User{ID: "demo"},
	}
	h := NewMiddleware(tokens, accounts, nil, quietLogger()).Wrap(whoami())

	token, _, err := tokens.Issue(domain.User{ID: "u1"})
	require.NoError(t, err)

	rec := serve(h, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", rec.Body.String())

	rec = serve(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unauthorized", body["type"])

	require.Equal(t, http.StatusUnauthorized, serve(h, "Basic abc").Code)

	ghost, _, err := tokens.Issue(domain.User{ID: "ghost"})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+ghost).Code)

	rec = serve(h, "Bearer demo-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "demo", rec.Body.String())
	require.Equal(t, "demo-token", accounts.demoSeen)

	accounts.demoErr, accounts.demo = domain.ErrDemoDisabled, nil
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer demo-token").Code)
}

func TestMiddlewareSkipper(t *testing.T) {
	skip := func(r *http.Request) bool { return r.URL.Path == "/api/auth/me" }
	h := NewMiddleware(newTokens(t), &stubAccounts{}, skip, quietLogger()).Wrap(whoami())
	require.Equal(t, http.StatusTeapot, serve(h, "").Code)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAdmin(ok)

	call := func(user *domain.User) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusUnauthorized, call(nil))
	require.Equal(t, http.StatusForbidden, call(&domain.User{ID: "u"}))
	require.Equal(t, http.StatusNoContent, call(&domain.User{ID: "a", IsAdmin: true}))
}
