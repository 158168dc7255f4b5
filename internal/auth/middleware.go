package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/domain"
)

// Accounts resolves token subjects to users.
type Accounts interface {
	Current(ctx context.Context, userID string) (*domain.User, error)
	ResolveDemo(ctx context.Context, token string) (*domain.User, error)
}

// Skipper lets requests bypass authentication.
type Skipper func(r *http.Request) bool

// Middleware enforces bearer-token authentication and loads the caller.
type Middleware struct {
	tokens   *Tokens
	accounts Accounts
	skipper  Skipper
	log      logrus.FieldLogger
}

// NewMiddleware constructs Middleware. skipper may be nil.
func NewMiddleware(tokens *Tokens, accounts Accounts, skipper Skipper, log logrus.FieldLogger) Middleware {
	return Middleware{tokens: tokens, accounts: accounts, skipper: skipper, log: log}
}

// Wrap attaches authentication to next.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper != nil && m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authenticate(r)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, domain.ErrForbidden) {
				status = http.StatusForbidden
			} else if !errors.Is(err, ErrMissingToken) && !errors.Is(err, ErrInvalidToken) &&
				!errors.Is(err, domain.ErrUserNotFound) && !errors.Is(err, domain.ErrDemoDisabled) {
				m.log.WithError(err).Error("authenticate request")
				status = http.StatusInternalServerError
			}
			deny(w, status, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (m Middleware) authenticate(r *http.Request) (*domain.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[7:])

	if domain.IsDemoToken(token) {
		return m.accounts.ResolveDemo(r.Context(), token)
	}
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return m.accounts.Current(r.Context(), claims.Subject)
}

// RequireAdmin rejects callers without the admin flag. It must run after Wrap.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, ErrMissingToken)
			return
		}
		if !user.IsAdmin {
			deny(w, http.StatusForbidden, errors.New("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, err error) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	} else if status >= http.StatusInternalServerError {
		code = "internal_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": code, "detail": err.Error()})
}
