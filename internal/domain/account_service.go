package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinPasswordLength is enforced at registration.
const MinPasswordLength = 8

// AccountService handles registration, login and identity resolution.
type AccountService struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	demoMode bool
	options
}

// NewAccountService constructs an AccountService. Demo tokens resolve only when demoMode is set.
func NewAccountService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, demoMode bool, opts ...Option) *AccountService {
	return &AccountService{users: users, hasher: hasher, tokens: tokens, demoMode: demoMode, options: buildOptions(opts)}
}

// RegisterInput captures a sign-up request.
type RegisterInput struct {
	Email        string
	Username     string
	Password     string
	FitnessLevel FitnessLevel
	Preferences  *Preferences
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// Register creates an account and signs a token for it.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	level := in.FitnessLevel
	if level == "" {
		level = FitnessBeginner
	}
	if !level.Valid() {
		return nil, invalid("fitness_level", "must be beginner, intermediate or advanced")
	}
	prefs := DefaultPreferences()
	if in.Preferences != nil {
		prefs = in.Preferences.WithDefaults()
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FitnessLevel: level,
		Preferences:  prefs,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: &now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return s.session(user)
}

// Login verifies credentials. Unknown e-mails, password-less accounts and wrong passwords are indistinguishable.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !s.hasher.Compare(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	return s.session(*user)
}

// Current loads the user a verified token refers to.
func (s *AccountService) Current(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	return user, nil
}

// Touch records activity for the user.
func (s *AccountService) Touch(ctx context.Context, userID string) error {
	return s.users.TouchUser(ctx, userID, s.now())
}

type demoIdentity struct {
	email, username string
	admin           bool
}

func demoIdentityFor(token string) demoIdentity {
	switch {
	case token == "demo-token" || strings.HasPrefix(token, "demo-user-"):
		return demoIdentity{"demo@chizen.com", "demo_user", false}
	case token == "demo-google-token":
		return demoIdentity{"demo@gmail.com", "demo_google", false}
	case strings.Contains(token, "admin"):
		return demoIdentity{"demo-admin@demo.chizen.com", "demo_admin", true}
	}
	return demoIdentity{"demo@chizen.com", "demo_user", false}
}

// IsDemoToken reports whether a bearer token uses the demo prefix.
func IsDemoToken(token string) bool {
	return strings.HasPrefix(token, "demo-")
}

// ResolveDemo maps a demo token onto a fixed demo account, creating it on first use.
func (s *AccountService) ResolveDemo(ctx context.Context, token string) (*User, error) {
	if !s.demoMode {
		return nil, ErrDemoDisabled
	}
	id := demoIdentityFor(token)
	existing, err := s.users.GetUserByEmail(ctx, id.email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Registered accounts never authenticate through a demo token.
		if existing.PasswordHash != "" || !existing.IsActive {
			return nil, ErrForbidden
		}
		return existing, nil
	}

	now := s.now()
	prefs := DefaultPreferences()
	prefs.FocusAreas = []string{"flexibility", "mindfulness"}
	user := User{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("chizen:demo:"+id.email)).String(),
		Email:        id.email,
		Username:     id.username,
		FitnessLevel: FitnessBeginner,
		Preferences:  prefs,
		Streak:       StreakRecord{Current: 3, Longest: 7},
		TotalXP:      150,
		IsAdmin:      id.admin,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: &now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		// Created by a concurrent request.
		return s.Current(ctx, user.ID)
	}
	s.log.WithField("email", id.email).Warn("demo user created")
	return &user, nil
}

func (s *AccountService) session(user User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
