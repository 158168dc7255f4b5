package domain

import (
	"context"
	"time"
)

// UserRepository persists accounts and their progress.
// Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	// CreateUser stores a new account and records a user.registered event. Duplicate e-mails yield ErrEmailTaken.
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, userID string, patch UserPatch) (*User, error)
	TouchUser(ctx context.Context, userID string, at time.Time) error
	ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error)
	TopUsers(ctx context.Context, limit int) ([]User, error)
	// DeleteUser removes the account with its routines and enrolments. It reports whether a row was deleted.
	DeleteUser(ctx context.Context, userID string) (bool, error)
}

// CompletionCommit is the atomic write that follows a progression decision.
type CompletionCommit struct {
	Routine         Routine
	UserID          string
	ExpectedVersion int64
	Progress        Progress
	Result          ProgressionResult
}

// RoutineRepository persists daily routines.
type RoutineRepository interface {
	// InsertRoutine yields ErrRoutineExists when the user already has a routine for that day.
	InsertRoutine(ctx context.Context, routine Routine) error
	GetRoutine(ctx context.Context, userID, routineID string) (*Routine, error)
	FindRoutineForDay(ctx context.Context, userID string, day time.Time) (*Routine, error)
	ListRoutines(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Routine, *Cursor, error)
	// ListCompletedRoutines returns the user's completed routines since the given time, oldest completion first.
	// A zero since returns all of them.
	ListCompletedRoutines(ctx context.Context, userID string, since time.Time) ([]Routine, error)
	ListAllRoutines(ctx context.Context, filter RoutineFilter) ([]Routine, int, error)
	// CommitCompletion marks the routine completed, writes the user's progress and records a routine.completed
	// event in one transaction. It yields ErrRoutineAlreadyCompleted when the routine was completed already and
	// ErrVersionConflict when the user's version moved past ExpectedVersion.
	CommitCompletion(ctx context.Context, commit CompletionCommit) error
}

// ChallengeRepository persists challenge enrolments.
type ChallengeRepository interface {
	// GetEnrollment returns the user's active enrolment in a challenge.
	GetEnrollment(ctx context.Context, userID, challengeID string) (*UserChallenge, error)
	ListEnrollments(ctx context.Context, userID string) ([]UserChallenge, error)
	ListChallengeParticipants(ctx context.Context, challengeID string) ([]Participant, error)
	CountParticipants(ctx context.Context, challengeID string) (int, error)
	// CreateEnrollment yields ErrAlreadyJoined when an active enrolment exists.
	CreateEnrollment(ctx context.Context, enrollment UserChallenge) error
	// SaveEnrollment writes the enrolment guarded by expectedVersion and, when xpAward is positive,
	// atomically adds it to the user's total XP.
	SaveEnrollment(ctx context.Context, enrollment UserChallenge, expectedVersion int64, xpAward int) error
}

// NewsletterRepository persists newsletter subscriptions.
type NewsletterRepository interface {
	GetSubscription(ctx context.Context, email string) (*Subscription, error)
	// CreateSubscription inserts the subscription and records newsletter.subscribed. It reports false when
	// the address was inserted concurrently.
	CreateSubscription(ctx context.Context, sub Subscription) (bool, error)
	ReactivateSubscription(ctx context.Context, email string, topics []string, at time.Time) error
	// DeactivateSubscription reports whether an active subscription was switched off.
	DeactivateSubscription(ctx context.Context, email string, at time.Time) (bool, error)
	SubscriptionStats(ctx context.Context, since time.Time) (SubscriptionStats, error)
}

// PlatformStats aggregates admin analytics.
type PlatformStats struct {
	TotalUsers          int
	NewUsersWeek        int
	NewUsersMonth       int
	ActiveUsersWeek     int
	FitnessDistribution map[FitnessLevel]int
	TotalRoutines       int
	CompletedRoutines   int
	RoutinesWeek        int
	// AvgCompletionRate is the mean completed/total block ratio of completed routines, in [0, 1].
	AvgCompletionRate float64
}

// Broadcast is an admin message fanned out to users by the event consumer.
type Broadcast struct {
	ID        string
	Message   string
	Audience  string
	CreatedBy string
	CreatedAt time.Time
}

// AdminRepository serves admin-only aggregate reads and writes.
type AdminRepository interface {
	PlatformStats(ctx context.Context, weekAgo, monthAgo time.Time) (PlatformStats, error)
	RecordBroadcast(ctx context.Context, b Broadcast) error
}

// Store is the full persistence surface.
type Store interface {
	UserRepository
	RoutineRepository
	ChallengeRepository
	NewsletterRepository
	AdminRepository
}

// Cache is an optional key-value store with expiry. A miss is reported as found=false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RoutineGenerator produces a routine for a profile. Errors make the caller fall back.
type RoutineGenerator interface {
	Generate(ctx context.Context, profile Profile) (Routine, error)
}

// Narrator turns text into a playable URL. It returns "" when synthesis is unavailable.
type Narrator interface {
	Synthesize(ctx context.Context, text string) string
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user User) (string, time.Time, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Clock supplies the current time.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}
