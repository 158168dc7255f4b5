//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/chizen/internal/domain"
)

func TestStoreCompletionCommit(t *testing.T) {
	ctx := context.Background()
	store, pool := startStore(t, ctx)

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	user := newUser("ana@example.com", now)
	require.NoError(t, store.CreateUser(ctx, user))
	require.ErrorIs(t, store.CreateUser(ctx, newUser("ana@example.com", now)), domain.ErrEmailTaken)

	routine := domain.FallbackRoutine(user.Profile())
	routine.ID = uuid.NewString()
	routine.UserID = user.ID
	routine.Day = now
	routine.CreatedAt = now
	require.NoError(t, store.InsertRoutine(ctx, routine))

	dup := routine
	dup.ID = uuid.NewString()
	require.ErrorIs(t, store.InsertRoutine(ctx, dup), domain.ErrRoutineExists)

	found, err := store.FindRoutineForDay(ctx, user.ID, now.Add(10*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, routine.ID, found.ID)
	require.Len(t, found.Blocks, len(routine.Blocks))

	result, err := domain.ApplyCompletion(user.Progress(), routine.CompletionXP, 3, 3, now)
	require.NoError(t, err)
	completedAt := now
	routine.CompletedAt = &completedAt
	routine.CompletedBlocks, routine.TotalBlocks = 3, 3
	routine.XPEarned = result.XPAwarded

	commit := domain.CompletionCommit{
		Routine:         routine,
		UserID:          user.ID,
		ExpectedVersion: user.Version,
		Progress:        result.Progress,
		Result:          result,
	}
	require.NoError(t, store.CommitCompletion(ctx, commit))
	require.ErrorIs(t, store.CommitCompletion(ctx, commit), domain.ErrRoutineAlreadyCompleted)

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Streak.Current)
	require.Equal(t, routine.CompletionXP, stored.TotalXP)
	require.Equal(t, user.Version+1, stored.Version)

	var outboxed int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1 AND event_type='routine.completed'`, routine.ID).Scan(&outboxed))
	require.Equal(t, 1, outboxed)

	completed, err := store.ListCompletedRoutines(ctx, user.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, completed, 1)
}

func TestStoreCompletionVersionConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := startStore(t, ctx)

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	user := newUser("ben@example.com", now)
	require.NoError(t, store.CreateUser(ctx, user))

	routine := domain.FallbackRoutine(user.Profile())
	routine.ID = uuid.NewString()
	routine.UserID = user.ID
	routine.Day = now
	routine.CreatedAt = now
	require.NoError(t, store.InsertRoutine(ctx, routine))

	completedAt := now
	routine.CompletedAt = &completedAt
	routine.CompletedBlocks, routine.TotalBlocks = 1, 3
	err := store.CommitCompletion(ctx, domain.CompletionCommit{
		Routine:         routine,
		UserID:          user.ID,
		ExpectedVersion: user.Version + 5,
		Progress:        user.Progress(),
	})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	reloaded, err := store.GetRoutine(ctx, user.ID, routine.ID)
	require.NoError(t, err)
	require.False(t, reloaded.Completed(), "conflicting commit must roll back the routine update")
}

func TestStoreEnrollmentAwardsXP(t *testing.T) {
	ctx := context.Background()
	store, _ := startStore(t, ctx)

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	user := newUser("cai@example.com", now)
	require.NoError(t, store.CreateUser(ctx, user))

	uc := domain.UserChallenge{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		ChallengeID: "weekend-warrior",
		JoinedAt:    now,
		Active:      true,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateEnrollment(ctx, uc))
	dup := uc
	dup.ID = uuid.NewString()
	require.ErrorIs(t, store.CreateEnrollment(ctx, dup), domain.ErrAlreadyJoined)

	ch, ok := domain.DefaultCatalog().Get("weekend-warrior")
	require.True(t, ok)
	for day := 1; day <= ch.DurationDays; day++ {
		_, err := uc.Mark(ch, day, true, now)
		require.NoError(t, err)
	}
	require.NoError(t, store.SaveEnrollment(ctx, uc, 0, ch.XPReward))
	require.ErrorIs(t, store.SaveEnrollment(ctx, uc, 0, 0), domain.ErrVersionConflict)

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, ch.XPReward, stored.TotalXP)

	participants, err := store.ListChallengeParticipants(ctx, "weekend-warrior")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.Equal(t, ch.DurationDays, participants[0].CompletedDays)
}

func TestStoreNewsletterLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := startStore(t, ctx)

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	sub := domain.Subscription{Email: "dee@example.com", Topics: []string{"wellness_tips"}, Source: "website", Active: true, SubscribedAt: now}
	created, err := store.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	require.False(t, created)

	off, err := store.DeactivateSubscription(ctx, sub.Email, now)
	require.NoError(t, err)
	require.True(t, off)

	stats, err := store.SubscriptionStats(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Equal(t, 0, stats.Active)
	require.Equal(t, 1, stats.Unsubscribed)

	require.NoError(t, store.ReactivateSubscription(ctx, sub.Email, []string{"new_features"}, now))
	got, err := store.GetSubscription(ctx, sub.Email)
	require.NoError(t, err)
	require.True(t, got.Active)
	require.Equal(t, []string{"new_features"}, got.Topics)
}

func startStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool) {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("chizen"),
		postgrescontainer.WithUsername("chizen"),
		postgrescontainer.WithPassword("chizen"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewStore(pool), pool
}

func newUser(email string, now time.Time) domain.User {
	return domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     email,
		FitnessLevel: domain.FitnessBeginner,
		Preferences:  domain.DefaultPreferences(),
		IsActive:     true,
		CreatedAt:    now,
	}
}
