package domain_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/persistence/memory"
)

type stubGenerator struct {
	err   error
	calls int32
}

func (g *stubGenerator) Generate(ctx context.Context, profile domain.Profile) (domain.Routine, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.err != nil {
		return domain.Routine{}, g.err
	}
	return domain.Routine{
		Title:                "Morning Flow",
		FocusArea:            "flexibility",
		TotalDurationMinutes: profile.DurationMinutes,
		DifficultyLevel:      2,
		CompletionXP:         80,
		Blocks: []domain.ExerciseBlock{
			{Category: domain.CategoryMove, Name: "Cloud Hands", DurationSeconds: 300, Difficulty: 2, AudioCue: "Shift your weight"},
			{Category: domain.CategoryMind, Name: "Box Breath", DurationSeconds: 240, Difficulty: 1, AudioCue: "Breathe in for four"},
			{Category: domain.CategoryCore, Name: "Plank", DurationSeconds: 180, Difficulty: 3},
		},
	}, nil
}

type stubNarrator struct{}

func (stubNarrator) Synthesize(ctx context.Context, text string) string {
	return "http://media.test/" + strings.ReplaceAll(strings.ToLower(text), " ", "-") + ".mp3"
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, false, errors.New("cache down")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Compare(hash, pw string) bool   { return hash == "hashed:"+pw }

type stubTokens struct{}

func (stubTokens) Issue(u domain.User) (string, time.Time, error) {
	return "token-" + u.ID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// testClock is a settable clock shared by services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.June, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seedUser(t *testing.T, store *memory.Store, id string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           id,
		Email:        id + "@example.com",
		Username:     id,
		FitnessLevel: domain.FitnessBeginner,
		Preferences:  domain.DefaultPreferences(),
		IsActive:     true,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}
