package domain

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestApplyCompletionEightyPercentOfEighty(t *testing.T) {
	res, err := ApplyCompletion(Progress{}, 80, 4, 5, day(0))
	require.NoError(t, err)
	require.Equal(t, 64, res.XPAwarded)
	require.InDelta(t, 0.8, res.CompletionRate, 1e-9)
	require.True(t, res.FullCompletion)
	require.Equal(t, StreakStarted, res.Transition)
	require.Equal(t, 1, res.Progress.Streak.Current)
	require.Equal(t, 1, res.Progress.Streak.Longest)
	require.Equal(t, 64, res.Progress.TotalXP)
	require.NotNil(t, res.Progress.Streak.LastCompletedAt)
}

func TestApplyCompletionRejectsBadCounts(t *testing.T) {
	cases := []struct {
		name             string
		completed, total int
	}{
		{"zero total", 0, 0},
		{"negative total", 1, -1},
		{"negative completed", -1, 3},
		{"completed above total", 4, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyCompletion(Progress{}, 50, tc.completed, tc.total, day(0))
			require.Error(t, err)
			require.True(t, IsValidation(err))
		})
	}
}

func TestSameDayCompletionDoesNotAdvance(t *testing.T) {
	first, err := ApplyCompletion(Progress{}, 50, 3, 3, day(0))
	require.NoError(t, err)

	second, err := ApplyCompletion(first.Progress, 50, 3, 3, day(0).Add(6*time.Hour))
	require.NoError(t, err)
	require.Equal(t, StreakUnchanged, second.Transition)
	require.Equal(t, first.Progress.Streak.Current, second.Progress.Streak.Current)
	require.Equal(t, *first.Progress.Streak.LastCompletedAt, *second.Progress.Streak.LastCompletedAt)
	require.Equal(t, 100, second.Progress.TotalXP)
}

func TestConsecutiveDaysAdvanceAndGapResets(t *testing.T) {
	state := Progress{}
	for i := 0; i < 4; i++ {
		res, err := ApplyCompletion(state, 50, 5, 5, day(i))
		require.NoError(t, err)
		require.Equal(t, i+1, res.Progress.Streak.Current)
		state = res.Progress
	}
	require.Equal(t, 4, state.Streak.Longest)

	res, err := ApplyCompletion(state, 50, 5, 5, day(5))
	require.NoError(t, err)
	require.Equal(t, StreakReset, res.Transition)
	require.Equal(t, 1, res.Progress.Streak.Current)
	require.Equal(t, 4, res.Progress.Streak.Longest)
}

func TestDayBoundaryIsUTCMidnight(t *testing.T) {
	late := time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC)
	first, err := ApplyCompletion(Progress{}, 50, 1, 1, late)
	require.NoError(t, err)

	// 00:01 UTC the next day is consecutive even though only two minutes passed.
	res, err := ApplyCompletion(first.Progress, 50, 1, 1, late.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, StreakAdvanced, res.Transition)
	require.Equal(t, 2, res.Progress.Streak.Current)

	// A non-UTC timestamp on the same UTC day is the same day.
	bangkok := time.FixedZone("ICT", 7*3600)
	same, err := ApplyCompletion(res.Progress, 50, 1, 1, time.Date(2025, time.March, 2, 10, 0, 0, 0, bangkok))
	require.NoError(t, err)
	require.Equal(t, StreakUnchanged, same.Transition)
}

func TestPartialCompletionAwardsXPButKeepsStreak(t *testing.T) {
	last := day(0)
	state := Progress{Streak: StreakRecord{Current: 2, Longest: 5, LastCompletedAt: &last}, TotalXP: 10}

	res, err := ApplyCompletion(state, 75, 2, 3, day(1))
	require.NoError(t, err)
	require.False(t, res.FullCompletion)
	require.Equal(t, StreakPartial, res.Transition)
	require.Equal(t, 50, res.XPAwarded)
	require.Equal(t, 60, res.Progress.TotalXP)
	require.Equal(t, 2, res.Progress.Streak.Current)
	require.Equal(t, last, *res.Progress.Streak.LastCompletedAt)
}

func TestClockMovingBackwardsLeavesStreak(t *testing.T) {
	last := day(3)
	state := Progress{Streak: StreakRecord{Current: 4, Longest: 4, LastCompletedAt: &last}}
	res, err := ApplyCompletion(state, 50, 1, 1, day(1))
	require.NoError(t, err)
	require.Equal(t, StreakUnchanged, res.Transition)
	require.Equal(t, 4, res.Progress.Streak.Current)
	require.Equal(t, last, *res.Progress.Streak.LastCompletedAt)
}

func TestXPIsFloorOfRate(t *testing.T) {
	for base := 0; base <= 120; base += 7 {
		for total := 1; total <= 9; total++ {
			for completed := 0; completed <= total; completed++ {
				res, err := ApplyCompletion(Progress{}, base, completed, total, day(0))
				require.NoError(t, err)
				rate := float64(completed) / float64(total)
				require.Equal(t, int(math.Floor(float64(base)*rate)), res.XPAwarded)
			}
		}
	}
}

func TestXPUsesDoublePrecisionRate(t *testing.T) {
	cases := []struct {
		base, completed, total, want int
	}{
		{base: 90, completed: 7, total: 10, want: 62},
		{base: 55, completed: 3, total: 11, want: 14},
		{base: 75, completed: 11, total: 15, want: 54},
		{base: 100, completed: 4, total: 5, want: 80},
	}
	for _, tc := range cases {
		res, err := ApplyCompletion(Progress{}, tc.base, tc.completed, tc.total, day(0))
		require.NoError(t, err)
		require.Equal(t, tc.want, res.XPAwarded, "base=%d %d/%d", tc.base, tc.completed, tc.total)
	}
}

func TestLongestNeverDecreasesAndCurrentBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	state := Progress{}
	now := day(0)
	prevLongest, prevXP := 0, 0
	for i := 0; i < 500; i++ {
		now = now.Add(time.Duration(rng.Intn(72)) * time.Hour)
		total := rng.Intn(6) + 1
		res, err := ApplyCompletion(state, rng.Intn(100), rng.Intn(total+1), total, now)
		require.NoError(t, err)
		state = res.Progress
		require.GreaterOrEqual(t, state.Streak.Longest, prevLongest)
		require.LessOrEqual(t, state.Streak.Current, state.Streak.Longest)
		require.GreaterOrEqual(t, state.TotalXP, prevXP)
		prevLongest, prevXP = state.Streak.Longest, state.TotalXP
	}
}
