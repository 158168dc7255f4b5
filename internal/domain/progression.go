package domain

import (
	"math"
	"time"
)

const (
	// FullCompletionThreshold is the completion rate at or above which a routine counts toward the streak.
	FullCompletionThreshold = 0.8
	// DefaultBaseXP is awarded for a full routine when the generator did not specify one.
	DefaultBaseXP = 50
)

// Progress is the slice of user state owned by the progression engine.
type Progress struct {
	Streak  StreakRecord
	TotalXP int
}

// StreakTransition describes what a completion did to the streak.
type StreakTransition string

const (
	StreakStarted   StreakTransition = "started"
	StreakAdvanced  StreakTransition = "advanced"
	StreakUnchanged StreakTransition = "unchanged"
	StreakReset     StreakTransition = "reset"
	// StreakPartial marks a completion below the threshold; the streak is left alone.
	StreakPartial StreakTransition = "partial"
)

// ProgressionResult is the outcome of applying one completion.
type ProgressionResult struct {
	Progress       Progress
	XPAwarded      int
	CompletionRate float64
	FullCompletion bool
	Transition     StreakTransition
}

// ApplyCompletion computes the progress that follows a completion of completed out of total blocks
// at time now. It performs no I/O; callers persist the returned state.
func ApplyCompletion(state Progress, baseXP, completed, total int, now time.Time) (ProgressionResult, error) {
	if total <= 0 {
		return ProgressionResult{}, invalid("total_blocks", "must be greater than zero")
	}
	if completed < 0 || completed > total {
		return ProgressionResult{}, invalid("completed_blocks", "must be between 0 and total_blocks")
	}
	if baseXP < 0 {
		baseXP = 0
	}

	rate := float64(completed) / float64(total)
	awarded := int(math.Floor(float64(baseXP) * rate))

	next := state
	next.TotalXP = state.TotalXP + awarded
	if next.TotalXP < 0 {
		next.TotalXP = 0
	}

	result := ProgressionResult{
		XPAwarded:      awarded,
		CompletionRate: rate,
		FullCompletion: rate >= FullCompletionThreshold,
		Transition:     StreakPartial,
	}

	if result.FullCompletion {
		next.Streak, result.Transition = advanceStreak(state.Streak, now)
	}
	if next.Streak.Current > next.Streak.Longest {
		next.Streak.Longest = next.Streak.Current
	}
	result.Progress = next
	return result, nil
}

func advanceStreak(streak StreakRecord, now time.Time) (StreakRecord, StreakTransition) {
	today := DayOf(now)
	stamp := now.UTC()

	if streak.LastCompletedAt == nil {
		streak.Current = 1
		streak.LastCompletedAt = &stamp
		return streak, StreakStarted
	}

	last := DayOf(*streak.LastCompletedAt)
	switch gap := daysBetween(last, today); {
	case gap <= 0:
		// Same day, or a clock that moved backwards: never double-advance.
		return streak, StreakUnchanged
	case gap == 1:
		streak.Current++
		streak.LastCompletedAt = &stamp
		return streak, StreakAdvanced
	default:
		streak.Current = 1
		streak.LastCompletedAt = &stamp
		return streak, StreakReset
	}
}

// daysBetween counts whole UTC calendar days from a to b. Both must be day-truncated.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
