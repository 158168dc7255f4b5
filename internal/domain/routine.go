package domain

import (
	"strings"
	"time"
)

// Category names the routine module an exercise block belongs to.
type Category string

const (
	CategoryMove Category = "move"
	CategoryMind Category = "mind"
	CategoryCore Category = "core"
)

// Valid reports whether c is one of move, mind or core.
func (c Category) Valid() bool {
	switch c {
	case CategoryMove, CategoryMind, CategoryCore:
		return true
	}
	return false
}

// RoutineSource records whether a routine came from the language model or the compiled-in fallback.
type RoutineSource string

const (
	SourceAI       RoutineSource = "ai"
	SourceFallback RoutineSource = "fallback"
)

// ExerciseBlock is a single timed step of a routine.
type ExerciseBlock struct {
	Category        Category
	Name            string
	DurationSeconds int
	Instructions    []string
	Difficulty      int
	AudioCue        string
	AudioURL        string
	Benefits        []string
}

// Routine is one user's exercise plan for one UTC calendar day.
type Routine struct {
	ID                   string
	UserID               string
	Day                  time.Time
	Title                string
	FocusArea            string
	TotalDurationMinutes int
	DifficultyLevel      int
	Blocks               []ExerciseBlock
	// CompletionXP is the base XP scaled by the completion rate when the routine is completed.
	CompletionXP    int
	DailyWisdom     string
	Source          RoutineSource
	CreatedAt       time.Time
	CompletedAt     *time.Time
	CompletedBlocks int
	TotalBlocks     int
	FeedbackRating  *int
	FeedbackComment string
	XPEarned        int
}

// Completed reports whether the routine has been marked complete.
func (r Routine) Completed() bool {
	return r.CompletedAt != nil
}

// Normalize clamps generator output into valid ranges. It never fails: a block with an unknown
// category is dropped, difficulties are clamped to 1..5 and a missing base XP gets DefaultBaseXP.
func (r *Routine) Normalize() {
	blocks := r.Blocks[:0]
	for _, b := range r.Blocks {
		b.Category = Category(strings.ToLower(strings.TrimSpace(string(b.Category))))
		if !b.Category.Valid() {
			continue
		}
		b.Difficulty = clampDifficulty(b.Difficulty)
		if b.DurationSeconds < 0 {
			b.DurationSeconds = 0
		}
		blocks = append(blocks, b)
	}
	r.Blocks = blocks
	r.DifficultyLevel = clampDifficulty(r.DifficultyLevel)
	if r.CompletionXP <= 0 {
		r.CompletionXP = DefaultBaseXP
	}
	if r.Source == "" {
		r.Source = SourceAI
	}
}

func clampDifficulty(d int) int {
	switch {
	case d < 1:
		return 1
	case d > 5:
		return 5
	}
	return d
}

// CompletionEvent is the client's report of a finished routine.
type CompletionEvent struct {
	RoutineID       string
	CompletedBlocks int
	TotalBlocks     int
	FeedbackRating  *int
	FeedbackComment string
}

// Validate rejects malformed events before they reach the progression engine.
func (e CompletionEvent) Validate() error {
	if strings.TrimSpace(e.RoutineID) == "" {
		return invalid("routine_id", "is required")
	}
	if e.TotalBlocks <= 0 {
		return invalid("total_blocks", "must be greater than zero")
	}
	if e.CompletedBlocks < 0 || e.CompletedBlocks > e.TotalBlocks {
		return invalid("completed_blocks", "must be between 0 and total_blocks")
	}
	if e.FeedbackRating != nil && (*e.FeedbackRating < 1 || *e.FeedbackRating > 5) {
		return invalid("feedback_rating", "must be between 1 and 5")
	}
	return nil
}

// Cursor models the history pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// RoutineFilter drives the admin routine listing.
type RoutineFilter struct {
	UserID        string
	CompletedOnly bool
	Page          int
	Limit         int
}

// Offset converts the 1-based page into a row offset.
func (f RoutineFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
