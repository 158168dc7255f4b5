package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/chizen/internal/observability"
)

const (
	// maxCommitAttempts is how often a write is re-applied right away after losing a version race.
	// Later attempts back off until the request context ends.
	maxCommitAttempts = 3
	maxCommitBackoff  = 250 * time.Millisecond
	// narrationConcurrency bounds parallel text-to-speech calls per routine.
	narrationConcurrency = 3

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 50
)

// Where a daily routine was served from.
const (
	ServedCached    = "cached"
	ServedExisting  = "existing"
	ServedGenerated = "generated"
)

// RoutineDeps groups the collaborators of RoutineService. Narrator and Cache are optional.
type RoutineDeps struct {
	Routines  RoutineRepository
	Users     UserRepository
	Generator RoutineGenerator
	Narrator  Narrator
	Cache     Cache
	CacheTTL  time.Duration
	Locks     *UserLocks
}

// RoutineService orchestrates daily routines and their completion.
type RoutineService struct {
	deps RoutineDeps
	options
}

// NewRoutineService constructs a RoutineService.
func NewRoutineService(deps RoutineDeps, opts ...Option) *RoutineService {
	if deps.Locks == nil {
		deps.Locks = NewUserLocks()
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Hour
	}
	return &RoutineService{deps: deps, options: buildOptions(opts)}
}

// DailyRoutine is today's routine with its provenance.
type DailyRoutine struct {
	Routine Routine
	Source  string
}

// Today returns the caller's routine for the current UTC day, generating and storing it on first request.
func (s *RoutineService) Today(ctx context.Context, user User) (*DailyRoutine, error) {
	day := DayOf(s.now())
	key := routineCacheKey(user.ID, day)

	if routine, ok := s.cached(ctx, key); ok {
		observability.RecordRoutineServed(ServedCached)
		return &DailyRoutine{Routine: routine, Source: ServedCached}, nil
	}

	existing, err := s.deps.Routines.FindRoutineForDay(ctx, user.ID, day)
	if err != nil {
		return nil, fmt.Errorf("find routine for day: %w", err)
	}
	if existing != nil {
		s.store(ctx, key, *existing)
		observability.RecordRoutineServed(ServedExisting)
		return &DailyRoutine{Routine: *existing, Source: ServedExisting}, nil
	}

	routine, _ := s.generate(ctx, user)
	routine.Day = day
	if err := s.deps.Routines.InsertRoutine(ctx, routine); err != nil {
		if !errors.Is(err, ErrRoutineExists) {
			return nil, fmt.Errorf("insert routine: %w", err)
		}
		existing, err := s.deps.Routines.FindRoutineForDay(ctx, user.ID, day)
		if err != nil {
			return nil, fmt.Errorf("reload routine for day: %w", err)
		}
		if existing == nil {
			return nil, ErrRoutineNotFound
		}
		s.store(ctx, key, *existing)
		observability.RecordRoutineServed(ServedExisting)
		return &DailyRoutine{Routine: *existing, Source: ServedExisting}, nil
	}

	s.store(ctx, key, routine)
	observability.RecordRoutineServed(ServedGenerated)
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "routine_id": routine.ID, "source": routine.Source}).Info("routine generated")
	return &DailyRoutine{Routine: routine, Source: ServedGenerated}, nil
}

// Regenerate produces a fresh routine without storing it. It reports whether the fallback was used.
func (s *RoutineService) Regenerate(ctx context.Context, user User) (Routine, bool) {
	routine, fellBack := s.generate(ctx, user)
	routine.Day = DayOf(s.now())
	return routine, fellBack
}

func (s *RoutineService) generate(ctx context.Context, user User) (Routine, bool) {
	profile := user.Profile()
	fellBack := false
	routine, err := s.deps.Generator.Generate(ctx, profile)
	if err != nil || len(routine.Blocks) == 0 {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("routine generation failed, using fallback")
		observability.RecordGeneratorFallback()
		routine = FallbackRoutine(profile)
		fellBack = true
	}
	routine.Normalize()
	if len(routine.Blocks) == 0 {
		routine = FallbackRoutine(profile)
		routine.Normalize()
		fellBack = true
	}

	now := s.now()
	routine.ID = uuid.NewString()
	routine.UserID = user.ID
	routine.CreatedAt = now
	routine.CompletedAt = nil
	routine.XPEarned = 0
	if routine.TotalDurationMinutes <= 0 {
		routine.TotalDurationMinutes = profile.DurationMinutes
	}
	s.narrate(ctx, routine.Blocks)
	return routine, fellBack
}

// narrate fills audio URLs in place. Failures leave the URL empty.
func (s *RoutineService) narrate(ctx context.Context, blocks []ExerciseBlock) {
	if s.deps.Narrator == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(narrationConcurrency)
	for i := range blocks {
		if blocks[i].AudioCue == "" {
			continue
		}
		g.Go(func() error {
			blocks[i].AudioURL = s.deps.Narrator.Synthesize(ctx, blocks[i].AudioCue)
			return nil
		})
	}
	_ = g.Wait()
}

// CompletionOutcome reports a completion and the resulting user state.
type CompletionOutcome struct {
	Routine Routine
	User    User
	Result  ProgressionResult
	// Replay is set when the routine had been completed before; nothing was awarded by this call.
	Replay bool
}

// Complete applies a completion event. Completions of one user are applied one at a time; a routine
// already completed is reported back unchanged with Replay set.
func (s *RoutineService) Complete(ctx context.Context, userID string, ev CompletionEvent) (*CompletionOutcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		if err := commitBackoff(ctx, attempt); err != nil {
			return nil, err
		}
		user, routine, err := s.loadForCompletion(ctx, userID, ev.RoutineID)
		if err != nil {
			return nil, err
		}
		if routine.Completed() {
			return replayOutcome(*user, *routine), nil
		}

		now := s.now()
		result, err := ApplyCompletion(user.Progress(), routine.CompletionXP, ev.CompletedBlocks, ev.TotalBlocks, now)
		if err != nil {
			return nil, err
		}

		done := *routine
		done.CompletedAt = &now
		done.CompletedBlocks = ev.CompletedBlocks
		done.TotalBlocks = ev.TotalBlocks
		done.FeedbackRating = ev.FeedbackRating
		done.FeedbackComment = ev.FeedbackComment
		done.XPEarned = result.XPAwarded

		err = s.deps.Routines.CommitCompletion(ctx, CompletionCommit{
			Routine:         done,
			UserID:          userID,
			ExpectedVersion: user.Version,
			Progress:        result.Progress,
			Result:          result,
		})
		switch {
		case err == nil:
			updated := *user
			updated.Streak = result.Progress.Streak
			updated.TotalXP = result.Progress.TotalXP
			updated.Version = user.Version + 1
			s.afterCompletion(ctx, updated, done, result)
			return &CompletionOutcome{Routine: done, User: updated, Result: result}, nil
		case errors.Is(err, ErrVersionConflict):
			observability.RecordCompletionConflict()
			s.log.WithFields(logrus.Fields{"user_id": userID, "attempt": attempt}).Debug("progress version moved, re-applying completion")
			continue
		case errors.Is(err, ErrRoutineAlreadyCompleted):
			user, routine, err := s.loadForCompletion(ctx, userID, ev.RoutineID)
			if err != nil {
				return nil, err
			}
			return replayOutcome(*user, *routine), nil
		default:
			return nil, fmt.Errorf("commit completion: %w", err)
		}
	}
}

func (s *RoutineService) loadForCompletion(ctx context.Context, userID, routineID string) (*User, *Routine, error) {
	user, err := s.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	routine, err := s.deps.Routines.GetRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, nil, err
	}
	if routine == nil {
		return nil, nil, ErrRoutineNotFound
	}
	return user, routine, nil
}

func (s *RoutineService) afterCompletion(ctx context.Context, user User, routine Routine, result ProgressionResult) {
	observability.RecordCompletion(result.FullCompletion, result.XPAwarded, string(result.Transition), *routine.CompletedAt)
	s.invalidate(ctx, routineCacheKey(user.ID, routine.Day))
	if err := s.deps.Users.TouchUser(ctx, user.ID, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("touch user failed")
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"routine_id": routine.ID,
		"xp":         result.XPAwarded,
		"streak":     user.Streak.Current,
		"transition": result.Transition,
	}).Info("routine completed")
}

func replayOutcome(user User, routine Routine) *CompletionOutcome {
	rate := 0.0
	if routine.TotalBlocks > 0 {
		rate = float64(routine.CompletedBlocks) / float64(routine.TotalBlocks)
	}
	return &CompletionOutcome{
		Routine: routine,
		User:    user,
		Result: ProgressionResult{
			Progress:       user.Progress(),
			XPAwarded:      routine.XPEarned,
			CompletionRate: rate,
			FullCompletion: rate >= FullCompletionThreshold,
			Transition:     StreakUnchanged,
		},
		Replay: true,
	}
}

// History lists the user's routines newest first.
func (s *RoutineService) History(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Routine, *Cursor, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.deps.Routines.ListRoutines(ctx, userID, cursor, limit)
}

func routineCacheKey(userID string, day time.Time) string {
	return fmt.Sprintf("routine:%s:%s", userID, day.Format(time.DateOnly))
}

func (s *RoutineService) cached(ctx context.Context, key string) (Routine, bool) {
	if s.deps.Cache == nil {
		return Routine{}, false
	}
	raw, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheError("get")
		s.log.WithError(err).WithField("key", key).Warn("routine cache read failed")
		return Routine{}, false
	}
	if !ok {
		return Routine{}, false
	}
	var routine Routine
	if err := json.Unmarshal(raw, &routine); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("discarding undecodable cached routine")
		return Routine{}, false
	}
	return routine, true
}

func (s *RoutineService) store(ctx context.Context, key string, routine Routine) {
	if s.deps.Cache == nil {
		return
	}
	raw, err := json.Marshal(routine)
	if err != nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, key, raw, s.deps.CacheTTL); err != nil {
		observability.RecordCacheError("set")
		s.log.WithError(err).WithField("key", key).Warn("routine cache write failed")
	}
}

func (s *RoutineService) invalidate(ctx context.Context, key string) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Delete(ctx, key); err != nil {
		observability.RecordCacheError("delete")
		s.log.WithError(err).WithField("key", key).Warn("routine cache invalidation failed")
	}
}
