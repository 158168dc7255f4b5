package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/observability"
)

// ChallengeService manages enrolments in catalog challenges.
type ChallengeService struct {
	catalog *Catalog
	repo    ChallengeRepository
	locks   *UserLocks
	options
}

// NewChallengeService constructs a ChallengeService. Pass the lock table shared with RoutineService so
// challenge XP and routine XP for one user are written one at a time.
func NewChallengeService(catalog *Catalog, repo ChallengeRepository, locks *UserLocks, opts ...Option) *ChallengeService {
	if locks == nil {
		locks = NewUserLocks()
	}
	return &ChallengeService{catalog: catalog, repo: repo, locks: locks, options: buildOptions(opts)}
}

// ChallengeView is a catalog entry from one user's point of view.
type ChallengeView struct {
	Challenge        Challenge
	Joined           bool
	Progress         *ChallengeProgress
	ParticipantCount int
}

// List returns the active catalog with the caller's status on each entry.
func (s *ChallengeService) List(ctx context.Context, userID string) ([]ChallengeView, error) {
	mine, err := s.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	byChallenge := make(map[string]UserChallenge, len(mine))
	for _, uc := range mine {
		byChallenge[uc.ChallengeID] = uc
	}

	active := s.catalog.Active()
	views := make([]ChallengeView, 0, len(active))
	for _, ch := range active {
		view := ChallengeView{Challenge: ch}
		if uc, ok := byChallenge[ch.ID]; ok {
			progress := ProgressOf(ch, uc)
			view.Joined = true
			view.Progress = &progress
		} else {
			n, err := s.repo.CountParticipants(ctx, ch.ID)
			if err != nil {
				return nil, fmt.Errorf("count participants: %w", err)
			}
			view.ParticipantCount = n
		}
		views = append(views, view)
	}
	return views, nil
}

// Join enrols the user in an active challenge.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID string) (Challenge, error) {
	ch, ok := s.catalog.Get(challengeID)
	if !ok || !ch.Active {
		return Challenge{}, ErrChallengeNotFound
	}
	existing, err := s.repo.GetEnrollment(ctx, userID, challengeID)
	if err != nil {
		return Challenge{}, err
	}
	if existing != nil {
		return Challenge{}, ErrAlreadyJoined
	}

	now := s.now()
	enrollment := UserChallenge{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: challengeID,
		JoinedAt:    now,
		Active:      true,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return Challenge{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "challenge_id": challengeID}).Info("challenge joined")
	return ch, nil
}

// ProgressUpdate is the result of recording one challenge day.
type ProgressUpdate struct {
	Challenge Challenge
	Progress  ChallengeProgress
	// XPAwarded is non-zero only on the call that first completed the challenge.
	XPAwarded int
}

// RecordProgress marks one day of an enrolment completed or not, awarding the challenge XP the first
// time every day is complete.
func (s *ChallengeService) RecordProgress(ctx context.Context, userID, challengeID string, day int, completed bool) (*ProgressUpdate, error) {
	ch, ok := s.catalog.Get(challengeID)
	if !ok {
		return nil, ErrChallengeNotFound
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		if err := commitBackoff(ctx, attempt); err != nil {
			return nil, err
		}
		uc, err := s.repo.GetEnrollment(ctx, userID, challengeID)
		if err != nil {
			return nil, err
		}
		if uc == nil {
			return nil, ErrNotJoined
		}

		expected := uc.Version
		first, err := uc.Mark(ch, day, completed, s.now())
		if err != nil {
			return nil, err
		}
		award := 0
		if first {
			award = ch.XPReward
		}

		err = s.repo.SaveEnrollment(ctx, *uc, expected, award)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save enrollment: %w", err)
		}
		if award > 0 {
			observability.RecordXPAwarded(award)
			s.log.WithFields(logrus.Fields{"user_id": userID, "challenge_id": challengeID, "xp": award}).Info("challenge completed")
		}
		return &ProgressUpdate{Challenge: ch, Progress: ProgressOf(ch, *uc), XPAwarded: award}, nil
	}
}

// Enrollment pairs an enrolment with its catalog entry.
type Enrollment struct {
	Challenge     Challenge
	UserChallenge UserChallenge
	Progress      ChallengeProgress
}

// Mine lists the caller's active enrolments, newest first.
func (s *ChallengeService) Mine(ctx context.Context, userID string) ([]Enrollment, error) {
	list, err := s.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make([]Enrollment, 0, len(list))
	for _, uc := range list {
		ch, ok := s.catalog.Get(uc.ChallengeID)
		if !ok {
			continue
		}
		out = append(out, Enrollment{Challenge: ch, UserChallenge: uc, Progress: ProgressOf(ch, uc)})
	}
	return out, nil
}

// ChallengeStanding is one ranked leaderboard row.
type ChallengeStanding struct {
	RankedParticipant
	Percentage  float64
	IsCompleted bool
}

// ChallengeBoard is a challenge's ranked participants.
type ChallengeBoard struct {
	ChallengeID       string
	Standings         []ChallengeStanding
	TotalParticipants int
}

// Leaderboard ranks a challenge's active participants.
func (s *ChallengeService) Leaderboard(ctx context.Context, challengeID string, limit int) (*ChallengeBoard, error) {
	ch, ok := s.catalog.Get(challengeID)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}

	participants, err := s.repo.ListChallengeParticipants(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	ranked := RankParticipants(participants)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	board := &ChallengeBoard{ChallengeID: challengeID, TotalParticipants: len(participants)}
	for _, r := range ranked {
		board.Standings = append(board.Standings, ChallengeStanding{
			RankedParticipant: r,
			Percentage:        percentOf(r.CompletedDays, ch.DurationDays),
			IsCompleted:       r.CompletedDays >= ch.DurationDays,
		})
	}
	return board, nil
}
