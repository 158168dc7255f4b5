// Package postgres implements the domain repositories on Postgres with a transactional outbox.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/events"
)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for every domain repository.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (err error) {
	prefs, err := encodePreferences(user.Preferences)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		user.ID, user.Email, user.Username, user.PasswordHash, string(user.FitnessLevel), prefs,
		user.Streak.Current, user.Streak.Longest, user.Streak.LastCompletedAt, user.TotalXP,
		user.IsAdmin, user.IsActive, user.CreatedAt, user.LastActiveAt, user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return err
	}
	if err = insertOutbox(ctx, tx, events.ForUser(user)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
}

// GetUserByEmail implements domain.UserRepository.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (s *Store) findUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UpdateUser implements domain.UserRepository.
func (s *Store) UpdateUser(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	var level *string
	if patch.FitnessLevel != nil {
		v := string(*patch.FitnessLevel)
		level = &v
	}
	var prefs []byte
	if patch.Preferences != nil {
		encoded, err := encodePreferences(*patch.Preferences)
		if err != nil {
			return nil, err
		}
		prefs = encoded
	}

	const stmt = `UPDATE users SET
            username      = COALESCE($2, username),
            fitness_level = COALESCE($3, fitness_level),
            preferences   = COALESCE($4::jsonb, preferences),
            is_admin      = COALESCE($5, is_admin),
            is_active     = COALESCE($6, is_active)
        WHERE id=$1
        RETURNING ` + userColumns

	return s.findUser(ctx, stmt, userID, patch.Username, level, prefs, patch.IsAdmin, patch.IsActive)
}

// TouchUser implements domain.UserRepository.
func (s *Store) TouchUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_active_at=$2 WHERE id=$1`, userID, at.UTC())
	return err
}

// ListUsers implements domain.UserRepository.
func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		where = append(where, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.FitnessLevel != "" {
		args = append(args, string(filter.FitnessLevel))
		where = append(where, fmt.Sprintf("fitness_level = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		userColumns, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// TopUsers implements domain.UserRepository.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users
        WHERE is_active
        ORDER BY total_xp DESC, streak_current DESC, created_at ASC, id ASC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

// DeleteUser implements domain.UserRepository. Routines and enrolments go with the account through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertRoutine implements domain.RoutineRepository.
func (s *Store) InsertRoutine(ctx context.Context, routine domain.Routine) error {
	blocks, err := encodeBlocks(routine.Blocks)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO routines (`+routineColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		routine.ID, routine.UserID, domain.DayOf(routine.Day), routine.Title, routine.FocusArea,
		routine.TotalDurationMinutes, routine.DifficultyLevel, blocks, routine.CompletionXP, routine.DailyWisdom,
		string(routine.Source), routine.CreatedAt, routine.CompletedAt, routine.CompletedBlocks, routine.TotalBlocks,
		routine.FeedbackRating, routine.FeedbackComment, routine.XPEarned,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return domain.ErrRoutineExists
			case "23503":
				return domain.ErrUserNotFound
			}
		}
		return err
	}
	return nil
}

// GetRoutine implements domain.RoutineRepository.
func (s *Store) GetRoutine(ctx context.Context, userID, routineID string) (*domain.Routine, error) {
	return s.findRoutine(ctx, `SELECT `+routineColumns+` FROM routines WHERE id=$1 AND user_id=$2`, routineID, userID)
}

// FindRoutineForDay implements domain.RoutineRepository.
func (s *Store) FindRoutineForDay(ctx context.Context, userID string, day time.Time) (*domain.Routine, error) {
	return s.findRoutine(ctx, `SELECT `+routineColumns+` FROM routines WHERE user_id=$1 AND routine_day=$2`,
		userID, domain.DayOf(day))
}

func (s *Store) findRoutine(ctx context.Context, query string, args ...any) (*domain.Routine, error) {
	r, err := scanRoutine(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRoutines implements domain.RoutineRepository.
func (s *Store) ListRoutines(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Routine, *domain.Cursor, error) {
	args := []any{userID, limit + 1}
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (created_at, id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	results, err := collect(rows, scanRoutine)
	if err != nil {
		return nil, nil, err
	}

	if len(results) <= limit {
		return results, nil, nil
	}
	results = results[:limit]
	last := results[len(results)-1]
	return results, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// ListCompletedRoutines implements domain.RoutineRepository.
func (s *Store) ListCompletedRoutines(ctx context.Context, userID string, since time.Time) ([]domain.Routine, error) {
	args := []any{userID}
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id=$1 AND completed_at IS NOT NULL`
	if !since.IsZero() {
		query += ` AND completed_at >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY completed_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRoutine)
}

// ListAllRoutines implements domain.RoutineRepository.
func (s *Store) ListAllRoutines(ctx context.Context, filter domain.RoutineFilter) ([]domain.Routine, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.CompletedOnly {
		where = append(where, "completed_at IS NOT NULL")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM routines`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM routines%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		routineColumns, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	routines, err := collect(rows, scanRoutine)
	if err != nil {
		return nil, 0, err
	}
	return routines, total, nil
}

// CommitCompletion implements domain.RoutineRepository.
func (s *Store) CommitCompletion(ctx context.Context, commit domain.CompletionCommit) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	r := commit.Routine
	tag, err := tx.Exec(ctx, `UPDATE routines SET
            completed_at=$3, completed_blocks=$4, total_blocks=$5, feedback_rating=$6, feedback_comment=$7, xp_earned=$8
        WHERE id=$1 AND user_id=$2 AND completed_at IS NULL`,
		r.ID, commit.UserID, r.CompletedAt, r.CompletedBlocks, r.TotalBlocks, r.FeedbackRating, r.FeedbackComment, r.XPEarned,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM routines WHERE id=$1 AND user_id=$2)`, r.ID, commit.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrRoutineNotFound
		}
		return domain.ErrRoutineAlreadyCompleted
	}

	streak := commit.Progress.Streak
	tag, err = tx.Exec(ctx, `UPDATE users SET
            streak_current=$3, streak_longest=$4, streak_last_completed_at=$5, total_xp=$6, version=version+1
        WHERE id=$1 AND version=$2`,
		commit.UserID, commit.ExpectedVersion, streak.Current, streak.Longest, streak.LastCompletedAt, commit.Progress.TotalXP,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	if err = insertOutbox(ctx, tx, events.ForCompletion(commit)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetEnrollment implements domain.ChallengeRepository.
func (s *Store) GetEnrollment(ctx context.Context, userID, challengeID string) (*domain.UserChallenge, error) {
	uc, err := scanEnrollment(s.pool.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM user_challenges
        WHERE user_id=$1 AND challenge_id=$2 AND active`, userID, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &uc, nil
}

// ListEnrollments implements domain.ChallengeRepository.
func (s *Store) ListEnrollments(ctx context.Context, userID string) ([]domain.UserChallenge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+enrollmentColumns+` FROM user_challenges
        WHERE user_id=$1 AND active ORDER BY joined_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEnrollment)
}

// ListChallengeParticipants implements domain.ChallengeRepository.
func (s *Store) ListChallengeParticipants(ctx context.Context, challengeID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT uc.user_id, u.username, uc.days, uc.current_streak, uc.joined_at
        FROM user_challenges uc JOIN users u ON u.id = uc.user_id
        WHERE uc.challenge_id=$1 AND uc.active`, challengeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (domain.Participant, error) {
		var (
			p    domain.Participant
			days []byte
		)
		if err := row.Scan(&p.UserID, &p.Username, &days, &p.CurrentStreak, &p.JoinedAt); err != nil {
			return domain.Participant{}, err
		}
		decoded, err := decodeDays(days)
		if err != nil {
			return domain.Participant{}, err
		}
		p.CompletedDays = domain.UserChallenge{Days: decoded}.CompletedDays()
		return p, nil
	})
}

// CountParticipants implements domain.ChallengeRepository.
func (s *Store) CountParticipants(ctx context.Context, challengeID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_challenges WHERE challenge_id=$1 AND active`, challengeID).Scan(&n)
	return n, err
}

// CreateEnrollment implements domain.ChallengeRepository.
func (s *Store) CreateEnrollment(ctx context.Context, enrollment domain.UserChallenge) error {
	days, err := encodeDays(enrollment.Days)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO user_challenges (`+enrollmentColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		enrollment.ID, enrollment.UserID, enrollment.ChallengeID, enrollment.JoinedAt, days, enrollment.CurrentStreak,
		enrollment.Completed, enrollment.CompletedAt, enrollment.Active, enrollment.UpdatedAt, enrollment.Version,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyJoined
	}
	return err
}

// SaveEnrollment implements domain.ChallengeRepository.
func (s *Store) SaveEnrollment(ctx context.Context, enrollment domain.UserChallenge, expectedVersion int64, xpAward int) (err error) {
	days, err := encodeDays(enrollment.Days)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE user_challenges SET
            days=$3, current_streak=$4, completed=$5, completed_at=$6, active=$7, updated_at=$8, version=version+1
        WHERE id=$1 AND version=$2`,
		enrollment.ID, expectedVersion, days, enrollment.CurrentStreak, enrollment.Completed, enrollment.CompletedAt,
		enrollment.Active, enrollment.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_challenges WHERE id=$1)`, enrollment.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotJoined
		}
		return domain.ErrVersionConflict
	}

	if xpAward > 0 {
		tag, err = tx.Exec(ctx, `UPDATE users SET total_xp = total_xp + $2, version = version + 1 WHERE id=$1`,
			enrollment.UserID, xpAward)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}
	}
	return tx.Commit(ctx)
}

// GetSubscription implements domain.NewsletterRepository.
func (s *Store) GetSubscription(ctx context.Context, email string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM newsletter_subscriptions WHERE email=$1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription implements domain.NewsletterRepository.
func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) (created bool, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !created {
			tx.Rollback(ctx)
		}
	}()

	topics := sub.Topics
	if topics == nil {
		topics = []string{}
	}
	tag, err := tx.Exec(ctx, `INSERT INTO newsletter_subscriptions (`+subscriptionColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (email) DO NOTHING`,
		sub.Email, sub.Name, topics, sub.Source, sub.Active, sub.SubscribedAt, sub.UnsubscribedAt, sub.ResubscribedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err = insertOutbox(ctx, tx, events.ForSubscription(sub)); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ReactivateSubscription implements domain.NewsletterRepository.
func (s *Store) ReactivateSubscription(ctx context.Context, email string, topics []string, at time.Time) error {
	if topics == nil {
		topics = []string{}
	}
	tag, err := s.pool.Exec(ctx, `UPDATE newsletter_subscriptions
        SET active=TRUE, topics=$2, resubscribed_at=$3
        WHERE email=$1`, email, topics, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// DeactivateSubscription implements domain.NewsletterRepository.
func (s *Store) DeactivateSubscription(ctx context.Context, email string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE newsletter_subscriptions
        SET active=FALSE, unsubscribed_at=$2
        WHERE email=$1 AND active`, email, at.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SubscriptionStats implements domain.NewsletterRepository.
func (s *Store) SubscriptionStats(ctx context.Context, since time.Time) (domain.SubscriptionStats, error) {
	var stats domain.SubscriptionStats
	err := s.pool.QueryRow(ctx, `SELECT
            COUNT(*) FILTER (WHERE active),
            COUNT(*) FILTER (WHERE NOT active),
            COUNT(*) FILTER (WHERE active AND subscribed_at >= $1)
        FROM newsletter_subscriptions`, since).Scan(&stats.Active, &stats.Unsubscribed, &stats.RecentActive)
	return stats, err
}

// PlatformStats implements domain.AdminRepository.
func (s *Store) PlatformStats(ctx context.Context, weekAgo, monthAgo time.Time) (domain.PlatformStats, error) {
	stats := domain.PlatformStats{FitnessDistribution: map[domain.FitnessLevel]int{}}
	for _, level := range domain.FitnessLevels {
		stats.FitnessDistribution[level] = 0
	}

	err := s.pool.QueryRow(ctx, `SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE created_at >= $1),
            COUNT(*) FILTER (WHERE created_at >= $2)
        FROM users`, weekAgo, monthAgo).Scan(&stats.TotalUsers, &stats.NewUsersWeek, &stats.NewUsersMonth)
	if err != nil {
		return domain.PlatformStats{}, fmt.Errorf("user totals: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT fitness_level, COUNT(*) FROM users GROUP BY fitness_level`)
	if err != nil {
		return domain.PlatformStats{}, fmt.Errorf("fitness distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			level string
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return domain.PlatformStats{}, err
		}
		if fl := domain.FitnessLevel(level); fl.Valid() {
			stats.FitnessDistribution[fl] = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.PlatformStats{}, err
	}

	err = s.pool.QueryRow(ctx, `SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE completed_at IS NOT NULL),
            COUNT(*) FILTER (WHERE created_at >= $1),
            COUNT(DISTINCT user_id) FILTER (WHERE completed_at >= $1),
            COALESCE(AVG(completed_blocks::float8 / NULLIF(total_blocks, 0)) FILTER (WHERE completed_at IS NOT NULL), 0)
        FROM routines`, weekAgo).Scan(&stats.TotalRoutines, &stats.CompletedRoutines, &stats.RoutinesWeek,
		&stats.ActiveUsersWeek, &stats.AvgCompletionRate)
	if err != nil {
		return domain.PlatformStats{}, fmt.Errorf("routine totals: %w", err)
	}
	return stats, nil
}

// RecordBroadcast implements domain.AdminRepository.
func (s *Store) RecordBroadcast(ctx context.Context, b domain.Broadcast) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = insertOutbox(ctx, tx, events.ForBroadcast(b)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
