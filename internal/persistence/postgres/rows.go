package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/chizen/internal/domain"
)

const userColumns = `id, email, username, password_hash, fitness_level, preferences, streak_current, streak_longest,
        streak_last_completed_at, total_xp, is_admin, is_active, created_at, last_active_at, version`

const routineColumns = `id, user_id, routine_day, title, focus_area, total_duration_minutes, difficulty_level, blocks,
        completion_xp, daily_wisdom, source, created_at, completed_at, completed_blocks, total_blocks, feedback_rating,
        feedback_comment, xp_earned`

const enrollmentColumns = `id, user_id, challenge_id, joined_at, days, current_streak, completed, completed_at, active,
        updated_at, version`

const subscriptionColumns = `email, name, topics, source, active, subscribed_at, unsubscribed_at, resubscribed_at`

type preferencesDoc struct {
	DurationMinutes int      `json:"duration_minutes"`
	FocusAreas      []string `json:"focus_areas"`
	Language        string   `json:"language"`
}

type blockDoc struct {
	Category        string   `json:"category"`
	Name            string   `json:"name"`
	DurationSeconds int      `json:"duration_seconds"`
	Instructions    []string `json:"instructions"`
	Difficulty      int      `json:"difficulty"`
	AudioCue        string   `json:"audio_cue,omitempty"`
	AudioURL        string   `json:"audio_url,omitempty"`
	Benefits        []string `json:"benefits,omitempty"`
}

type dayDoc struct {
	Day         int        `json:"day"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func encodePreferences(p domain.Preferences) ([]byte, error) {
	return json.Marshal(preferencesDoc{
		DurationMinutes: p.DurationMinutes,
		FocusAreas:      p.FocusAreas,
		Language:        string(p.Language),
	})
}

func decodePreferences(raw []byte) (domain.Preferences, error) {
	var doc preferencesDoc
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return domain.Preferences{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return domain.Preferences{
		DurationMinutes: doc.DurationMinutes,
		FocusAreas:      doc.FocusAreas,
		Language:        domain.Language(doc.Language),
	}.WithDefaults(), nil
}

func encodeBlocks(blocks []domain.ExerciseBlock) ([]byte, error) {
	docs := make([]blockDoc, 0, len(blocks))
	for _, b := range blocks {
		docs = append(docs, blockDoc{
			Category:        string(b.Category),
			Name:            b.Name,
			DurationSeconds: b.DurationSeconds,
			Instructions:    b.Instructions,
			Difficulty:      b.Difficulty,
			AudioCue:        b.AudioCue,
			AudioURL:        b.AudioURL,
			Benefits:        b.Benefits,
		})
	}
	return json.Marshal(docs)
}

func decodeBlocks(raw []byte) ([]domain.ExerciseBlock, error) {
	var docs []blockDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	blocks := make([]domain.ExerciseBlock, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, domain.ExerciseBlock{
			Category:        domain.Category(d.Category),
			Name:            d.Name,
			DurationSeconds: d.DurationSeconds,
			Instructions:    d.Instructions,
			Difficulty:      d.Difficulty,
			AudioCue:        d.AudioCue,
			AudioURL:        d.AudioURL,
			Benefits:        d.Benefits,
		})
	}
	return blocks, nil
}

func encodeDays(days []domain.DayProgress) ([]byte, error) {
	docs := make([]dayDoc, 0, len(days))
	for _, d := range days {
		docs = append(docs, dayDoc(d))
	}
	return json.Marshal(docs)
}

func decodeDays(raw []byte) ([]domain.DayProgress, error) {
	var docs []dayDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode challenge days: %w", err)
	}
	days := make([]domain.DayProgress, 0, len(docs))
	for _, d := range docs {
		days = append(days, domain.DayProgress(d))
	}
	return days, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u     domain.User
		level string
		prefs []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &level, &prefs, &u.Streak.Current, &u.Streak.Longest,
		&u.Streak.LastCompletedAt, &u.TotalXP, &u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.LastActiveAt, &u.Version)
	if err != nil {
		return domain.User{}, err
	}
	u.FitnessLevel = domain.FitnessLevel(level)
	if u.Preferences, err = decodePreferences(prefs); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanRoutine(row pgx.Row) (domain.Routine, error) {
	var (
		r      domain.Routine
		blocks []byte
		source string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Day, &r.Title, &r.FocusArea, &r.TotalDurationMinutes, &r.DifficultyLevel, &blocks,
		&r.CompletionXP, &r.DailyWisdom, &source, &r.CreatedAt, &r.CompletedAt, &r.CompletedBlocks, &r.TotalBlocks,
		&r.FeedbackRating, &r.FeedbackComment, &r.XPEarned)
	if err != nil {
		return domain.Routine{}, err
	}
	r.Source = domain.RoutineSource(source)
	r.Day = domain.DayOf(r.Day)
	if r.Blocks, err = decodeBlocks(blocks); err != nil {
		return domain.Routine{}, err
	}
	return r, nil
}

func scanEnrollment(row pgx.Row) (domain.UserChallenge, error) {
	var (
		uc   domain.UserChallenge
		days []byte
	)
	err := row.Scan(&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.JoinedAt, &days, &uc.CurrentStreak, &uc.Completed,
		&uc.CompletedAt, &uc.Active, &uc.UpdatedAt, &uc.Version)
	if err != nil {
		return domain.UserChallenge{}, err
	}
	if uc.Days, err = decodeDays(days); err != nil {
		return domain.UserChallenge{}, err
	}
	return uc, nil
}

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(&s.Email, &s.Name, &s.Topics, &s.Source, &s.Active, &s.SubscribedAt, &s.UnsubscribedAt, &s.ResubscribedAt)
	return s, err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
