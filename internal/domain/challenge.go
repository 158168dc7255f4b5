package domain

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed challenges.yaml
var catalogYAML []byte

// Challenge is a catalog entry users can enrol in.
type Challenge struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	DurationDays int      `yaml:"duration_days"`
	Category     string   `yaml:"category"`
	Difficulty   int      `yaml:"difficulty"`
	XPReward     int      `yaml:"xp_reward"`
	Icon         string   `yaml:"icon"`
	Color        string   `yaml:"color"`
	Goals        []string `yaml:"goals"`
	Benefits     []string `yaml:"benefits"`
	Active       bool     `yaml:"active"`
}

// Catalog is the read-only set of challenges, in declaration order.
type Catalog struct {
	ordered []Challenge
	byID    map[string]Challenge
}

// LoadCatalog parses a YAML challenge list.
func LoadCatalog(raw []byte) (*Catalog, error) {
	var list []Challenge
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse challenge catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]Challenge, len(list))}
	for _, ch := range list {
		if ch.ID == "" || ch.DurationDays <= 0 {
			return nil, fmt.Errorf("challenge %q: id and positive duration_days required", ch.Name)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("challenge %q declared twice", ch.ID)
		}
		c.byID[ch.ID] = ch
		c.ordered = append(c.ordered, ch)
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog. It panics if the embedded file is malformed.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Active lists the challenges currently open for enrolment.
func (c *Catalog) Active() []Challenge {
	out := make([]Challenge, 0, len(c.ordered))
	for _, ch := range c.ordered {
		if ch.Active {
			out = append(out, ch)
		}
	}
	return out
}

// Get finds a challenge by id, active or not.
func (c *Catalog) Get(id string) (Challenge, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// DayProgress is the state of one challenge day.
type DayProgress struct {
	Day         int
	Completed   bool
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// UserChallenge is a user's enrolment in a challenge.
type UserChallenge struct {
	ID            string
	UserID        string
	ChallengeID   string
	JoinedAt      time.Time
	Days          []DayProgress
	CurrentStreak int
	Completed     bool
	// CompletedAt is set the first time every day is completed and never cleared; it gates the XP reward.
	CompletedAt *time.Time
	Active      bool
	UpdatedAt   time.Time
	Version     int64
}

// CompletedDays counts days marked completed.
func (uc UserChallenge) CompletedDays() int {
	n := 0
	for _, d := range uc.Days {
		if d.Completed {
			n++
		}
	}
	return n
}

// Mark records the state of one day and recomputes the derived fields. It reports whether this call
// completed the challenge for the first time.
func (uc *UserChallenge) Mark(ch Challenge, day int, completed bool, now time.Time) (bool, error) {
	if day < 1 || day > ch.DurationDays {
		return false, invalid("day", fmt.Sprintf("must be between 1 and %d", ch.DurationDays))
	}
	now = now.UTC()

	found := false
	for i := range uc.Days {
		if uc.Days[i].Day != day {
			continue
		}
		found = true
		if completed && !uc.Days[i].Completed {
			uc.Days[i].CompletedAt = &now
		}
		if !completed {
			uc.Days[i].CompletedAt = nil
		}
		uc.Days[i].Completed = completed
		uc.Days[i].UpdatedAt = now
	}
	if !found {
		entry := DayProgress{Day: day, Completed: completed, UpdatedAt: now}
		if completed {
			entry.CompletedAt = &now
		}
		uc.Days = append(uc.Days, entry)
		sort.Slice(uc.Days, func(i, j int) bool { return uc.Days[i].Day < uc.Days[j].Day })
	}

	uc.CurrentStreak = challengeStreak(uc.Days)
	uc.Completed = uc.CompletedDays() >= ch.DurationDays
	uc.UpdatedAt = now

	first := uc.Completed && uc.CompletedAt == nil
	if first {
		uc.CompletedAt = &now
	}
	return first, nil
}

// challengeStreak is the length of the run of consecutive completed days ending at the highest completed day.
func challengeStreak(days []DayProgress) int {
	var completed []int
	for _, d := range days {
		if d.Completed {
			completed = append(completed, d.Day)
		}
	}
	if len(completed) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(completed)))
	streak := 1
	for i := 1; i < len(completed); i++ {
		if completed[i] != completed[i-1]-1 {
			break
		}
		streak++
	}
	return streak
}

// ChallengeProgress is the computed view of an enrolment.
type ChallengeProgress struct {
	CompletedDays int
	TotalDays     int
	Percentage    float64
	CurrentStreak int
	JoinedAt      time.Time
	IsCompleted   bool
}

// ProgressOf summarises an enrolment against its challenge.
func ProgressOf(ch Challenge, uc UserChallenge) ChallengeProgress {
	done := uc.CompletedDays()
	return ChallengeProgress{
		CompletedDays: done,
		TotalDays:     ch.DurationDays,
		Percentage:    percentOf(done, ch.DurationDays),
		CurrentStreak: uc.CurrentStreak,
		JoinedAt:      uc.JoinedAt,
		IsCompleted:   uc.Completed,
	}
}

func percentOf(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	if v < 0 {
		return -round1(-v)
	}
	return float64(int64(v*10+0.5)) / 10
}
