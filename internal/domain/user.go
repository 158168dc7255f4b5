package domain

import (
	"strings"
	"time"
)

// FitnessLevel is the self-declared experience tier used to tailor generated routines.
type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

// FitnessLevels lists the levels in ascending order.
var FitnessLevels = []FitnessLevel{FitnessBeginner, FitnessIntermediate, FitnessAdvanced}

// Valid reports whether l is a known level.
func (l FitnessLevel) Valid() bool {
	for _, known := range FitnessLevels {
		if l == known {
			return true
		}
	}
	return false
}

// Language is the narration and instruction language preference.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageKhmer   Language = "km"
	LanguageThai    Language = "th"
)

// Valid reports whether lang is supported.
func (lang Language) Valid() bool {
	switch lang {
	case LanguageEnglish, LanguageKhmer, LanguageThai:
		return true
	}
	return false
}

const (
	MinRoutineMinutes     = 5
	MaxRoutineMinutes     = 30
	DefaultRoutineMinutes = 15
)

// Preferences is the single structured representation of a user's routine preferences.
type Preferences struct {
	DurationMinutes int
	FocusAreas      []string
	Language        Language
}

// DefaultPreferences returns the preferences assigned to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		DurationMinutes: DefaultRoutineMinutes,
		FocusAreas:      []string{"strength", "flexibility", "mindfulness"},
		Language:        LanguageEnglish,
	}
}

// WithDefaults fills zero-valued fields from DefaultPreferences.
func (p Preferences) WithDefaults() Preferences {
	def := DefaultPreferences()
	if p.DurationMinutes == 0 {
		p.DurationMinutes = def.DurationMinutes
	}
	if len(p.FocusAreas) == 0 {
		p.FocusAreas = def.FocusAreas
	}
	if p.Language == "" {
		p.Language = def.Language
	}
	return p
}

// Validate checks bounds on a preferences value that already had defaults applied.
func (p Preferences) Validate() error {
	if p.DurationMinutes < MinRoutineMinutes || p.DurationMinutes > MaxRoutineMinutes {
		return invalid("preferences.duration", "must be between 5 and 30 minutes")
	}
	if !p.Language.Valid() {
		return invalid("preferences.language", "must be one of en, km, th")
	}
	for _, area := range p.FocusAreas {
		if strings.TrimSpace(area) == "" {
			return invalid("preferences.focus_areas", "must not contain blank entries")
		}
	}
	return nil
}

// StreakRecord tracks consecutive calendar days with a full routine completion.
// Current never exceeds Longest.
type StreakRecord struct {
	Current         int
	Longest         int
	LastCompletedAt *time.Time
}

// User is the account aggregate, including gamification state.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	FitnessLevel FitnessLevel
	Preferences  Preferences
	Streak       StreakRecord
	TotalXP      int
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
	LastActiveAt *time.Time
	// Version increases with every progress or XP write and backs compare-and-set updates.
	Version int64
}

// Progress extracts the state the progression engine operates on.
func (u User) Progress() Progress {
	return Progress{Streak: u.Streak, TotalXP: u.TotalXP}
}

// Profile derives the generator input for this user.
func (u User) Profile() Profile {
	prefs := u.Preferences.WithDefaults()
	level := u.FitnessLevel
	if !level.Valid() {
		level = FitnessBeginner
	}
	return Profile{
		FitnessLevel:    level,
		DurationMinutes: prefs.DurationMinutes,
		FocusAreas:      append([]string(nil), prefs.FocusAreas...),
		Language:        prefs.Language,
	}
}

// Profile is the subset of user data handed to the routine generator.
type Profile struct {
	FitnessLevel    FitnessLevel
	DurationMinutes int
	FocusAreas      []string
	Language        Language
}

// UserPatch carries optional admin/profile updates. Nil fields are left unchanged.
type UserPatch struct {
	Username     *string
	FitnessLevel *FitnessLevel
	Preferences  *Preferences
	IsAdmin      *bool
	IsActive     *bool
}

// Validate checks the supplied fields.
func (p UserPatch) Validate() error {
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		return invalid("username", "must not be blank")
	}
	if p.FitnessLevel != nil && !p.FitnessLevel.Valid() {
		return invalid("fitness_level", "must be beginner, intermediate or advanced")
	}
	if p.Preferences != nil {
		if err := p.Preferences.WithDefaults().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.FitnessLevel == nil && p.Preferences == nil && p.IsAdmin == nil && p.IsActive == nil
}

// UserFilter drives the admin user listing.
type UserFilter struct {
	Search       string
	FitnessLevel FitnessLevel
	Page         int
	Limit        int
}

// Offset converts the 1-based page into a row offset.
func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
